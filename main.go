package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/docopt/docopt-go"
	"github.com/joho/godotenv"

	"github.com/quikapp/go-bundlefix/pkg/bundlefix"
)

const version = "1.0.0"

const usage = `go-bundlefix - iOS Bundle Identifier Collision Fixer

Resolves CFBundleIdentifier collisions that make App Store validation fail:
assigns every target, framework and extension a unique identifier derived
from a single base bundle identifier.

Usage:
  go-bundlefix project --project=<path> --bundle-id=<id> [--dry-run]
  go-bundlefix ipa --ipa=<path> --bundle-id=<id> [--output=<path>]
  go-bundlefix validate (--project=<path> | --ipa=<path>)
  go-bundlefix -h | --help
  go-bundlefix --version

Commands:
  project   Rewrite PRODUCT_BUNDLE_IDENTIFIER settings in a project.pbxproj
  ipa       Extract an IPA, rewrite every Info.plist, repack and verify
  validate  Report current identifiers and collisions without modifying anything

Options:
  --project=<path>   Path to a project.pbxproj file (or BUNDLEFIX_PROJECT env var)
  --ipa=<path>       Path to an .ipa file (or BUNDLEFIX_IPA env var)
  --bundle-id=<id>   Base bundle identifier in reverse-DNS form (or BUNDLEFIX_BUNDLE_ID env var)
  --output=<path>    Output path for the fixed IPA (defaults to <input>-fixed.ipa)
  --dry-run          Report the assignments without writing the project file
  -h --help          Show this help message
  --version          Show version

Environment Variables:
  BUNDLEFIX_PROJECT    Path to project.pbxproj (overridden by --project)
  BUNDLEFIX_IPA        Path to .ipa file (overridden by --ipa)
  BUNDLEFIX_BUNDLE_ID  Base bundle identifier (overridden by --bundle-id)

Variables can also come from a .env file in the working directory.

Examples:
  # Fix identifier collisions in a Flutter iOS project
  go-bundlefix project --project=ios/Runner.xcodeproj/project.pbxproj --bundle-id=com.example.app

  # Preview what would change
  go-bundlefix project --project=ios/Runner.xcodeproj/project.pbxproj --bundle-id=com.example.app --dry-run

  # Fix a built IPA (the input file is never modified)
  go-bundlefix ipa --ipa=build/Runner.ipa --bundle-id=com.example.app --output=build/Runner-fixed.ipa

  # Check an IPA for collisions before uploading
  go-bundlefix validate --ipa=build/Runner.ipa
`

func main() {
	// CI convenience: pick up BUNDLEFIX_* from a local .env if present
	_ = godotenv.Load()

	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})

	var runErr error
	switch {
	case command(opts, "project"):
		runErr = runProject(opts, logger)
	case command(opts, "ipa"):
		runErr = runIPA(opts, logger)
	case command(opts, "validate"):
		runErr = runValidate(opts, logger)
	}
	if runErr != nil {
		logger.Error(runErr.Error())
		os.Exit(1)
	}
}

func command(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

func stringOpt(opts docopt.Opts, flag, envVar string) string {
	v, _ := opts.String(flag)
	if v == "" && envVar != "" {
		v = os.Getenv(envVar)
	}
	return v
}

func runProject(opts docopt.Opts, logger *log.Logger) error {
	projectPath := stringOpt(opts, "--project", "BUNDLEFIX_PROJECT")
	baseID := stringOpt(opts, "--bundle-id", "BUNDLEFIX_BUNDLE_ID")
	dryRun := command(opts, "--dry-run")

	if projectPath == "" {
		return fmt.Errorf("--project is required (or set BUNDLEFIX_PROJECT)")
	}
	if baseID == "" {
		return fmt.Errorf("--bundle-id is required (or set BUNDLEFIX_BUNDLE_ID)")
	}

	logger.Info("patching project file", "path", projectPath, "bundle-id", baseID, "dry-run", dryRun)

	var result *bundlefix.PatchResult
	var err error
	if dryRun {
		result, err = bundlefix.PreviewProject(projectPath, baseID)
	} else {
		result, err = bundlefix.PatchProject(projectPath, baseID)
	}
	return report(result, err, logger)
}

func runIPA(opts docopt.Opts, logger *log.Logger) error {
	ipaPath := stringOpt(opts, "--ipa", "BUNDLEFIX_IPA")
	baseID := stringOpt(opts, "--bundle-id", "BUNDLEFIX_BUNDLE_ID")
	outputPath, _ := opts.String("--output")

	if ipaPath == "" {
		return fmt.Errorf("--ipa is required (or set BUNDLEFIX_IPA)")
	}
	if baseID == "" {
		return fmt.Errorf("--bundle-id is required (or set BUNDLEFIX_BUNDLE_ID)")
	}
	if outputPath == "" {
		ext := filepath.Ext(ipaPath)
		outputPath = strings.TrimSuffix(ipaPath, ext) + "-fixed" + ext
	}

	logger.Info("patching IPA", "input", ipaPath, "output", outputPath, "bundle-id", baseID)

	extractedDir, err := bundlefix.ExtractIPA(ipaPath)
	if err != nil {
		return fmt.Errorf("failed to extract IPA: %w", err)
	}
	defer os.RemoveAll(extractedDir)

	result, err := bundlefix.PatchArchive(extractedDir, baseID)
	if reportErr := report(result, err, logger); reportErr != nil {
		return reportErr
	}

	if err := bundlefix.RepackIPA(extractedDir, outputPath); err != nil {
		return err
	}

	logger.Info("wrote fixed IPA", "path", outputPath)
	return nil
}

func runValidate(opts docopt.Opts, logger *log.Logger) error {
	projectPath := stringOpt(opts, "--project", "")
	ipaPath := stringOpt(opts, "--ipa", "")

	var result *bundlefix.PatchResult
	var err error
	switch {
	case projectPath != "":
		result, err = bundlefix.InspectProject(projectPath)
	case ipaPath != "":
		var extractedDir string
		extractedDir, err = bundlefix.ExtractIPA(ipaPath)
		if err != nil {
			return fmt.Errorf("failed to extract IPA: %w", err)
		}
		defer os.RemoveAll(extractedDir)
		result, err = bundlefix.InspectArchive(extractedDir)
	default:
		return fmt.Errorf("either --project or --ipa is required")
	}
	if err != nil {
		return err
	}

	for _, a := range result.Assignments {
		logger.Info("bundle", "name", a.Name, "category", a.Category, "identifier", a.Identifier)
	}
	for _, skipped := range result.Skipped {
		logger.Warn("no bundle identifier", "path", skipped)
	}
	if len(result.Collisions) > 0 {
		for _, c := range result.Collisions {
			logger.Error("identifier collision", "identifier", c.Identifier, "bundles", strings.Join(c.Paths, ", "))
		}
		return fmt.Errorf("%d identifier collision(s) found", len(result.Collisions))
	}

	logger.Info("no collisions found")
	return nil
}

// report logs the outcome of a patch run. A CollisionError is surfaced
// with the full duplicate detail; other errors pass through untouched.
func report(result *bundlefix.PatchResult, err error, logger *log.Logger) error {
	if result != nil {
		for _, a := range result.Assignments {
			if a.Changed {
				logger.Info("assigned", "name", a.Name, "category", a.Category, "identifier", a.Identifier)
			} else {
				logger.Debug("unchanged", "name", a.Name, "identifier", a.Identifier)
			}
		}
		for _, skipped := range result.Skipped {
			logger.Warn("skipped, no bundle identifier present", "target", skipped)
		}
		logger.Info("patch pass complete", "modified", result.Modified, "total", len(result.Assignments))
	}

	var collisionErr *bundlefix.CollisionError
	if errors.As(err, &collisionErr) {
		for _, c := range collisionErr.Collisions {
			logger.Error("identifier still duplicated", "identifier", c.Identifier, "bundles", strings.Join(c.Paths, ", "))
		}
	}
	return err
}
