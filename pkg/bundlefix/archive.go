package bundlefix

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

// BundleManifest is one Info.plist inside an extracted archive: the main
// app, a framework, a plugin, or a test bundle.
type BundleManifest struct {
	Path             string   // plist path relative to the archive root
	BundlePath       string   // bundle directory relative to the archive root
	Name             string   // bundle file stem, e.g. "Flutter" for Flutter.framework
	Kind             Category // filled in during patching/inspection
	BundleIdentifier string   // current CFBundleIdentifier, empty if the key is absent
	ExtensionPoint   string   // NSExtensionPointIdentifier, if declared

	format int
	info   map[string]interface{}
}

// bundleExtensions are the directory suffixes treated as bundles when
// walking an extracted archive.
var bundleExtensions = map[string]bool{
	".app":       true,
	".appex":     true,
	".framework": true,
	".xctest":    true,
}

// CollectManifests walks an extracted archive tree and loads the
// Info.plist of every bundle it contains, nested bundles included. The
// walk order is lexical, so repeated runs see the same sequence.
func CollectManifests(root string) ([]*BundleManifest, error) {
	var manifests []*BundleManifest

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || !bundleExtensions[filepath.Ext(d.Name())] {
			return nil
		}

		manifest, err := readManifest(root, path)
		if err != nil {
			return err
		}
		if manifest != nil {
			manifests = append(manifests, manifest)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return manifests, nil
}

// readManifest loads the Info.plist of one bundle directory. Bundles
// without an Info.plist yield nil; an unparseable plist is an error.
func readManifest(root, bundleDir string) (*BundleManifest, error) {
	plistPath := filepath.Join(bundleDir, "Info.plist")
	if _, err := os.Stat(plistPath); err != nil {
		// macOS-style layout used by some frameworks.
		plistPath = filepath.Join(bundleDir, "Contents", "Info.plist")
		if _, err := os.Stat(plistPath); err != nil {
			return nil, nil
		}
	}

	data, err := os.ReadFile(plistPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", plistPath, err)
	}

	var info map[string]interface{}
	format, err := plist.Unmarshal(data, &info)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestParse, plistPath, err)
	}

	relPlist, err := filepath.Rel(root, plistPath)
	if err != nil {
		return nil, err
	}
	relBundle, err := filepath.Rel(root, bundleDir)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(bundleDir)
	manifest := &BundleManifest{
		Path:       filepath.ToSlash(relPlist),
		BundlePath: filepath.ToSlash(relBundle),
		Name:       strings.TrimSuffix(base, filepath.Ext(base)),
		format:     format,
		info:       info,
	}
	if id, ok := info["CFBundleIdentifier"].(string); ok {
		manifest.BundleIdentifier = id
	}
	if ext, ok := info["NSExtension"].(map[string]interface{}); ok {
		if point, ok := ext["NSExtensionPointIdentifier"].(string); ok {
			manifest.ExtensionPoint = point
		}
	}
	return manifest, nil
}

// PatchArchive rewrites the CFBundleIdentifier of every bundle under an
// extracted archive root to the canonical value for its category, derived
// from baseID. Classification relies on the bundle extension, the path
// context and the extension point declared in the plist, since product
// types are not available once the app is built. Plists lacking a
// CFBundleIdentifier are left alone and reported in Skipped. After all
// rewrites the whole set is checked for remaining collisions; if any are
// found the result is returned together with a CollisionError.
func PatchArchive(root, baseID string) (*PatchResult, error) {
	if err := ValidateBaseIdentifier(baseID); err != nil {
		return nil, err
	}

	manifests, err := CollectManifests(root)
	if err != nil {
		return nil, err
	}
	if len(manifests) == 0 {
		return nil, fmt.Errorf("%w: no bundles under %s", ErrNoTargetsFound, root)
	}

	result := &PatchResult{}
	assigner := newIdentifierAssigner(baseID)

	for _, m := range manifests {
		if m.BundleIdentifier == "" {
			result.Skipped = append(result.Skipped, m.Path)
			continue
		}

		m.Kind = Classify(Signals{
			Name:           m.Name,
			Path:           m.BundlePath,
			ExtensionPoint: m.ExtensionPoint,
		})

		id, err := assigner.assign(m.Kind, m.BundlePath, m.Name)
		if err != nil {
			return nil, err
		}

		changed := id != m.BundleIdentifier
		if changed {
			if err := writeManifestIdentifier(root, m, id); err != nil {
				return nil, err
			}
			m.BundleIdentifier = id
			result.Modified++
		}
		result.Assignments = append(result.Assignments, Assignment{
			Name:       m.Name,
			Path:       m.BundlePath,
			Category:   m.Kind,
			Identifier: id,
			Changed:    changed,
		})
	}

	result.Collisions = FindCollisions(result.Assignments)
	if len(result.Collisions) > 0 {
		return result, &CollisionError{Collisions: result.Collisions}
	}
	return result, nil
}

// InspectArchive reports the current identifier of every bundle under an
// extracted archive root and any collisions between them, without
// modifying anything.
func InspectArchive(root string) (*PatchResult, error) {
	manifests, err := CollectManifests(root)
	if err != nil {
		return nil, err
	}

	result := &PatchResult{}
	for _, m := range manifests {
		if m.BundleIdentifier == "" {
			result.Skipped = append(result.Skipped, m.Path)
			continue
		}
		m.Kind = Classify(Signals{
			Name:           m.Name,
			Path:           m.BundlePath,
			ExtensionPoint: m.ExtensionPoint,
		})
		result.Assignments = append(result.Assignments, Assignment{
			Name:       m.Name,
			Path:       m.BundlePath,
			Category:   m.Kind,
			Identifier: m.BundleIdentifier,
		})
	}
	result.Collisions = FindCollisions(result.Assignments)
	return result, nil
}

// writeManifestIdentifier writes the new identifier back into the plist,
// keeping the original serialization: binary plists stay binary, XML stays
// XML.
func writeManifestIdentifier(root string, m *BundleManifest, id string) error {
	m.info["CFBundleIdentifier"] = id

	var data []byte
	var err error
	if m.format == plist.BinaryFormat {
		data, err = plist.Marshal(m.info, plist.BinaryFormat)
	} else {
		data, err = plist.MarshalIndent(m.info, plist.XMLFormat, "\t")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", m.Path, err)
	}

	if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(m.Path)), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", m.Path, err)
	}
	return nil
}
