package bundlefix

import (
	"bytes"
	"fmt"
	"os"
)

// IdentifierSlot is one PRODUCT_BUNDLE_IDENTIFIER assignment inside a
// build configuration (Debug, Release, Profile, ...).
type IdentifierSlot struct {
	Configuration string
	Value         string

	token *pbxString
}

// BuildTarget is one native target read from a project.pbxproj, with the
// identifier slots of all its build configurations. After patching, every
// slot of a target holds the same identifier: a target must not have split
// identities across configurations.
type BuildTarget struct {
	Name        string
	ProductType string
	HasTestHost bool
	Slots       []IdentifierSlot
}

// PatchProject rewrites the bundle identifiers of every target in a
// project.pbxproj to the canonical value for its category, derived from
// baseID. Only the identifier value tokens are touched; the rest of the
// file stays byte-identical, and the file is written back only when at
// least one slot actually changed. Running twice is a no-op.
func PatchProject(projectPath, baseID string) (*PatchResult, error) {
	return patchProjectFile(projectPath, baseID, true)
}

// PreviewProject computes the same result as PatchProject without writing
// anything, for dry runs.
func PreviewProject(projectPath, baseID string) (*PatchResult, error) {
	return patchProjectFile(projectPath, baseID, false)
}

func patchProjectFile(projectPath, baseID string, write bool) (*PatchResult, error) {
	if err := ValidateBaseIdentifier(baseID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	targets, err := loadBuildTargets(data)
	if err != nil {
		return nil, err
	}

	result := &PatchResult{}
	assigner := newIdentifierAssigner(baseID)
	var edits []spanEdit

	for _, target := range targets {
		if len(target.Slots) == 0 {
			result.Skipped = append(result.Skipped, target.Name)
			continue
		}

		category := Classify(Signals{
			Name:        target.Name,
			ProductType: target.ProductType,
			HasTestHost: target.HasTestHost,
		})

		id, err := assigner.assign(category, target.Name, target.Name)
		if err != nil {
			return nil, err
		}

		changed := false
		for i := range target.Slots {
			slot := &target.Slots[i]
			if slot.Value == id {
				continue
			}
			edits = append(edits, spanEdit{
				start: slot.token.start,
				end:   slot.token.end,
				text:  pbxQuote(id, slot.token.quoted),
			})
			slot.Value = id
			changed = true
		}
		if changed {
			result.Modified++
		}
		result.Assignments = append(result.Assignments, Assignment{
			Name:       target.Name,
			Category:   category,
			Identifier: id,
			Changed:    changed,
		})
	}

	result.Collisions = FindCollisions(result.Assignments)

	if write && len(edits) > 0 {
		patched := applyEdits(data, edits)
		if !bytes.Equal(patched, data) {
			if err := os.WriteFile(projectPath, patched, 0644); err != nil {
				return nil, fmt.Errorf("failed to write project file: %w", err)
			}
		}
	}

	if len(result.Collisions) > 0 {
		return result, &CollisionError{Collisions: result.Collisions}
	}
	return result, nil
}

// InspectProject reads the targets of a project.pbxproj without modifying
// it, reporting each target's current identifier and any collisions
// between targets.
func InspectProject(projectPath string) (*PatchResult, error) {
	data, err := os.ReadFile(projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	targets, err := loadBuildTargets(data)
	if err != nil {
		return nil, err
	}

	result := &PatchResult{}
	for _, target := range targets {
		if len(target.Slots) == 0 {
			result.Skipped = append(result.Skipped, target.Name)
			continue
		}
		category := Classify(Signals{
			Name:        target.Name,
			ProductType: target.ProductType,
			HasTestHost: target.HasTestHost,
		})
		result.Assignments = append(result.Assignments, Assignment{
			Name:       target.Name,
			Category:   category,
			Identifier: target.Slots[0].Value,
		})
	}
	result.Collisions = FindCollisions(result.Assignments)
	return result, nil
}

// loadBuildTargets parses the project file and resolves each native
// target's build configurations into identifier slots.
func loadBuildTargets(data []byte) ([]*BuildTarget, error) {
	root, err := parsePbxproj(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestParse, err)
	}

	objects, ok := root.dict("objects")
	if !ok {
		return nil, fmt.Errorf("%w: missing objects dictionary", ErrManifestParse)
	}

	var targets []*BuildTarget
	for _, ref := range objects.keys {
		entry, ok := objects.dict(ref)
		if !ok {
			continue
		}
		isa, ok := entry.str("isa")
		if !ok || isa.value != "PBXNativeTarget" {
			continue
		}

		target := &BuildTarget{}
		if name, ok := entry.str("name"); ok {
			target.Name = name.value
		}
		if productType, ok := entry.str("productType"); ok {
			target.ProductType = productType.value
		}

		listRef, ok := entry.str("buildConfigurationList")
		if !ok {
			targets = append(targets, target)
			continue
		}
		configList, ok := objects.dict(listRef.value)
		if !ok {
			targets = append(targets, target)
			continue
		}
		configRefs, ok := configList.arr("buildConfigurations")
		if !ok {
			targets = append(targets, target)
			continue
		}

		for _, item := range configRefs.items {
			configRef, ok := item.(*pbxString)
			if !ok {
				continue
			}
			config, ok := objects.dict(configRef.value)
			if !ok {
				continue
			}
			configName := ""
			if n, ok := config.str("name"); ok {
				configName = n.value
			}
			settings, ok := config.dict("buildSettings")
			if !ok {
				continue
			}
			if _, present := settings.str("TEST_HOST"); present {
				target.HasTestHost = true
			}
			if _, present := settings.str("BUNDLE_LOADER"); present {
				target.HasTestHost = true
			}
			if token, ok := settings.str("PRODUCT_BUNDLE_IDENTIFIER"); ok {
				target.Slots = append(target.Slots, IdentifierSlot{
					Configuration: configName,
					Value:         token.value,
					token:         token,
				})
			}
		}

		targets = append(targets, target)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: project file declares no native targets", ErrNoTargetsFound)
	}
	return targets, nil
}
