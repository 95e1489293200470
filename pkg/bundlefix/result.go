package bundlefix

// Assignment records the identifier decided for one target or bundle.
type Assignment struct {
	Name       string   // target name or bundle file stem
	Path       string   // bundle path relative to the archive root, empty for project targets
	Category   Category // classification the identifier was derived from
	Identifier string   // identifier after patching
	Changed    bool     // whether the artifact actually needed rewriting
}

// PatchResult is the structured outcome of one patch run.
type PatchResult struct {
	// Assignments lists every target or manifest that was considered,
	// with the identifier it ended up holding.
	Assignments []Assignment

	// Modified counts targets/manifests whose identifier was rewritten.
	Modified int

	// Skipped lists targets or plists that could not be patched and were
	// left alone: project targets with no identifier build setting, and
	// plists with no CFBundleIdentifier key. Callers should surface these
	// as warnings.
	Skipped []string

	// Collisions lists identifiers still duplicated after the patch pass.
	// Non-empty only when the run also returned a CollisionError.
	Collisions []Collision
}
