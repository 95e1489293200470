package bundlefix

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the patchers and the identifier policy.
// All failures are reported through these so callers can branch on the
// kind with errors.Is rather than matching message text.
var (
	// ErrInvalidIdentifierFormat indicates the base bundle identifier is
	// not in reverse-DNS form (e.g. "com.example.app").
	ErrInvalidIdentifierFormat = errors.New("invalid bundle identifier format")

	// ErrIdentifierTooLong indicates a computed identifier exceeds Apple's
	// 255 character limit. The policy never truncates; callers shorten the
	// disambiguator and retry.
	ErrIdentifierTooLong = errors.New("bundle identifier exceeds 255 characters")

	// ErrManifestParse indicates the project file or a plist could not be
	// parsed. Nothing has been written when this is returned.
	ErrManifestParse = errors.New("manifest parse error")

	// ErrNoTargetsFound indicates the artifact contained no patchable
	// targets or bundle manifests, which usually means the wrong path was
	// supplied.
	ErrNoTargetsFound = errors.New("no targets found")

	// ErrRepack indicates repackaging the extracted tree into an IPA
	// failed or produced a corrupt archive.
	ErrRepack = errors.New("failed to repackage IPA")
)

// Collision is a bundle identifier shared by two or more bundles, with the
// paths (or target names) that still carry it.
type Collision struct {
	Identifier string
	Paths      []string
}

// CollisionError reports identifiers that remained duplicated after a full
// patch pass. It carries enough detail for a caller to decide on a manual
// fix: each duplicate identifier plus every offending path.
type CollisionError struct {
	Collisions []Collision
}

func (e *CollisionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d bundle identifier collision(s) remain after patching:", len(e.Collisions))
	for _, c := range e.Collisions {
		fmt.Fprintf(&b, " %s [%s]", c.Identifier, strings.Join(c.Paths, ", "))
	}
	return b.String()
}
