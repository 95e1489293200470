package bundlefix

import (
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
)

// maxIdentifierLength is Apple's limit for a bundle identifier.
const maxIdentifierLength = 255

// reverseDNSPattern matches a well-formed base identifier: two or more
// dot-separated segments, each starting with a letter.
var reverseDNSPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*(\.[A-Za-z][A-Za-z0-9]*)+$`)

// ValidateBaseIdentifier checks that baseID is in reverse-DNS form.
func ValidateBaseIdentifier(baseID string) error {
	if !reverseDNSPattern.MatchString(baseID) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifierFormat, baseID)
	}
	return nil
}

// IdentifierFor returns the canonical unique bundle identifier for a
// target of the given category. The mapping is a fixed rule table with no
// randomness, so repeated runs always produce the same identifier.
//
// disambiguator is only consulted for CategoryFramework, where multiple
// frameworks need mutually distinct suffixes; callers pass the framework's
// file stem. If the result would exceed Apple's 255 character limit the
// function returns ErrIdentifierTooLong rather than truncating: the caller
// is expected to shorten the disambiguator (e.g. hash it) and retry.
func IdentifierFor(baseID string, category Category, disambiguator string) (string, error) {
	if err := ValidateBaseIdentifier(baseID); err != nil {
		return "", err
	}

	var id string
	switch category {
	case CategoryMain:
		id = baseID
	case CategoryTests:
		id = baseID + ".tests"
	case CategoryWidget:
		id = baseID + ".widget"
	case CategoryNotificationService:
		id = baseID + ".notificationservice"
	case CategoryExtension:
		id = baseID + ".extension"
	case CategoryShareExtension:
		id = baseID + ".shareextension"
	case CategoryIntents:
		id = baseID + ".intents"
	case CategoryWatchApp:
		id = baseID + ".watchkitapp"
	case CategoryWatchExtension:
		id = baseID + ".watchkitextension"
	case CategoryFramework:
		stem := sanitizeSegment(disambiguator)
		if stem == "" {
			stem = "framework"
		}
		id = baseID + ".framework." + stem
	default:
		id = baseID + ".component"
	}

	if len(id) > maxIdentifierLength {
		return "", fmt.Errorf("%w: %d characters", ErrIdentifierTooLong, len(id))
	}
	return id, nil
}

// sanitizeSegment strips everything that is not a letter or digit, so a
// framework name like "my-utils_v2" becomes a legal identifier segment.
func sanitizeSegment(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			out = append(out, c)
		}
	}
	return string(out)
}

// shortHash returns a compact deterministic hash of s, used to
// disambiguate same-named frameworks at different paths and to shorten
// over-long disambiguators.
func shortHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// identifierAssigner applies the policy across one artifact, tracking
// already-claimed identifiers so same-named frameworks at different paths
// get distinct suffixes (stem first, stem plus path hash on collision).
type identifierAssigner struct {
	baseID string
	taken  map[string]string // identifier -> key of first claimant
}

func newIdentifierAssigner(baseID string) *identifierAssigner {
	return &identifierAssigner{baseID: baseID, taken: make(map[string]string)}
}

// assign computes the identifier for one target or bundle. key uniquely
// names the claimant (target name, or bundle path) and feeds the path-hash
// fallback. Non-framework categories get no fallback: a duplicate there is
// left for the collision validator to report.
func (a *identifierAssigner) assign(category Category, key, disambiguator string) (string, error) {
	id, err := a.compute(category, disambiguator)
	if err != nil {
		return "", err
	}

	if owner, clash := a.taken[id]; clash && owner != key && category == CategoryFramework {
		id, err = a.compute(category, disambiguator+shortHash(key))
		if err != nil {
			return "", err
		}
	}

	if _, clash := a.taken[id]; !clash {
		a.taken[id] = key
	}
	return id, nil
}

// compute invokes the policy, shortening the disambiguator to its hash if
// the first attempt exceeds the identifier length limit.
func (a *identifierAssigner) compute(category Category, disambiguator string) (string, error) {
	id, err := IdentifierFor(a.baseID, category, disambiguator)
	if errors.Is(err, ErrIdentifierTooLong) && category == CategoryFramework {
		return IdentifierFor(a.baseID, category, shortHash(disambiguator))
	}
	return id, err
}
