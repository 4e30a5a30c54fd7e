package keymask

import "strings"

// Sentinel is the fixed value substituted for every masked key identity.
// It carries no character or hand-position information, so persisted
// records cannot be used to reconstruct typed content.
const Sentinel = "masked"

// Group names used by the default classification tables.
const (
	GroupLeftAlphanum  = "left_alphanum"
	GroupRightAlphanum = "right_alphanum"
)

// Policy decides whether a key identity is persisted verbatim or replaced
// with Sentinel. It is immutable after construction; the zero value masks
// nothing and passes every identity through.
type Policy struct {
	masked map[string]string
}

// NewPolicy builds a policy from classification groups. Every identity
// listed in any group is masked; group membership is consumed only to make
// that decision and is never emitted into records. Additional groups can be
// configured without any tracker changes.
func NewPolicy(groups map[string][]string) Policy {
	masked := make(map[string]string)
	for name, keys := range groups {
		trimmedName := strings.TrimSpace(name)
		if trimmedName == "" {
			continue
		}
		for _, key := range keys {
			normalized := Normalize(key)
			if normalized == "" {
				continue
			}
			masked[normalized] = trimmedName
		}
	}
	return Policy{masked: masked}
}

// Mask returns Sentinel for identities in any masked group and the
// identity unchanged otherwise. Deterministic and stateless.
func (p Policy) Mask(key string) string {
	if p.IsMasked(key) {
		return Sentinel
	}
	return key
}

// IsMasked reports whether the identity belongs to a masked group.
func (p Policy) IsMasked(key string) bool {
	if len(p.masked) == 0 {
		return false
	}
	_, ok := p.masked[Normalize(key)]
	return ok
}

// GroupOf exposes group membership for debug logging. The group name must
// never be written into persisted records.
func (p Policy) GroupOf(key string) (string, bool) {
	group, ok := p.masked[Normalize(key)]
	return group, ok
}

// Size reports how many distinct identities the policy masks.
func (p Policy) Size() int {
	return len(p.masked)
}

// Normalize case-folds a key identity so that shifted variants of the same
// physical key share one table entry.
func Normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// DefaultGroups reproduces the stock classification tables: the QWERTY
// alphanumeric block split by typing hand. Navigation, modifier, and
// function keys are deliberately absent so their identities survive.
func DefaultGroups() map[string][]string {
	return map[string][]string{
		GroupLeftAlphanum: {
			"`", "1", "2", "3", "4", "5", "6", "~", "!", "@", "#", "$", "%", "^",
			"q", "w", "e", "r", "t",
			"a", "s", "d", "f", "g",
			"z", "x", "c", "v", "b",
		},
		GroupRightAlphanum: {
			"7", "8", "9", "0", "&", "*", "(", ")", "-", "=", "_", "+",
			"y", "u", "i", "o", "p", "[", "]", "{", "}", "|", "\\",
			"h", "j", "k", "l", ";", ":", "'", "\"",
			"n", "m", ",", ".", "/", "<", ">", "?",
		},
	}
}
