package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Identifier is a technical name made of lowercase ascii letters, digits and
// single interior spaces, e.g. "move forward".
//
// Consumers that mangle names for a target language map the space to their own
// separator (see Join). Identifiers compare and hash structurally.
type Identifier string

// ParseIdentifier validates s and returns it as an Identifier.
func ParseIdentifier(s string) (Identifier, error) {
	if err := validateIdentifier(s); err != nil {
		return "", err
	}
	return Identifier(s), nil
}

// MustIdentifier is like ParseIdentifier but panics on invalid input.
// Intended for package-level constants and tests.
func MustIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsValidIdentifier reports whether s satisfies the identifier rules.
func IsValidIdentifier(s string) bool {
	return validateIdentifier(s) == nil
}

func validateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("invalid identifier: empty")
	}
	if s[0] == ' ' {
		return fmt.Errorf("invalid identifier %q: leading space", s)
	}
	if s[len(s)-1] == ' ' {
		return fmt.Errorf("invalid identifier %q: trailing space", s)
	}

	prevSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevSpace = false
		case c == ' ':
			if prevSpace {
				return fmt.Errorf("invalid identifier %q: doubled space at offset %d", s, i)
			}
			prevSpace = true
		default:
			// Bytes >= 0x80 are part of a multi-byte rune; reject them along
			// with uppercase and punctuation.
			return fmt.Errorf("invalid identifier %q: character %q at offset %d", s, c, i)
		}
	}
	return nil
}

// String returns the identifier text.
func (id Identifier) String() string {
	return string(id)
}

// Words splits the identifier at its spaces.
func (id Identifier) Words() []string {
	if id == "" {
		return nil
	}
	return strings.Split(string(id), " ")
}

// Join returns the identifier with every space replaced by sep.
//
//	MustIdentifier("move forward").Join("_") // "move_forward"
func (id Identifier) Join(sep string) string {
	return strings.ReplaceAll(string(id), " ", sep)
}

// UnmarshalJSON implements json.Unmarshaler and rejects invalid identifiers.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseIdentifier(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
