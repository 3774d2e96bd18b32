package frame

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the storage representation a column resolved to when it was built
// or last coerced. Checks that care about a column's type look at its Kind,
// never at the literal values it holds.
type Kind int

const (
	KindNull Kind = iota // every value is nil
	KindText
	KindInteger
	KindDecimal
	KindTimestamp
	KindBool
	KindMixed // values of more than one incompatible kind
)

var kindNames = map[Kind]string{
	KindNull:      "null",
	KindText:      "text",
	KindInteger:   "integer",
	KindDecimal:   "decimal",
	KindTimestamp: "timestamp",
	KindBool:      "bool",
	KindMixed:     "mixed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindNull, fmt.Errorf("unknown kind %q", s)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
