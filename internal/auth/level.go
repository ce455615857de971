package auth

import (
	"fmt"
	"strings"
)

// SecurityLevel is the clearance scale gating both authorization and masking.
// Levels form a total order; comparisons use the ordinal value.
type SecurityLevel int

const (
	LevelPublic SecurityLevel = iota
	LevelInternal
	LevelConfidential
	LevelSecret
)

var levelNames = [...]string{"public", "internal", "confidential", "secret"}

func (l SecurityLevel) String() string {
	if l < LevelPublic || l > LevelSecret {
		return fmt.Sprintf("security_level(%d)", int(l))
	}
	return levelNames[l]
}

// Dominates reports whether a caller at level l may see data classified at other.
func (l SecurityLevel) Dominates(other SecurityLevel) bool {
	return l >= other
}

// ParseSecurityLevel maps a case-insensitive level name to its SecurityLevel.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return LevelPublic, nil
	case "internal":
		return LevelInternal, nil
	case "confidential":
		return LevelConfidential, nil
	case "secret":
		return LevelSecret, nil
	}
	return LevelPublic, fmt.Errorf("%w: unknown security level %q", ErrInvalidInput, s)
}

func (l SecurityLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *SecurityLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseSecurityLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
