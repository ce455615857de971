package masking

import (
	"fmt"
	"regexp"
	"strings"

	"dorisgate.io/internal/auth"
)

// Algorithm names the redaction scheme a rule applies.
type Algorithm string

const (
	AlgorithmPhone   Algorithm = "phone"
	AlgorithmEmail   Algorithm = "email"
	AlgorithmIDCard  Algorithm = "id_card"
	AlgorithmName    Algorithm = "name"
	AlgorithmPartial Algorithm = "partial"
)

// Params is the parameter bag shared by all algorithms; each algorithm reads
// the fields it needs.
type Params struct {
	MaskChar   string  `json:"mask_char"`
	KeepPrefix int     `json:"keep_prefix"`
	KeepSuffix int     `json:"keep_suffix"`
	MaskRatio  float64 `json:"mask_ratio"`
}

func (p Params) maskChar() string {
	if p.MaskChar == "" {
		return "*"
	}
	return p.MaskChar
}

// Rule binds a column-name pattern to a masking algorithm. SecurityLevel is
// the clearance ceiling under which the rule still applies: callers at or
// below it see masked values, callers above it see raw data.
type Rule struct {
	ColumnPattern *regexp.Regexp
	Algorithm     Algorithm
	Parameters    Params
	SecurityLevel auth.SecurityLevel
}

// NewRule compiles the column pattern case-insensitively.
func NewRule(columnPattern string, algorithm Algorithm, params Params, level auth.SecurityLevel) (Rule, error) {
	re, err := regexp.Compile("(?i)" + columnPattern)
	if err != nil {
		return Rule{}, fmt.Errorf("masking: bad column pattern %q: %w", columnPattern, err)
	}
	switch algorithm {
	case AlgorithmPhone, AlgorithmEmail, AlgorithmIDCard, AlgorithmName, AlgorithmPartial:
	default:
		return Rule{}, fmt.Errorf("masking: unknown algorithm %q", algorithm)
	}
	return Rule{ColumnPattern: re, Algorithm: algorithm, Parameters: params, SecurityLevel: level}, nil
}

// MustRule is NewRule for static rule tables.
func MustRule(columnPattern string, algorithm Algorithm, params Params, level auth.SecurityLevel) Rule {
	r, err := NewRule(columnPattern, algorithm, params, level)
	if err != nil {
		panic(err)
	}
	return r
}

// Matches reports whether the rule covers the given column name.
func (r Rule) Matches(column string) bool {
	return r.ColumnPattern.MatchString(strings.TrimSpace(column))
}

// Apply dispatches the value through the rule's algorithm.
func (r Rule) Apply(value string) string {
	switch r.Algorithm {
	case AlgorithmPhone:
		return maskAffix(value, r.Parameters)
	case AlgorithmEmail:
		return maskEmail(value, r.Parameters)
	case AlgorithmIDCard:
		return maskAffix(value, r.Parameters)
	case AlgorithmName:
		return maskName(value, r.Parameters)
	case AlgorithmPartial:
		return maskPartial(value, r.Parameters)
	default:
		return value
	}
}

// DefaultRules mirror the rule set the gateway ships with.
func DefaultRules() []Rule {
	return []Rule{
		MustRule(`.*phone.*`, AlgorithmPhone, Params{MaskChar: "*", KeepPrefix: 3, KeepSuffix: 4}, auth.LevelInternal),
		MustRule(`.*email.*`, AlgorithmEmail, Params{MaskChar: "*"}, auth.LevelInternal),
		MustRule(`.*(id_card|idcard).*`, AlgorithmIDCard, Params{MaskChar: "*", KeepPrefix: 6, KeepSuffix: 4}, auth.LevelConfidential),
		MustRule(`.*name.*`, AlgorithmName, Params{MaskChar: "*"}, auth.LevelConfidential),
	}
}
