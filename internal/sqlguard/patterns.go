package sqlguard

import "regexp"

// RiskLevel grades how dangerous a rejected statement looks.
type RiskLevel string

const (
	RiskNone   RiskLevel = "none"
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// injectionPattern is one recognizable injection shape. Patterns are checked
// in order; the first match supplies the result's message and risk level.
type injectionPattern struct {
	name    string
	regex   *regexp.Regexp
	risk    RiskLevel
	message string
}

// Stacked statements are matched as a semicolon followed by further
// non-whitespace SQL; a trailing semicolon alone is harmless.
var injectionPatterns = []*injectionPattern{
	{
		name:    "stacked_statements",
		regex:   regexp.MustCompile(`;\s*\S`),
		risk:    RiskHigh,
		message: "potential SQL injection detected: stacked statements",
	},
	{
		name:    "union_select",
		regex:   regexp.MustCompile(`(?i)\bUNION\s+(ALL\s+)?SELECT\b`),
		risk:    RiskHigh,
		message: "potential SQL injection detected: UNION-based query",
	},
	{
		name:    "numeric_tautology",
		regex:   regexp.MustCompile(`(?i)\bOR\s+['"]?\d+['"]?\s*=\s*['"]?\d+['"]?`),
		risk:    RiskMedium,
		message: "potential SQL injection detected: always-true condition",
	},
	{
		name:    "string_tautology",
		regex:   regexp.MustCompile(`(?i)\bOR\s+['"][^'"]*['"]\s*=\s*['"][^'"]*['"]`),
		risk:    RiskMedium,
		message: "potential SQL injection detected: always-true condition",
	},
	{
		name:    "trailing_comment",
		regex:   regexp.MustCompile(`(--|#)[^\r\n]*$|/\*.*\*/`),
		risk:    RiskMedium,
		message: "suspicious SQL comment detected",
	},
}

var (
	// Statement-leading command keyword, applied to each statement of a
	// multi-statement input.
	leadingKeywordRe = regexp.MustCompile(`(?i)^\s*([A-Za-z_]+)`)

	// Table identifiers referenced in FROM/JOIN clauses. Lexical only; a full
	// grammar is out of scope.
	tableRefRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+` + "`?" + `([A-Za-z_][A-Za-z0-9_$]*(?:\.[A-Za-z_][A-Za-z0-9_$]*)?)` + "`?")
)
