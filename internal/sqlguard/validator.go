package sqlguard

import (
	"fmt"
	"sort"
	"strings"

	"dorisgate.io/internal/auth"
)

// ValidationResult is the outcome of one validation call. It is produced
// fresh per call and never mutated afterward. A rejection is a normal
// decision value, not an error.
type ValidationResult struct {
	IsValid           bool      `json:"is_valid"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	BlockedOperations []string  `json:"blocked_operations,omitempty"`
	RiskLevel         RiskLevel `json:"risk_level"`
}

// DefaultBlockedKeywords are the statement commands refused by default.
var DefaultBlockedKeywords = []string{
	"DROP", "DELETE", "TRUNCATE", "ALTER", "CREATE", "INSERT", "UPDATE",
}

// Config holds the validator's policy inputs.
type Config struct {
	// BlockedKeywords are statement-leading commands to refuse,
	// case-insensitive. Nil means DefaultBlockedKeywords.
	BlockedKeywords []string
	// SensitiveTables maps table names to the clearance required to
	// reference them in a statement.
	SensitiveTables map[string]auth.SecurityLevel
}

// Validator lexically inspects SQL for blocked operations, injection shapes
// and forbidden table access. It never fails with an error: malformed input
// degrades to a ValidationResult.
type Validator struct {
	blocked   map[string]struct{}
	sensitive map[string]auth.SecurityLevel
}

func NewValidator(cfg Config) *Validator {
	keywords := cfg.BlockedKeywords
	if keywords == nil {
		keywords = DefaultBlockedKeywords
	}
	blocked := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		blocked[strings.ToUpper(strings.TrimSpace(kw))] = struct{}{}
	}
	sensitive := cfg.SensitiveTables
	if sensitive == nil {
		sensitive = map[string]auth.SecurityLevel{}
	}
	return &Validator{blocked: blocked, sensitive: sensitive}
}

// Validate runs every check and aggregates the findings. All checks are
// independent and cumulative: blocked operations accumulate even when an
// injection pattern already rejected the statement, but the first satisfied
// rejection category (injection, blocked keyword, table access) decides the
// primary message and risk level.
func (v *Validator) Validate(sqlText string, caller auth.AuthContext) (result ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = ValidationResult{
				IsValid:      false,
				ErrorMessage: fmt.Sprintf("validation failed: %v", r),
				RiskLevel:    RiskLow,
			}
		}
	}()

	result = ValidationResult{IsValid: true, RiskLevel: RiskNone}
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return result
	}

	blockedOps := v.blockedOperations(sqlText)
	injection := matchInjection(sqlText)
	denied := v.deniedTables(sqlText, caller)

	result.BlockedOperations = blockedOps

	switch {
	case injection != nil:
		result.IsValid = false
		result.ErrorMessage = injection.message
		result.RiskLevel = injection.risk
	case len(blockedOps) > 0:
		result.IsValid = false
		result.ErrorMessage = "SQL contains blocked operations: " + strings.Join(blockedOps, ", ")
		result.RiskLevel = RiskHigh
	case len(denied) > 0:
		result.IsValid = false
		result.ErrorMessage = "access denied to tables: " + strings.Join(denied, ", ")
		result.RiskLevel = RiskMedium
	}
	return result
}

// blockedOperations scans every statement-leading keyword, accounting for
// multi-statement input, and returns the blocklist hits in order of
// appearance without duplicates.
func (v *Validator) blockedOperations(sqlText string) []string {
	var ops []string
	seen := map[string]struct{}{}
	for _, stmt := range strings.Split(sqlText, ";") {
		m := leadingKeywordRe.FindStringSubmatch(stmt)
		if m == nil {
			continue
		}
		kw := strings.ToUpper(m[1])
		if _, blocked := v.blocked[kw]; !blocked {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		ops = append(ops, kw)
	}
	return ops
}

func matchInjection(sqlText string) *injectionPattern {
	for _, p := range injectionPatterns {
		if p.regex.MatchString(sqlText) {
			return p
		}
	}
	return nil
}

// ExtractTableNames returns the table identifiers referenced in FROM and
// JOIN clauses, deduplicated, schema qualifiers stripped.
func ExtractTableNames(sqlText string) []string {
	matches := tableRefRe.FindAllStringSubmatch(sqlText, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var tables []string
	for _, m := range matches {
		name := m[1]
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		name = strings.ToLower(name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		tables = append(tables, name)
	}
	return tables
}

// deniedTables lists referenced tables whose sensitivity exceeds the
// caller's clearance. Admin callers are never denied here.
func (v *Validator) deniedTables(sqlText string, caller auth.AuthContext) []string {
	if caller.IsAdmin() {
		return nil
	}
	var denied []string
	for _, table := range ExtractTableNames(sqlText) {
		level, ok := v.sensitive[table]
		if ok && !caller.SecurityLevel.Dominates(level) {
			denied = append(denied, table)
		}
	}
	sort.Strings(denied)
	return denied
}
