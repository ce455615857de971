package masking

import (
	"math"
	"strings"
)

// maskAffix keeps a fixed prefix and suffix and masks everything between.
// Values too short to have a middle are returned unchanged.
func maskAffix(value string, p Params) string {
	runes := []rune(value)
	keep := p.KeepPrefix + p.KeepSuffix
	if len(runes) <= keep {
		return value
	}
	var b strings.Builder
	b.WriteString(string(runes[:p.KeepPrefix]))
	b.WriteString(strings.Repeat(p.maskChar(), len(runes)-keep))
	b.WriteString(string(runes[len(runes)-p.KeepSuffix:]))
	return b.String()
}

// maskEmail masks the local part, keeping its first and last character.
// Values without an "@" or with a local part of two characters or fewer are
// returned unchanged.
func maskEmail(value string, p Params) string {
	at := strings.Index(value, "@")
	if at < 0 {
		return value
	}
	local := []rune(value[:at])
	if len(local) <= 2 {
		return value
	}
	var b strings.Builder
	b.WriteRune(local[0])
	b.WriteString(strings.Repeat(p.maskChar(), len(local)-2))
	b.WriteRune(local[len(local)-1])
	b.WriteString(value[at:])
	return b.String()
}

// maskName keeps the first character, and for names of three characters or
// more also the last. Single-character names pass through.
func maskName(value string, p Params) string {
	runes := []rune(value)
	switch {
	case len(runes) <= 1:
		return value
	case len(runes) == 2:
		return string(runes[0]) + p.maskChar()
	default:
		return string(runes[0]) + strings.Repeat(p.maskChar(), len(runes)-2) + string(runes[len(runes)-1])
	}
}

// maskPartial masks a centered span sized by MaskRatio.
func maskPartial(value string, p Params) string {
	runes := []rune(value)
	if len(runes) == 0 {
		return value
	}
	ratio := p.MaskRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	span := int(math.Round(float64(len(runes)) * ratio))
	if span <= 0 {
		return value
	}
	if span > len(runes) {
		span = len(runes)
	}
	start := (len(runes) - span) / 2
	var b strings.Builder
	b.WriteString(string(runes[:start]))
	b.WriteString(strings.Repeat(p.maskChar(), span))
	b.WriteString(string(runes[start+span:]))
	return b.String()
}
