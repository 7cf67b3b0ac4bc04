package quality

import "strings"

// MappingRule is one literal substring replacement in the defect-description
// dictionary. Rules apply in declaration order, each globally across the
// string, so more specific phrases must be declared before their prefixes.
type MappingRule struct {
	From string
	To   string
}

// DefaultCodeMapping normalizes the spelling/language variants seen in the
// plant's defect descriptions. Used when no dictionary file is configured.
var DefaultCodeMapping = []MappingRule{
	{From: "manque port cable wire", To: "manque câble"},
	{From: "manque cable wire", To: "manque câble"},
	{From: "manque cable", To: "manque câble"},
	{From: "point saute", To: "point sauté"},
	{From: "point cassee", To: "point cassé"},
}

// NormalizeDescription lower-cases and trims a defect description, then
// applies the dictionary rules sequentially.
func NormalizeDescription(raw string, rules []MappingRule) string {
	out := strings.ToLower(strings.TrimSpace(raw))
	for _, rule := range rules {
		out = strings.ReplaceAll(out, rule.From, rule.To)
	}
	return out
}

// NormalizeDisposition upper-cases and trims only. Mapping to the closed
// reporting set happens at read time via CanonicalDisposition.
func NormalizeDisposition(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Closed disposition set used by reporting.
const (
	DispositionScrap    = "SCRAP"
	DispositionRepaired = "REPAIRED"
	DispositionOK       = "OK"
)

var dispositionAliases = map[string]string{
	"SCRAP":     DispositionScrap,
	"SCRAPPED":  DispositionScrap,
	"REBUT":     DispositionScrap,
	"REPAIRED":  DispositionRepaired,
	"REPAIR":    DispositionRepaired,
	"REPARE":    DispositionRepaired,
	"REWORKED":  DispositionRepaired,
	"OK":        DispositionOK,
	"GOOD":      DispositionOK,
	"PASS":      DispositionOK,
	"NO DEFECT": DispositionOK,
}

// CanonicalDisposition maps a stored disposition onto the closed reporting
// set. Unmapped values pass through uppercased rather than being rejected.
func CanonicalDisposition(raw string) string {
	normalized := NormalizeDisposition(raw)
	if canonical, ok := dispositionAliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// MinPartNumberLength is the structural validity floor for part identifiers;
// shorter values are test scans or operator typos and are dropped.
const MinPartNumberLength = 15

// ValidPartNumber reports whether a part identifier passes the structural
// length filter.
func ValidPartNumber(partNumber string) bool {
	return len(strings.TrimSpace(partNumber)) >= MinPartNumberLength
}
