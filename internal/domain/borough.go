package domain

import "strings"

// BoroughAliases maps observed borough spellings to the canonical names
// used by the open data portal today.
type BoroughAliases map[string]string

// DefaultBoroughAliases covers the spelling drift observed in the permits
// dataset since 1990. Treat it as a versioned constant: entries are only
// ever added as new drift shows up in the source. The em-dash keys are
// redundant with the dash cleaning in Normalize but record the spellings
// as they appeared upstream.
var DefaultBoroughAliases = BoroughAliases{
	"Côte-des-Neiges—Notre-Dame-de-Grâce":      "Côte-des-Neiges-Notre-Dame-de-Grâce",
	"Mercier—Hochelaga-Maisonneuve":            "Mercier-Hochelaga-Maisonneuve",
	"L'Île-Bizard—Sainte-Geneviève":            "L'Île-Bizard-Sainte-Geneviève",
	"Rivière-des-Prairies—Pointe-aux-Trembles": "Rivière-des-Prairies-Pointe-aux-Trembles",
	"Villeray—Saint-Michel—Parc-Extension":     "Villeray-Saint-Michel-Parc-Extension",
	"Plateau-Mont-Royal":                       "Le Plateau-Mont-Royal",
	"Plateau Mont-Royal":                       "Le Plateau-Mont-Royal",
	"Sud-Ouest":                                "Le Sud-Ouest",
	"Montreal-Nord":                            "Montréal-Nord",
	"Saint-Leonard":                            "Saint-Léonard",
}

// dashReplacer collapses the em- and en-dashes that older vintages use in
// compound borough names to the ASCII hyphens the portal uses today.
var dashReplacer = strings.NewReplacer("—", "-", "–", "-")

// Normalize returns the canonical spelling for a borough name: whitespace
// trimmed, em- and en-dashes collapsed to hyphens, then mapped through
// the alias table. Unknown names pass through cleaned, so new boroughs
// never disappear from the statistics. Idempotent: canonical names map to
// themselves.
func (a BoroughAliases) Normalize(name string) string {
	if name == "" {
		return ""
	}
	cleaned := dashReplacer.Replace(strings.TrimSpace(name))
	if canonical, ok := a[cleaned]; ok {
		return canonical
	}
	return cleaned
}

// NormalizeBorough normalizes a borough name against DefaultBoroughAliases.
func NormalizeBorough(name string) string {
	return DefaultBoroughAliases.Normalize(name)
}
