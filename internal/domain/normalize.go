package domain

import "time"

// isoDateLayouts covers the shapes date_debut and date_emission have
// taken across dataset vintages: RFC 3339 with Z or a numeric offset,
// naive date-times with a T or space separator, and bare dates.
var isoDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseISODate parses an ISO-8601 date or date-time string. The boolean
// reports whether the value parsed; callers treat not-ok as a missing
// date. No trimming: a value that needs trimming would also corrupt the
// truncated form kept in the output, so it is rejected outright.
func parseISODate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseRawDate is parseISODate over an optional raw field.
func parseRawDate(s *string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	return parseISODate(*s)
}

// truncateDate keeps the YYYY-MM-DD prefix of a raw timestamp string.
// The output is textual truncation of the source value, never a
// re-serialization of the parsed time.
func truncateDate(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// daysBetween counts whole calendar days from a to b using the literal
// date components. Timestamps in this dataset are civil dates dressed up
// as date-times; honoring their offsets would shift some permits across
// a midnight boundary.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}

// ProcessPermit flattens one raw datastore row into a NormalizedPermit.
// It never fails: absent or malformed fields come through as null, per
// the dataset conventions in the package documentation. Exactly one
// output permit is produced for every input row.
func ProcessPermit(raw RawRecord) NormalizedPermit {
	appRaw := raw.Str("date_debut")
	issueRaw := raw.Str("date_emission")

	appTime, appOK := parseRawDate(appRaw)
	issueTime, issueOK := parseRawDate(issueRaw)

	var processingDays *int
	if appOK && issueOK {
		if d := daysBetween(appTime, issueTime); d >= 0 {
			processingDays = &d
		}
	}

	var boroughRaw string
	if b := raw.Str("arrondissement"); b != nil {
		boroughRaw = *b
	}

	p := NormalizedPermit{
		ExternalID:        raw.Str("no_demande"),
		PermitID:          raw.Str("id_permis"),
		ProcessingDays:    processingDays,
		Address:           raw.Str("emplacement"),
		BoroughRaw:        boroughRaw,
		BoroughNormalized: NormalizeBorough(boroughRaw),
		TypeCode:          raw.Str("code_type_base_demande"),
		TypeDescription:   raw.Str("description_type_demande"),
		BuildingType:      raw.Str("description_type_batiment"),
		BuildingCategory:  raw.Str("description_categorie_batiment"),
		WorkNature:        raw.Str("nature_travaux"),
		HousingUnits:      raw.Float("nb_logements"),
		Latitude:          raw.Coord("latitude"),
		Longitude:         raw.Coord("longitude"),
	}
	if appOK {
		d := truncateDate(*appRaw)
		p.ApplicationDate = &d
	}
	if issueOK {
		d := truncateDate(*issueRaw)
		p.IssueDate = &d
	}
	return p
}
