package domain

import (
	"strconv"
	"strings"
	"time"
)

// RawRecord is one row of the CKAN datastore as decoded from the API's
// JSON: column names to scalar values. Column types are not stable across
// dataset vintages (text columns occasionally carry numbers and vice
// versa), so access goes through the typed accessors below, which treat
// anything of the wrong shape as absent rather than failing the row.
type RawRecord map[string]any

// Str returns the value for key when it is a string, or nil when the key
// is absent, null, or holds a non-string value.
func (r RawRecord) Str(key string) *string {
	if v, ok := r[key].(string); ok {
		return &v
	}
	return nil
}

// Float returns the value for key when it is a JSON number or a numeric
// string, or nil otherwise.
func (r RawRecord) Float(key string) *float64 {
	switch v := r[key].(type) {
	case float64:
		return &v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}

// Coord returns the value for key interpreted as a coordinate. The
// dataset uses numeric 0 and the empty string as placeholders for permits
// that were never geolocated, so both are treated as absent. String-typed
// numbers parse; the string "0" is kept as a real coordinate while
// numeric 0 is not, matching the historical behavior downstream consumers
// were built against. Unparseable strings are treated as absent.
func (r RawRecord) Coord(key string) *float64 {
	switch v := r[key].(type) {
	case float64:
		if v != 0 {
			return &v
		}
	case string:
		if v == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}

// NormalizedPermit is the flattened, typed form of one permit
// application. Pointer fields serialize as JSON null when absent;
// downstream consumers rely on every key being present in the output.
type NormalizedPermit struct {
	ExternalID *string `json:"external_id"`
	PermitID   *string `json:"permit_id"`

	// ApplicationDate and IssueDate keep the YYYY-MM-DD prefix of the raw
	// source string, and are null when the source value did not parse as a
	// date. IssueDate is null for pending permits.
	ApplicationDate *string `json:"application_date"`
	IssueDate       *string `json:"issue_date"`

	// ProcessingDays is issue minus application in whole calendar days.
	// Null unless both dates parsed and the difference is non-negative.
	ProcessingDays *int `json:"processing_days"`

	Address *string `json:"address"`

	// BoroughRaw is the spelling exactly as it appears in the source row;
	// BoroughNormalized is the canonical form per DefaultBoroughAliases.
	BoroughRaw        string `json:"borough_raw"`
	BoroughNormalized string `json:"borough_normalized"`

	TypeCode         *string  `json:"type_code"`
	TypeDescription  *string  `json:"type_description"`
	BuildingType     *string  `json:"building_type"`
	BuildingCategory *string  `json:"building_category"`
	WorkNature       *string  `json:"work_nature"`
	HousingUnits     *float64 `json:"housing_units"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
}

// BoroughStats aggregates processing-time statistics for one borough and
// one calendar year. Day statistics are rounded to one decimal,
// percentages to two.
type BoroughStats struct {
	Borough              string  `json:"borough"`
	Year                 int     `json:"year"`
	TotalPermits         int     `json:"total_permits"`
	PermitsIssued        int     `json:"permits_issued"`
	PermitsPending       int     `json:"permits_pending"`
	MedianProcessingDays float64 `json:"median_processing_days"`
	AvgProcessingDays    float64 `json:"avg_processing_days"`
	P90ProcessingDays    float64 `json:"p90_processing_days"`
	PctWithin90Days      float64 `json:"pct_within_90_days"`
	PctWithin120Days     float64 `json:"pct_within_120_days"`
}

// YearSummary records what one ingested year produced.
type YearSummary struct {
	Year       int  `json:"year"`
	RawRecords int  `json:"raw_records"`
	FromCache  bool `json:"from_cache"`
	Processed  int  `json:"processed"`
	Dropped    int  `json:"dropped"`
	Boroughs   int  `json:"boroughs"`
}

// IngestManifest describes one ingestion run. It is persisted alongside
// the snapshots so downstream consumers can detect refreshes.
type IngestManifest struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Years      []YearSummary `json:"years"`
}
