// Command validate performs integrity checks over the JSON snapshots one
// ingestion run leaves behind for a year: the raw datastore records, the
// processed permits, and the borough statistics. It verifies that the
// processed file is exactly what normalization produces from the raw file,
// that the statistics are reproducible from the processed permits, and that
// every record satisfies the dataset's schema constraints.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data -year 2024
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/mstlaur1/montreal-score/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "data", "directory containing snapshot files")
	year := flag.Int("year", 0, "year to validate")
	flag.Parse()

	if *year == 0 {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataDir, *year); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir string, year int) int {
	fmt.Printf("=== Permit Snapshot Validation: %d ===\n\n", year)

	raw, err := loadJSON[domain.RawRecord](filepath.Join(dataDir, "raw", fmt.Sprintf("permits_%d.json", year)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw snapshot: %v\n", err)
		return 1
	}

	processed, err := loadJSON[domain.NormalizedPermit](filepath.Join(dataDir, fmt.Sprintf("permits_%d_processed.json", year)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load processed snapshot: %v\n", err)
		return 1
	}

	stats, err := loadJSON[domain.BoroughStats](filepath.Join(dataDir, fmt.Sprintf("borough_stats_%d.json", year)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load stats snapshot: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateProcessingParity(raw, processed),
		validateStatsReproducibility(processed, stats, year),
		validateSchemaConstraints(processed, stats, year),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d raw, %d processed, %d borough stats\n", len(raw), len(processed), len(stats))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: Processing Parity ──
// Re-runs normalization over the raw snapshot and verifies the processed
// snapshot matches it record for record, including the rule that records
// without an application date are dropped.

func validateProcessingParity(raw []domain.RawRecord, processed []domain.NormalizedPermit) *phase {
	p := &phase{name: "Phase 1: Processing Parity"}

	expected := recomputeProcessed(raw)
	if len(expected) != len(processed) {
		p.errorf("processed count: expected %d from %d raw records, got %d", len(expected), len(raw), len(processed))
		return p
	}

	for i := range expected {
		comparePermits(p, i, expected[i], processed[i])
	}
	return p
}

func recomputeProcessed(raw []domain.RawRecord) []domain.NormalizedPermit {
	kept := make([]domain.NormalizedPermit, 0, len(raw))
	for _, rec := range raw {
		permit := domain.ProcessPermit(rec)
		if permit.ApplicationDate == nil {
			continue
		}
		kept = append(kept, permit)
	}
	return kept
}

func comparePermits(p *phase, i int, want, got domain.NormalizedPermit) {
	pf := func(field, expected, actual string) {
		p.errorf("record %d (%s): %s: expected %s, got %s", i, ptrStr(want.ExternalID), field, expected, actual)
	}

	strFields := []struct {
		name      string
		want, got *string
	}{
		{"external_id", want.ExternalID, got.ExternalID},
		{"permit_id", want.PermitID, got.PermitID},
		{"application_date", want.ApplicationDate, got.ApplicationDate},
		{"issue_date", want.IssueDate, got.IssueDate},
		{"address", want.Address, got.Address},
		{"type_code", want.TypeCode, got.TypeCode},
		{"type_description", want.TypeDescription, got.TypeDescription},
		{"building_type", want.BuildingType, got.BuildingType},
		{"building_category", want.BuildingCategory, got.BuildingCategory},
		{"work_nature", want.WorkNature, got.WorkNature},
	}
	for _, f := range strFields {
		if !ptrStrEq(f.want, f.got) {
			pf(f.name, ptrStr(f.want), ptrStr(f.got))
		}
	}

	if want.BoroughRaw != got.BoroughRaw {
		pf("borough_raw", want.BoroughRaw, got.BoroughRaw)
	}
	if want.BoroughNormalized != got.BoroughNormalized {
		pf("borough_normalized", want.BoroughNormalized, got.BoroughNormalized)
	}
	if !ptrIntEq(want.ProcessingDays, got.ProcessingDays) {
		pf("processing_days", ptrInt(want.ProcessingDays), ptrInt(got.ProcessingDays))
	}
	if !ptrFloatEq(want.HousingUnits, got.HousingUnits) {
		pf("housing_units", ptrFloat(want.HousingUnits), ptrFloat(got.HousingUnits))
	}
	if !ptrFloatEq(want.Latitude, got.Latitude) {
		pf("latitude", ptrFloat(want.Latitude), ptrFloat(got.Latitude))
	}
	if !ptrFloatEq(want.Longitude, got.Longitude) {
		pf("longitude", ptrFloat(want.Longitude), ptrFloat(got.Longitude))
	}
}

// ── Phase 2: Stats Reproducibility ──
// Recomputes borough statistics from the stored processed permits and
// verifies the stored stats snapshot matches.

func validateStatsReproducibility(processed []domain.NormalizedPermit, stats []domain.BoroughStats, year int) *phase {
	p := &phase{name: "Phase 2: Stats Reproducibility"}

	expected := domain.ComputeBoroughStats(processed, year)
	if len(expected) != len(stats) {
		p.errorf("borough count: expected %d, got %d", len(expected), len(stats))
		return p
	}

	for i := range expected {
		want, got := expected[i], stats[i]
		if want.Borough != got.Borough {
			p.errorf("stats %d: borough order: expected %q, got %q", i, want.Borough, got.Borough)
			continue
		}

		id := got.Borough
		if want.TotalPermits != got.TotalPermits {
			p.errorf("%s: total_permits: expected %d, got %d", id, want.TotalPermits, got.TotalPermits)
		}
		if want.PermitsIssued != got.PermitsIssued {
			p.errorf("%s: permits_issued: expected %d, got %d", id, want.PermitsIssued, got.PermitsIssued)
		}
		if want.PermitsPending != got.PermitsPending {
			p.errorf("%s: permits_pending: expected %d, got %d", id, want.PermitsPending, got.PermitsPending)
		}
		if !floatEq(want.MedianProcessingDays, got.MedianProcessingDays) {
			p.errorf("%s: median_processing_days: expected %g, got %g", id, want.MedianProcessingDays, got.MedianProcessingDays)
		}
		if !floatEq(want.AvgProcessingDays, got.AvgProcessingDays) {
			p.errorf("%s: avg_processing_days: expected %g, got %g", id, want.AvgProcessingDays, got.AvgProcessingDays)
		}
		if !floatEq(want.P90ProcessingDays, got.P90ProcessingDays) {
			p.errorf("%s: p90_processing_days: expected %g, got %g", id, want.P90ProcessingDays, got.P90ProcessingDays)
		}
		if !floatEq(want.PctWithin90Days, got.PctWithin90Days) {
			p.errorf("%s: pct_within_90_days: expected %g, got %g", id, want.PctWithin90Days, got.PctWithin90Days)
		}
		if !floatEq(want.PctWithin120Days, got.PctWithin120Days) {
			p.errorf("%s: pct_within_120_days: expected %g, got %g", id, want.PctWithin120Days, got.PctWithin120Days)
		}
	}
	return p
}

// ── Phase 3: Schema Constraints ──
// Validates invariants every stored record must satisfy regardless of what
// the source sent.

func validateSchemaConstraints(processed []domain.NormalizedPermit, stats []domain.BoroughStats, year int) *phase {
	p := &phase{name: "Phase 3: Schema Constraints"}

	for i := range processed {
		checkPermitConstraints(p, i, &processed[i])
	}
	for i := range stats {
		checkStatsConstraints(p, i, &stats[i], year)
	}
	return p
}

func checkPermitConstraints(p *phase, i int, permit *domain.NormalizedPermit) {
	pf := func(format string, args ...any) {
		p.errorf("permit %d (%s): "+format, append([]any{i, ptrStr(permit.ExternalID)}, args...)...)
	}

	if permit.ApplicationDate == nil {
		pf("application_date is null (filter rule violated)")
	} else if len(*permit.ApplicationDate) != 10 {
		pf("application_date %q is not a 10-character date", *permit.ApplicationDate)
	}
	if permit.IssueDate != nil && len(*permit.IssueDate) != 10 {
		pf("issue_date %q is not a 10-character date", *permit.IssueDate)
	}
	if permit.ProcessingDays != nil {
		if *permit.ProcessingDays < 0 {
			pf("processing_days is negative: %d", *permit.ProcessingDays)
		}
		if permit.IssueDate == nil {
			pf("processing_days %d set without an issue_date", *permit.ProcessingDays)
		}
	}
}

func checkStatsConstraints(p *phase, i int, s *domain.BoroughStats, year int) {
	pf := func(format string, args ...any) {
		p.errorf("stats %d (%s): "+format, append([]any{i, s.Borough}, args...)...)
	}

	if s.Borough == "" {
		pf("borough is empty")
	}
	if s.Year != year {
		pf("year is %d, expected %d", s.Year, year)
	}
	if s.TotalPermits <= 0 {
		pf("total_permits is %d", s.TotalPermits)
	}
	if s.PermitsIssued+s.PermitsPending != s.TotalPermits {
		pf("issued %d + pending %d != total %d", s.PermitsIssued, s.PermitsPending, s.TotalPermits)
	}
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"median_processing_days", s.MedianProcessingDays},
		{"avg_processing_days", s.AvgProcessingDays},
		{"p90_processing_days", s.P90ProcessingDays},
	} {
		if v.value < 0 {
			pf("%s is negative: %g", v.name, v.value)
		}
	}
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"pct_within_90_days", s.PctWithin90Days},
		{"pct_within_120_days", s.PctWithin120Days},
	} {
		if v.value < 0 || v.value > 100 {
			pf("%s out of range: %g", v.name, v.value)
		}
	}
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func ptrStrEq(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func ptrIntEq(a, b *int) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func ptrFloatEq(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEq(*a, *b)
}

func ptrStr(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func ptrInt(n *int) string {
	if n == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d", *n)
}

func ptrFloat(f *float64) string {
	if f == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%g", *f)
}
