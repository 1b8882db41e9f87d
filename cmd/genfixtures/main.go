// Command genfixtures generates deterministic permit snapshot fixtures by
// running a built-in seed of raw datastore records through the actual
// normalization, aggregation, and persistence code. The seed covers the
// dataset's awkward shapes: alias and dash variants of borough names,
// datetime and date-only values, missing and reversed dates, zero and
// string-typed coordinates.
//
// Usage:
//
//	go run ./cmd/genfixtures -year 2024 -out testdata/fixtures
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/mstlaur1/montreal-score/internal/adapter/filestore"
	"github.com/mstlaur1/montreal-score/internal/domain"
	"github.com/mstlaur1/montreal-score/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	year := flag.Int("year", 2024, "year the fixture records belong to")
	out := flag.String("out", "", "output directory for fixture snapshots")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	raw := seedRecords(*year)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store := filestore.NewStore(*out, logger, observability.NewMetrics())

	if err := store.SaveRaw(*year, raw); err != nil {
		return fmt.Errorf("write raw fixture: %w", err)
	}

	processed := make([]domain.NormalizedPermit, 0, len(raw))
	for _, rec := range raw {
		permit := domain.ProcessPermit(rec)
		if permit.ApplicationDate == nil {
			continue
		}
		processed = append(processed, permit)
	}
	stats := domain.ComputeBoroughStats(processed, *year)

	if err := store.SaveProcessed(*year, processed); err != nil {
		return fmt.Errorf("write processed fixture: %w", err)
	}
	if err := store.SaveStats(*year, stats); err != nil {
		return fmt.Errorf("write stats fixture: %w", err)
	}

	log.Printf("wrote %d raw, %d processed, %d borough stats under %s", len(raw), len(processed), len(stats), *out)
	printStats(raw, processed, stats)
	return nil
}

// seedRecords returns raw records in the shapes the live datastore actually
// sends, dated within the given year.
func seedRecords(year int) []domain.RawRecord {
	date := func(month, day int) string {
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	}
	permitID := func(n int) string {
		return fmt.Sprintf("CP-%d-%04d", year, n)
	}

	return []domain.RawRecord{
		{
			// Dash variant: the en dash cleans to a plain hyphen.
			"no_demande":                     "3001000001",
			"id_permis":                      permitID(1),
			"date_debut":                     date(1, 10),
			"date_emission":                  date(3, 20),
			"emplacement":                    "6543 rue Saint-Hubert",
			"arrondissement":                 "Rosemont–La Petite-Patrie",
			"code_type_base_demande":         "TR",
			"description_type_demande":       "Transformation",
			"description_type_batiment":      "Résidentiel",
			"description_categorie_batiment": "Habitation",
			"nature_travaux":                 "Rénovation intérieure",
			"nb_logements":                   3.0,
			"latitude":                       45.5423,
			"longitude":                      -73.5988,
		},
		{
			// Alias form without the leading article.
			"no_demande":     "3001000002",
			"id_permis":      permitID(2),
			"date_debut":     date(2, 1),
			"date_emission":  date(2, 15),
			"arrondissement": "Plateau-Mont-Royal",
			"latitude":       45.5227,
			"longitude":      -73.5816,
		},
		{
			// Alias form with a space instead of the first hyphen.
			"no_demande":     "3001000003",
			"id_permis":      permitID(3),
			"date_debut":     date(3, 1),
			"date_emission":  date(7, 15),
			"arrondissement": "Plateau Mont-Royal",
		},
		{
			// Em-dash alias key with datetime-valued dates.
			"no_demande":     "3001000004",
			"id_permis":      permitID(4),
			"date_debut":     date(1, 5) + "T00:00:00",
			"date_emission":  date(4, 30) + "T00:00:00",
			"arrondissement": "Côte-des-Neiges—Notre-Dame-de-Grâce",
		},
		{
			// Pending permit with string-typed coordinates.
			"no_demande":     "3001000005",
			"id_permis":      permitID(5),
			"date_debut":     date(11, 2),
			"arrondissement": "Ville-Marie",
			"latitude":       "45.5088",
			"longitude":      "-73.5542",
		},
		{
			// No application date at all; normalization drops it.
			"no_demande":     "3001000006",
			"arrondissement": "Ville-Marie",
		},
		{
			// Zero coordinates: the number is missing data, the string is not.
			"no_demande":     "3001000007",
			"id_permis":      permitID(7),
			"date_debut":     date(6, 1),
			"date_emission":  date(6, 29),
			"arrondissement": "Montreal-Nord",
			"latitude":       0.0,
			"longitude":      "0",
		},
		{
			// Space-separated datetimes and a string-typed unit count.
			"no_demande":     "3001000008",
			"id_permis":      permitID(8),
			"date_debut":     date(4, 1) + " 09:30:00",
			"date_emission":  date(5, 1) + " 10:00:00",
			"arrondissement": "Le Sud-Ouest",
			"nb_logements":   "2",
		},
		{
			// Issued before applied; the duration is unusable.
			"no_demande":     "3001000009",
			"id_permis":      permitID(9),
			"date_debut":     date(9, 1),
			"date_emission":  date(8, 1),
			"arrondissement": "Verdun",
		},
		{
			// Garbage application date; normalization drops it.
			"no_demande":     "3001000010",
			"date_debut":     "n/a",
			"arrondissement": "Verdun",
		},
	}
}

func printStats(raw []domain.RawRecord, processed []domain.NormalizedPermit, stats []domain.BoroughStats) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Raw: %d, processed: %d, dropped: %d\n", len(raw), len(processed), len(raw)-len(processed))

	var pending, noDuration int
	for i := range processed {
		if processed[i].IssueDate == nil {
			pending++
		} else if processed[i].ProcessingDays == nil {
			noDuration++
		}
	}
	fmt.Printf("Pending: %d, issued without usable duration: %d\n", pending, noDuration)

	fmt.Println("\nPer borough:")
	for _, s := range stats {
		fmt.Printf("  %s: total=%d issued=%d median=%g avg=%g p90=%g within90=%g%% within120=%g%%\n",
			s.Borough, s.TotalPermits, s.PermitsIssued,
			s.MedianProcessingDays, s.AvgProcessingDays, s.P90ProcessingDays,
			s.PctWithin90Days, s.PctWithin120Days)
	}
}
