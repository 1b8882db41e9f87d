package render_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstlaur1/montreal-score/internal/domain"
	"github.com/mstlaur1/montreal-score/internal/render"
)

func renderLines(t *testing.T, stats []domain.BoroughStats) []string {
	t.Helper()
	var buf bytes.Buffer
	render.StatsTable(&buf, stats)
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\n"), "table starts with a blank line")
	return strings.Split(strings.TrimSuffix(out[1:], "\n"), "\n")
}

func TestStatsTable_Layout(t *testing.T) {
	stats := []domain.BoroughStats{
		{
			Borough:              "Anjou",
			Year:                 2024,
			TotalPermits:         12,
			PermitsIssued:        10,
			MedianProcessingDays: 25,
			P90ProcessingDays:    40,
			PctWithin90Days:      100,
			PctWithin120Days:     100,
		},
		{
			Borough:              "Verdun",
			Year:                 2024,
			TotalPermits:         20,
			PermitsIssued:        15,
			MedianProcessingDays: 81,
			P90ProcessingDays:    120,
			PctWithin90Days:      60,
			PctWithin120Days:     83.3,
		},
	}

	lines := renderLines(t, stats)
	require.Len(t, lines, 4)

	wantHeader := "Borough" + strings.Repeat(" ", 38) +
		strings.Repeat(" ", 2) + "Total" +
		strings.Repeat(" ", 2) + "Issued" +
		strings.Repeat(" ", 2) + "Median" +
		strings.Repeat(" ", 5) + "P90" +
		strings.Repeat(" ", 3) + "≤90d" +
		strings.Repeat(" ", 2) + "≤120d"
	assert.Equal(t, wantHeader, lines[0])
	assert.Equal(t, strings.Repeat("-", 100), lines[1])

	// Verdun has the higher median, so it prints first.
	wantVerdun := "Verdun" + strings.Repeat(" ", 39) +
		strings.Repeat(" ", 5) + "20" +
		strings.Repeat(" ", 6) + "15" +
		strings.Repeat(" ", 5) + "81d" +
		strings.Repeat(" ", 4) + "120d" +
		strings.Repeat(" ", 2) + "60.0%" +
		strings.Repeat(" ", 2) + "83.3%"
	assert.Equal(t, wantVerdun, lines[2])

	wantAnjou := "Anjou" + strings.Repeat(" ", 40) +
		strings.Repeat(" ", 5) + "12" +
		strings.Repeat(" ", 6) + "10" +
		strings.Repeat(" ", 5) + "25d" +
		strings.Repeat(" ", 5) + "40d" +
		strings.Repeat(" ", 1) + "100.0%" +
		strings.Repeat(" ", 1) + "100.0%"
	assert.Equal(t, wantAnjou, lines[3])
}

func TestStatsTable_AccentedNamesAlign(t *testing.T) {
	same := domain.BoroughStats{
		TotalPermits:         5,
		PermitsIssued:        4,
		MedianProcessingDays: 30,
		P90ProcessingDays:    55,
		PctWithin90Days:      100,
		PctWithin120Days:     100,
	}
	ascii := same
	ascii.Borough = "Anjou"
	accented := same
	accented.Borough = "Côte-des-Neiges-Notre-Dame-de-Grâce"

	lines := renderLines(t, []domain.BoroughStats{ascii, accented})
	require.Len(t, lines, 4)

	// Identical numbers must produce identical columns past the name field,
	// measured in runes so the accents don't shift anything.
	asciiRunes := []rune(lines[2])
	accentRunes := []rune(lines[3])
	require.Equal(t, len(asciiRunes), len(accentRunes))
	assert.Equal(t, string(asciiRunes[45:]), string(accentRunes[45:]))
}

func TestStatsTable_SortsByMedianDescendingTiesAlphabetical(t *testing.T) {
	stats := []domain.BoroughStats{
		{Borough: "Anjou", MedianProcessingDays: 10},
		{Borough: "Lachine", MedianProcessingDays: 50},
		{Borough: "Verdun", MedianProcessingDays: 50},
	}

	lines := renderLines(t, stats)
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[2], "Lachine"))
	assert.True(t, strings.HasPrefix(lines[3], "Verdun"))
	assert.True(t, strings.HasPrefix(lines[4], "Anjou"))

	// Input order is the stats snapshot order; rendering must not reorder it.
	assert.Equal(t, "Anjou", stats[0].Borough)
}

func TestStatsTable_Empty(t *testing.T) {
	lines := renderLines(t, nil)
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Repeat("-", 100), lines[1])
}
