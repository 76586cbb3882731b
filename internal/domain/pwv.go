package domain

import (
	"sort"
	"time"
)

// PWVResult is the integrated precipitable water vapor for one sounding.
// PWV is nil when the sounding lacks the required columns or enough samples.
type PWVResult struct {
	SoundingID   string
	SoundingTime time.Time
	PWV          *float64
}

// ComputePWV integrates absolute humidity over height with the trapezoidal
// rule and reports the result in mm (the g/m2 total divided by 1000).
//
// Rows qualify when both HGHT and ABSH (matched by base column name) are
// numeric and height >= minHeight. Fewer than two qualifying samples yields
// nil. Samples are integrated in ascending height order; non-positive height
// steps are skipped rather than treated as zero-width.
func ComputePWV(columns []string, rows [][]Cell, minHeight float64) *float64 {
	if len(columns) == 0 || len(rows) == 0 {
		return nil
	}

	hIdx, abshIdx := -1, -1
	for i, col := range columns {
		switch BaseColumnName(col) {
		case "HGHT":
			hIdx = i
		case "ABSH":
			abshIdx = i
		}
	}
	if hIdx < 0 || abshIdx < 0 {
		return nil
	}

	type sample struct{ h, a float64 }
	var samples []sample
	for _, row := range rows {
		if hIdx >= len(row) || abshIdx >= len(row) {
			continue
		}
		h, okH := row[hIdx].Float()
		a, okA := row[abshIdx].Float()
		if !okH || !okA || h < minHeight {
			continue
		}
		samples = append(samples, sample{h: h, a: a})
	}
	if len(samples) < 2 {
		return nil
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].h < samples[j].h })

	total := 0.0
	prev := samples[0]
	for _, s := range samples[1:] {
		dh := s.h - prev.h
		if dh <= 0 {
			prev = s
			continue
		}
		total += (prev.a + s.a) * 0.5 * dh
		prev = s
	}

	pwv := total / 1000.0
	return &pwv
}
