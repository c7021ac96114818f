// Package scores folds evaluation results into summary statistics and
// applies supervisor corrections while keeping the totals invariant:
// section totals are always the sum of their sub-scores, the grand total
// is always the sum of section totals.
package scores

import (
	"fmt"
	"math"

	"chat-quality-go/internal/rubric"
	"chat-quality-go/internal/types"
)

// Averages summarizes the scored (non-error) rows of a batch.
type Averages struct {
	Sections map[string]float64 `json:"sections"`
	Grand    float64            `json:"grand"`
	Count    int                `json:"count"`
}

// ComputeAverages returns per-section and grand averages over the valid
// results, rounded to one decimal. ok is false when no valid result
// exists; callers must show "no data", never a zero pretending to be a
// score.
func ComputeAverages(results []types.EvaluationResult) (Averages, bool) {
	avg := Averages{Sections: map[string]float64{}}
	sums := map[string]float64{}
	grand := 0.0

	for _, r := range results {
		if !r.Scored() {
			continue
		}
		avg.Count++
		for _, s := range r.Scorecard.Sections {
			sums[s.Key] += s.Total
		}
		grand += r.Scorecard.Total
	}
	if avg.Count == 0 {
		return Averages{}, false
	}
	for key, sum := range sums {
		avg.Sections[key] = round1(sum / float64(avg.Count))
	}
	avg.Grand = round1(grand / float64(avg.Count))
	return avg, true
}

// EditSubScore overrides one sub-score of one result. The raw value is
// clamped to [0, max] using the cap carried on the scorecard, the
// criterion's pending-review mark is cleared, and both the section total
// and the grand total are recomputed. Only the targeted result changes.
func EditSubScore(results []types.EvaluationResult, idx int, sectionKey, criterionKey string, raw float64) error {
	if idx < 0 || idx >= len(results) {
		return fmt.Errorf("result index %d out of range", idx)
	}
	r := &results[idx]
	if !r.Scored() {
		return fmt.Errorf("result %d has no scorecard to edit", idx)
	}
	section := r.Scorecard.Section(sectionKey)
	if section == nil {
		return fmt.Errorf("unknown section %q", sectionKey)
	}
	crit := section.Criterion(criterionKey)
	if crit == nil {
		return fmt.Errorf("unknown criterion %q in section %q", criterionKey, sectionKey)
	}

	crit.Points = rubric.Clamp(raw, crit.Max)
	crit.NeedsReview = false
	r.Scorecard.Recompute()
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
