package rubric

import (
	"fmt"
	"math"
)

// CriterionScore is one graded value. NeedsReview marks sub-scores the
// oracle returned as null: they count as zero until a supervisor fills
// them in by hand.
type CriterionScore struct {
	Key         string  `json:"key"`
	Points      float64 `json:"points"`
	Max         float64 `json:"max"`
	NeedsReview bool    `json:"needs_review,omitempty"`
}

// SectionScore carries the graded criteria of one section. Total is
// always the sum of the children, never a stored oracle value.
type SectionScore struct {
	Key      string           `json:"key"`
	Total    float64          `json:"total"`
	Max      float64          `json:"max"`
	Criteria []CriterionScore `json:"criteria"`
}

// Scorecard is a fully graded form for one dialog.
type Scorecard struct {
	RubricVersion string         `json:"rubric_version"`
	Sections      []SectionScore `json:"sections"`
	Total         float64        `json:"promedio_final"`
	Observations  string         `json:"observaciones,omitempty"`
}

// Bind converts the oracle's decoded JSON object into a Scorecard keyed
// by the rubric's stable keys. Values are clamped to [0, max]; nulls
// become zero with the needs-review flag set; totals in the payload are
// ignored and recomputed locally.
func (r *Rubric) Bind(raw map[string]any) (Scorecard, error) {
	sc := Scorecard{RubricVersion: r.Version}
	for _, section := range r.Sections {
		obj, ok := raw[section.Key].(map[string]any)
		if !ok {
			return Scorecard{}, fmt.Errorf("oracle response missing section %q", section.Key)
		}
		ss := SectionScore{Key: section.Key, Max: section.Max}
		for _, crit := range section.Criteria {
			cs := CriterionScore{Key: crit.Key, Max: crit.Max}
			v, present := obj[crit.Key]
			switch {
			case !present || v == nil:
				cs.NeedsReview = true
			default:
				n, ok := asFloat(v)
				if !ok {
					return Scorecard{}, fmt.Errorf("criterion %s.%s: non-numeric value %v", section.Key, crit.Key, v)
				}
				cs.Points = Clamp(n, crit.Max)
			}
			ss.Criteria = append(ss.Criteria, cs)
		}
		sc.Sections = append(sc.Sections, ss)
	}
	if obs, ok := raw["observaciones"].(string); ok {
		sc.Observations = obs
	}
	sc.Recompute()
	return sc, nil
}

// Recompute restores the totals invariant: each section total is the sum
// of its criteria and the grand total is the sum of section totals.
func (sc *Scorecard) Recompute() {
	grand := 0.0
	for i := range sc.Sections {
		sum := 0.0
		for _, c := range sc.Sections[i].Criteria {
			sum += c.Points
		}
		sc.Sections[i].Total = sum
		grand += sum
	}
	sc.Total = grand
}

// Section returns a mutable reference to the section with the given key.
func (sc *Scorecard) Section(key string) *SectionScore {
	for i := range sc.Sections {
		if sc.Sections[i].Key == key {
			return &sc.Sections[i]
		}
	}
	return nil
}

// Criterion returns a mutable reference to the criterion with the given key.
func (ss *SectionScore) Criterion(key string) *CriterionScore {
	for i := range ss.Criteria {
		if ss.Criteria[i].Key == key {
			return &ss.Criteria[i]
		}
	}
	return nil
}

// NeedsReview reports whether any sub-score still awaits manual review.
func (sc Scorecard) NeedsReview() bool {
	for _, s := range sc.Sections {
		for _, c := range s.Criteria {
			if c.NeedsReview {
				return true
			}
		}
	}
	return false
}

// Clamp bounds a raw score to [0, max].
func Clamp(v, max float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
