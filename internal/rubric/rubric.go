// Package rubric holds the scoring form as a versioned configuration
// artifact. Scoring logic is agnostic to the rubric revision in use:
// sections, criteria, labels and point caps all come from here.
package rubric

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Criterion is one graded line of the scoring form.
type Criterion struct {
	Key   string  `yaml:"key" json:"key"`
	Label string  `yaml:"label" json:"label"`
	Max   float64 `yaml:"max" json:"max"`
}

// Section groups criteria under a weighted block of the form.
type Section struct {
	Key      string      `yaml:"key" json:"key"`
	Label    string      `yaml:"label" json:"label"`
	Max      float64     `yaml:"max" json:"max"`
	Criteria []Criterion `yaml:"criteria" json:"criteria"`
}

// Rubric is a full revision of the scoring form.
type Rubric struct {
	Version  string    `yaml:"version" json:"version"`
	Title    string    `yaml:"title" json:"title"`
	Sections []Section `yaml:"sections" json:"sections"`
}

// Default returns the embedded rubric revision.
func Default() *Rubric {
	r, err := Parse(defaultYAML)
	if err != nil {
		// the embedded artifact is validated by tests; failing here means
		// a broken build, not a runtime condition
		panic(fmt.Sprintf("rubric: embedded default invalid: %v", err))
	}
	return r
}

// Load reads a rubric revision from a YAML file.
func Load(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a rubric document.
func Parse(data []byte) (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode rubric: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks structural soundness: unique keys, positive caps, and
// criterion caps summing exactly to the section cap.
func (r *Rubric) Validate() error {
	if len(r.Sections) == 0 {
		return fmt.Errorf("rubric %q has no sections", r.Version)
	}
	seenSection := map[string]bool{}
	for _, s := range r.Sections {
		if s.Key == "" {
			return fmt.Errorf("rubric %q: section with empty key", r.Version)
		}
		if seenSection[s.Key] {
			return fmt.Errorf("rubric %q: duplicate section key %q", r.Version, s.Key)
		}
		seenSection[s.Key] = true
		if len(s.Criteria) == 0 {
			return fmt.Errorf("section %q has no criteria", s.Key)
		}
		sum := 0.0
		seenCrit := map[string]bool{}
		for _, c := range s.Criteria {
			if c.Key == "" {
				return fmt.Errorf("section %q: criterion with empty key", s.Key)
			}
			if seenCrit[c.Key] {
				return fmt.Errorf("section %q: duplicate criterion key %q", s.Key, c.Key)
			}
			seenCrit[c.Key] = true
			if c.Max <= 0 {
				return fmt.Errorf("criterion %s.%s: max must be positive, got %v", s.Key, c.Key, c.Max)
			}
			sum += c.Max
		}
		if sum != s.Max {
			return fmt.Errorf("section %q: criteria caps sum to %v, section max is %v", s.Key, sum, s.Max)
		}
	}
	return nil
}

// Section returns the section with the given key.
func (r *Rubric) Section(key string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

// Criterion returns the criterion with the given key.
func (s Section) Criterion(key string) (Criterion, bool) {
	for _, c := range s.Criteria {
		if c.Key == key {
			return c, true
		}
	}
	return Criterion{}, false
}

// TotalMax is the sum of all section caps (100 for the shipped revision).
func (r *Rubric) TotalMax() float64 {
	total := 0.0
	for _, s := range r.Sections {
		total += s.Max
	}
	return total
}
