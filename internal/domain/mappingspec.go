package domain

import "strings"

// VariableType distinguishes character from numeric variables.
type VariableType string

const (
	TypeChar VariableType = "Char"
	TypeNum  VariableType = "Num"
)

// Codelist is a controlled vocabulary: the closed (or extensible) set of
// valid submission values for a variable. Codelists are read-only for the
// duration of a run and may be shared across domains and goroutines.
type Codelist struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name" json:"name"`
	Extensible bool     `yaml:"extensible" json:"extensible"`
	Terms      []string `yaml:"terms" json:"terms"`
}

// MatchTerm looks up a value against the codelist terms.
// It returns the canonical term, whether the match was exact, and whether any
// case-insensitive match exists at all.
func (c *Codelist) MatchTerm(value string) (canonical string, exact bool, ok bool) {
	for _, term := range c.Terms {
		if term == value {
			return term, true, true
		}
		if strings.EqualFold(term, value) {
			return term, false, true
		}
	}
	return "", false, false
}

// VariableSpec describes one expected column of a domain dataset.
type VariableSpec struct {
	Name     string       `yaml:"name" json:"name"`
	Label    string       `yaml:"label" json:"label"`
	Type     VariableType `yaml:"type" json:"type"`
	Required bool         `yaml:"required" json:"required"`

	// Codelist binds the variable to a controlled vocabulary. Nil when the
	// variable is free-text or numeric. The pointer is shared, never mutated.
	Codelist *Codelist `yaml:"codelist,omitempty" json:"codelist,omitempty"`
}

// MappingSpec is the specification accompanying one domain's dataset.
type MappingSpec struct {
	Domain    string         `yaml:"domain" json:"domain"`
	Label     string         `yaml:"label" json:"label"`
	Variables []VariableSpec `yaml:"variables" json:"variables"`
}

// Variable returns the spec entry for the named variable, or nil if absent.
func (s MappingSpec) Variable(name string) *VariableSpec {
	for i := range s.Variables {
		if s.Variables[i].Name == name {
			return &s.Variables[i]
		}
	}
	return nil
}

// RequiredVariables returns the names of all variables marked required.
func (s MappingSpec) RequiredVariables() []string {
	var names []string
	for _, v := range s.Variables {
		if v.Required {
			names = append(names, v.Name)
		}
	}
	return names
}

// Clone returns a copy whose Variables slice is independent of the original.
// Codelist pointers are shared: codelists are read-only reference data.
func (s MappingSpec) Clone() MappingSpec {
	out := s
	out.Variables = make([]VariableSpec, len(s.Variables))
	copy(out.Variables, s.Variables)
	return out
}
