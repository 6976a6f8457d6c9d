// Package tabular loads study definitions and datasets from disk. Mapping
// specifications are YAML; datasets are headered CSV files.
package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/datawright/conform/internal/domain"
	"github.com/datawright/conform/internal/usecase/validate"
)

// Study is a fully loaded study: its identifier plus every domain's dataset
// and mapping specification.
type Study struct {
	ID      string
	Domains map[string]validate.DomainData
}

// studyFile mirrors the on-disk YAML layout.
type studyFile struct {
	StudyID string       `yaml:"study_id"`
	Domains []domainFile `yaml:"domains"`
}

type domainFile struct {
	Domain    string         `yaml:"domain"`
	Label     string         `yaml:"label"`
	Data      string         `yaml:"data"`
	Variables []variableFile `yaml:"variables"`
}

type variableFile struct {
	Name     string        `yaml:"name"`
	Label    string        `yaml:"label"`
	Type     string        `yaml:"type"`
	Required bool          `yaml:"required"`
	Codelist *codelistFile `yaml:"codelist"`
}

type codelistFile struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Extensible bool     `yaml:"extensible"`
	Terms      []string `yaml:"terms"`
}

// LoadStudy reads a study YAML file and every dataset it references. Dataset
// paths are resolved relative to the study file's directory.
func LoadStudy(path string) (Study, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Study{}, fmt.Errorf("failed to read study file: %w", err)
	}

	var sf studyFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		return Study{}, fmt.Errorf("failed to parse study file: %w", err)
	}
	if sf.StudyID == "" {
		return Study{}, fmt.Errorf("study file %s has no study_id", path)
	}
	if len(sf.Domains) == 0 {
		return Study{}, fmt.Errorf("study file %s defines no domains", path)
	}

	base := filepath.Dir(path)
	study := Study{
		ID:      sf.StudyID,
		Domains: make(map[string]validate.DomainData, len(sf.Domains)),
	}
	for _, df := range sf.Domains {
		if df.Domain == "" {
			return Study{}, fmt.Errorf("study file %s contains a domain with no code", path)
		}
		if _, exists := study.Domains[df.Domain]; exists {
			return Study{}, fmt.Errorf("study file %s defines domain %s twice", path, df.Domain)
		}

		spec, err := buildSpec(df)
		if err != nil {
			return Study{}, err
		}

		ds := domain.Dataset{}
		if df.Data != "" {
			ds, err = LoadDataset(filepath.Join(base, df.Data))
			if err != nil {
				return Study{}, fmt.Errorf("domain %s: %w", df.Domain, err)
			}
		}

		study.Domains[df.Domain] = validate.DomainData{Dataset: ds, Spec: spec}
	}
	return study, nil
}

func buildSpec(df domainFile) (domain.MappingSpec, error) {
	spec := domain.MappingSpec{
		Domain:    df.Domain,
		Label:     df.Label,
		Variables: make([]domain.VariableSpec, 0, len(df.Variables)),
	}
	for _, vf := range df.Variables {
		if vf.Name == "" {
			return domain.MappingSpec{}, fmt.Errorf("domain %s has a variable with no name", df.Domain)
		}
		vt, err := parseVariableType(vf.Type)
		if err != nil {
			return domain.MappingSpec{}, fmt.Errorf("domain %s variable %s: %w", df.Domain, vf.Name, err)
		}

		v := domain.VariableSpec{
			Name:     vf.Name,
			Label:    vf.Label,
			Type:     vt,
			Required: vf.Required,
		}
		if vf.Codelist != nil {
			v.Codelist = &domain.Codelist{
				ID:         vf.Codelist.ID,
				Name:       vf.Codelist.Name,
				Extensible: vf.Codelist.Extensible,
				Terms:      append([]string(nil), vf.Codelist.Terms...),
			}
		}
		spec.Variables = append(spec.Variables, v)
	}
	return spec, nil
}

func parseVariableType(s string) (domain.VariableType, error) {
	switch strings.ToLower(s) {
	case "", "char", "character", "text":
		return domain.TypeChar, nil
	case "num", "numeric", "number":
		return domain.TypeNum, nil
	default:
		return domain.TypeChar, fmt.Errorf("unknown variable type %q", s)
	}
}

// LoadDataset reads a headered CSV file into a column-oriented dataset. The
// file path is recorded as the dataset's source.
func LoadDataset(path string) (domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return domain.Dataset{}, fmt.Errorf("dataset %s is empty", filepath.Base(path))
	}

	header := records[0]
	ds := domain.Dataset{
		Source:  path,
		Columns: make([]domain.Column, len(header)),
	}
	rows := len(records) - 1
	for i, name := range header {
		ds.Columns[i] = domain.Column{
			Name:   strings.TrimSpace(name),
			Values: make([]string, rows),
		}
	}
	for r, record := range records[1:] {
		for c := range header {
			if c < len(record) {
				ds.Columns[c].Values[r] = record[c]
			}
		}
	}
	return ds, nil
}
