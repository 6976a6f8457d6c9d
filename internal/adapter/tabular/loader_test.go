package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawright/conform/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dm.csv", "USUBJID,SEX\nS1,M\nS2,F\n")

	ds, err := LoadDataset(path)
	require.NoError(t, err)

	assert.Equal(t, path, ds.Source)
	assert.Equal(t, []string{"USUBJID", "SEX"}, ds.ColumnNames())
	assert.Equal(t, []string{"S1", "S2"}, ds.ColumnValues("USUBJID"))
	assert.Equal(t, 2, ds.RowCount())
}

func TestLoadDatasetRaggedRows(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ae.csv", "USUBJID,AETERM\nS1\n")

	ds, err := LoadDataset(path)
	require.NoError(t, err)

	assert.Equal(t, []string{""}, ds.ColumnValues("AETERM"), "short rows pad with empty values")
}

func TestLoadDatasetErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadDataset(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	empty := writeFile(t, dir, "empty.csv", "")
	_, err = LoadDataset(empty)
	assert.ErrorContains(t, err, "empty")
}

const studyYAML = `study_id: ABC-123
domains:
  - domain: DM
    label: Demographics
    data: dm.csv
    variables:
      - name: USUBJID
        label: Unique Subject Identifier
        type: Char
        required: true
      - name: SEX
        label: Sex
        codelist:
          id: CL.SEX
          name: Sex
          terms: [M, F, U]
  - domain: AE
    label: Adverse Events
    variables:
      - name: USUBJID
        required: true
`

func TestLoadStudy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dm.csv", "USUBJID,SEX\nS1,M\n")
	path := writeFile(t, dir, "study.yaml", studyYAML)

	study, err := LoadStudy(path)
	require.NoError(t, err)

	assert.Equal(t, "ABC-123", study.ID)
	require.Len(t, study.Domains, 2)

	dm := study.Domains["DM"]
	assert.Equal(t, "Demographics", dm.Spec.Label)
	assert.Equal(t, 1, dm.Dataset.RowCount())

	sex := dm.Spec.Variable("SEX")
	require.NotNil(t, sex)
	require.NotNil(t, sex.Codelist)
	assert.Equal(t, []string{"M", "F", "U"}, sex.Codelist.Terms)
	assert.Equal(t, domain.TypeChar, sex.Type)

	ae := study.Domains["AE"]
	assert.Zero(t, ae.Dataset.RowCount(), "domains without data load an empty dataset")
	assert.True(t, ae.Spec.Variable("USUBJID").Required)
}

func TestLoadStudyErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing study_id", func(t *testing.T) {
		path := writeFile(t, dir, "noid.yaml", "domains:\n  - domain: DM\n")
		_, err := LoadStudy(path)
		assert.ErrorContains(t, err, "study_id")
	})

	t.Run("no domains", func(t *testing.T) {
		path := writeFile(t, dir, "nodomains.yaml", "study_id: X\n")
		_, err := LoadStudy(path)
		assert.ErrorContains(t, err, "no domains")
	})

	t.Run("duplicate domain", func(t *testing.T) {
		path := writeFile(t, dir, "dup.yaml", "study_id: X\ndomains:\n  - domain: DM\n  - domain: DM\n")
		_, err := LoadStudy(path)
		assert.ErrorContains(t, err, "twice")
	})

	t.Run("unknown variable type", func(t *testing.T) {
		path := writeFile(t, dir, "badtype.yaml", "study_id: X\ndomains:\n  - domain: DM\n    variables:\n      - name: AGE\n        type: float\n")
		_, err := LoadStudy(path)
		assert.ErrorContains(t, err, "unknown variable type")
	})

	t.Run("missing dataset file", func(t *testing.T) {
		path := writeFile(t, dir, "nodata.yaml", "study_id: X\ndomains:\n  - domain: DM\n    data: nope.csv\n")
		_, err := LoadStudy(path)
		assert.Error(t, err)
	})
}
