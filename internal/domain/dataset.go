package domain

// Column is one named variable of a tabular dataset. Values are row-aligned:
// index i in every column of a dataset belongs to the same row.
type Column struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Dataset is a row-aligned table of named columns for a single domain.
// The engine only ever operates on copies; callers keep ownership of the
// dataset they pass in.
type Dataset struct {
	// Source is the file the dataset was loaded from, empty for in-memory data.
	Source string `json:"source,omitempty"`

	// CanonicalFile is the canonical output file name recorded by remediation.
	// Empty until a file-naming fix has run.
	CanonicalFile string `json:"canonicalFile,omitempty"`

	Columns []Column `json:"columns"`
}

// RowCount returns the number of rows in the dataset.
// All columns are row-aligned, so the first column is authoritative.
func (d Dataset) RowCount() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Values)
}

// ColumnIndex returns the position of the named column, or -1 if absent.
func (d Dataset) ColumnIndex(name string) int {
	for i, col := range d.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (d Dataset) HasColumn(name string) bool {
	return d.ColumnIndex(name) >= 0
}

// ColumnValues returns the values of the named column, or nil if absent.
// The returned slice is the dataset's backing slice; callers that intend to
// mutate must Clone the dataset first.
func (d Dataset) ColumnValues(name string) []string {
	idx := d.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	return d.Columns[idx].Values
}

// ColumnNames returns the column names in dataset order.
func (d Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		names[i] = col.Name
	}
	return names
}

// SetColumn replaces the named column's values, appending a new column at the
// end when the name is not yet present.
func (d *Dataset) SetColumn(name string, values []string) {
	if idx := d.ColumnIndex(name); idx >= 0 {
		d.Columns[idx].Values = values
		return
	}
	d.Columns = append(d.Columns, Column{Name: name, Values: values})
}

// RenameColumn renames a column in place. Returns false when the old name is
// absent or the new name already exists.
func (d *Dataset) RenameColumn(oldName, newName string) bool {
	idx := d.ColumnIndex(oldName)
	if idx < 0 || d.HasColumn(newName) {
		return false
	}
	d.Columns[idx].Name = newName
	return true
}

// Clone returns a deep copy of the dataset. Mutating the copy never affects
// the original.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Source:        d.Source,
		CanonicalFile: d.CanonicalFile,
		Columns:       make([]Column, len(d.Columns)),
	}
	for i, col := range d.Columns {
		values := make([]string, len(col.Values))
		copy(values, col.Values)
		out.Columns[i] = Column{Name: col.Name, Values: values}
	}
	return out
}
