package semantic

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/datafrage-dev/datafrage/pkg/api"
)

// ColumnType is the data-type tag of a dataset column.
type ColumnType string

const (
	ColumnNumeric     ColumnType = "numeric"
	ColumnCategorical ColumnType = "categorical"
	ColumnDatetime    ColumnType = "datetime"
	ColumnText        ColumnType = "text"
)

// Column describes a single dataset column as declared in the artifact.
type Column struct {
	Name        string
	Description string
	Type        ColumnType
	Synonyms    []string
	Missing     int
}

// ValueMapping maps one raw category value of a column to its
// human-readable label.
type ValueMapping struct {
	Column string
	Raw    string
	Label  string
}

// Layer is the loaded, validated semantic layer. Immutable after Load.
type Layer struct {
	columns    []Column
	byName     map[string]int
	mappings   []ValueMapping
	labels     map[string]map[string]string // column -> raw -> label
	candidates []candidate                  // resolver lookup table, precedence order
}

// columnSpec is the YAML shape of a single columns entry.
type columnSpec struct {
	Description string   `yaml:"description"`
	Type        string   `yaml:"type"`
	Synonyms    []string `yaml:"synonyms"`
	Missing     int      `yaml:"missing"`
}

// Load reads and validates a semantic layer artifact from disk.
// Any schema violation fails with a descriptive semantic_layer_load
// error; no partially loaded layer is ever returned.
func Load(path string) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, api.NewSemanticLayerLoadError("reading %s: %v", path, err)
	}
	return Parse(data)
}

// Parse validates and builds a Layer from raw artifact bytes.
func Parse(data []byte) (*Layer, error) {
	// Decode through yaml.Node to keep document declaration order,
	// which defines resolver precedence.
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, api.NewSemanticLayerLoadError("parsing artifact: %v", err)
	}
	if len(doc.Content) == 0 {
		return nil, api.NewSemanticLayerLoadError("artifact is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, api.NewSemanticLayerLoadError("artifact root must be a mapping")
	}

	l := &Layer{
		byName: make(map[string]int),
		labels: make(map[string]map[string]string),
	}

	var sawColumns bool
	for i := 0; i < len(root.Content)-1; i += 2 {
		key := root.Content[i].Value
		val := root.Content[i+1]
		switch key {
		case "columns":
			sawColumns = true
			if err := l.decodeColumns(val); err != nil {
				return nil, err
			}
		case "value_mappings":
			if err := l.decodeValueMappings(val); err != nil {
				return nil, err
			}
		}
	}

	if !sawColumns {
		return nil, api.NewSemanticLayerLoadError("artifact is missing required top-level key %q", "columns")
	}
	if len(l.columns) == 0 {
		return nil, api.NewSemanticLayerLoadError("columns mapping is empty")
	}
	if err := l.validate(); err != nil {
		return nil, err
	}

	l.buildCandidates()
	return l, nil
}

func (l *Layer) decodeColumns(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return api.NewSemanticLayerLoadError("columns must be a mapping")
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		name := node.Content[i].Value
		var spec columnSpec
		if err := node.Content[i+1].Decode(&spec); err != nil {
			return api.NewSemanticLayerLoadError("column %s: %v", name, err)
		}
		ct := ColumnType(spec.Type)
		switch ct {
		case ColumnNumeric, ColumnCategorical, ColumnDatetime, ColumnText:
		default:
			return api.NewSemanticLayerLoadError("column %s: unknown type tag %q", name, spec.Type)
		}
		if _, dup := l.byName[name]; dup {
			return api.NewSemanticLayerLoadError("column %s declared twice", name)
		}
		l.byName[name] = len(l.columns)
		l.columns = append(l.columns, Column{
			Name:        name,
			Description: spec.Description,
			Type:        ct,
			Synonyms:    spec.Synonyms,
			Missing:     spec.Missing,
		})
	}
	return nil
}

func (l *Layer) decodeValueMappings(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return api.NewSemanticLayerLoadError("value_mappings must be a mapping")
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		column := node.Content[i].Value
		values := node.Content[i+1]
		if values.Kind != yaml.MappingNode {
			return api.NewSemanticLayerLoadError("value_mappings for %s must be a mapping", column)
		}
		for j := 0; j < len(values.Content)-1; j += 2 {
			raw := values.Content[j].Value
			label := values.Content[j+1].Value
			l.mappings = append(l.mappings, ValueMapping{Column: column, Raw: raw, Label: label})
			if l.labels[column] == nil {
				l.labels[column] = make(map[string]string)
			}
			l.labels[column][raw] = label
		}
	}
	return nil
}

// validate enforces the artifact invariants: every column referenced by
// value_mappings exists, and synonym sets across columns do not overlap.
// Ambiguous synonyms are a build-time defect of the external generator.
func (l *Layer) validate() error {
	for _, m := range l.mappings {
		if _, ok := l.byName[m.Column]; !ok {
			return api.NewSemanticLayerLoadError(
				"value_mappings references column %q which is not declared in columns", m.Column)
		}
	}

	seen := make(map[string]string) // lowered synonym -> owning column
	for _, c := range l.columns {
		for _, syn := range c.Synonyms {
			key := strings.ToLower(strings.TrimSpace(syn))
			if key == "" {
				return api.NewSemanticLayerLoadError("column %s has an empty synonym", c.Name)
			}
			if owner, dup := seen[key]; dup && owner != c.Name {
				return api.NewSemanticLayerLoadError(
					"synonym %q is declared for both %s and %s", syn, owner, c.Name)
			}
			seen[key] = c.Name
		}
	}
	return nil
}

// buildCandidates precomputes the resolver lookup table: every column
// name, synonym, and value label as a lowered phrase, ordered
// longest-first with declaration order breaking ties.
func (l *Layer) buildCandidates() {
	order := 0
	add := func(phrase, column, value string) {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			return
		}
		l.candidates = append(l.candidates, candidate{
			phrase: phrase,
			column: column,
			value:  value,
			order:  order,
		})
		order++
	}

	for _, c := range l.columns {
		add(c.Name, c.Name, "")
		for _, syn := range c.Synonyms {
			add(syn, c.Name, "")
		}
	}
	for _, m := range l.mappings {
		add(m.Label, m.Column, m.Raw)
	}

	sort.SliceStable(l.candidates, func(i, j int) bool {
		if len(l.candidates[i].phrase) != len(l.candidates[j].phrase) {
			return len(l.candidates[i].phrase) > len(l.candidates[j].phrase)
		}
		return l.candidates[i].order < l.candidates[j].order
	})
}

// Columns returns the declared columns in declaration order.
func (l *Layer) Columns() []Column {
	return l.columns
}

// Column looks up a column by raw name.
func (l *Layer) Column(name string) (Column, bool) {
	idx, ok := l.byName[name]
	if !ok {
		return Column{}, false
	}
	return l.columns[idx], true
}

// Label returns the human-readable label for a raw category value of the
// given column, if one is mapped.
func (l *Layer) Label(column, raw string) (string, bool) {
	vals, ok := l.labels[column]
	if !ok {
		return "", false
	}
	label, ok := vals[raw]
	return label, ok
}

// Mappings returns all value mappings in declaration order.
func (l *Layer) Mappings() []ValueMapping {
	return l.mappings
}

// Describe returns a short schema summary suitable for inclusion in a
// code-generation prompt: one line per column with type and description.
func (l *Layer) Describe() string {
	var b strings.Builder
	for _, c := range l.columns {
		fmt.Fprintf(&b, "%s (%s)", c.Name, c.Type)
		if c.Description != "" {
			fmt.Fprintf(&b, ": %s", c.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
