package artifact

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
)

// Model is the parsed form of one serialized model artifact: the
// backend-constructible raw document plus the descriptive metadata extracted
// from it. Metadata is immutable after extraction.
type Model struct {
	// Algo names the training algorithm ("gbm", "glm", ...).
	Algo string
	// UID is the model's unique id from the document's model_id section.
	UID string
	// Category classifies the model's prediction shape.
	Category Category

	// Metric maps keyed by canonical metric names; unmatched document fields
	// are dropped, absent sections yield empty maps.
	TrainingMetrics        map[Metric]float64
	ValidationMetrics      map[Metric]float64
	CrossValidationMetrics map[Metric]float64

	// Parameters is the flattened training-parameter map.
	Parameters map[string]string

	// ColumnTypes maps each input feature name to its declared type.
	ColumnTypes map[string]string

	// Optional tabular sections; nil when absent or unparseable.
	ScoringHistory     *Table
	FeatureImportances *Table

	raw []byte
}

// Load parses a serialized model artifact. Required sections (output,
// model_category) fail the load when broken; optional tables degrade to nil
// with a logged warning.
func Load(raw []byte) (*Model, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing model artifact: %w", err)
	}

	m := &Model{raw: append([]byte(nil), raw...)}

	if algo, ok := doc["algo"].(string); ok {
		m.Algo = algo
	}
	if id, ok := doc["model_id"].(map[string]any); ok {
		m.UID, _ = id["name"].(string)
	}

	if params, ok := doc["parameters"].(map[string]any); ok {
		m.Parameters = flattenParams(params)
	} else {
		m.Parameters = map[string]string{}
	}

	output, ok := doc["output"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("model artifact has no output section")
	}

	category, _ := output["model_category"].(string)
	m.Category = CategoryFromString(category)

	m.TrainingMetrics = extractMetrics(output["training_metrics"])
	m.ValidationMetrics = extractMetrics(output["validation_metrics"])
	m.CrossValidationMetrics = extractMetrics(output["cross_validation_metrics"])

	m.ColumnTypes = zipColumnTypes(output["names"], output["column_types"])

	m.ScoringHistory = optionalTable(output, "scoring_history", true)
	m.FeatureImportances = optionalTable(output, "variable_importances", false)

	return m, nil
}

// LoadFile reads and parses an artifact from disk.
func LoadFile(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact %s: %w", path, err)
	}
	return Load(raw)
}

// Raw returns the original document bytes for backend construction.
func (m *Model) Raw() []byte { return m.raw }

// HasValidationFrame reports whether training configured a validation
// dataset.
func (m *Model) HasValidationFrame() bool {
	return m.Parameters["validation_frame"] != ""
}

// NFolds returns the cross-validation fold count from the training
// parameters, zero when unset.
func (m *Model) NFolds() int {
	n, err := strconv.Atoi(m.Parameters["nfolds"])
	if err != nil {
		return 0
	}
	return n
}

// CurrentMetrics selects the metric set that describes the fitted model:
// validation metrics when a validation dataset was configured, else
// cross-validation metrics when fold count > 1, else training metrics.
func (m *Model) CurrentMetrics() map[Metric]float64 {
	if m.HasValidationFrame() {
		return m.ValidationMetrics
	}
	if m.NFolds() > 1 {
		return m.CrossValidationMetrics
	}
	return m.TrainingMetrics
}

// optionalTable extracts one tabular section. Malformed sections are
// non-fatal: the warning is logged and the table is absent.
func optionalTable(output map[string]any, field string, dropBlank bool) *Table {
	section, ok := output[field]
	if !ok || section == nil {
		return nil
	}
	t, err := parseTable(section)
	if err != nil {
		log.Printf("artifact: skipping %s: %v", field, err)
		return nil
	}
	if dropBlank {
		dropBlankColumns(t)
	}
	return t
}

// zipColumnTypes pairs the parallel names/column_types arrays into the
// feature-name→type map. Length mismatches keep the shorter prefix.
func zipColumnTypes(names, types any) map[string]string {
	out := map[string]string{}
	nameList, ok := names.([]any)
	if !ok {
		return out
	}
	typeList, ok := types.([]any)
	if !ok {
		return out
	}
	for i, rn := range nameList {
		if i >= len(typeList) {
			break
		}
		name, ok := rn.(string)
		if !ok {
			continue
		}
		typ, ok := typeList[i].(string)
		if !ok {
			continue
		}
		out[name] = typ
	}
	return out
}
