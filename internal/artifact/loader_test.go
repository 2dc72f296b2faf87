package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gbmArtifact = `{
	"algo": "gbm",
	"model_id": {"name": "gbm-1a2b"},
	"parameters": {
		"ntrees": 50,
		"learn_rate": 0.1,
		"balance_classes": false,
		"ignored_columns": null,
		"stopping_rounds": [1, 2, 3],
		"training_frame": {"name": "train.hex", "type": "Key"},
		"validation_frame": null,
		"nfolds": 0
	},
	"output": {
		"model_category": "Binomial",
		"training_metrics": {
			"MSE": 0.04,
			"r2": 0.93,
			"AUC": 0.98,
			"pr_auc": 0.97,
			"logloss": 0.15,
			"custom_increment": 12.5,
			"description": "training frame metrics"
		},
		"validation_metrics": null,
		"cross_validation_metrics": null,
		"names": ["sepal_len", "sepal_wid", "class"],
		"column_types": ["Numeric", "Numeric", "Enum"],
		"scoring_history": {
			"name": "Scoring History",
			"columns": [
				{"name": "", "type": "string"},
				{"name": "timestamp", "type": "string"},
				{"name": "number_of_trees", "type": "long"},
				{"name": "training_rmse", "type": "double"}
			],
			"data": [
				["", "2026-01-05 10:00:00", 1, 0.48],
				["", "2026-01-05 10:00:01", 50, null]
			]
		},
		"variable_importances": {
			"name": "Variable Importances",
			"columns": [
				{"name": "variable", "type": "string"},
				{"name": "relative_importance", "type": "float"}
			],
			"data": [["sepal_len", 120.5], ["sepal_wid", 30.25]]
		}
	}
}`

func TestLoadExtractsMetadata(t *testing.T) {
	m, err := Load([]byte(gbmArtifact))
	require.NoError(t, err)

	assert.Equal(t, "gbm", m.Algo)
	assert.Equal(t, "gbm-1a2b", m.UID)
	assert.Equal(t, CategoryBinomial, m.Category)
	assert.Equal(t, []byte(gbmArtifact), m.Raw())
}

func TestLoadCanonicalizesMetricNames(t *testing.T) {
	m, err := Load([]byte(gbmArtifact))
	require.NoError(t, err)

	// Loose document spellings resolve to canonical metrics.
	assert.Equal(t, 0.04, m.TrainingMetrics[MetricMSE])
	assert.Equal(t, 0.93, m.TrainingMetrics[MetricR2])
	assert.Equal(t, 0.98, m.TrainingMetrics[MetricAUC])
	assert.Equal(t, 0.97, m.TrainingMetrics[MetricPRAUC])
	assert.Equal(t, 0.15, m.TrainingMetrics[MetricLogLoss])

	// Unrecognized and non-numeric fields are dropped.
	assert.Len(t, m.TrainingMetrics, 5)

	// Null sections degrade to empty maps, never nil.
	assert.NotNil(t, m.ValidationMetrics)
	assert.Empty(t, m.ValidationMetrics)
	assert.NotNil(t, m.CrossValidationMetrics)
	assert.Empty(t, m.CrossValidationMetrics)
}

func TestLoadFlattensParameters(t *testing.T) {
	m, err := Load([]byte(gbmArtifact))
	require.NoError(t, err)

	p := m.Parameters
	assert.Equal(t, "50", p["ntrees"], "integral numbers render without a decimal point")
	assert.Equal(t, "0.1", p["learn_rate"])
	assert.Equal(t, "false", p["balance_classes"])
	assert.Equal(t, "[1, 2, 3]", p["stopping_rounds"])
	assert.Equal(t, "train.hex", p["training_frame"], "objects reduce to their name field")

	_, ok := p["ignored_columns"]
	assert.False(t, ok, "null parameters are dropped")
	_, ok = p["validation_frame"]
	assert.False(t, ok)
}

func TestLoadColumnTypes(t *testing.T) {
	m, err := Load([]byte(gbmArtifact))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"sepal_len": "Numeric",
		"sepal_wid": "Numeric",
		"class":     "Enum",
	}, m.ColumnTypes)
}

func TestLoadScoringHistoryDropsBlankColumn(t *testing.T) {
	m, err := Load([]byte(gbmArtifact))
	require.NoError(t, err)

	sh := m.ScoringHistory
	require.NotNil(t, sh)
	assert.Equal(t, "Scoring History", sh.Name)
	require.Len(t, sh.Columns, 3, "the unnamed leading column is removed")
	assert.Equal(t, "timestamp", sh.Columns[0].Name)
	assert.Equal(t, 2, sh.NumRows())

	trees, ok := sh.Cell(0, "number_of_trees")
	require.True(t, ok)
	assert.Equal(t, int64(1), trees)

	// The second row's rmse is a document null.
	_, ok = sh.Cell(1, "training_rmse")
	assert.False(t, ok)
}

func TestLoadFeatureImportances(t *testing.T) {
	m, err := Load([]byte(gbmArtifact))
	require.NoError(t, err)

	vi := m.FeatureImportances
	require.NotNil(t, vi)
	require.Len(t, vi.Columns, 2)

	v, ok := vi.Cell(0, "variable")
	require.True(t, ok)
	assert.Equal(t, "sepal_len", v)
	imp, ok := vi.Cell(1, "relative_importance")
	require.True(t, ok)
	assert.Equal(t, 30.25, imp)
}

func TestLoadMissingOutputFails(t *testing.T) {
	_, err := Load([]byte(`{"algo": "gbm", "parameters": {}}`))
	assert.Error(t, err)

	_, err = Load([]byte(`not json`))
	assert.Error(t, err)
}

func TestLoadMalformedOptionalTableIsNonFatal(t *testing.T) {
	doc := `{
		"output": {
			"model_category": "Regression",
			"scoring_history": {"name": "broken", "columns": "nope"},
			"variable_importances": [1, 2]
		}
	}`
	m, err := Load([]byte(doc))
	require.NoError(t, err)
	assert.Nil(t, m.ScoringHistory)
	assert.Nil(t, m.FeatureImportances)
	assert.Equal(t, CategoryRegression, m.Category)
}

func TestCurrentMetricsSelection(t *testing.T) {
	load := func(t *testing.T, doc string) *Model {
		t.Helper()
		m, err := Load([]byte(doc))
		require.NoError(t, err)
		return m
	}

	// A configured validation frame selects validation metrics.
	m := load(t, `{
		"parameters": {"validation_frame": {"name": "valid.hex"}},
		"output": {
			"model_category": "Regression",
			"training_metrics": {"MSE": 1.0},
			"validation_metrics": {"MSE": 2.0}
		}
	}`)
	assert.Equal(t, 2.0, m.CurrentMetrics()[MetricMSE])

	// Without a validation frame, nfolds > 1 selects cross-validation metrics
	// even when a validation section happens to be present.
	m = load(t, `{
		"parameters": {"nfolds": 5},
		"output": {
			"model_category": "Regression",
			"training_metrics": {"MSE": 1.0},
			"validation_metrics": {"MSE": 2.0},
			"cross_validation_metrics": {"MSE": 3.0}
		}
	}`)
	assert.False(t, m.HasValidationFrame())
	assert.Equal(t, 5, m.NFolds())
	assert.Equal(t, 3.0, m.CurrentMetrics()[MetricMSE])

	// Neither configured: training metrics.
	m = load(t, `{
		"output": {
			"model_category": "Regression",
			"training_metrics": {"MSE": 1.0}
		}
	}`)
	assert.Equal(t, 1.0, m.CurrentMetrics()[MetricMSE])
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(gbmArtifact), 0o644))

	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "gbm-1a2b", m.UID)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
