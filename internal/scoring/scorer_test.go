package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfathom/hydroml/internal/artifact"
	"github.com/openfathom/hydroml/internal/modelcache"
)

// sliceFrame is a column-oriented in-memory frame for tests.
type sliceFrame struct {
	names   []string
	columns map[string][]float64
	rows    int
}

func (f *sliceFrame) Names() []string { return f.names }
func (f *sliceFrame) NumRows() int    { return f.rows }
func (f *sliceFrame) Value(row int, column string) (float64, bool) {
	col, ok := f.columns[column]
	if !ok || row >= len(col) {
		return 0, false
	}
	return col[row], true
}

// sumBackend predicts the sum of its input features and records every feature
// map it scored.
type sumBackend struct {
	mu     sync.Mutex
	scored []map[string]float64
	closed bool
}

func (b *sumBackend) OutputNames() []string { return []string{"predict"} }

func (b *sumBackend) Score(features map[string]float64) ([]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scored = append(b.scored, features)
	var sum float64
	for _, v := range features {
		sum += v
	}
	return []float64{sum}, nil
}

func (b *sumBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

const minimalArtifact = `{
	"algo": "gbm",
	"model_id": {"name": "gbm-1"},
	"output": {"model_category": "Regression"}
}`

func staticSource(doc string) ArtifactSource {
	return func() ([]byte, error) { return []byte(doc), nil }
}

func testFrame() *sliceFrame {
	return &sliceFrame{
		names: []string{"a", "b", "target"},
		columns: map[string][]float64{
			"a":      {1, 10},
			"b":      {2, 20},
			"target": {100, 200},
		},
		rows: 2,
	}
}

func TestPredictShape(t *testing.T) {
	backend := &sumBackend{}
	var constructions int
	factory := func(m *artifact.Model) (Backend, error) {
		constructions++
		assert.Equal(t, "gbm-1", m.UID)
		return backend, nil
	}
	s := NewScorer(modelcache.New(), "scope-1", factory)

	pred, err := s.Predict(context.Background(), "gbm-1", staticSource(minimalArtifact),
		testFrame(), nil, []string{"target"})
	require.NoError(t, err)

	assert.Equal(t, []string{"predict"}, pred.Names)
	require.Len(t, pred.Values, 2)
	assert.Equal(t, []float64{3}, pred.Values[0])
	assert.Equal(t, []float64{30}, pred.Values[1])
	assert.Equal(t, 1, constructions)
}

func TestPredictReusesBackendAcrossCalls(t *testing.T) {
	var constructions int
	factory := func(m *artifact.Model) (Backend, error) {
		constructions++
		return &sumBackend{}, nil
	}
	s := NewScorer(modelcache.New(), "scope-1", factory)

	for i := 0; i < 3; i++ {
		_, err := s.Predict(context.Background(), "gbm-1", staticSource(minimalArtifact),
			testFrame(), nil, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, constructions, "backend constructed once, reused afterward")
}

func TestPredictExclusionWinsOverInclusion(t *testing.T) {
	backend := &sumBackend{}
	s := NewScorer(modelcache.New(), "scope-1",
		func(m *artifact.Model) (Backend, error) { return backend, nil })

	_, err := s.Predict(context.Background(), "gbm-1", staticSource(minimalArtifact),
		testFrame(), []string{"a", "b"}, []string{"b"})
	require.NoError(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.NotEmpty(t, backend.scored)
	for _, features := range backend.scored {
		_, has := features["b"]
		assert.False(t, has, "excluded column must never reach the backend")
		_, has = features["a"]
		assert.True(t, has)
	}
}

func TestPredictInclusionNarrowsFeatures(t *testing.T) {
	backend := &sumBackend{}
	s := NewScorer(modelcache.New(), "scope-1",
		func(m *artifact.Model) (Backend, error) { return backend, nil })

	_, err := s.Predict(context.Background(), "gbm-1", staticSource(minimalArtifact),
		testFrame(), []string{"a", "no_such_column"}, nil)
	require.NoError(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	for _, features := range backend.scored {
		assert.Len(t, features, 1)
		_, has := features["a"]
		assert.True(t, has)
	}
}

func TestPredictNoColumnsLeft(t *testing.T) {
	s := NewScorer(modelcache.New(), "scope-1",
		func(m *artifact.Model) (Backend, error) { return &sumBackend{}, nil })

	_, err := s.Predict(context.Background(), "gbm-1", staticSource(minimalArtifact),
		testFrame(), nil, []string{"a", "b", "target"})
	assert.Error(t, err)
}

func TestPredictFactoryFailure(t *testing.T) {
	cache := modelcache.New()
	s := NewScorer(cache, "scope-1",
		func(m *artifact.Model) (Backend, error) { return nil, errors.New("engine rejected model") })

	_, err := s.Predict(context.Background(), "gbm-1", staticSource(minimalArtifact),
		testFrame(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, modelcache.ErrBackendConstruction)
	assert.Zero(t, cache.Len(), "failed construction is not cached")
}

func TestPredictBadArtifact(t *testing.T) {
	s := NewScorer(modelcache.New(), "scope-1",
		func(m *artifact.Model) (Backend, error) { return &sumBackend{}, nil })

	_, err := s.Predict(context.Background(), "gbm-1", staticSource(`{"algo": "gbm"}`),
		testFrame(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, modelcache.ErrBackendConstruction)
}

func TestPredictSourceFailure(t *testing.T) {
	s := NewScorer(modelcache.New(), "scope-1",
		func(m *artifact.Model) (Backend, error) { return &sumBackend{}, nil })

	failing := func() ([]byte, error) { return nil, errors.New("artifact store unreachable") }
	_, err := s.Predict(context.Background(), "gbm-1", failing, testFrame(), nil, nil)
	assert.Error(t, err)
}

func TestSelectColumns(t *testing.T) {
	all := []string{"a", "b", "c"}

	assert.Equal(t, all, selectColumns(all, nil, nil))
	assert.Equal(t, []string{"b"}, selectColumns(all, []string{"b"}, nil))
	assert.Equal(t, []string{"a", "c"}, selectColumns(all, nil, []string{"b"}))
	assert.Equal(t, []string{"a"}, selectColumns(all, []string{"a", "b"}, []string{"b"}))
	assert.Empty(t, selectColumns(all, []string{"nope"}, nil))
}
