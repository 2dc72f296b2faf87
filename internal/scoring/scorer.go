package scoring

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/exp/slices"

	"github.com/openfathom/hydroml/internal/artifact"
	"github.com/openfathom/hydroml/internal/modelcache"
)

// Frame is the slice of the host engine's column-oriented dataset a
// prediction consumes. The physical table format stays with the host; the
// scorer only reads named numeric cells.
type Frame interface {
	// Names returns the frame's column names.
	Names() []string
	// NumRows returns the number of rows.
	NumRows() int
	// Value returns the numeric cell at (row, column); ok is false for
	// missing cells.
	Value(row int, column string) (float64, bool)
}

// Backend is a scoring-capable cache backend: the in-process engine built
// from one parsed artifact.
type Backend interface {
	modelcache.Backend
	// OutputNames returns the prediction column names this backend emits.
	OutputNames() []string
	// Score produces one prediction row from named features.
	Score(features map[string]float64) ([]float64, error)
}

// Factory constructs a live backend from a parsed model.
type Factory func(m *artifact.Model) (Backend, error)

// ArtifactSource produces the serialized artifact bytes on demand, so the
// artifact is only fetched when construction actually happens.
type ArtifactSource func() ([]byte, error)

// Prediction is the scored output: one value row per frame row, under the
// backend's output column names. The host engine turns this back into native
// table columns.
type Prediction struct {
	Names  []string
	Values [][]float64
}

// Scorer serves predictions on one worker. Every Predict call re-fetches the
// backend from the cache; that refresh is what keeps an in-use backend safe
// from the idle-eviction scan, so handles are never kept across operations.
type Scorer struct {
	cache   *modelcache.Cache
	scopeID string
	factory Factory
}

// NewScorer binds a scorer to this worker's cache, session scope and backend
// factory.
func NewScorer(cache *modelcache.Cache, scopeID string, factory Factory) *Scorer {
	return &Scorer{cache: cache, scopeID: scopeID, factory: factory}
}

// Predict scores every row of frame with the given model, constructing the
// backend on first use. include narrows the feature columns (empty means all
// frame columns); exclude removes columns. A column named in both lists is
// excluded: exclusion wins deterministically, with a logged warning.
func (s *Scorer) Predict(
	ctx context.Context,
	modelUID string,
	source ArtifactSource,
	frame Frame,
	include, exclude []string,
) (*Prediction, error) {
	features := selectColumns(frame.Names(), include, exclude)
	if len(features) == 0 {
		return nil, fmt.Errorf("no feature columns left to score")
	}

	key := modelcache.Key{ScopeID: s.scopeID, ModelUID: modelUID}
	cached, err := s.cache.Get(ctx, key, func(ctx context.Context) (modelcache.Backend, error) {
		raw, err := source()
		if err != nil {
			return nil, fmt.Errorf("fetching artifact: %w", err)
		}
		model, err := artifact.Load(raw)
		if err != nil {
			return nil, err
		}
		return s.factory(model)
	})
	if err != nil {
		return nil, err
	}
	backend, ok := cached.(Backend)
	if !ok {
		return nil, fmt.Errorf("cached backend for %s is not scoring-capable", modelUID)
	}

	pred := &Prediction{
		Names:  backend.OutputNames(),
		Values: make([][]float64, 0, frame.NumRows()),
	}
	for row := 0; row < frame.NumRows(); row++ {
		in := make(map[string]float64, len(features))
		for _, col := range features {
			if v, ok := frame.Value(row, col); ok {
				in[col] = v
			}
		}
		out, err := backend.Score(in)
		if err != nil {
			return nil, fmt.Errorf("scoring row %d with %s: %w", row, modelUID, err)
		}
		pred.Values = append(pred.Values, out)
	}
	return pred, nil
}

// selectColumns resolves the effective feature set. Exclusion wins over
// inclusion when a column appears in both lists; the conflict is logged once
// per column.
func selectColumns(all, include, exclude []string) []string {
	base := all
	if len(include) > 0 {
		base = make([]string, 0, len(include))
		for _, col := range include {
			if slices.Contains(all, col) {
				base = append(base, col)
			}
		}
	}
	out := make([]string, 0, len(base))
	for _, col := range base {
		if slices.Contains(exclude, col) {
			if slices.Contains(include, col) {
				log.Printf("scoring: column %q both included and excluded; exclusion wins", col)
			}
			continue
		}
		out = append(out, col)
	}
	return out
}
