package artifact

import "strings"

// Category classifies a model by the shape of its predictions. The set is
// closed: anything the document reports outside it maps to CategoryOther.
type Category int

const (
	CategoryOther Category = iota
	CategoryBinomial
	CategoryMultinomial
	CategoryRegression
	CategoryOrdinal
	CategoryClustering
)

// CategoryFromString maps the document's model_category field onto the
// enumeration, case-insensitively.
func CategoryFromString(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binomial":
		return CategoryBinomial
	case "multinomial":
		return CategoryMultinomial
	case "regression":
		return CategoryRegression
	case "ordinal":
		return CategoryOrdinal
	case "clustering":
		return CategoryClustering
	default:
		return CategoryOther
	}
}

// String returns the canonical category name.
func (c Category) String() string {
	switch c {
	case CategoryBinomial:
		return "Binomial"
	case CategoryMultinomial:
		return "Multinomial"
	case CategoryRegression:
		return "Regression"
	case CategoryOrdinal:
		return "Ordinal"
	case CategoryClustering:
		return "Clustering"
	default:
		return "Other"
	}
}

// SupportsContributions reports whether per-feature contribution output is
// available for models of this category. Capability is a property of the
// category tag, not of any runtime type.
func SupportsContributions(c Category) bool {
	return c == CategoryBinomial || c == CategoryRegression
}

// SupportsLeafAssignment reports whether tree leaf-assignment output is
// available for models of this category.
func SupportsLeafAssignment(c Category) bool {
	switch c {
	case CategoryBinomial, CategoryMultinomial, CategoryRegression:
		return true
	default:
		return false
	}
}
