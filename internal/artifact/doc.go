// Package artifact parses serialized model artifacts into a
// backend-constructible form plus descriptive metadata.
//
// # Overview
//
// A model artifact is a self-describing JSON document produced by the
// external ML service. The loader is agnostic to how the document was
// obtained; its only bit-exact contract is the document's field names
// (output, parameters, training_metrics, model_category, column_types, ...)
// and the metric-name canonicalization rule.
//
// Extraction produces:
//
//   - the algorithm identity and model category (closed enumeration),
//   - three metric maps (training / validation / cross-validation) keyed by
//     canonical metric names (matching strips underscores and ignores case,
//     unmatched fields are dropped,
//   - a flattened training-parameter string map,
//   - the feature-name→declared-type map,
//   - optional typed tables (scoring history, feature importances).
//
// # Failure model
//
// A document without a parseable output section fails the load. Optional
// table sections never do: a malformed table is logged and returned absent,
// and the rest of the load proceeds.
package artifact
