// Package scoring joins the model cache and the artifact loader into the
// per-worker prediction path.
//
// A Scorer holds no backend handles of its own: each Predict operation
// re-fetches its backend from the cache, which both enforces the
// single-construction guarantee and refreshes the entry's idle clock so the
// cleanup task never evicts a backend out from under an in-flight score.
//
// The host engine's table format stays opaque: predictions read through the
// narrow Frame interface and return plain value rows for the host to fold
// back into its native representation.
package scoring
