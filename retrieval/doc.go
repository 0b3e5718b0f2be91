// Package retrieval selects evidence for answer generation.
//
// The Ranker asks the oracle to turn an information need into one or more
// store queries, each with a result count. For every query it draws a pool of
// candidates by vector similarity, rescores them with a cross-encoder, sorts
// by score (ties keep store order) and keeps the requested number. Results
// are concatenated in query order; callers remove duplicates.
package retrieval
