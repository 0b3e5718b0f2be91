// Package orchestrator runs research sessions.
//
// A session answers one question through a bounded loop of rounds. Each
// round plans web searches, fetches the pages they surface, keeps the
// relevant parts in the vector store, retrieves evidence, writes an answer
// and asks the oracle whether the answer is good enough. The oracle's
// verdict routes the next round: search again, retrieve again with a new
// rationale, or crawl links found in the evidence. Iterations and crawl
// depth each have a hard ceiling that ends the session regardless of what
// the oracle proposes.
//
// Sessions run their steps sequentially. Only page ingestion fans out, and
// it finishes before retrieval starts.
package orchestrator
