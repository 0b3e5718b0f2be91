// Package reembed rewrites the vectors of every stored chunk with the
// currently configured embedding model.
//
// Chunks are read in key order with a cursor, embedded in batches with retry
// and exponential backoff, normalized for cosine similarity and written
// back. Chunk text and metadata are never changed, so a run can be
// interrupted and repeated safely.
package reembed
