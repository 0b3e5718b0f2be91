// Package ingestion provides the fetch, filter and persist pipeline for web pages.
//
// The Pipeline type fetches a batch of URLs concurrently on a worker pool,
// converts each page to markdown, keeps the heading groups the relevance
// filter accepts and inserts them into the vector store. Every page carries
// its source reliability score into the stored metadata.
//
// Fetch failures and empty pages are reported per page and never fail the
// batch. Failures to embed or store accepted content are returned once every
// page in the batch has finished.
package ingestion
