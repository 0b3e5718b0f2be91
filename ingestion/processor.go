// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"errors"
	"maps"
	"strconv"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/fetch"
	"github.com/poiesic/quarry/metrics"
	"github.com/poiesic/quarry/relevance"
)

// Job is one URL to ingest with the metadata its discoverer attached.
type Job struct {
	URL      string
	Metadata map[string]string
}

// Status is the result of ingesting one page.
type Status int

const (
	// StatusPersisted means relevant chunks were stored.
	StatusPersisted Status = iota + 1
	// StatusRejected means the page had no relevant content.
	StatusRejected
	// StatusEmpty means the page had no text.
	StatusEmpty
	// StatusFailed means the page could not be fetched or stored.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPersisted:
		return "persisted"
	case StatusRejected:
		return "rejected"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome reports what happened to one job.
type Outcome struct {
	URL         string
	Status      Status
	Chunks      int
	Reliability float64
	Err         error
}

// Fetched reports whether page content was retrieved.
func (o Outcome) Fetched() bool {
	return o.Status == StatusPersisted || o.Status == StatusRejected
}

// processPage fetches one page and persists its relevant content.
// The returned error is set only for failures that must stop the session;
// fetch failures and per-call timeouts are recorded in the outcome.
func (p *Pipeline) processPage(ctx context.Context, targets *relevance.Targets, job Job) (Outcome, error) {
	out := Outcome{URL: job.URL, Reliability: fetch.Reliability(job.URL)}

	fetchCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	page, err := p.fetcher.Fetch(fetchCtx, job.URL)
	cancel()
	if err != nil {
		if errors.Is(err, core.ErrEmptyContent) {
			out.Status = StatusEmpty
		} else {
			out.Status = StatusFailed
			out.Err = err
		}
		p.logger.Debug("skipping page", "url", job.URL, "err", err)
		metrics.FetchesTotal.WithLabelValues(out.Status.String()).Inc()
		return out, nil
	}

	page.Metadata = mergeMetadata(job, page, out.Reliability)

	persistCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	n, err := p.filter.FilterAndPersist(persistCtx, targets, page, p.store)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		metrics.FetchesTotal.WithLabelValues(out.Status.String()).Inc()
		// Running out of the call timeout loses this page only. Store
		// failures and cancellation of the session still stop the round.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			p.logger.Warn("page timed out while persisting", "url", job.URL, "timeout", p.callTimeout)
			return out, nil
		}
		return out, err
	}

	out.Chunks = n
	out.Status = StatusRejected
	if n > 0 {
		out.Status = StatusPersisted
		metrics.ChunksPersisted.Add(float64(n))
	}
	metrics.FetchesTotal.WithLabelValues(out.Status.String()).Inc()
	return out, nil
}

// mergeMetadata layers job metadata over what the fetcher found and records
// the link and reliability.
func mergeMetadata(job Job, page *core.Page, reliability float64) map[string]string {
	meta := maps.Clone(page.Metadata)
	if meta == nil {
		meta = make(map[string]string)
	}
	for k, v := range job.Metadata {
		if v != "" {
			meta[k] = v
		}
	}
	meta[core.MetaLink] = job.URL
	meta[core.MetaReliability] = strconv.FormatFloat(reliability, 'f', -1, 64)
	return meta
}
