package orchestrator

import (
	"maps"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/relevance"
	"github.com/poiesic/quarry/websearch"
)

// Session is the state of one research run. It is owned by a single Run call
// and is safe to read once Run returns.
type Session struct {
	ID uuid.UUID
	// Question is the question as asked. Query is the standalone form used
	// for searching, which differs only when prior conversation was refined.
	Question string
	Query    string

	Iteration  int
	CrawlDepth int
	Budgets    Budgets

	History []core.Message
	Queries []core.SearchQuery
	Sources []*core.SourceRecord

	// Retrieved is every distinct document retrieved so far. Evidence is the
	// part of it that was new in the latest round.
	Retrieved []core.RetrievedDocument
	Evidence  []core.RetrievedDocument

	Answer     string
	Evaluation *core.EvaluationResult
	Status     Status
	StartedAt  time.Time
	EndedAt    time.Time

	targets      *relevance.Targets
	sourceIndex  map[string]*core.SourceRecord
	visited      map[string]struct{}
	blocked      map[string]struct{}
	relevant     map[string]struct{}
	relevantList []string
	retrievedIDs map[core.ID]struct{}
}

func newSession(question string, budgets Budgets) *Session {
	return &Session{
		ID:           uuid.New(),
		Question:     question,
		Query:        question,
		Budgets:      budgets,
		Status:       StatusRunning,
		StartedAt:    time.Now().UTC(),
		sourceIndex:  make(map[string]*core.SourceRecord),
		visited:      make(map[string]struct{}),
		blocked:      make(map[string]struct{}),
		relevant:     make(map[string]struct{}),
		retrievedIDs: make(map[core.ID]struct{}),
	}
}

// Done reports whether the session has terminated.
func (s *Session) Done() bool {
	return s.Status != StatusRunning
}

// Visited reports whether url has been attempted in this session.
func (s *Session) Visited(url string) bool {
	_, ok := s.visited[url]
	return ok
}

// VisitedCount returns the number of attempted URLs.
func (s *Session) VisitedCount() int {
	return len(s.visited)
}

// Source returns the record for url, or nil when it was never discovered.
func (s *Session) Source(url string) *core.SourceRecord {
	return s.sourceIndex[url]
}

// ExecutedQueries returns the text of every executed search query in plan order.
func (s *Session) ExecutedQueries() []string {
	var out []string
	for _, q := range s.Queries {
		if q.Executed {
			out = append(out, q.Text)
		}
	}
	return out
}

func (s *Session) appendMessage(role core.Role, content string) {
	s.History = append(s.History, core.Message{Role: role, Content: content})
}

// recentMessages returns up to the last n history messages.
func (s *Session) recentMessages(n int) []core.Message {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// addSearchResult records a search result under the query that found it.
// A link already known keeps its first record.
func (s *Session) addSearchResult(r websearch.Result, queryID int) bool {
	if r.Link == "" {
		return false
	}
	if _, ok := s.sourceIndex[r.Link]; ok {
		return false
	}

	id := queryID
	rec := &core.SourceRecord{
		URL:     r.Link,
		QueryID: &id,
		Metadata: map[string]string{
			core.MetaSource:  r.Source,
			core.MetaLink:    r.Link,
			core.MetaTitle:   r.Title,
			core.MetaDate:    r.Date,
			core.MetaSnippet: r.Snippet,
			core.MetaQueryID: strconv.Itoa(queryID),
		},
	}
	s.sourceIndex[r.Link] = rec
	s.Sources = append(s.Sources, rec)
	return true
}

// addCrawledLink records a link found while crawling evidence.
func (s *Session) addCrawledLink(url string) *core.SourceRecord {
	if rec, ok := s.sourceIndex[url]; ok {
		return rec
	}
	rec := &core.SourceRecord{
		URL:      url,
		Metadata: map[string]string{core.MetaLink: url},
	}
	s.sourceIndex[url] = rec
	s.Sources = append(s.Sources, rec)
	return rec
}

// addRelevantLinks adds links worth crawling. Visited links are ignored.
func (s *Session) addRelevantLinks(links []string) int {
	added := 0
	for _, link := range links {
		if _, ok := s.visited[link]; ok {
			continue
		}
		if _, ok := s.relevant[link]; ok {
			continue
		}
		s.relevant[link] = struct{}{}
		s.relevantList = append(s.relevantList, link)
		added++
	}
	return added
}

// pruneRelevant drops visited links from the relevant set.
func (s *Session) pruneRelevant() {
	kept := s.relevantList[:0]
	for _, link := range s.relevantList {
		if _, ok := s.visited[link]; ok {
			delete(s.relevant, link)
			continue
		}
		kept = append(kept, link)
	}
	s.relevantList = kept
}

// markAttempted records the result of a fetch attempt. Reliability is set
// once, on the first attempt; the fetched and persisted flags only latch on.
func (s *Session) markAttempted(url string, fetched, persisted bool, reliability float64) {
	_, seen := s.visited[url]
	s.visited[url] = struct{}{}

	rec, ok := s.sourceIndex[url]
	if !ok {
		return
	}
	if !seen {
		rec.Reliability = reliability
	}
	rec.Fetched = rec.Fetched || fetched
	rec.Persisted = rec.Persisted || persisted
}

// addRetrieved appends documents not seen before and returns them.
func (s *Session) addRetrieved(docs []core.RetrievedDocument) []core.RetrievedDocument {
	var fresh []core.RetrievedDocument
	for _, doc := range docs {
		id := doc.ContentID()
		if _, ok := s.retrievedIDs[id]; ok {
			continue
		}
		s.retrievedIDs[id] = struct{}{}
		doc.Metadata = maps.Clone(doc.Metadata)
		fresh = append(fresh, doc)
	}
	s.Retrieved = append(s.Retrieved, fresh...)
	return fresh
}

func (s *Session) terminate(status Status) {
	s.Status = status
	s.EndedAt = time.Now().UTC()
}
