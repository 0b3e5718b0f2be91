package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/ingestion"
	"github.com/poiesic/quarry/metrics"
	"github.com/poiesic/quarry/retrieval"
	"github.com/poiesic/quarry/websearch"
)

// RefusalMessage is the only answer given to a question judged harmful.
const RefusalMessage = "The query has been identified as potentially harmful or sensitive. Therefore, no further processing will be done."

// Orchestrator runs research sessions against its collaborators.
// A single Orchestrator may run many sessions concurrently; sessions share
// only the vector store.
type Orchestrator struct {
	oracle   ai.Oracle
	search   websearch.Provider
	pipeline *ingestion.Pipeline
	ranker   *retrieval.Ranker
	budgets  Budgets
	monitor  Monitor
	logger   *slog.Logger
}

// New creates an orchestrator.
func New(
	oracle ai.Oracle,
	search websearch.Provider,
	pipeline *ingestion.Pipeline,
	ranker *retrieval.Ranker,
	opts ...Option,
) (*Orchestrator, error) {
	if oracle == nil {
		return nil, ErrOracleRequired
	}
	if search == nil {
		return nil, ErrSearchProviderRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if ranker == nil {
		return nil, ErrRankerRequired
	}

	o := &Orchestrator{
		oracle:   oracle,
		search:   search,
		pipeline: pipeline,
		ranker:   ranker,
		budgets:  DefaultBudgets(),
		monitor:  &noopMonitor{},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "orchestrator")

	return o, nil
}

// Budgets returns the budgets new sessions start with.
func (o *Orchestrator) Budgets() Budgets {
	return o.budgets
}

// Run answers question. prior is earlier conversation, oldest first; when it
// is non-empty the question is first rewritten into a standalone query.
//
// The returned session is never nil once the question is accepted. Budget
// exhaustion and refusal are reported through Session.Status with a nil
// error; any error ends the session with StatusFailed.
func (o *Orchestrator) Run(ctx context.Context, question string, prior []core.Message) (*Session, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, core.ErrEmptyQuery
	}

	s := newSession(question, o.budgets)
	s.History = append(s.History, prior...)
	logger := o.logger.With("session", s.ID.String())
	logger.Info("session started", "question", question)

	err := o.run(ctx, s, len(prior) > 0, logger)
	if err != nil {
		s.terminate(StatusFailed)
		logger.Error("session failed", "iteration", s.Iteration, "err", err)
	}

	metrics.SessionsTotal.WithLabelValues(s.Status.String()).Inc()
	metrics.SessionRounds.Observe(float64(s.Iteration))
	o.monitor.Finished(s)
	logger.Info("session ended",
		"status", s.Status.String(),
		"iterations", s.Iteration,
		"crawl_depth", s.CrawlDepth,
		"sources", len(s.Sources),
		"visited", len(s.visited),
		"duration", s.EndedAt.Sub(s.StartedAt))

	return s, err
}

func (o *Orchestrator) run(ctx context.Context, s *Session, refine bool, logger *slog.Logger) error {
	state := StateAnalyze
	for state != StateTerminate {
		if err := ctx.Err(); err != nil {
			return err
		}

		metrics.StateTransitions.WithLabelValues(state.String()).Inc()
		o.monitor.StateEntered(s, state)
		logger.Debug("entering state", "state", state.String(), "iteration", s.Iteration)

		var err error
		switch state {
		case StateAnalyze:
			state, err = o.analyze(ctx, s, refine)
		case StatePlan:
			state, err = o.plan(ctx, s)
		case StateSearch:
			state = o.searchWeb(ctx, s, logger)
		case StateExtract:
			state, err = o.extract(ctx, s, logger)
		case StateRetrieve:
			state, err = o.retrieve(ctx, s)
		case StateGenerate:
			state, err = o.generate(ctx, s)
		case StateEvaluate:
			state, err = o.evaluate(ctx, s, logger)
		default:
			return fmt.Errorf("unknown state %s", state)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) analyze(ctx context.Context, s *Session, refine bool) (State, error) {
	if refine {
		history := append(s.History[:len(s.History):len(s.History)], core.Message{Role: core.RoleUser, Content: s.Question})
		refined, err := callOracle(ctx, o, "refine", func(ctx context.Context) (string, error) {
			return o.oracle.RefineQuery(ctx, history)
		})
		if err != nil {
			return 0, err
		}
		if refined = strings.TrimSpace(refined); refined != "" {
			s.Query = refined
		}
	}

	analysis, err := callOracle(ctx, o, "analyze", func(ctx context.Context) (*core.QueryAnalysis, error) {
		return o.oracle.AnalyzeQuery(ctx, s.Query)
	})
	if err != nil {
		return 0, err
	}
	if analysis == nil {
		return 0, &core.OracleError{Op: "analyze", Err: core.ErrMalformedResponse}
	}

	if analysis.IsHarmful {
		s.appendMessage(core.RoleAssistant, RefusalMessage)
		s.Answer = RefusalMessage
		s.terminate(StatusRefused)
		return StateTerminate, nil
	}

	s.appendMessage(core.RoleUser, s.Query)

	targets, err := o.pipeline.Prepare(ctx, analysis.Targets())
	if err != nil {
		return 0, fmt.Errorf("analyze: %w", err)
	}
	s.targets = targets
	return StatePlan, nil
}

func (o *Orchestrator) plan(ctx context.Context, s *Session) (State, error) {
	rationale := ""
	if s.Evaluation != nil {
		rationale = s.Evaluation.Rationale
	}

	planned, err := callOracle(ctx, o, "plan_search", func(ctx context.Context) ([]core.SearchQuery, error) {
		return o.oracle.PlanSearchQueries(ctx, s.Query, s.Queries, rationale)
	})
	if err != nil {
		return 0, err
	}

	added := 0
	for _, q := range planned {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		// Ids are assigned here so they stay unique across rounds.
		s.Queries = append(s.Queries, core.SearchQuery{ID: len(s.Queries) + 1, Text: text})
		added++
	}
	if added == 0 {
		return 0, &core.OracleError{Op: "plan_search", Err: fmt.Errorf("%w: empty search plan", core.ErrMalformedResponse)}
	}
	return StateSearch, nil
}

// searchWeb runs every query not yet executed. Provider failures only lose
// that query's results.
func (o *Orchestrator) searchWeb(ctx context.Context, s *Session, logger *slog.Logger) State {
	for i := range s.Queries {
		q := &s.Queries[i]
		if q.Executed {
			continue
		}
		q.Executed = true

		callCtx, cancel := context.WithTimeout(ctx, s.Budgets.CallTimeout)
		results, err := o.search.Search(callCtx, q.Text)
		cancel()
		if err != nil {
			metrics.SearchCalls.WithLabelValues("error").Inc()
			logger.Warn("search failed", "query", q.Text, "err", err)
			continue
		}
		metrics.SearchCalls.WithLabelValues("success").Inc()

		added := 0
		for _, r := range results {
			if s.addSearchResult(r, q.ID) {
				added++
			}
		}
		logger.Debug("search complete", "query", q.Text, "results", len(results), "new_sources", added)
	}
	return StateExtract
}

func (o *Orchestrator) extract(ctx context.Context, s *Session, logger *slog.Logger) (State, error) {
	queued := make(map[string]struct{})
	permitted := func(url string) bool {
		if _, ok := s.blocked[url]; ok {
			return false
		}
		if o.pipeline.CanFetch(ctx, url) {
			return true
		}
		s.blocked[url] = struct{}{}
		metrics.FetchesTotal.WithLabelValues("blocked").Inc()
		logger.Debug("fetch not permitted", "url", url)
		return false
	}

	var jobs []ingestion.Job
	for _, rec := range s.Sources {
		if len(jobs) >= s.Budgets.FetchCap {
			break
		}
		if rec.QueryID == nil || s.Visited(rec.URL) {
			continue
		}
		if _, ok := queued[rec.URL]; ok {
			continue
		}
		if !permitted(rec.URL) {
			continue
		}
		queued[rec.URL] = struct{}{}
		jobs = append(jobs, ingestion.Job{URL: rec.URL, Metadata: rec.Metadata})
	}
	searched := len(jobs)

	for _, link := range s.relevantList {
		if s.Visited(link) {
			continue
		}
		if _, ok := queued[link]; ok {
			continue
		}
		if !permitted(link) {
			continue
		}
		queued[link] = struct{}{}
		rec := s.addCrawledLink(link)
		jobs = append(jobs, ingestion.Job{URL: link, Metadata: rec.Metadata})
	}
	crawled := len(jobs) - searched
	if crawled > 0 {
		s.CrawlDepth++
	}

	logger.Debug("fetch worklist", "searched", searched, "crawled", crawled, "crawl_depth", s.CrawlDepth)

	outcomes, err := o.pipeline.Run(ctx, s.targets, jobs)
	for _, out := range outcomes {
		if out.URL == "" {
			continue
		}
		s.markAttempted(out.URL, out.Fetched(), out.Status == ingestion.StatusPersisted, out.Reliability)
	}
	s.pruneRelevant()
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	return StateRetrieve, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, s *Session) (State, error) {
	need := retrieval.Need{
		Query:           s.Query,
		ExecutedQueries: s.ExecutedQueries(),
	}
	if s.Evaluation != nil {
		need.Rationale = s.Evaluation.Rationale
	}

	callCtx, cancel := context.WithTimeout(ctx, s.Budgets.CallTimeout)
	defer cancel()
	docs, err := o.ranker.Retrieve(callCtx, need)
	if err != nil {
		var oe *core.OracleError
		if errors.As(err, &oe) {
			return 0, err
		}
		return 0, fmt.Errorf("retrieve: %w", err)
	}

	s.Evidence = s.addRetrieved(docs)
	metrics.DocumentsRetrieved.Add(float64(len(s.Evidence)))
	return StateGenerate, nil
}

func (o *Orchestrator) generate(ctx context.Context, s *Session) (State, error) {
	answer, err := callOracle(ctx, o, "generate", func(ctx context.Context) (*core.Answer, error) {
		return o.oracle.GenerateAnswer(ctx, s.Evidence, s.History)
	})
	if err != nil {
		return 0, err
	}
	if answer == nil {
		return 0, &core.OracleError{Op: "generate", Err: core.ErrMalformedResponse}
	}

	s.Answer = answer.Response
	s.appendMessage(core.RoleAssistant, answer.Response)
	return StateEvaluate, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, s *Session, logger *slog.Logger) (State, error) {
	eval, err := callOracle(ctx, o, "evaluate", func(ctx context.Context) (*core.EvaluationResult, error) {
		return o.oracle.EvaluateAnswer(ctx, s.Evidence, s.History)
	})
	if err != nil {
		return 0, err
	}
	if eval == nil {
		return 0, &core.OracleError{Op: "evaluate", Err: core.ErrMalformedResponse}
	}

	s.Evaluation = eval
	if eval.NextStep != core.StepFinish {
		s.appendMessage(core.RoleUser, fmt.Sprintf("Evaluator: %s\nNext Step: %s", eval.Evaluation, eval.NextStep))
	}
	s.Iteration++
	o.monitor.RoundCompleted(s, eval)
	logger.Info("round evaluated",
		"iteration", s.Iteration,
		"rating", eval.Rating.String(),
		"next_step", eval.NextStep.String(),
		"evidence", len(s.Evidence))

	return o.route(ctx, s, eval, logger)
}

// route picks the state after an evaluation. Finishing wins over the
// budgets; the budgets win over every other proposal.
func (o *Orchestrator) route(ctx context.Context, s *Session, eval *core.EvaluationResult, logger *slog.Logger) (State, error) {
	if eval.NextStep == core.StepFinish {
		s.terminate(StatusFinished)
		return StateTerminate, nil
	}

	if s.Iteration > s.Budgets.MaxIterations || s.CrawlDepth > s.Budgets.MaxCrawlDepth {
		logger.Info("budget exhausted", "iteration", s.Iteration, "crawl_depth", s.CrawlDepth, "proposed", eval.NextStep.String())
		s.terminate(StatusBudgetExhausted)
		return StateTerminate, nil
	}

	switch eval.NextStep {
	case core.StepWebSearch:
		return StatePlan, nil
	case core.StepRetriever:
		return StateRetrieve, nil
	case core.StepCrawlContexts:
		recent := s.recentMessages(2)
		links, err := callOracle(ctx, o, "extract_links", func(ctx context.Context) ([]string, error) {
			return o.oracle.ExtractLinks(ctx, s.Evidence, recent)
		})
		if err != nil {
			return 0, err
		}
		added := s.addRelevantLinks(links)
		logger.Debug("links extracted", "links", len(links), "new", added)
		return StateExtract, nil
	default:
		return 0, &core.OracleError{Op: "evaluate", Err: fmt.Errorf("%w: %s", core.ErrInvalidNextStep, eval.NextStep)}
	}
}

// callOracle runs one oracle call under the session call timeout, records
// its latency and makes sure failures surface as *core.OracleError.
func callOracle[T any](ctx context.Context, o *Orchestrator, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, o.budgets.CallTimeout)
	defer cancel()

	start := time.Now()
	v, err := fn(ctx)
	metrics.ObserveOracle(op, start, err)
	if err != nil {
		var oe *core.OracleError
		if !errors.As(err, &oe) {
			err = &core.OracleError{Op: op, Err: err}
		}
		var zero T
		return zero, err
	}
	return v, nil
}
