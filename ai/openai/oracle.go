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


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Oracle implements ai.Oracle using OpenAI-compatible chat APIs in JSON mode.
type Oracle struct {
	client      llms.Model
	temperature float64
	now         func() time.Time
	logger      *slog.Logger
}

var _ ai.Oracle = (*Oracle)(nil)

// Wire formats of the oracle responses.
type (
	analysisResponse struct {
		QueryParameters struct {
			Keywords []string `json:"keywords"`
			Entities []string `json:"entities"`
		} `json:"query_parameters"`
		SearchComplexity struct {
			ComplexityLevel string `json:"complexity_level"`
			MultiFaceted    bool   `json:"multi_faceted"`
		} `json:"search_complexity"`
		IsHarmful *bool `json:"is_harmful"`
	}

	refineResponse struct {
		RefinedQuery string `json:"refined_query"`
	}

	plannedQuery struct {
		QueryID int    `json:"query_id"`
		Query   string `json:"query"`
	}

	// SearchQueries is sometimes returned as a JSON-encoded string.
	searchPlanResponse struct {
		SearchQueries json.RawMessage `json:"search_queries"`
	}

	dbPlanResponse struct {
		Queries []struct {
			Query    string `json:"query"`
			NResults int    `json:"n_results"`
		} `json:"queries"`
	}

	generationResponse struct {
		Response         string `json:"response_to_user_query"`
		GapsAcknowledged string `json:"gaps_acknowledged"`
	}

	evaluationResponse struct {
		Evaluation string `json:"response_evaluation"`
		Rating     string `json:"response_rating"`
		Rationale  string `json:"action_rationale"`
		NextStep   string `json:"next_step"`
	}

	linksResponse struct {
		URLs []string `json:"urls"`
	}
)

// newOracle is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newOracle(config *ai.Config) (*Oracle, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.OracleHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.OracleModel),
	)
	if err != nil {
		return nil, err
	}

	return newOracleWithModel(client, config.Temperature), nil
}

func newOracleWithModel(client llms.Model, temperature float64) *Oracle {
	return &Oracle{
		client:      client,
		temperature: temperature,
		now:         time.Now,
		logger:      slog.Default().With("component", "openai-oracle"),
	}
}

// NewOracle creates a new oracle using the provided configuration.
//
// Returns ai.Oracle interface to enforce abstraction.
func NewOracle(config *ai.Config) (ai.Oracle, error) {
	return newOracle(config)
}

// AnalyzeQuery extracts search terms from a question and checks it for harm.
func (o *Oracle) AnalyzeQuery(ctx context.Context, query string) (*core.QueryAnalysis, error) {
	const op = "analyze"
	var resp analysisResponse
	err := o.generateJSON(ctx, op, 0,
		[]llms.MessageContent{
			textMessage(llms.ChatMessageTypeSystem, fmt.Sprintf(analysisPrompt, analysisSchema)),
			textMessage(llms.ChatMessageTypeHuman, "## User Query:\n"+query),
		}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.IsHarmful == nil {
		return nil, malformed(op, "is_harmful is missing")
	}

	return &core.QueryAnalysis{
		Keywords:     compact(resp.QueryParameters.Keywords),
		Entities:     compact(resp.QueryParameters.Entities),
		Complexity:   core.ParseComplexity(resp.SearchComplexity.ComplexityLevel),
		MultiFaceted: resp.SearchComplexity.MultiFaceted,
		IsHarmful:    *resp.IsHarmful,
	}, nil
}

// RefineQuery turns the last user message into a standalone question.
func (o *Oracle) RefineQuery(ctx context.Context, history []core.Message) (string, error) {
	const op = "refine"
	content := []llms.MessageContent{
		textMessage(llms.ChatMessageTypeSystem, fmt.Sprintf(refinePrompt, refineSchema)),
	}
	content = append(content, historyMessages(history)...)

	var resp refineResponse
	if err := o.generateJSON(ctx, op, 0, content, &resp); err != nil {
		return "", err
	}
	refined := strings.TrimSpace(resp.RefinedQuery)
	if refined == "" {
		return "", malformed(op, "refined_query is empty")
	}
	return refined, nil
}

// PlanSearchQueries proposes web search queries for the next round.
func (o *Oracle) PlanSearchQueries(ctx context.Context, query string, prior []core.SearchQuery, rationale string) ([]core.SearchQuery, error) {
	const op = "plan_search"
	var resp searchPlanResponse
	err := o.generateJSON(ctx, op, 0,
		[]llms.MessageContent{
			textMessage(llms.ChatMessageTypeSystem, buildSearchPlanPrompt(o.now())),
			textMessage(llms.ChatMessageTypeHuman, buildSearchPlanRequest(query, prior, rationale)),
		}, &resp)
	if err != nil {
		return nil, err
	}

	planned, err := decodePlannedQueries(resp.SearchQueries)
	if err != nil {
		return nil, &core.OracleError{Op: op, Err: fmt.Errorf("%w: %w", core.ErrMalformedResponse, err)}
	}

	queries := make([]core.SearchQuery, 0, len(planned))
	for _, p := range planned {
		text := strings.TrimSpace(p.Query)
		if text == "" {
			continue
		}
		queries = append(queries, core.SearchQuery{ID: p.QueryID, Text: text})
	}
	if len(queries) == 0 {
		return nil, malformed(op, "no search queries planned")
	}

	o.logger.Debug("planned search queries", "count", len(queries), "has_rationale", rationale != "")
	return queries, nil
}

// decodePlannedQueries accepts the query list either inline or JSON-encoded as a string.
func decodePlannedQueries(raw json.RawMessage) ([]plannedQuery, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("search_queries is missing")
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(cleanJSON(encoded))
	}
	var planned []plannedQuery
	if err := json.Unmarshal(raw, &planned); err != nil {
		return nil, err
	}
	return planned, nil
}

// GenerateAnswer answers the question from the evidence and conversation.
func (o *Oracle) GenerateAnswer(ctx context.Context, evidence []core.RetrievedDocument, history []core.Message) (*core.Answer, error) {
	const op = "generate"
	content := []llms.MessageContent{
		textMessage(llms.ChatMessageTypeSystem, fmt.Sprintf(generationPrompt, generationSchema)),
		textMessage(llms.ChatMessageTypeSystem, "## Retrieved Contexts:\n"+formatEvidence(evidence)),
	}
	content = append(content, historyMessages(history)...)

	var resp generationResponse
	if err := o.generateJSON(ctx, op, o.temperature, content, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, malformed(op, "response_to_user_query is empty")
	}
	return &core.Answer{
		Response:         resp.Response,
		GapsAcknowledged: resp.GapsAcknowledged,
	}, nil
}

// EvaluateAnswer rates the latest answer and proposes the next step.
func (o *Oracle) EvaluateAnswer(ctx context.Context, evidence []core.RetrievedDocument, history []core.Message) (*core.EvaluationResult, error) {
	const op = "evaluate"
	content := []llms.MessageContent{
		textMessage(llms.ChatMessageTypeSystem, fmt.Sprintf(evaluationPrompt, evaluationSchema)),
		textMessage(llms.ChatMessageTypeSystem, "## Retrieved Contexts:\n"+formatEvidence(evidence)),
	}
	content = append(content, historyMessages(history)...)

	var resp evaluationResponse
	if err := o.generateJSON(ctx, op, 0, content, &resp); err != nil {
		return nil, err
	}

	rating, err := core.ParseRating(resp.Rating)
	if err != nil {
		return nil, &core.OracleError{Op: op, Err: err}
	}
	step, err := core.ParseNextStep(resp.NextStep)
	if err != nil {
		return nil, &core.OracleError{Op: op, Err: err}
	}

	return &core.EvaluationResult{
		Evaluation: resp.Evaluation,
		Rating:     rating,
		Rationale:  resp.Rationale,
		NextStep:   step,
	}, nil
}

// ExtractLinks lists URLs from the evidence worth crawling next.
// URLs that are not absolute http(s) links are dropped.
func (o *Oracle) ExtractLinks(ctx context.Context, evidence []core.RetrievedDocument, recent []core.Message) ([]string, error) {
	const op = "extract_links"
	content := []llms.MessageContent{
		textMessage(llms.ChatMessageTypeSystem, fmt.Sprintf(linksPrompt, linksSchema)),
		textMessage(llms.ChatMessageTypeHuman, "## Contexts:\n"+formatEvidence(evidence)),
	}
	content = append(content, historyMessages(recent)...)

	var resp linksResponse
	if err := o.generateJSON(ctx, op, 0, content, &resp); err != nil {
		return nil, err
	}

	links := make([]string, 0, len(resp.URLs))
	for _, raw := range resp.URLs {
		u, err := core.NormalizeURL(raw)
		if err != nil {
			o.logger.Debug("dropping extracted link", "url", raw, "err", err)
			continue
		}
		links = append(links, u)
	}
	return links, nil
}

// PlanDBQueries turns an information need into store queries.
// Result counts are clamped to the allowed range.
func (o *Oracle) PlanDBQueries(ctx context.Context, need string) ([]core.DBQuery, error) {
	const op = "plan_db"
	var resp dbPlanResponse
	err := o.generateJSON(ctx, op, 0,
		[]llms.MessageContent{
			textMessage(llms.ChatMessageTypeSystem, fmt.Sprintf(dbPlanPrompt, dbPlanSchema)),
			textMessage(llms.ChatMessageTypeHuman, need),
		}, &resp)
	if err != nil {
		return nil, err
	}

	queries := make([]core.DBQuery, 0, len(resp.Queries))
	for _, q := range resp.Queries {
		text := strings.TrimSpace(q.Query)
		if text == "" {
			continue
		}
		queries = append(queries, core.DBQuery{Query: text, ResultCount: core.ClampResultCount(q.NResults)})
	}
	if len(queries) == 0 {
		return nil, malformed(op, "no database queries planned")
	}
	return queries, nil
}

// generateJSON sends content to the model in JSON mode and decodes the reply into out.
// A single attempt is made; parse failures are reported as core.ErrMalformedResponse.
func (o *Oracle) generateJSON(ctx context.Context, op string, temperature float64, content []llms.MessageContent, out any) error {
	start := time.Now()
	response, err := o.client.GenerateContent(ctx, content, llms.WithTemperature(temperature), llms.WithJSONMode())
	if err != nil {
		o.logger.Error("failed to generate content", "op", op, "err", err)
		return &core.OracleError{Op: op, Err: err}
	}
	o.logger.Debug("oracle call complete", "op", op, "elapsed", time.Since(start))

	if len(response.Choices) < 1 {
		return malformed(op, "no choices returned from model")
	}

	responseText := cleanJSON(response.Choices[0].Content)
	if err := json.Unmarshal([]byte(responseText), out); err != nil {
		o.logger.Warn("error parsing oracle response",
			"op", op,
			"response", responseText,
			"err", err)
		return &core.OracleError{Op: op, Err: fmt.Errorf("%w: %w", core.ErrMalformedResponse, err)}
	}
	return nil
}

func malformed(op, reason string) error {
	return &core.OracleError{Op: op, Err: fmt.Errorf("%w: %s", core.ErrMalformedResponse, reason)}
}

func textMessage(role llms.ChatMessageType, text string) llms.MessageContent {
	return llms.MessageContent{
		Role:  role,
		Parts: []llms.ContentPart{llms.TextPart(text)},
	}
}

func historyMessages(history []core.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Role == core.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, textMessage(role, m.Content))
	}
	return content
}

// compact trims terms and drops empty ones.
func compact(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
