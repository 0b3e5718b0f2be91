package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel replays canned completions and records the prompts it saw.
type fakeModel struct {
	responses []string
	err       error
	calls     [][]llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &llms.ContentResponse{}, nil
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: r}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func newTestOracle(responses ...string) (*Oracle, *fakeModel) {
	model := &fakeModel{responses: responses}
	o := newOracleWithModel(model, 0.2)
	o.now = func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) }
	return o, model
}

func promptText(t *testing.T, msg llms.MessageContent) string {
	t.Helper()
	require.NotEmpty(t, msg.Parts)
	part, ok := msg.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestOracle_AnalyzeQuery(t *testing.T) {
	o, model := newTestOracle("```json\n" + `{
		"query_parameters": {"keywords": ["latest season", " "], "entities": ["Stranger Things"]},
		"search_complexity": {"complexity_level": "Simple", "multi_faceted": false},
		"is_harmful": false
	}` + "\n```")

	analysis, err := o.AnalyzeQuery(context.Background(), "Stranger Things latest season")
	require.NoError(t, err)

	assert.Equal(t, []string{"latest season"}, analysis.Keywords)
	assert.Equal(t, []string{"Stranger Things"}, analysis.Entities)
	assert.Equal(t, core.ComplexitySimple, analysis.Complexity)
	assert.False(t, analysis.IsHarmful)

	require.Len(t, model.calls, 1)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.calls[0][0].Role)
	assert.Contains(t, promptText(t, model.calls[0][1]), "Stranger Things latest season")
}

func TestOracle_AnalyzeQuery_MissingHarmFlag(t *testing.T) {
	o, _ := newTestOracle(`{"query_parameters": {"keywords": [], "entities": []}, "search_complexity": {"complexity_level": "Simple", "multi_faceted": false}}`)

	_, err := o.AnalyzeQuery(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedResponse)

	var oe *core.OracleError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "analyze", oe.Op)
}

func TestOracle_MalformedJSON(t *testing.T) {
	o, _ := newTestOracle("I think the answer is finish.")

	_, err := o.EvaluateAnswer(context.Background(), nil, nil)
	assert.ErrorIs(t, err, core.ErrMalformedResponse)
}

func TestOracle_NoChoices(t *testing.T) {
	o, _ := newTestOracle()

	_, err := o.RefineQuery(context.Background(), []core.Message{{Role: core.RoleUser, Content: "and the next one?"}})
	assert.ErrorIs(t, err, core.ErrMalformedResponse)
}

func TestOracle_TransportError(t *testing.T) {
	o, model := newTestOracle()
	model.err = errors.New("connection refused")

	_, err := o.PlanDBQueries(context.Background(), "need")
	require.Error(t, err)

	var oe *core.OracleError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "plan_db", oe.Op)
	assert.NotErrorIs(t, err, core.ErrMalformedResponse)
}

func TestOracle_RefineQuery(t *testing.T) {
	o, model := newTestOracle(`{"refined_query": "Release date of Stranger Things season 5"}`)

	history := []core.Message{
		{Role: core.RoleUser, Content: "Tell me about Stranger Things"},
		{Role: core.RoleAssistant, Content: "It is a Netflix series."},
		{Role: core.RoleUser, Content: "When does the new season come out?"},
	}
	refined, err := o.RefineQuery(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "Release date of Stranger Things season 5", refined)

	require.Len(t, model.calls[0], 4)
	assert.Equal(t, llms.ChatMessageTypeAI, model.calls[0][2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.calls[0][3].Role)
}

func TestOracle_PlanSearchQueries(t *testing.T) {
	t.Run("inline list", func(t *testing.T) {
		o, model := newTestOracle(`{"search_queries": [{"query_id": 1, "query": "Stranger Things season 5 release date"}, {"query_id": 2, "query": "  "}]}`)

		prior := []core.SearchQuery{{ID: 1, Text: "Stranger Things", Executed: true}}
		queries, err := o.PlanSearchQueries(context.Background(), "Stranger Things latest season", prior, "release date is missing")
		require.NoError(t, err)
		require.Len(t, queries, 1)
		assert.Equal(t, core.SearchQuery{ID: 1, Text: "Stranger Things season 5 release date"}, queries[0])

		system := promptText(t, model.calls[0][0])
		assert.Contains(t, system, "2025-07-01 12:00:00")
		request := promptText(t, model.calls[0][1])
		assert.Contains(t, request, "1. Stranger Things")
		assert.Contains(t, request, "release date is missing")
	})

	t.Run("string encoded list", func(t *testing.T) {
		o, _ := newTestOracle(`{"search_queries": "[{\"query_id\": 3, \"query\": \"Hawkins filming locations\"}]"}`)

		queries, err := o.PlanSearchQueries(context.Background(), "q", nil, "")
		require.NoError(t, err)
		require.Len(t, queries, 1)
		assert.Equal(t, 3, queries[0].ID)
		assert.Equal(t, "Hawkins filming locations", queries[0].Text)
	})

	t.Run("empty plan is malformed", func(t *testing.T) {
		o, _ := newTestOracle(`{"search_queries": []}`)

		_, err := o.PlanSearchQueries(context.Background(), "q", nil, "")
		assert.ErrorIs(t, err, core.ErrMalformedResponse)
	})

	t.Run("missing plan is malformed", func(t *testing.T) {
		o, _ := newTestOracle(`{}`)

		_, err := o.PlanSearchQueries(context.Background(), "q", nil, "")
		assert.ErrorIs(t, err, core.ErrMalformedResponse)
	})
}

func TestOracle_GenerateAnswer(t *testing.T) {
	o, model := newTestOracle(`{"response_to_user_query": "Season 5 premiered in November 2025.", "gaps_acknowledged": "none"}`)

	evidence := []core.RetrievedDocument{{
		Text: "Season 5 premieres November 26, 2025.",
		Metadata: map[string]string{
			core.MetaSource:      "Netflix",
			core.MetaLink:        "https://about.netflix.com/st5",
			core.MetaReliability: "0.9",
		},
	}}
	answer, err := o.GenerateAnswer(context.Background(), evidence, []core.Message{{Role: core.RoleUser, Content: "latest season?"}})
	require.NoError(t, err)
	assert.Equal(t, "Season 5 premiered in November 2025.", answer.Response)
	assert.Equal(t, "none", answer.GapsAcknowledged)

	contexts := promptText(t, model.calls[0][1])
	assert.Contains(t, contexts, "Text:\nSeason 5 premieres November 26, 2025.")
	assert.Contains(t, contexts, "Source: Netflix")
	assert.Contains(t, contexts, "URL: https://about.netflix.com/st5")
	assert.Contains(t, contexts, "Source Reliability: 0.90")
}

func TestOracle_GenerateAnswer_Empty(t *testing.T) {
	o, _ := newTestOracle(`{"response_to_user_query": "", "gaps_acknowledged": ""}`)

	_, err := o.GenerateAnswer(context.Background(), nil, nil)
	assert.ErrorIs(t, err, core.ErrMalformedResponse)
}

func TestOracle_EvaluateAnswer(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		wantStep   core.NextStep
		wantRating core.Rating
		wantErr    error
	}{
		{
			name:       "finish",
			response:   `{"response_evaluation": "complete", "response_rating": "satisfactory", "action_rationale": "", "next_step": "finish"}`,
			wantStep:   core.StepFinish,
			wantRating: core.RatingSatisfactory,
		},
		{
			name:       "spaced rating",
			response:   `{"response_evaluation": "wrong", "response_rating": "highly unsatisfactory", "action_rationale": "dates missing", "next_step": "crawl_contexts"}`,
			wantStep:   core.StepCrawlContexts,
			wantRating: core.RatingHighlyUnsatisfactory,
		},
		{
			name:     "unknown step",
			response: `{"response_evaluation": "x", "response_rating": "satisfactory", "action_rationale": "", "next_step": "ask_user"}`,
			wantErr:  core.ErrInvalidNextStep,
		},
		{
			name:     "unknown rating",
			response: `{"response_evaluation": "x", "response_rating": "great", "action_rationale": "", "next_step": "finish"}`,
			wantErr:  core.ErrInvalidRating,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := newTestOracle(tt.response)

			result, err := o.EvaluateAnswer(context.Background(), nil, nil)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var oe *core.OracleError
				assert.ErrorAs(t, err, &oe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStep, result.NextStep)
			assert.Equal(t, tt.wantRating, result.Rating)
		})
	}
}

func TestOracle_ExtractLinks(t *testing.T) {
	o, _ := newTestOracle(`{"urls": ["https://example.com/cast#top", "not a url", "ftp://files.example.com/x", "http://example.org/episodes"]}`)

	links, err := o.ExtractLinks(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/cast", "http://example.org/episodes"}, links)
}

func TestOracle_PlanDBQueries(t *testing.T) {
	o, _ := newTestOracle(`{"queries": [{"query": "season 5 release date", "n_results": 50}, {"query": "cast list", "n_results": 0}, {"query": "", "n_results": 3}]}`)

	queries, err := o.PlanDBQueries(context.Background(), "Stranger Things latest season")
	require.NoError(t, err)
	assert.Equal(t, []core.DBQuery{
		{Query: "season 5 release date", ResultCount: 20},
		{Query: "cast list", ResultCount: 5},
	}, queries)
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"missing key quote", `{"a": 1, b": 2}`, `{"a": 1, "b": 2}`},
		{"trailing commas", `{"a": [1, 2,], }`, `{"a": [1, 2]}`},
		{"surrounding prose", `Here you go: {"next_step": "finish"} Hope that helps.`, `{"next_step": "finish"}`},
		{"no object", "I think the answer is finish.", "I think the answer is finish."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}
