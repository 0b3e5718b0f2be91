package openai

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/quarry/core"
)

const jsonOnly = `Output ONLY valid JSON which complies with the schema given below. Do not include any preamble,
explanation, greeting, or acknowledgment. Start your response directly with the opening brace { and end
with the closing brace }. Your output must exactly follow this schema:

%s`

const analysisSchema = `{
  "type": "object",
  "properties": {
    "query_parameters": {
      "type": "object",
      "properties": {
        "keywords": {"type": "array", "items": {"type": "string"}},
        "entities": {"type": "array", "items": {"type": "string"}}
      },
      "required": ["keywords", "entities"]
    },
    "search_complexity": {
      "type": "object",
      "properties": {
        "complexity_level": {"type": "string", "enum": ["Simple", "Moderate", "Complex"]},
        "multi_faceted": {"type": "boolean"}
      },
      "required": ["complexity_level", "multi_faceted"]
    },
    "is_harmful": {"type": "boolean"}
  },
  "required": ["query_parameters", "search_complexity", "is_harmful"]
}`

const analysisPrompt = `You analyze questions for a web research assistant. Extract the information that will
guide search planning.

Keywords: every term with search value, including synonyms and closely related terms.
Entities: the specific names, products, places, organizations and dates the question is about.
Complexity: Simple for a single fact, Moderate for two or three related concepts, Complex for
multi-part comparisons or analysis. Set multi_faceted when the question has distinct aspects.
Set is_harmful to true when the question asks for dangerous, illegal or unethical assistance.

` + jsonOnly

const refinePrompt = `You rewrite the LAST user message of a conversation into a standalone question.
Replace pronouns and vague references with the explicit entities they refer to in earlier messages.
Keep only the intent of the last message; never merge it with earlier requests. Return one or two
sentences.

` + jsonOnly

const refineSchema = `{
  "type": "object",
  "properties": {"refined_query": {"type": "string"}},
  "required": ["refined_query"]
}`

const searchPlanSchema = `{
  "type": "object",
  "properties": {
    "search_queries": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "query_id": {"type": "integer"},
          "query": {"type": "string"}
        },
        "required": ["query_id", "query"]
      }
    }
  },
  "required": ["search_queries"]
}`

const searchPlanPrompt = `You write web search engine queries. Current time: %s

Without an action rationale, break the user request into searchable parts and cover its main
entities with between one and five queries.

With an action rationale, the rationale is the only thing that matters: target exactly the
information it says is missing, name concrete entities, and make every query semantically
different from the previous queries. Rephrasing a previous query is not allowed.

Prefer specific queries of the form [entity] + [measurable fact] + [qualifier]. Do not use
site: operators.

` + jsonOnly

const dbPlanSchema = `{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "query": {"type": "string"},
          "n_results": {"type": "integer", "minimum": 1, "maximum": 20}
        },
        "required": ["query", "n_results"]
      }
    }
  },
  "required": ["queries"]
}`

const dbPlanPrompt = `You query a vector database of web page fragments on behalf of a research assistant.
Turn the information need into one or more short similarity search queries. Each query should
describe the text a relevant fragment would contain. Ask for more results (up to 20) for broad
queries and fewer (down to 1) for precise facts.

` + jsonOnly

const generationSchema = `{
  "type": "object",
  "properties": {
    "response_to_user_query": {"type": "string"},
    "gaps_acknowledged": {"type": "string"}
  },
  "required": ["response_to_user_query", "gaps_acknowledged"]
}`

const generationPrompt = `You answer the user's question using only the retrieved contexts supplied in this
conversation. Cite the source URL for every claim. Weigh sources by their reliability score.
When the contexts do not cover part of the question say so plainly and list the gaps in
gaps_acknowledged. Never invent facts.

` + jsonOnly

const evaluationSchema = `{
  "type": "object",
  "properties": {
    "response_evaluation": {"type": "string"},
    "response_rating": {"type": "string", "enum": ["highly_satisfactory", "satisfactory", "unsatisfactory", "highly_unsatisfactory"]},
    "action_rationale": {"type": "string"},
    "next_step": {"type": "string", "enum": ["finish", "retriever", "web_search", "crawl_contexts"]}
  },
  "required": ["response_evaluation", "response_rating", "action_rationale", "next_step"]
}`

const evaluationPrompt = `You evaluate the latest answer of a research assistant for relevance, accuracy and
completeness against the retrieved contexts and the user's question.

Choose next_step:
- finish: the answer is satisfactory or better.
- retriever: the database likely holds the missing information but it was not retrieved.
- web_search: the missing information must be found on the web.
- crawl_contexts: the contexts link to pages that likely hold the missing information.

Write action_rationale as "X is missing and needs to be obtained by Y".

` + jsonOnly

const linksSchema = `{
  "type": "object",
  "properties": {"urls": {"type": "array", "items": {"type": "string"}}},
  "required": ["urls"]
}`

const linksPrompt = `You pick links to follow. From the contexts and the recent conversation, list the
absolute URLs mentioned inside the context text that most likely lead to the information the
evaluator says is missing. Return an empty list when there are none.

` + jsonOnly

// formatEvidence renders documents the way every prompt presents them.
func formatEvidence(docs []core.RetrievedDocument) string {
	if len(docs) == 0 {
		return "No contexts were retrieved."
	}
	var sb strings.Builder
	for _, doc := range docs {
		fmt.Fprintf(&sb, "Text:\n%s\nSource: %s\nURL: %s\nSource Reliability: %s\n\n",
			doc.Text,
			doc.Source(),
			doc.URL(),
			strconv.FormatFloat(doc.Reliability(), 'f', 2, 64))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatPriorQueries(prior []core.SearchQuery) string {
	if len(prior) == 0 {
		return "None"
	}
	lines := make([]string, len(prior))
	for i, q := range prior {
		lines[i] = fmt.Sprintf("%d. %s", q.ID, q.Text)
	}
	return strings.Join(lines, "\n")
}

func buildSearchPlanPrompt(now time.Time) string {
	return fmt.Sprintf(searchPlanPrompt, now.Format("2006-01-02 15:04:05"), searchPlanSchema)
}

func buildSearchPlanRequest(query string, prior []core.SearchQuery, rationale string) string {
	if rationale == "" {
		rationale = "None"
	}
	return fmt.Sprintf("## User Request:\n%s\n\n## Previous Queries:\n%s\n\n## Action Rationale:\n%s",
		query, formatPriorQueries(prior), rationale)
}
