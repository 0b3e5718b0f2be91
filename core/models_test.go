package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "short content", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestRetrievedDocument_Accessors(t *testing.T) {
	doc := RetrievedDocument{
		Text: "The Eiffel Tower is 330 metres tall.",
		Metadata: map[string]string{
			MetaSource:      "Wikipedia",
			MetaLink:        "https://example.org/eiffel",
			MetaReliability: "0.9",
		},
	}

	if doc.Source() != "Wikipedia" {
		t.Errorf("Source() = %q", doc.Source())
	}
	if doc.URL() != "https://example.org/eiffel" {
		t.Errorf("URL() = %q", doc.URL())
	}
	if doc.Reliability() != 0.9 {
		t.Errorf("Reliability() = %v, want 0.9", doc.Reliability())
	}
	if doc.ContentID() != IDFromContent(doc.Text) {
		t.Errorf("ContentID() does not match IDFromContent(Text)")
	}
}

func TestRetrievedDocument_ReliabilityDefault(t *testing.T) {
	doc := RetrievedDocument{Text: "x", Metadata: map[string]string{MetaReliability: "n/a"}}
	if doc.Reliability() != DefaultReliability {
		t.Errorf("Reliability() = %v, want %v", doc.Reliability(), DefaultReliability)
	}
}

func TestTargetTerms_Empty(t *testing.T) {
	if !(TargetTerms{}).Empty() {
		t.Error("zero TargetTerms should be empty")
	}
	if (TargetTerms{Keywords: []string{"season"}}).Empty() {
		t.Error("TargetTerms with keywords should not be empty")
	}
}

func TestParseNextStep(t *testing.T) {
	tests := []struct {
		in      string
		want    NextStep
		wantErr bool
	}{
		{in: "finish", want: StepFinish},
		{in: "retriever", want: StepRetriever},
		{in: "web_search", want: StepWebSearch},
		{in: "crawl_contexts", want: StepCrawlContexts},
		{in: "  Web_Search ", want: StepWebSearch},
		{in: "give_up", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNextStep(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseNextStep(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNextStep(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseNextStep(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.String() != normalizeToken(tt.in) {
				t.Errorf("String() = %q, want %q", got.String(), normalizeToken(tt.in))
			}
		})
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in      string
		want    Rating
		wantErr bool
	}{
		{in: "highly_satisfactory", want: RatingHighlySatisfactory},
		{in: "satisfactory", want: RatingSatisfactory},
		{in: "unsatisfactory", want: RatingUnsatisfactory},
		{in: "highly unsatisfactory", want: RatingHighlyUnsatisfactory},
		{in: "highly_unsatisfactory", want: RatingHighlyUnsatisfactory},
		{in: "meh", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRating(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRating(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRating(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseComplexity(t *testing.T) {
	if ParseComplexity("Simple") != ComplexitySimple {
		t.Error("Simple")
	}
	if ParseComplexity("COMPLEX") != ComplexityComplex {
		t.Error("Complex")
	}
	if ParseComplexity("whatever") != ComplexityModerate {
		t.Error("unknown values should map to moderate")
	}
}
