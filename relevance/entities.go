package relevance

import (
	"strings"
	"sync"

	"github.com/jdkato/prose/v2"
)

// EntityExtractor finds named entities in text.
type EntityExtractor interface {
	Entities(text string) []string
}

// ProseEntities extracts named entities with prose's averaged perceptron model.
// The model is decoded once per process and shared by every caller; prose
// only reads it while tagging.
type ProseEntities struct{}

var _ EntityExtractor = ProseEntities{}

var (
	proseOnce  sync.Once
	proseModel *prose.Model
)

// sharedProseModel returns the tagger and entity model prose would otherwise
// rebuild for every document.
func sharedProseModel() *prose.Model {
	proseOnce.Do(func() {
		doc, err := prose.NewDocument("", prose.WithSegmentation(false))
		if err == nil {
			proseModel = doc.Model
		}
	})
	return proseModel
}

// Entities returns the lowercase text of every entity found, in order of
// appearance. Text prose cannot parse yields no entities.
func (ProseEntities) Entities(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	opts := []prose.DocOpt{prose.WithSegmentation(false), prose.WithTagging(true), prose.WithExtraction(true)}
	if model := sharedProseModel(); model != nil {
		opts = append(opts, prose.UsingModel(model))
	}
	doc, err := prose.NewDocument(text, opts...)
	if err != nil {
		return nil
	}

	var out []string
	for _, ent := range doc.Entities() {
		if t := strings.ToLower(strings.TrimSpace(ent.Text)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
