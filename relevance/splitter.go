package relevance

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/quarry/core"
	"github.com/tmc/langchaingo/textsplitter"
)

// Default chunking parameters.
const (
	DefaultChunkSize    = 5000
	DefaultChunkOverlap = 50
)

// headingLevels maps markdown heading markers to their depth.
// Longer markers are checked first so "###" is not read as "#".
var headingLevels = []struct {
	marker string
	level  int
}{
	{"###", 3},
	{"##", 2},
	{"#", 1},
}

// Splitter splits markdown into groups of chunks that share a heading path.
type Splitter struct {
	chunkSize int
	recursive textsplitter.RecursiveCharacter
}

// NewSplitter creates a splitter. Sections longer than chunkSize characters
// are split again with chunkOverlap characters of overlap.
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &Splitter{
		chunkSize: chunkSize,
		recursive: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}, nil
}

type section struct {
	path []string
	text string
}

// Split returns the chunk groups of a markdown document in order of first
// appearance. Heading lines are removed from chunk text; headings inside
// fenced code blocks are treated as content.
func (s *Splitter) Split(markdown string) ([]core.ChunkGroup, error) {
	var groups []core.ChunkGroup
	index := make(map[string]int)

	for _, sec := range splitSections(markdown) {
		pieces := []string{sec.text}
		if utf8.RuneCountInString(sec.text) > s.chunkSize {
			var err error
			pieces, err = s.recursive.SplitText(sec.text)
			if err != nil {
				return nil, err
			}
		}

		key := strings.Join(sec.path, "\x00")
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, core.ChunkGroup{HeaderPath: sec.path})
		}

		for _, piece := range pieces {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			g := &groups[i]
			g.Chunks = append(g.Chunks, core.ContentChunk{
				HeaderPath: sec.path,
				Text:       piece,
				Position:   len(g.Chunks) + 1,
			})
		}
	}

	return groups, nil
}

// splitSections cuts markdown at level 1-3 headings.
func splitSections(markdown string) []section {
	var (
		sections []section
		path     []string
		levels   []int
		lines    []string
		inFence  bool
		fence    string
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		lines = lines[:0]
		if text == "" {
			return
		}
		sections = append(sections, section{path: append([]string(nil), path...), text: text})
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)

		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case !inFence:
				inFence, fence = true, marker
			case marker == fence:
				inFence = false
			}
			lines = append(lines, line)
			continue
		}

		if !inFence {
			if level, title, ok := parseHeading(trimmed); ok {
				flush()
				for len(levels) > 0 && levels[len(levels)-1] >= level {
					levels = levels[:len(levels)-1]
					path = path[:len(path)-1]
				}
				levels = append(levels, level)
				path = append(path, title)
				continue
			}
		}

		lines = append(lines, line)
	}
	flush()

	return sections
}

func fenceMarker(trimmed string) string {
	switch {
	case strings.HasPrefix(trimmed, "```"):
		return "```"
	case strings.HasPrefix(trimmed, "~~~"):
		return "~~~"
	default:
		return ""
	}
}

func parseHeading(trimmed string) (int, string, bool) {
	for _, h := range headingLevels {
		if !strings.HasPrefix(trimmed, h.marker) {
			continue
		}
		rest := trimmed[len(h.marker):]
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			return 0, "", false
		}
		title := strings.TrimSpace(rest)
		if title == "" {
			return 0, "", false
		}
		return h.level, title, true
	}
	return 0, "", false
}
