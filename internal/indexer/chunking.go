package indexer

import (
	"strings"

	"compendium/internal/chunker"
	"compendium/internal/docparse"
)

// chunkSpan is one chunk enriched with the line range and header stack the
// chunker package itself doesn't track.
type chunkSpan struct {
	Index      int
	Text       string
	StartLine  int
	EndLine    int
	HeaderPath []string
}

// buildChunkSpans runs the chunker over body and attaches line numbers and
// the active header stack to each resulting chunk.
func buildChunkSpans(body string, headers []docparse.Header, opt chunker.Options) []chunkSpan {
	chunks := chunker.Split(body, opt)
	if len(chunks) == 0 {
		return nil
	}

	out := make([]chunkSpan, len(chunks))
	for i, c := range chunks {
		startLine := lineForOffset(body, c.Start)
		endLine := lineForOffset(body, c.End)
		out[i] = chunkSpan{
			Index:      c.Index,
			Text:       c.Text,
			StartLine:  startLine,
			EndLine:    endLine,
			HeaderPath: headerPathAt(headers, startLine),
		}
	}
	return out
}

// lineForOffset converts a byte offset within body into a 1-indexed line
// number.
func lineForOffset(body string, offset int) int {
	if offset > len(body) {
		offset = len(body)
	}
	return strings.Count(body[:offset], "\n") + 1
}

// headerPathAt returns the stack of H1..Hn headings in effect at line,
// i.e. the contiguous run of the most recently seen heading at each level
// up through the deepest level active at that point.
func headerPathAt(headers []docparse.Header, line int) []string {
	var stack [6]string
	for _, h := range headers {
		if h.Line > line {
			break
		}
		if h.Level < 1 || h.Level > 6 {
			continue
		}
		stack[h.Level-1] = h.Text
		for i := h.Level; i < 6; i++ {
			stack[i] = ""
		}
	}
	var path []string
	for _, s := range stack {
		if s == "" {
			break
		}
		path = append(path, s)
	}
	return path
}
