// Package chunker splits a document's body text into overlapping,
// paragraph-aware chunks suitable for embedding.
package chunker

import "strings"

// Options controls chunk sizing. Sizes are expressed in characters, not
// tokens, matching a character-budget chunker rather than a tokenizer-backed
// one.
type Options struct {
	MaxChars int
	Overlap  int
}

// DefaultOptions returns the chunk sizing compendium ships with out of the
// box: roughly 2000 characters per chunk with a 200 character overlap.
func DefaultOptions() Options {
	return Options{MaxChars: 2000, Overlap: 200}
}

// Chunk is one produced chunk, carrying its ordinal index and the character
// offset range it was sourced from so a chunk can be traced back to its
// position in the document body.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// Split breaks body into Chunks along paragraph boundaries (blank lines),
// greedily packing paragraphs until MaxChars is reached, then starting the
// next chunk Overlap characters back into the previous one. The result is
// deterministic: the same body and Options always produce the same chunks.
func Split(body string, opt Options) []Chunk {
	if opt.MaxChars <= 0 {
		opt = DefaultOptions()
	}
	paras := splitParagraphs(body)
	if len(paras) == 0 {
		return nil
	}

	var chunks []Chunk
	idx := 0
	var buf strings.Builder
	bufStart := paras[0].start

	flush := func(end int) {
		text := strings.TrimSpace(buf.String())
		if text == "" {
			buf.Reset()
			return
		}
		chunks = append(chunks, Chunk{Index: idx, Text: text, Start: bufStart, End: end})
		idx++
		buf.Reset()
	}

	for i, p := range paras {
		if buf.Len() > 0 && buf.Len()+len(p.text) > opt.MaxChars {
			flush(paras[i-1].end)
			// Carry the overlap tail of the just-flushed text forward so the
			// next chunk retains context across the boundary.
			tail := overlapTail(chunks[len(chunks)-1].Text, opt.Overlap)
			if tail != "" {
				buf.WriteString(tail)
				buf.WriteString("\n\n")
			}
			bufStart = p.start
		}
		if buf.Len() == 0 {
			bufStart = p.start
		}
		buf.WriteString(p.text)
		buf.WriteString("\n\n")
	}
	flush(paras[len(paras)-1].end)

	return chunks
}

type paragraph struct {
	text       string
	start, end int
}

// splitParagraphs splits on runs of two or more newlines, tracking each
// paragraph's byte offsets within the original body.
func splitParagraphs(body string) []paragraph {
	var out []paragraph
	start := 0
	blank := false
	paraStart := 0

	flushAt := func(end int) {
		text := strings.TrimSpace(body[paraStart:end])
		if text != "" {
			out = append(out, paragraph{text: text, start: paraStart, end: end})
		}
	}

	lines := strings.SplitAfter(body, "\n")
	pos := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank {
				flushAt(pos)
				blank = true
			}
		} else {
			if blank {
				paraStart = pos
			}
			blank = false
		}
		pos += len(line)
	}
	flushAt(len(body))
	_ = start
	return out
}

// overlapTail returns at most the trailing n characters of s. When that span
// contains a space, everything up to and including its first space is
// dropped so the overlap starts on a word. An s no longer than n yields "".
func overlapTail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return ""
	}
	tail := s[len(s)-n:]
	if i := strings.IndexByte(tail, ' '); i >= 0 {
		tail = tail[i+1:]
	}
	return tail
}
