// Package docparse turns a raw markdown file into its structural parts:
// frontmatter metadata, body, header outline, links, and fenced code blocks.
package docparse

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"compendium/internal/errs"
)

// Header is one markdown heading line.
type Header struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Line  int    `json:"line"`
}

// Link is a markdown link or reference found in the body.
type Link struct {
	Text   string `json:"text"`
	Target string `json:"target"`
	Line   int    `json:"line"`
}

// CodeBlock is a fenced code block.
type CodeBlock struct {
	Language string `json:"language"`
	Content  string `json:"content"`
	Line     int    `json:"line"`
}

// Parsed is the structural breakdown of one markdown document.
type Parsed struct {
	Frontmatter map[string]any `json:"frontmatter"`
	Body        string         `json:"body"`
	Headers     []Header       `json:"headers"`
	Links       []Link         `json:"links"`
	CodeBlocks  []CodeBlock    `json:"code_blocks"`
}

var (
	headerRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	linkRe   = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	fenceRe  = regexp.MustCompile("^```\\s*([a-zA-Z0-9_+-]*)\\s*$")
)

// Parse splits raw into frontmatter (delimited by leading `---` lines) and
// body, then extracts headers, links, and code blocks from the body.
func Parse(raw string) (Parsed, error) {
	frontmatter, body, err := splitFrontmatter(raw)
	if err != nil {
		return Parsed{}, errs.Wrap(errs.KindValidationFailed, "parse frontmatter", err)
	}

	p := Parsed{Frontmatter: frontmatter, Body: body}
	lines := strings.Split(body, "\n")

	var inFence bool
	var fenceLang string
	var fenceLines []string
	var fenceStart int

	for i, line := range lines {
		lineNo := i + 1

		if m := fenceRe.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			if inFence {
				p.CodeBlocks = append(p.CodeBlocks, CodeBlock{
					Language: fenceLang,
					Content:  strings.Join(fenceLines, "\n"),
					Line:     fenceStart,
				})
				inFence = false
				fenceLines = nil
				continue
			}
			inFence = true
			fenceLang = m[1]
			fenceStart = lineNo
			continue
		}
		if inFence {
			fenceLines = append(fenceLines, line)
			continue
		}

		if m := headerRe.FindStringSubmatch(line); m != nil {
			p.Headers = append(p.Headers, Header{
				Level: len(m[1]),
				Text:  strings.TrimSpace(m[2]),
				Line:  lineNo,
			})
		}

		for _, m := range linkRe.FindAllStringSubmatch(line, -1) {
			p.Links = append(p.Links, Link{Text: m[1], Target: m[2], Line: lineNo})
		}
	}
	// An unterminated fence is flushed as-is rather than discarded.
	if inFence {
		p.CodeBlocks = append(p.CodeBlocks, CodeBlock{
			Language: fenceLang,
			Content:  strings.Join(fenceLines, "\n"),
			Line:     fenceStart,
		})
	}

	return p, nil
}

// SetFrontmatterField returns raw with its frontmatter block's key set to
// value, creating the block if raw has none. Used for best-effort on-disk
// updates (e.g. a promotion level change) that otherwise live only in the
// database.
func SetFrontmatterField(raw, key string, value any) (string, error) {
	frontmatter, body, err := splitFrontmatter(raw)
	if err != nil {
		return "", errs.Wrap(errs.KindValidationFailed, "parse frontmatter", err)
	}
	if frontmatter == nil {
		frontmatter = map[string]any{}
	}
	frontmatter[key] = value

	out, err := yaml.Marshal(frontmatter)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, "marshal frontmatter", err)
	}
	return "---\n" + string(out) + "---\n" + body, nil
}

func splitFrontmatter(raw string) (map[string]any, string, error) {
	const delim = "---"
	trimmed := strings.TrimLeft(raw, "\r\n")
	if !strings.HasPrefix(trimmed, delim) {
		return map[string]any{}, raw, nil
	}

	rest := trimmed[len(delim):]
	// The delimiter must be alone on its line.
	if idx := strings.IndexAny(rest, "\r\n"); idx == -1 {
		return map[string]any{}, raw, nil
	} else if strings.TrimSpace(rest[:idx]) != "" {
		return map[string]any{}, raw, nil
	}

	end := strings.Index(rest, "\n"+delim)
	if end == -1 {
		return nil, "", fmt.Errorf("unterminated frontmatter block")
	}

	fmBlock := rest[strings.IndexAny(rest, "\r\n")+1 : end+1]
	after := rest[end+1+len(delim):]
	after = strings.TrimPrefix(after, "\r")
	after = strings.TrimPrefix(after, "\n")

	fm := map[string]any{}
	if strings.TrimSpace(fmBlock) != "" {
		if err := yaml.Unmarshal([]byte(fmBlock), &fm); err != nil {
			return nil, "", fmt.Errorf("unmarshal frontmatter yaml: %w", err)
		}
	}
	return fm, after, nil
}
