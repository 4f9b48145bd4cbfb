// Package markup prepares model output for Telegram's MarkdownV2 dialect:
// escaping, emphasis stripping, code-block detection and size-bounded
// splitting. All functions are pure text transforms.
package markup

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxMessageLength is the plain-text fallback cap, kept under
	// Telegram's 4096 hard limit.
	MaxMessageLength = 4000
	// ChunkBodyLimit is the target size of one formatted message chunk.
	ChunkBodyLimit = 3400
	// MinCodeChunk is the smallest useful body size when splitting a
	// fenced code block.
	MinCodeChunk = 500
)

var (
	codeBlockRe  = regexp.MustCompile("(?s)```(\\w+)?[ \\t]*\\n?(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
)

// CodeBlock is one fenced block found in a text.
type CodeBlock struct {
	Raw  string // full match including fences
	Lang string // language tag, may be empty
	Body string // code body with surrounding newlines trimmed
}

// CodeBlocks returns every fenced block in text, in order of appearance.
func CodeBlocks(text string) []CodeBlock {
	matches := codeBlockRe.FindAllStringSubmatch(text, -1)
	blocks := make([]CodeBlock, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, CodeBlock{
			Raw:  m[0],
			Lang: strings.TrimSpace(m[1]),
			Body: strings.Trim(m[2], "\n"),
		})
	}
	return blocks
}

// StripCodeBlocks removes every fenced block from text.
func StripCodeBlocks(text string) string {
	for _, b := range CodeBlocks(text) {
		text = strings.Replace(text, b.Raw, "", 1)
	}
	return text
}

// Render rebuilds a normalized fenced block from a language tag and body.
func (b CodeBlock) Render() string {
	if b.Lang != "" {
		return "```" + b.Lang + "\n" + b.Body + "\n```"
	}
	return "```\n" + b.Body + "\n```"
}

type langPattern struct {
	lang string
	re   *regexp.Regexp
}

// Ordered, first match wins and fixes the tag.
var langPatterns = []langPattern{
	{"html", regexp.MustCompile(`(?i)<!DOCTYPE html|<html\b|<body\b|</\w+>`)},
	{"css", regexp.MustCompile(`\b[a-zA-Z0-9_\-.#]+\s*\{[^}]+\}`)},
	{"javascript", regexp.MustCompile(`(?i)\b(function|const|let|var)\s+\w+\s*(=|\()|\bconsole\.|document\.|=>`)},
	{"python", regexp.MustCompile(`(?i)\b(def|class)\s+\w+\s*\(|\bimport\s+\w+`)},
	{"json", regexp.MustCompile(`(?m)^\s*\{[\s\S]*?:[\s\S]*?\}\s*$`)},
	{"bash", regexp.MustCompile(`(?m)^#!/bin/(bash|sh)|^\s*(cd|ls|mkdir|rm|echo)\b`)},
}

var codeLikeLineRe = regexp.MustCompile(`[<>{};=]|^\s*(if|for|while|class|def|return)\b`)

// DetectCodeLanguage reports whether text looks like source code and, when a
// language signature matches, which language. Inputs shorter than 20
// characters are never classified as code.
func DetectCodeLanguage(text string) (bool, string) {
	cleaned := strings.TrimSpace(text)
	if utf8.RuneCountInString(cleaned) < 20 {
		return false, ""
	}

	for _, lp := range langPatterns {
		if lp.re.MatchString(cleaned) {
			return true, lp.lang
		}
	}

	var lines []string
	for _, line := range strings.Split(cleaned, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 3 {
		return false, ""
	}

	codeLike := 0
	for _, line := range lines {
		if codeLikeLineRe.MatchString(line) {
			codeLike++
		}
	}
	threshold := len(lines) / 2
	if threshold < 3 {
		threshold = 3
	}
	if codeLike >= threshold {
		return true, ""
	}
	return false, ""
}

const escapeSet = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 escapes every MarkdownV2-significant character.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, r := range text {
		if r < utf8.RuneSelf && strings.ContainsRune(escapeSet, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var (
	fencedRe        = regexp.MustCompile("(?s)```.*?```")
	boldStarsRe     = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	starRe          = regexp.MustCompile(`\*([^*]+)\*`)
	boldUnderRe     = regexp.MustCompile(`__([^_]+)__`)
	underRe         = regexp.MustCompile(`_([^_]+)_`)
	headingRe       = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	langLabelLineRe = regexp.MustCompile(`(?im)^\s*(HTML|JavaScript|CSS|Code|Markup|Java|JS|Example):\s*$`)
)

// Placeholder tokens use NUL delimiters: excluded from the escaping
// alphabet and from the emphasis patterns, so they survive both passes.
func snippetToken(i int) string {
	return fmt.Sprintf("\x00snippet:%d\x00", i)
}

// RemoveEmphasis strips single and double emphasis wrapping while leaving
// fenced code blocks byte-identical.
func RemoveEmphasis(text string) string {
	var blocks []string
	text = fencedRe.ReplaceAllStringFunc(text, func(block string) string {
		blocks = append(blocks, block)
		return snippetToken(len(blocks) - 1)
	})

	text = boldStarsRe.ReplaceAllString(text, "$1")
	text = starRe.ReplaceAllString(text, "$1")
	text = boldUnderRe.ReplaceAllString(text, "$1")
	text = underRe.ReplaceAllString(text, "$1")

	for i, block := range blocks {
		text = strings.Replace(text, snippetToken(i), block, 1)
	}
	return text
}

// FormatMessage converts model output into MarkdownV2-safe text: headings
// and bare language-label lines are dropped, code is protected via
// placeholders and restored verbatim, everything else is escaped. Text that
// contains no code markers but classifies as code is wrapped in a fence.
func FormatMessage(text string) string {
	text = headingRe.ReplaceAllString(text, "")
	text = langLabelLineRe.ReplaceAllString(text, "")

	detectionCandidate := strings.TrimSpace(text)

	var snippets []string
	addSnippet := func(content string) string {
		snippets = append(snippets, content)
		return snippetToken(len(snippets) - 1)
	}

	text = replaceSubmatches(codeBlockRe, text, func(m []string) string {
		lang := strings.TrimSpace(m[1])
		code := strings.Trim(m[2], "\n")
		if strings.TrimSpace(code) == "" {
			// Empty block: leave as-is rather than re-wrap.
			return m[0]
		}
		return addSnippet(CodeBlock{Lang: lang, Body: code}.Render())
	})

	text = replaceSubmatches(inlineCodeRe, text, func(m []string) string {
		if m[1] == "" {
			return m[0]
		}
		return addSnippet("`" + m[1] + "`")
	})

	escaped := EscapeMarkdownV2(text)

	for i, snippet := range snippets {
		escaped = strings.Replace(escaped, snippetToken(i), snippet, 1)
	}

	if len(snippets) == 0 {
		if isCode, lang := DetectCodeLanguage(detectionCandidate); isCode {
			return CodeBlock{Lang: lang, Body: strings.Trim(detectionCandidate, "\n")}.Render()
		}
	}

	return escaped
}

// replaceSubmatches is ReplaceAllStringFunc with submatch access.
func replaceSubmatches(re *regexp.Regexp, text string, repl func(m []string) string) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return text
	}
	var b strings.Builder
	last := 0
	for _, idx := range matches {
		groups := make([]string, 0, len(idx)/2)
		for g := 0; g < len(idx); g += 2 {
			if idx[g] < 0 {
				groups = append(groups, "")
			} else {
				groups = append(groups, text[idx[g]:idx[g+1]])
			}
		}
		b.WriteString(text[last:idx[0]])
		b.WriteString(repl(groups))
		last = idx[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// SplitFormattedText splits formatted text into chunks no longer than limit.
// A single fenced block is split on line boundaries with the fence header
// and closing fence repeated on every chunk; other text splits at the last
// newline before the boundary, hard-cutting only when no newline exists.
func SplitFormattedText(text string, limit int) []string {
	text = strings.Trim(text, "\n")
	if len(text) <= limit {
		return []string{text}
	}

	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl != -1 {
			header := text[:nl+1]
			body := text[nl+1:]
			if strings.HasSuffix(body, "\n```") {
				body = body[:len(body)-4]
			} else if strings.HasSuffix(body, "```") {
				body = body[:len(body)-3]
			}

			chunkSize := limit - len(header) - 4
			if chunkSize < MinCodeChunk {
				chunkSize = MinCodeChunk
			}
			parts := splitPlainText(body, chunkSize)
			chunks := make([]string, 0, len(parts))
			for _, part := range parts {
				chunks = append(chunks, header+strings.TrimSpace(part)+"\n```")
			}
			return chunks
		}
	}

	return splitPlainText(text, limit)
}

func splitPlainText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	start := 0
	for start < len(text) {
		end := start + limit
		if end >= len(text) {
			end = len(text)
		} else {
			if nl := strings.LastIndex(text[start:end], "\n"); nl > 0 {
				end = start + nl + 1
			} else {
				// Hard cut: back off to a rune boundary.
				for end > start && !utf8.RuneStart(text[end]) {
					end--
				}
			}
		}
		parts = append(parts, text[start:end])
		start = end
	}

	out := parts[:0]
	for _, part := range parts {
		part = strings.Trim(part, "\n")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
