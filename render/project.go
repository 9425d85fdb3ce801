// Package render projects accumulated session state into presentable
// form. Streaming updates use a cheap structural projection; only the
// finalized completion text receives the expensive markdown, formula and
// diagram expansion — re-running the full pipeline on every delta would
// be quadratic in total stream length.
package render

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// Streaming is the cheap per-fragment projection: plain structural
// markup only, safe to run on every delta.
func Streaming(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimRight(para, "\n")
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

var (
	mermaidFence = regexp.MustCompile("(?s)```mermaid\\s*\n(.*?)```")
	displayMath  = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
)

// Final is the expensive final-only render path: markdown conversion with
// diagram and formula expansion, sanitized for embedding. It is applied
// once, to the finalized completion value.
func Final(markdown string) (string, error) {
	// Diagram fences become mermaid containers before markdown
	// conversion so the code-block renderer does not escape them.
	expanded := mermaidFence.ReplaceAllString(markdown, `<div class="mermaid">$1</div>`)
	// Display math is fenced off from markdown emphasis handling.
	expanded = displayMath.ReplaceAllString(expanded, `<span class="math-display">$$$$$1$$$$</span>`)

	var buf bytes.Buffer
	if err := converter.Convert([]byte(expanded), &buf); err != nil {
		return "", fmt.Errorf("markdown conversion: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

var converter = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
)

var policy = buildPolicy()

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("div", "span", "code", "pre")
	return p
}
