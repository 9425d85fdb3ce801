package render

import (
	"strings"
	"testing"
)

func TestStreaming(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"single paragraph", "hello world", "<p>hello world</p>"},
		{"paragraph split", "one\n\ntwo", "<p>one</p><p>two</p>"},
		{"line breaks inside paragraph", "a\nb", "<p>a<br>b</p>"},
		{"html escaped", "<script>alert(1)</script>", "<p>&lt;script&gt;alert(1)&lt;/script&gt;</p>"},
		{"blank paragraphs dropped", "a\n\n\n\nb", "<p>a</p><p>b</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Streaming(tt.in); got != tt.want {
				t.Fatalf("Streaming(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFinalMarkdown(t *testing.T) {
	out, err := Final("# Title\n\nSome **bold** text.")
	if err != nil {
		t.Fatalf("Final: %v", err)
	}
	if !strings.Contains(out, "<h1") || !strings.Contains(out, "Title") {
		t.Fatalf("heading lost: %q", out)
	}
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Fatalf("emphasis lost: %q", out)
	}
}

func TestFinalTable(t *testing.T) {
	out, err := Final("| a | b |\n|---|---|\n| 1 | 2 |")
	if err != nil {
		t.Fatalf("Final: %v", err)
	}
	if !strings.Contains(out, "<table>") {
		t.Fatalf("GFM table not rendered: %q", out)
	}
}

func TestFinalMermaidContainer(t *testing.T) {
	out, err := Final("before\n\n```mermaid\ngraph TD\nA-->B\n```\n\nafter")
	if err != nil {
		t.Fatalf("Final: %v", err)
	}
	if !strings.Contains(out, `<div class="mermaid">`) {
		t.Fatalf("mermaid container missing: %q", out)
	}
	if !strings.Contains(out, "A--&gt;B") && !strings.Contains(out, "A-->B") {
		t.Fatalf("diagram body lost: %q", out)
	}
	if strings.Contains(out, "<code") && strings.Contains(out, "graph TD") && !strings.Contains(out, "mermaid") {
		t.Fatalf("diagram fence fell through to a code block: %q", out)
	}
}

func TestFinalDisplayMath(t *testing.T) {
	out, err := Final("inline text $$e^{i\\pi}+1=0$$ more")
	if err != nil {
		t.Fatalf("Final: %v", err)
	}
	if !strings.Contains(out, `<span class="math-display">`) {
		t.Fatalf("math container missing: %q", out)
	}
	if !strings.Contains(out, "$$") {
		t.Fatalf("math delimiters stripped: %q", out)
	}
}

func TestFinalSanitizesScripts(t *testing.T) {
	out, err := Final("safe\n\n<script>alert(1)</script>\n\n<div onclick=\"x()\">body</div>")
	if err != nil {
		t.Fatalf("Final: %v", err)
	}
	if strings.Contains(out, "<script") {
		t.Fatalf("script tag survived sanitization: %q", out)
	}
	if strings.Contains(out, "onclick") {
		t.Fatalf("event handler attribute survived sanitization: %q", out)
	}
	if !strings.Contains(out, "safe") || !strings.Contains(out, "body") {
		t.Fatalf("benign content dropped: %q", out)
	}
}

func TestFinalCodeBlockPreserved(t *testing.T) {
	out, err := Final("```go\nfmt.Println(42)\n```")
	if err != nil {
		t.Fatalf("Final: %v", err)
	}
	if !strings.Contains(out, "<pre>") && !strings.Contains(out, "<code") {
		t.Fatalf("code block lost: %q", out)
	}
	if !strings.Contains(out, "fmt.Println(42)") {
		t.Fatalf("code body lost: %q", out)
	}
}
