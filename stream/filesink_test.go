package stream

import (
	"encoding/json"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.txt", "report.txt"},
		{"my report (final).txt", "my_report_final.txt"},
		{"a///b???c.md", "a_b_c.md"},
		{"  leading and trailing  .csv", "leading_and_trailing.csv"},
		{"分析結果.txt", "分析結果.txt"},
		{"결과 보고서.md", "결과_보고서.md"},
		{"???", "file"},
		{"!!!.json", "file.json"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMIMEForFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"notes.txt", "text/plain; charset=utf-8"},
		{"README.md", "text/markdown; charset=utf-8"},
		{"data.JSON", "application/json"},
		{"chart.svg", "image/svg+xml"},
		{"archive.zip", "application/zip"},
		{"mystery.bin", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := MIMEForFilename(tt.name); got != tt.want {
			t.Errorf("MIMEForFilename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseFileWriteInput(t *testing.T) {
	in, ok := parseFileWriteInput(json.RawMessage(`{"file_name":"a.txt","content":"hello"}`))
	if !ok {
		t.Fatal("valid input rejected")
	}
	if in.FileName != "a.txt" || in.Content != "hello" {
		t.Fatalf("parsed = %+v", in)
	}

	if _, ok := parseFileWriteInput(nil); ok {
		t.Fatal("empty input accepted")
	}
	if _, ok := parseFileWriteInput(json.RawMessage(`{"file_name":"a.txt"}`)); ok {
		t.Fatal("input without content accepted")
	}
	if _, ok := parseFileWriteInput(json.RawMessage(`not json`)); ok {
		t.Fatal("malformed input accepted")
	}
}
