package stream

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"unicode"
)

// FileSink receives file emissions triggered by file_write action
// completions. Implementations are best-effort and must not block event
// processing; the controller invokes Emit on its own goroutine and
// ignores failures beyond logging them.
type FileSink interface {
	Emit(filename string, content []byte, mimeType string) error
}

// fileWriteInput is the recognized input shape of the file_write action.
type fileWriteInput struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

func parseFileWriteInput(raw json.RawMessage) (fileWriteInput, bool) {
	var in fileWriteInput
	if len(raw) == 0 {
		return in, false
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, false
	}
	return in, in.Content != ""
}

// SanitizeFilename collapses every run of characters outside the
// alphanumeric and CJK ranges into a single underscore, trims leading and
// trailing underscores, and preserves the extension separator. Empty
// results fall back to "file".
func SanitizeFilename(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	var b strings.Builder
	lastUnderscore := false
	for _, r := range base {
		if isFilenameRune(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	cleaned := strings.Trim(b.String(), "_")
	if cleaned == "" {
		cleaned = "file"
	}
	return cleaned + ext
}

func isFilenameRune(r rune) bool {
	if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
		return true
	}
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// mimeByExt is the fixed extension→MIME table used for emitted files.
var mimeByExt = map[string]string{
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".json": "application/json",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".xml":  "application/xml",
	".js":   "text/javascript; charset=utf-8",
	".py":   "text/x-python; charset=utf-8",
	".go":   "text/x-go; charset=utf-8",
	".sh":   "application/x-sh",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".zip":  "application/zip",
}

// MIMEForFilename resolves a MIME type from the filename extension,
// defaulting to an octet stream for unknown extensions.
func MIMEForFilename(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := mimeByExt[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
