package stream

import "strings"

// TextAccumulator holds partial-fragment state for exactly one logical
// streamed field. Appends are ordered concatenation; once finalized the
// field is immutable and further appends are rejected.
type TextAccumulator struct {
	buf   strings.Builder
	final bool
}

// Append concatenates a fragment and returns the running value.
// Appends after Finalize return ErrFinalized and leave the value as-is.
func (a *TextAccumulator) Append(fragment string) (string, error) {
	if a.final {
		return a.buf.String(), ErrFinalized
	}
	a.buf.WriteString(fragment)
	return a.buf.String(), nil
}

// AppendWithSentinel strips every occurrence of sentinel from the fragment
// before appending, and reports whether the sentinel was present. Used for
// streams where the server embeds the completion marker inside the text
// payload itself rather than sending a separate terminal event.
func (a *TextAccumulator) AppendWithSentinel(fragment, sentinel string) (string, bool) {
	done := false
	if sentinel != "" && strings.Contains(fragment, sentinel) {
		done = true
		fragment = strings.ReplaceAll(fragment, sentinel, "")
	}
	value, _ := a.Append(fragment)
	return value, done
}

// Finalize seals the field and returns the accumulated value. Finalizing
// an already-final field returns the stored value unchanged.
func (a *TextAccumulator) Finalize() string {
	a.final = true
	return a.buf.String()
}

// Value returns the accumulated value without sealing the field.
func (a *TextAccumulator) Value() string {
	return a.buf.String()
}

// IsFinal reports whether the field has been sealed.
func (a *TextAccumulator) IsFinal() bool {
	return a.final
}

// Len returns the accumulated length in bytes.
func (a *TextAccumulator) Len() int {
	return a.buf.Len()
}
