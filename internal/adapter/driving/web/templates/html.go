// Package templates renders the dashboard pages as templ components.
package templates

import (
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// htmlWriter accumulates the first write error so components can emit markup
// without checking every call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

// text writes s HTML-escaped.
func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

func (hw *htmlWriter) int(n int) {
	hw.raw(strconv.Itoa(n))
}

// attr writes ` name="value"` with value escaped.
func (hw *htmlWriter) attr(name, value string) {
	hw.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

// href writes an href attribute, dropping URLs templ considers unsafe.
func (hw *htmlWriter) href(u string) {
	hw.attr("href", string(templ.URL(u)))
}
