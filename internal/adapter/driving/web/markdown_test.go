package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{name: "plain text", input: "watchdog reset", contains: []string{"watchdog reset"}},
		{name: "bold", input: "**boot failed**", contains: []string{"<strong>boot failed</strong>"}},
		{name: "inline code", input: "check `UART0`", contains: []string{"<code>UART0</code>"}},
		{
			name:     "fenced log",
			input:    "```\n[    0.000] panic: oops\n```",
			contains: []string{"<pre>", "panic: oops"},
		},
		{
			name:     "link gets nofollow",
			input:    "[log](https://ci.example.com/logs/1)",
			contains: []string{`href="https://ci.example.com/logs/1"`, `rel="nofollow`},
		},
		{
			name:     "hard wraps",
			input:    "line one\nline two",
			contains: []string{"<br"},
		},
		{
			name:     "script stripped",
			input:    "<script>alert(1)</script>ok",
			excludes: []string{"<script"},
		},
		{
			name:     "javascript link stripped",
			input:    "[x](javascript:alert(1))",
			excludes: []string{"javascript:"},
		},
		{
			name:     "table",
			input:    "| test | result |\n| --- | --- |\n| boot | ok |",
			contains: []string{"<table>", "<td>boot</td>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderMarkdown(tt.input)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestRenderMarkdown_EmptyInput(t *testing.T) {
	assert.Equal(t, "", RenderMarkdown(""))
}
