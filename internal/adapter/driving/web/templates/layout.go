package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Layout wraps body in the page shell.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>`)
		hw.text(title)
		hw.raw(`</title><link rel="stylesheet" href="/static/style.css"></head><body>`)
		hw.raw(`<header><a href="/" class="brand">fwchecks</a></header><main>`)
		if hw.err != nil {
			return hw.err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		hw.raw(`</main></body></html>`)
		return hw.err
	})
}
