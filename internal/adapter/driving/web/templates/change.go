package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/fwchecks/internal/adapter/driving/web/viewmodel"
)

// ChangeDetail renders the stored runs and results of one change revision.
func ChangeDetail(data vm.ChangeDetailViewModel) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}

		hw.raw(`<h1>Change `)
		hw.text(data.Change)
		hw.raw(` patchset `)
		hw.text(data.Patchset)
		hw.raw(` <span`)
		hw.attr("class", "status status-"+data.CIStatus)
		hw.raw(`>`)
		hw.text(data.CIStatus)
		hw.raw(`</span></h1><p class="meta">`)
		hw.text(data.Project)
		hw.raw(` <code>`)
		hw.text(data.ShortSHA)
		hw.raw(`</code> polled `)
		hw.text(data.Polled)
		hw.raw(`, tier `)
		hw.text(data.Tier)
		hw.raw(`</p>`)

		if data.Flash != "" {
			hw.raw(`<p class="banner">`)
			hw.text(data.Flash)
			hw.raw(`</p>`)
		}

		hw.raw(`<form method="post"`)
		hw.attr("action", data.RefreshPath)
		hw.raw(`><input type="hidden" name="csrf_token"`)
		hw.attr("value", data.CSRFToken)
		hw.raw(`><button type="submit">Refresh now</button></form>`)

		if len(data.Runs) == 0 {
			hw.raw(`<p class="empty">No job requests recorded for this change.</p>`)
			return hw.err
		}

		for _, run := range data.Runs {
			writeRun(hw, run)
		}

		return hw.err
	})
}

func writeRun(hw *htmlWriter, run vm.RunViewModel) {
	class := "run"
	if !run.IsLatest {
		class += " superseded"
	}

	hw.raw(`<section`)
	hw.attr("class", class)
	hw.raw(`><h2><a`)
	hw.href(run.CheckLink)
	hw.raw(`>`)
	hw.text(run.CheckName)
	hw.raw(`</a> attempt `)
	hw.int(run.Attempt)
	hw.raw(` <span`)
	hw.attr("class", "run-status run-"+run.Status)
	hw.raw(`>`)
	hw.text(run.Status)
	hw.raw(`</span></h2><p class="meta"><a`)
	hw.href(run.StatusLink)
	hw.raw(`>`)
	hw.text(run.ExternalID)
	hw.raw(`</a> `)
	hw.text(run.StatusDescription)
	hw.raw(`, started `)
	hw.text(run.Started)
	if run.Duration != "" {
		hw.raw(`, took `)
		hw.text(run.Duration)
	}
	hw.raw(`</p>`)

	if len(run.Results) > 0 {
		hw.raw(`<ul class="results">`)
		for _, res := range run.Results {
			hw.raw(`<li`)
			hw.attr("class", "result category-"+res.Category)
			hw.raw(`><a`)
			hw.href(res.Link)
			hw.raw(`>`)
			hw.text(res.Name)
			hw.raw(`</a>`)
			for _, tag := range res.Tags {
				hw.raw(` <span`)
				hw.attr("class", "tag tag-"+tag.Color)
				hw.raw(`>`)
				hw.text(tag.Name)
				hw.raw(`</span>`)
			}
			if res.SummaryHTML != "" {
				// SummaryHTML is sanitized by the markdown renderer.
				hw.raw(`<div class="summary">`)
				hw.raw(res.SummaryHTML)
				hw.raw(`</div>`)
			}
			hw.raw(`</li>`)
		}
		hw.raw(`</ul>`)
	}

	hw.raw(`</section>`)
}
