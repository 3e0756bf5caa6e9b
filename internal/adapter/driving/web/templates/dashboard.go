package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/fwchecks/internal/adapter/driving/web/viewmodel"
)

// Dashboard lists every tracked change with its folded CI status.
func Dashboard(data vm.DashboardViewModel) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}

		if !data.CIConfigured {
			hw.raw(`<p class="banner warning">CI service credentials are not configured, only public job requests are visible. `)
			hw.raw(`Store a token with <code>PUT /api/v1/credentials/ci</code>.</p>`)
		}

		hw.raw(`<h1>Tracked changes</h1>`)
		if len(data.Changes) == 0 {
			hw.raw(`<p class="empty">No changes tracked yet. Changes appear once the review system queries them.</p>`)
			return hw.err
		}

		hw.raw(`<table class="changes"><thead><tr>`)
		hw.raw(`<th>Change</th><th>Project</th><th>Commit</th><th>Status</th><th>Tier</th><th>Last seen</th><th>Polled</th>`)
		hw.raw(`</tr></thead><tbody>`)
		for _, c := range data.Changes {
			hw.raw(`<tr><td><a`)
			hw.href(c.DetailPath)
			hw.raw(`>`)
			hw.text(c.Change + "/" + c.Patchset)
			hw.raw(`</a></td><td>`)
			hw.text(c.Project)
			hw.raw(`</td><td><code>`)
			hw.text(c.ShortSHA)
			hw.raw(`</code></td><td><span`)
			hw.attr("class", "status status-"+c.CIStatus)
			hw.raw(`>`)
			hw.text(c.CIStatus)
			hw.raw(`</span></td><td>`)
			hw.text(c.Tier)
			hw.raw(`</td><td>`)
			hw.text(c.LastSeen)
			hw.raw(`</td><td>`)
			hw.text(c.Polled)
			hw.raw(`</td></tr>`)
		}
		hw.raw(`</tbody></table>`)

		return hw.err
	})
}
