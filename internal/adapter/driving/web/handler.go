// Package web implements the HTML dashboard driving adapter using templ components.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/fwchecks/internal/adapter/driving/web/templates"
	vm "github.com/ericfisherdev/fwchecks/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/fwchecks/internal/application"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// Refresher triggers an immediate poll of a tracked change.
type Refresher interface {
	RefreshChange(ctx context.Context, changeNumber, patchset string) error
	Schedule(changeNumber, patchset string) (application.ScheduleInfo, bool)
}

// Handler is the web driving adapter that serves HTML via templ components.
type Handler struct {
	changes   driven.ChangeStore
	status    *application.StatusService
	refresher Refresher
	clients   *application.CIClientProvider
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	changes driven.ChangeStore,
	status *application.StatusService,
	refresher Refresher,
	clients *application.CIClientProvider,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		changes:   changes,
		status:    status,
		refresher: refresher,
		clients:   clients,
		logger:    logger,
	}
}

// Dashboard renders the tracked change list.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	changes, err := h.changes.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list changes for dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := vm.DashboardViewModel{
		Changes:      make([]vm.ChangeRowViewModel, 0, len(changes)),
		CIConfigured: h.clients.HasClient(),
	}
	for _, c := range changes {
		data.Changes = append(data.Changes, toChangeRowViewModel(c, h.schedule(c.Ref.ChangeNumber, c.Ref.Patchset)))
	}

	h.render(w, r, "fwchecks", templates.Dashboard(data))
}

// ChangeDetail renders the stored snapshot of one change revision.
func (h *Handler) ChangeDetail(w http.ResponseWriter, r *http.Request) {
	number, patchset := r.PathValue("change"), r.PathValue("patchset")

	summary, err := h.status.GetChangeSummary(r.Context(), number, patchset)
	if err != nil {
		if errors.Is(err, driven.ErrChangeNotFound) {
			http.Error(w, "change not tracked", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load change", "change", number, "patchset", patchset, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := toChangeDetailViewModel(summary, h.schedule(number, patchset))
	data.CSRFToken = csrfToken(w, r)
	data.Flash = r.URL.Query().Get("flash")

	h.render(w, r, "Change "+number+"/"+patchset, templates.ChangeDetail(data))
}

// RefreshChange polls the change immediately and redirects back to its page.
func (h *Handler) RefreshChange(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	number, patchset := r.PathValue("change"), r.PathValue("patchset")

	flash := "Refreshed."
	err := h.refresher.RefreshChange(r.Context(), number, patchset)
	switch {
	case errors.Is(err, driven.ErrChangeNotFound):
		http.Error(w, "change not tracked", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Warn("dashboard refresh failed", "change", number, "patchset", patchset, "error", err)
		flash = "Refresh failed: " + err.Error()
	}

	http.Redirect(w, r, changePath(number, patchset)+"?flash="+url.QueryEscape(flash), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, title string, body templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Layout(title, body).Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) schedule(changeNumber, patchset string) *application.ScheduleInfo {
	info, ok := h.refresher.Schedule(changeNumber, patchset)
	if !ok {
		return nil
	}
	return &info
}
