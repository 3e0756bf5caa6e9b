// Package httphandler implements the REST API consumed by the review-system
// checks plugin and by operators.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/fwchecks/internal/application"
	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// asyncRefreshTimeout bounds the refresh started after a change is tracked,
// so it cannot outlive a stopped poll loop.
const asyncRefreshTimeout = 2 * time.Minute

// Refresher triggers immediate polls of tracked changes.
type Refresher interface {
	RefreshChange(ctx context.Context, changeNumber, patchset string) error
	Schedule(changeNumber, patchset string) (application.ScheduleInfo, bool)
}

// PluginConfig is served to the review-system plugin.
type PluginConfig struct {
	PollInterval time.Duration
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	checks      *application.CheckService
	status      *application.StatusService
	changes     driven.ChangeStore
	refresher   Refresher
	credentials *application.CredentialService
	clients     *application.CIClientProvider
	plugin      PluginConfig
	validate    *requestValidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewHandler creates a Handler with all required dependencies. refresher and
// credentials may be nil.
func NewHandler(
	checks *application.CheckService,
	status *application.StatusService,
	changes driven.ChangeStore,
	refresher Refresher,
	credentials *application.CredentialService,
	clients *application.CIClientProvider,
	plugin PluginConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		checks:      checks,
		status:      status,
		changes:     changes,
		refresher:   refresher,
		credentials: credentials,
		clients:     clients,
		plugin:      plugin,
		validate:    newRequestValidator(),
		logger:      logger,
		now:         time.Now,
	}
}

// RegisterAPIRoutes registers all API routes on the provided mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("POST /api/v1/checks", h.QueryChecks)
	mux.HandleFunc("GET /api/v1/plugin-config", h.GetPluginConfig)
	mux.HandleFunc("GET /api/v1/changes", h.ListChanges)
	mux.HandleFunc("POST /api/v1/changes", h.TrackChange)
	mux.HandleFunc("DELETE /api/v1/changes/{change}/{patchset}", h.UntrackChange)
	mux.HandleFunc("GET /api/v1/changes/{change}/{patchset}/runs", h.GetChangeRuns)
	mux.HandleFunc("POST /api/v1/changes/{change}/{patchset}/refresh", h.RefreshChange)
	mux.HandleFunc("PUT /api/v1/credentials/ci", h.UpdateCICredentials)
	mux.HandleFunc("DELETE /api/v1/credentials/ci", h.ClearCICredentials)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// QueryChecks answers the plugin's checks query. The CI outcome is always
// carried in the envelope with status 200; only an invalid body is a 400.
func (h *Handler) QueryChecks(w http.ResponseWriter, r *http.Request) {
	var req ChangeRequest
	if !h.decode(w, r, &req) {
		return
	}

	ref := req.toRef()
	if err := h.changes.Touch(r.Context(), ref, h.now()); err != nil {
		h.logger.Warn("failed to record change query", "change", ref.Key(), "error", err)
	}

	writeJSON(w, http.StatusOK, toCheckResponse(h.checks.Runs(r.Context(), ref)))
}

// GetPluginConfig returns the settings the plugin needs at load time.
func (h *Handler) GetPluginConfig(w http.ResponseWriter, _ *http.Request) {
	links := h.checks.Links()
	writeJSON(w, http.StatusOK, PluginConfigResponse{
		UIBaseURL:           links.UIBaseURL,
		DocsURL:             links.DocsURL,
		LabelName:           links.LabelName,
		PollIntervalSeconds: int(h.plugin.PollInterval / time.Second),
	})
}

// ListChanges returns all tracked changes.
func (h *Handler) ListChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := h.changes.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list changes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ChangeResponse, 0, len(changes))
	for _, c := range changes {
		resp = append(resp, toChangeResponse(c, h.schedule(c.Ref)))
	}

	writeJSON(w, http.StatusOK, resp)
}

// TrackChange starts tracking a change and triggers an async refresh.
func (h *Handler) TrackChange(w http.ResponseWriter, r *http.Request) {
	var req ChangeRequest
	if !h.decode(w, r, &req) {
		return
	}

	ref := req.toRef()
	if err := h.changes.Add(r.Context(), ref); err != nil {
		if errors.Is(err, driven.ErrChangeAlreadyTracked) {
			writeError(w, http.StatusConflict, "change already tracked")
			return
		}
		h.logger.Error("failed to track change", "change", ref.Key(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Background context since the request context is canceled once the
	// response is sent.
	if h.refresher != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), asyncRefreshTimeout)
			defer cancel()
			if err := h.refresher.RefreshChange(ctx, ref.ChangeNumber, ref.Patchset); err != nil {
				h.logger.Error("async change refresh failed", "change", ref.Key(), "error", err)
			}
		}()
	}

	change, err := h.changes.Get(r.Context(), ref.ChangeNumber, ref.Patchset)
	if err != nil || change == nil {
		writeJSON(w, http.StatusCreated, toChangeResponse(model.TrackedChange{Ref: ref, CIStatus: model.CIStatusUnknown}, nil))
		return
	}
	writeJSON(w, http.StatusCreated, toChangeResponse(*change, nil))
}

// UntrackChange stops tracking a change.
func (h *Handler) UntrackChange(w http.ResponseWriter, r *http.Request) {
	number, patchset := r.PathValue("change"), r.PathValue("patchset")

	if err := h.changes.Remove(r.Context(), number, patchset); err != nil {
		if errors.Is(err, driven.ErrChangeNotFound) {
			writeError(w, http.StatusNotFound, "change not tracked")
			return
		}
		h.logger.Error("failed to untrack change", "change", number, "patchset", patchset, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetChangeRuns returns the stored snapshot of a tracked change.
func (h *Handler) GetChangeRuns(w http.ResponseWriter, r *http.Request) {
	number, patchset := r.PathValue("change"), r.PathValue("patchset")

	summary, err := h.status.GetChangeSummary(r.Context(), number, patchset)
	if err != nil {
		if errors.Is(err, driven.ErrChangeNotFound) {
			writeError(w, http.StatusNotFound, "change not tracked")
			return
		}
		h.logger.Error("failed to get change runs", "change", number, "patchset", patchset, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ChangeRunsResponse{
		ChangeResponse: toChangeResponse(summary.Change, h.schedule(summary.Change.Ref)),
		Runs:           toCheckRunResponses(summary.Runs),
	})
}

// RefreshChange polls a tracked change immediately and returns the new snapshot.
func (h *Handler) RefreshChange(w http.ResponseWriter, r *http.Request) {
	number, patchset := r.PathValue("change"), r.PathValue("patchset")

	if h.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "polling is disabled")
		return
	}

	err := h.refresher.RefreshChange(r.Context(), number, patchset)
	switch {
	case errors.Is(err, driven.ErrChangeNotFound):
		writeError(w, http.StatusNotFound, "change not tracked")
		return
	case errors.Is(err, application.ErrPollFailed):
		writeError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to refresh change", "change", number, "patchset", patchset, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.GetChangeRuns(w, r)
}

// UpdateCICredentials stores a CI token, or exchanges an email and password
// for one, and swaps it into the running client.
func (h *Handler) UpdateCICredentials(w http.ResponseWriter, r *http.Request) {
	if h.credentials == nil {
		writeError(w, http.StatusServiceUnavailable, "credential management is disabled")
		return
	}

	var req CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.credentials.UpdateCI(r.Context(), application.Auth{
		Token:    req.Token,
		Email:    req.Email,
		Password: req.Password,
	})
	switch {
	case errors.Is(err, application.ErrNoCredentials):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		var um driven.UserMessager
		if errors.As(err, &um) {
			writeError(w, http.StatusUnauthorized, driven.ErrorMessage(err))
			return
		}
		h.logger.Error("failed to update CI credentials", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearCICredentials removes the stored CI token.
func (h *Handler) ClearCICredentials(w http.ResponseWriter, r *http.Request) {
	if h.credentials == nil {
		writeError(w, http.StatusServiceUnavailable, "credential management is disabled")
		return
	}

	if err := h.credentials.ClearCI(r.Context()); err != nil {
		h.logger.Error("failed to clear CI credentials", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Time:         h.now().UTC().Format(time.RFC3339),
		CIConfigured: h.clients.HasClient(),
	})
}

// decode reads and validates a JSON body into v. On failure it writes a 400
// and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if msg := h.validate.Validate(v); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return false
	}

	return true
}

func (h *Handler) schedule(ref model.ChangeRef) *application.ScheduleInfo {
	if h.refresher == nil {
		return nil
	}
	info, ok := h.refresher.Schedule(ref.ChangeNumber, ref.Patchset)
	if !ok {
		return nil
	}
	return &info
}
