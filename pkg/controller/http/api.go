package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/slackdir/pkg/domain/model"
	"github.com/secmon-lab/slackdir/pkg/service/mention"
	"github.com/secmon-lab/slackdir/pkg/service/usercache"
	"github.com/secmon-lab/slackdir/pkg/usecase"
	"github.com/secmon-lab/slackdir/pkg/utils/errutil"
	"github.com/secmon-lab/slackdir/pkg/utils/safe"
)

// maxRenderMessages bounds one render request
const maxRenderMessages = 1000

type apiHandler struct {
	uc *usecase.UseCases
}

type workspaceResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type statsResponse struct {
	Size           int    `json:"size"`
	WorkspaceCount int    `json:"workspace_count"`
	OldestEntryAge string `json:"oldest_entry_age"`
	NewestEntryAge string `json:"newest_entry_age"`
	TTL            string `json:"ttl"`
}

func toStatsResponse(s usercache.Stats) statsResponse {
	return statsResponse{
		Size:           s.Size,
		WorkspaceCount: s.WorkspaceCount,
		OldestEntryAge: s.OldestEntryAge.String(),
		NewestEntryAge: s.NewestEntryAge.String(),
		TTL:            s.TTL.String(),
	}
}

type renderRequest struct {
	Text     *string  `json:"text,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

type ttlRequest struct {
	TTL string `json:"ttl"`
}

// errorStatus maps use case errors to HTTP status codes. Anything unrecognized comes from the
// directory store.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidWorkspaceContext), errors.Is(err, usecase.ErrInvalidTTL):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrWorkspaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrSyncUnavailable):
		return http.StatusNotImplemented
	default:
		return http.StatusServiceUnavailable
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusServiceUnavailable {
		_ = errutil.Handle(r.Context(), err, "user directory is unavailable")
		http.Error(w, "user directory is unavailable", status)
		return
	}
	errutil.HandleHTTP(r.Context(), w, err, status)
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}

func decodeJSON(r *http.Request, v any) error {
	defer safe.Close(r.Context(), r.Body)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return goerr.Wrap(err, "invalid request body")
	}
	return nil
}

func (h *apiHandler) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces := h.uc.User.ListWorkspaces()
	resp := struct {
		Workspaces []workspaceResponse `json:"workspaces"`
	}{
		Workspaces: make([]workspaceResponse, len(workspaces)),
	}
	for i, ws := range workspaces {
		resp.Workspaces[i] = workspaceResponse{ID: ws.ID, Name: ws.Name}
	}
	respondJSON(w, r, http.StatusOK, resp)
}

func (h *apiHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.uc.User.ListUsers(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"users": users})
}

func (h *apiHandler) getUser(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	userID := model.SlackUserID(chi.URLParam(r, "userID"))

	user, err := h.uc.User.GetUser(r.Context(), workspaceID, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, user)
}

func (h *apiHandler) refreshUser(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	userID := model.SlackUserID(chi.URLParam(r, "userID"))

	user, err := h.uc.User.RefreshUser(r.Context(), workspaceID, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, user)
}

func (h *apiHandler) refreshWorkspace(w http.ResponseWriter, r *http.Request) {
	users, err := h.uc.User.RefreshWorkspace(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"users": users})
}

func (h *apiHandler) syncWorkspace(w http.ResponseWriter, r *http.Request) {
	result, err := h.uc.User.SyncWorkspace(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, result)
}

func (h *apiHandler) render(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	if err := h.uc.User.CheckWorkspace(workspaceID); err != nil {
		respondError(w, r, err)
		return
	}

	var req renderRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	switch {
	case req.Text != nil:
		respondJSON(w, r, http.StatusOK, h.uc.Mention.RenderMessage(r.Context(), workspaceID, *req.Text))

	case req.Messages != nil:
		if len(req.Messages) > maxRenderMessages {
			errutil.HandleHTTP(r.Context(), w, goerr.New("too many messages",
				goerr.V("count", len(req.Messages)), goerr.V("max", maxRenderMessages)), http.StatusBadRequest)
			return
		}
		respondJSON(w, r, http.StatusOK, struct {
			Messages []*mention.Rendered `json:"messages"`
		}{
			Messages: h.uc.Mention.RenderMessages(r.Context(), workspaceID, req.Messages),
		})

	default:
		errutil.HandleHTTP(r.Context(), w, goerr.New("either text or messages is required"), http.StatusBadRequest)
	}
}

func (h *apiHandler) cacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, toStatsResponse(h.uc.User.CacheStats()))
}

func (h *apiHandler) setCacheTTL(w http.ResponseWriter, r *http.Request) {
	var req ttlRequest
	if err := decodeJSON(r, &req); err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	ttl, err := time.ParseDuration(req.TTL)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid ttl", goerr.V("ttl", req.TTL)), http.StatusBadRequest)
		return
	}

	if err := h.uc.User.SetCacheTTL(ttl); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toStatsResponse(h.uc.User.CacheStats()))
}
