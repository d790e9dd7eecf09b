package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/mountkeep/pkg/mount"
	"github.com/marmos91/mountkeep/pkg/mount/orchestrator"
	"github.com/marmos91/mountkeep/pkg/registry"
)

// Engine is the slice of the orchestrator the API drives.
type Engine interface {
	Reconcile(ctx context.Context, scope orchestrator.Scope, trigger orchestrator.Trigger) error
	Unmount(ctx context.Context, scope orchestrator.Scope, userTriggered bool) error
}

// handlers serves the share and mount endpoints.
type handlers struct {
	registry *registry.Registry
	engine   Engine
}

// health is the unauthenticated liveness probe.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(map[string]int{"shares": h.registry.Len()}))
}

// listShares returns every registered share with live status.
func (h *handlers) listShares(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(h.registry.All()))
}

type createShareRequest struct {
	ResourceURI    string `json:"resource_uri"`
	AuthKind       string `json:"auth_kind"`
	CredentialRef  string `json:"credential_ref"`
	MountPointName string `json:"mount_point_name"`
}

// createShare registers a new share and kicks off a user-style reconcile
// for it.
func (h *handlers) createShare(w http.ResponseWriter, r *http.Request) {
	var req createShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("malformed request body"))
		return
	}

	share := mount.NewShare(req.ResourceURI, mount.AuthKind(req.AuthKind))
	share.CredentialRef = req.CredentialRef
	share.MountPointName = req.MountPointName
	if err := share.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if !h.registry.Add(share) {
		writeJSON(w, http.StatusConflict, errorResponse("a share for this resource already exists"))
		return
	}

	go func() {
		_ = h.engine.Reconcile(context.Background(),
			orchestrator.ScopeURIs(share.ResourceURI), orchestrator.TriggerUser)
	}()

	writeJSON(w, http.StatusCreated, okResponse(share))
}

// deleteShare unmounts and removes a share. Managed shares are refused.
func (h *handlers) deleteShare(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	share, err := h.registry.Get(id)
	if errors.Is(err, registry.ErrInvalidIndex) {
		writeJSON(w, http.StatusNotFound, errorResponse("no share with this id"))
		return
	}
	if share.Managed {
		writeJSON(w, http.StatusForbidden, errorResponse("managed shares cannot be removed locally"))
		return
	}

	if share.Status.Mounted() {
		if err := h.engine.Unmount(r.Context(), orchestrator.ScopeURIs(share.ResourceURI), false); err != nil {
			writeJSON(w, http.StatusConflict, errorResponse("unmount failed: "+err.Error()))
			return
		}
	}

	if err := h.registry.Remove(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse("no share with this id"))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(nil))
}

type scopeRequest struct {
	All  bool     `json:"all"`
	URIs []string `json:"uris"`
}

func (r scopeRequest) scope() orchestrator.Scope {
	if r.All {
		return orchestrator.ScopeAll()
	}
	return orchestrator.ScopeURIs(r.URIs...)
}

// triggerMount runs a user-triggered reconcile for the requested scope.
func (h *handlers) triggerMount(w http.ResponseWriter, r *http.Request) {
	var req scopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("malformed request body"))
		return
	}

	if err := h.engine.Reconcile(r.Context(), req.scope(), orchestrator.TriggerUser); err != nil {
		if errors.Is(err, orchestrator.ErrNoMatch) {
			writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(h.registry.All()))
}

// triggerUnmount runs a user-triggered unmount for the requested scope.
func (h *handlers) triggerUnmount(w http.ResponseWriter, r *http.Request) {
	var req scopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("malformed request body"))
		return
	}

	if err := h.engine.Unmount(r.Context(), req.scope(), true); err != nil {
		if errors.Is(err, orchestrator.ErrNoMatch) {
			writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(h.registry.All()))
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// login exchanges the admin password for a bearer token.
func (h *handlers) login(cfg APIConfig, jwtService *JWTService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("malformed request body"))
			return
		}

		if err := CheckPassword(cfg.AdminPasswordHash, req.Password); err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse("invalid credentials"))
			return
		}

		token, err := jwtService.GenerateToken("admin")
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse("failed to generate token"))
			return
		}
		writeJSON(w, http.StatusOK, okResponse(loginResponse{Token: token}))
	}
}
