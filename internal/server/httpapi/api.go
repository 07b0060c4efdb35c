// Package httpapi exposes the server's REST surface: the settings store,
// attachment presigning, and the websocket upgrade endpoint. Every /api
// route requires a join token; the verified identity rides the request
// context, so handlers never re-parse it.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/logging"
	"github.com/vttlabs/lorekeeper/internal/server/attachments"
	"github.com/vttlabs/lorekeeper/internal/server/auth"
	"github.com/vttlabs/lorekeeper/internal/server/hub"
	"github.com/vttlabs/lorekeeper/internal/server/settings"
)

// maxSettingSize bounds a stored value; the whole entry collection is one
// value, so this is effectively the wiki size cap.
const maxSettingSize = 16 << 20

type ctxKey string

const identityKey ctxKey = "identity"

type API struct {
	log    logging.Logger
	secret []byte
	repo   settings.Repository
	hub    *hub.Hub
	attach *attachments.Service
}

func New(secret []byte, repo settings.Repository, h *hub.Hub, attach *attachments.Service, log logging.Logger) *API {
	return &API{
		log:    log.With("module", "httpapi"),
		secret: secret,
		repo:   repo,
		hub:    h,
		attach: attach,
	}
}

func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", a.hub.ServeWS)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(a.authMiddleware)
	api.HandleFunc("/settings/{key}", a.getSetting).Methods(http.MethodGet)
	api.HandleFunc("/settings/{key}", a.putSetting).Methods(http.MethodPut)
	api.HandleFunc("/attachments/presign-put", a.presignPut).Methods(http.MethodPost)
	api.HandleFunc("/attachments/presign-get", a.presignGet).Methods(http.MethodGet)

	return r
}

// authMiddleware verifies the Bearer join token and stashes the identity in
// the request context.
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		ident, err := auth.VerifyToken(token, a.secret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, ident)))
	})
}

func identityFrom(r *http.Request) auth.Identity {
	ident, _ := r.Context().Value(identityKey).(auth.Identity)
	return ident
}

func (a *API) getSetting(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	key := mux.Vars(r)["key"]

	value, err := a.repo.Get(r.Context(), ident.World, key)
	if errors.Is(err, common.ErrorNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.log.Error(r.Context(), "settings get failed", "key", key, "error", err)
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(value)
}

// putSetting persists a value and pushes the storage-change notification to
// the world. Writes are GM-only at the transport level too: player replicas
// relay through a GM and never call this directly, so a player request here
// is a bypass attempt, not a bug.
func (a *API) putSetting(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)
	key := mux.Vars(r)["key"]

	if !ident.User.Role.IsGM() {
		http.Error(w, "permission denied", http.StatusForbidden)
		return
	}

	value, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSettingSize))
	if err != nil {
		http.Error(w, "body too large or unreadable", http.StatusBadRequest)
		return
	}

	if err := a.repo.Set(r.Context(), ident.World, key, value); err != nil {
		a.log.Error(r.Context(), "settings put failed", "key", key, "error", err)
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}

	a.hub.NotifySetting(ident.World, key)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) presignPut(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r)

	key, url, err := a.attach.PresignedPutURL(r.Context(), ident.World)
	if err != nil {
		a.log.Error(r.Context(), "presign put failed", "error", err)
		http.Error(w, "presign failure", http.StatusBadGateway)
		return
	}

	writeJSON(w, map[string]string{"key": key, "url": url})
}

func (a *API) presignGet(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}

	url, err := a.attach.PresignedGetURL(r.Context(), key)
	if err != nil {
		a.log.Error(r.Context(), "presign get failed", "error", err)
		http.Error(w, "presign failure", http.StatusBadGateway)
		return
	}

	writeJSON(w, map[string]string{"url": url})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
