// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package admin provides the relay's HTTP control surface: session
// registration, health checks, and remote kill.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/wingedpig/codewalk/internal/protocol"
	"github.com/wingedpig/codewalk/internal/relay/broadcast"
	"github.com/wingedpig/codewalk/internal/relay/store"
)

// Handler serves the relay's admin HTTP routes.
type Handler struct {
	store       *store.Store
	rdb         *redis.Client
	registry    *broadcast.Registry
	publicWSURL string
	sessionTTL  time.Duration
}

// NewHandler builds an admin handler.
func NewHandler(st *store.Store, rdb *redis.Client, registry *broadcast.Registry, publicWSURL string, sessionTTL time.Duration) *Handler {
	return &Handler{store: st, rdb: rdb, registry: registry, publicWSURL: publicWSURL, sessionTTL: sessionTTL}
}

// Routes registers the admin endpoints on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/session/{id}", h.KillSession).Methods(http.MethodDelete)
}

// registerResponse is the pairing payload a phone client scans or types in.
// QR image rendering is intentionally not produced here; qrPayload carries
// the raw fields so a client can render its own code locally.
type registerResponse struct {
	SessionID string    `json:"sessionId"`
	Token     string    `json:"token"`
	TTL       int64     `json:"ttl"`
	WSURL     string    `json:"ws"`
	QRPayload qrPayload `json:"qrPayload"`
}

type qrPayload struct {
	U string `json:"u"`
	S string `json:"s"`
	T string `json:"t"`
}

// Register creates a new session record and returns its pairing payload.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Create(r.Context(), h.sessionTTL)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, registerResponse{
		SessionID: sess.ID,
		Token:     sess.Token,
		TTL:       int64(h.sessionTTL.Seconds()),
		WSURL:     h.publicWSURL,
		QRPayload: qrPayload{U: h.publicWSURL, S: sess.ID, T: sess.Token},
	})
}

// Health reports liveness; it does not touch Redis.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// KillSession deletes the session record and its role map, then notifies
// any connected peers both over Redis pub/sub (the cross-process path) and
// the in-process broadcast registry (the low-latency same-process path).
func (h *Handler) KillSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	exists, err := h.store.Exists(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if !exists {
		WriteError(w, http.StatusNotFound, ErrNotFound, "session not found")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	payload, _ := json.Marshal(protocol.RelayEnvelope{
		Type: protocol.RelaySessionKilled,
		SID:  id,
		At:   time.Now(),
	})
	h.rdb.Publish(r.Context(), store.ChannelKey(id), payload)
	if h.registry != nil {
		h.registry.Notify(id, payload)
	}

	w.WriteHeader(http.StatusNoContent)
}
