package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/redisx"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/session"
)

type SessionsHandler struct {
	Sessions *session.Registry
	Cache    JSONCache // optional, only its key/value part is used
}

// NewSessionsHandler wires a registry that restores selections from cache and writes
// every change back. cache may be nil.
func NewSessionsHandler(cache JSONCache) *SessionsHandler {
	h := &SessionsHandler{Cache: cache}
	if cache == nil {
		h.Sessions = session.NewRegistry()
		return h
	}
	h.Sessions = session.NewRegistryWith(func(id string, s *session.Store) {
		ctx := context.Background()
		var sel session.Selection
		switch err := cache.GetJSON(ctx, redisx.SessionKey(id), &sel); {
		case err == nil:
			s.Replace(sel)
		case !errors.Is(err, redisx.ErrMiss):
			log.Printf("session %s restore: %v", id, err)
		}
		s.Subscribe(func(sel session.Selection) {
			if err := cache.SetJSON(context.Background(), redisx.SessionKey(id), sel); err != nil {
				log.Printf("session %s persist: %v", id, err)
			}
		})
	})
	return h
}

// Pointer fields: absent leaves the choice as is, "" clears it.
type selectionReq struct {
	CustomerID *string `json:"customer_id"`
	ReceiverID *string `json:"receiver_id"`
	ServiceID  *string `json:"service_id"`
}

func (h *SessionsHandler) Register(r chi.Router) {
	t := withTimeout(r)
	t.Get("/sessions/{id}/selection", h.getSelection)
	t.Put("/sessions/{id}/selection", h.putSelection)
	t.Delete("/sessions/{id}", h.dropSession)
}

// getSelection never registers a session; only writes do.
func (h *SessionsHandler) getSelection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s, ok := h.Sessions.Lookup(id); ok {
		writeJSON(w, http.StatusOK, s.Get())
		return
	}
	var sel session.Selection
	if h.Cache != nil {
		if err := h.Cache.GetJSON(r.Context(), redisx.SessionKey(id), &sel); err != nil && !errors.Is(err, redisx.ErrMiss) {
			log.Printf("session %s read: %v", id, err)
			sel = session.Selection{}
		}
	}
	writeJSON(w, http.StatusOK, sel)
}

func (h *SessionsHandler) putSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	s := h.Sessions.Get(chi.URLParam(r, "id"))
	// customer first: changing it clears the receiver, which the same request may set again
	if req.CustomerID != nil {
		s.SetCustomer(*req.CustomerID)
	}
	if req.ReceiverID != nil {
		s.SetReceiver(*req.ReceiverID)
	}
	if req.ServiceID != nil {
		s.SetService(*req.ServiceID)
	}
	writeJSON(w, http.StatusOK, s.Get())
}

func (h *SessionsHandler) dropSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.Sessions.Drop(id)
	if h.Cache != nil {
		if err := h.Cache.Delete(r.Context(), redisx.SessionKey(id)); err != nil {
			log.Printf("session %s drop: %v", id, err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
