package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/livequery"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/metrics"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/paging"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/redisx"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/replica"
)

// ParcelStore is the server of record. *parcels.Repo implements it.
type ParcelStore interface {
	ListPage(ctx context.Context, f parcels.Filter, offset, limit int) (paging.Page[parcels.Parcel], error)
	Get(ctx context.Context, id string) (parcels.Parcel, error)
	Create(ctx context.Context, p parcels.Parcel) (parcels.Parcel, bool, error)
	UpdateStatus(ctx context.Context, id string, to parcels.Status) (parcels.Parcel, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// JSONCache is a TTL cache of JSON values. *redisx.Cache implements it.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, out any) error
	SetJSON(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// ChangePublisher puts a parcel change on the feed. *syncer.Service implements it.
type ChangePublisher interface {
	Publish(c parcels.Change, traceID string) error
}

type ParcelsHandler struct {
	Repo         ParcelStore
	Cache        JSONCache // optional
	Feed         ChangePublisher
	Replica      *replica.Replica
	Metrics      *metrics.Registry
	LiveDebounce time.Duration
}

type createParcelReq struct {
	ID             string   `json:"id"`
	TrackingNumber string   `json:"tracking_number"`
	Description    string   `json:"description"`
	OrderID        int64    `json:"order_id"`
	Weight         float64  `json:"weight"`
	AgencyIDs      []string `json:"agency_ids"`
}

type updateStatusReq struct {
	Status parcels.Status `json:"status"`
}

type liveResp struct {
	livequery.Result
	Error string `json:"error,omitempty"`
}

func (h *ParcelsHandler) Register(r chi.Router) {
	r.Get("/parcels/live/stream", h.streamLive)

	t := withTimeout(r)
	t.Get("/parcels", h.listParcels)
	t.Get("/parcels/live", h.getLive)
	t.Get("/parcels/{id}", h.getParcel)
	t.Post("/parcels", h.createParcel)
	t.Patch("/parcels/{id}/status", h.updateStatus)
	t.Delete("/parcels/{id}", h.deleteParcel)
}

func filterFromQuery(r *http.Request) (parcels.Filter, error) {
	q := r.URL.Query()
	f := parcels.Filter{Status: parcels.Status(q.Get("status")), Search: q.Get("search")}
	if f.Status != "" && !f.Status.Valid() {
		return f, fmt.Errorf("unknown status %q", f.Status)
	}
	return f, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

func (h *ParcelsHandler) listParcels(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit", paging.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, limit = paging.Clamp(offset, limit)
	ctx := r.Context()

	// 1) coba cache
	key := redisx.ParcelPageKey(string(f.Status), f.Search, offset, limit)
	if h.Cache != nil {
		var page paging.Page[parcels.Parcel]
		if err := h.Cache.GetJSON(ctx, key, &page); err == nil {
			h.countCache(true)
			writeJSON(w, http.StatusOK, page)
			return
		} else if !errors.Is(err, redisx.ErrMiss) {
			log.Printf("page cache get: %v", err)
		}
		h.countCache(false)
	}

	// 2) fallback DB
	page, err := h.Repo.ListPage(ctx, f, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if page.Rows == nil {
		page.Rows = []parcels.Parcel{}
	}
	if h.Cache != nil {
		if err := h.Cache.SetJSON(ctx, key, page); err != nil {
			log.Printf("page cache set: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ParcelsHandler) countCache(hit bool) {
	if h.Metrics == nil {
		return
	}
	if hit {
		h.Metrics.PageCacheHits.Inc()
	} else {
		h.Metrics.PageCacheMisses.Inc()
	}
}

func (h *ParcelsHandler) getParcel(w http.ResponseWriter, r *http.Request) {
	p, err := h.Repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ParcelsHandler) createParcel(w http.ResponseWriter, r *http.Request) {
	var req createParcelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ID == "" || req.TrackingNumber == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	if req.Weight < 0 {
		writeError(w, http.StatusBadRequest, "negative weight")
		return
	}

	p, created, err := h.Repo.Create(r.Context(), parcels.Parcel{
		ID:             req.ID,
		TrackingNumber: req.TrackingNumber,
		Description:    req.Description,
		Status:         parcels.StatusInAgency,
		OrderID:        req.OrderID,
		Weight:         req.Weight,
		AgencyIDs:      req.AgencyIDs,
	})
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, p)
		return
	}
	h.afterWrite(r, parcels.UpsertChange(p))
	writeJSON(w, http.StatusCreated, p)
}

func (h *ParcelsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
		return
	}
	p, err := h.Repo.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.afterWrite(r, parcels.UpsertChange(p))
	writeJSON(w, http.StatusOK, p)
}

func (h *ParcelsHandler) deleteParcel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	seq, err := h.Repo.Delete(r.Context(), id)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	h.afterWrite(r, parcels.DeleteChange(id, seq))
	w.WriteHeader(http.StatusNoContent)
}

// afterWrite publishes the committed change and drops cached pages. The database is
// already updated, so failures here are logged, not returned.
func (h *ParcelsHandler) afterWrite(r *http.Request, c parcels.Change) {
	if h.Feed != nil {
		if err := h.Feed.Publish(c, middleware.GetReqID(r.Context())); err != nil {
			log.Printf("publish change %s: %v", c.ID, err)
		}
	}
	if h.Cache != nil {
		if err := h.Cache.DeleteByPrefix(r.Context(), redisx.PrefixParcelPage); err != nil {
			log.Printf("page cache invalidate: %v", err)
		}
	}
}

func (h *ParcelsHandler) writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, parcels.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, parcels.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *ParcelsHandler) newQuery(f parcels.Filter) *livequery.Query {
	opts := []livequery.Option{livequery.WithDebounce(h.LiveDebounce)}
	if h.Metrics != nil {
		opts = append(opts, livequery.WithMetrics(h.Metrics))
	}
	return livequery.New(h.Replica, f, opts...)
}

func toLiveResp(res livequery.Result) liveResp {
	out := liveResp{Result: res}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	if out.Rows == nil {
		out.Rows = []parcels.Parcel{}
	}
	return out
}

// getLive answers from the local replica with the first result of a live query.
func (h *ParcelsHandler) getLive(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := h.newQuery(f)
	defer q.Close()
	q.Start(r.Context())

	select {
	case res, ok := <-q.Updates():
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "query closed")
			return
		}
		writeJSON(w, http.StatusOK, toLiveResp(res))
	case <-r.Context().Done():
		writeError(w, http.StatusGatewayTimeout, "timeout")
	}
}

// streamLive pushes every result of a live query as a server-sent event until the
// client goes away.
func (h *ParcelsHandler) streamLive(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	q := h.newQuery(f)
	defer q.Close()
	q.Start(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case res, ok := <-q.Updates():
			if !ok {
				return
			}
			b, err := json.Marshal(toLiveResp(res))
			if err != nil {
				log.Printf("live stream encode: %v", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", res.State, b); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
