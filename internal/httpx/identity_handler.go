package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-realtime-parcels.git/internal/identity"
)

type IdentityHandler struct{}

type validateIdentityReq struct {
	NationalID string `json:"national_id"`
	identity.FullName
}

type validateIdentityResp struct {
	NationalID string `json:"national_id"`
	Valid      bool   `json:"valid"`
	FullName   string `json:"full_name"`
}

func (h *IdentityHandler) Register(r chi.Router) {
	withTimeout(r).Post("/identity/validate", h.validate)
}

func (h *IdentityHandler) validate(w http.ResponseWriter, r *http.Request) {
	var req validateIdentityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	writeJSON(w, http.StatusOK, validateIdentityResp{
		NationalID: req.NationalID,
		Valid:      identity.IsValidNationalID(req.NationalID),
		FullName:   req.FullName.String(),
	})
}
