package api

import (
	"net/http"

	"counselling-payments/internal/domain"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handlePremiumStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	caller := claimsFrom(r.Context()).ID
	if userID == "" {
		userID = caller
	}
	if userID != caller {
		writeError(w, r, s.log, domain.ErrForbidden)
		return
	}
	st, err := s.premium.CheckStatus(r.Context(), userID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type isPremiumRequest struct {
	Phone string `json:"phone"`
}

func (s *Server) handleIsPremium(w http.ResponseWriter, r *http.Request) {
	var req isPremiumRequest
	if err := decodeJSON(r, &req); err != nil || req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Phone number is required"})
		return
	}
	// the token's phone claim scopes the lookup
	if claimsFrom(r.Context()).Phone != req.Phone {
		writeError(w, r, s.log, domain.ErrForbidden)
		return
	}
	st, err := s.premium.CheckStatusByPhone(r.Context(), req.Phone)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
