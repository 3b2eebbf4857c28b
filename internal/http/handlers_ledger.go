package http

import (
	"log/slog"
	"net/http"

	tlog "tally/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := req.toTransaction()
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.ledger.AddTransaction(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(r.Context())
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req assetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := req.toAsset()
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.ledger.AddAsset(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(r.Context())
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleCreateValuation(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req valuationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	price, err := req.Price.decimal("price")
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.ledger.UpdateAssetValue(r.Context(), id, price, req.AsOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(r.Context())
	writeJSON(w, http.StatusCreated, snap)
}

// handleRecordNetWorth computes and stores a point on demand; an empty body means today.
func (s *Server) handleRecordNetWorth(w http.ResponseWriter, r *http.Request) {
	var req netWorthRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	point, err := s.engine.RecordNetWorth(r.Context(), req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(r.Context())
	slog.InfoContext(r.Context(), "Net worth recorded on request",
		"component", tlog.ComponentNetWorth,
		"date", point.Date.String(),
		"net_worth", point.NetWorth.String())
	writeJSON(w, http.StatusOK, point)
}
