package web

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mpared/folio/internal/domain"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleTransactions appends one transaction to the ledger. The stored
// transaction, with its assigned ID, is echoed back.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	stored, err := s.deps.Ledger.Append(tx)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.logger.Info("transaction recorded",
		zap.String("portfolio", stored.Portfolio),
		zap.String("id", stored.ID),
		zap.String("type", string(stored.Type)))
	s.writeJSON(w, http.StatusCreated, stored)
}

// handlePositions replays the ledger and returns current holdings.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	portfolio := r.URL.Query().Get("portfolio")
	if portfolio == "" {
		http.Error(w, "portfolio query param is required", http.StatusBadRequest)
		return
	}

	positions, err := s.deps.Positions.Positions(portfolio)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	portfolio := r.URL.Query().Get("portfolio")
	if portfolio == "" {
		http.Error(w, "portfolio query param is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		zones, err := s.deps.Zones.Zones(portfolio)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, http.StatusOK, zones)
	case http.MethodPut:
		var zones []domain.Zone
		if err := json.NewDecoder(r.Body).Decode(&zones); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.deps.Zones.SaveZones(portfolio, zones); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := s.deps.Zones.Zones(portfolio)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, http.StatusOK, saved)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleZoneExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	portfolio := r.URL.Query().Get("portfolio")
	zoneID := r.URL.Query().Get("id")
	if portfolio == "" || zoneID == "" {
		http.Error(w, "portfolio and id query params are required", http.StatusBadRequest)
		return
	}

	if err := s.deps.Zones.MarkZoneExecuted(portfolio, zoneID); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBands(w http.ResponseWriter, r *http.Request) {
	portfolio := r.URL.Query().Get("portfolio")
	if portfolio == "" {
		http.Error(w, "portfolio query param is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		bands, err := s.deps.Zones.Bands(portfolio)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, http.StatusOK, bands)
	case http.MethodPut:
		var bands []domain.BuyBand
		if err := json.NewDecoder(r.Body).Decode(&bands); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.deps.Zones.SaveBands(portfolio, bands); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		saved, err := s.deps.Zones.Bands(portfolio)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, http.StatusOK, saved)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleBandExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	portfolio := r.URL.Query().Get("portfolio")
	bandID := r.URL.Query().Get("id")
	if portfolio == "" || bandID == "" {
		http.Error(w, "portfolio and id query params are required", http.StatusBadRequest)
		return
	}

	if err := s.deps.Zones.MarkBandExecuted(portfolio, bandID); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
