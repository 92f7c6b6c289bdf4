package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/soyeahso/tablecall/internal/call"
	"github.com/soyeahso/tablecall/internal/domain"
	"github.com/soyeahso/tablecall/internal/store"
)

const maxPartySize = 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeMessage writes {"message": ...}, the shape the reservation
// endpoints use for errors and acknowledgements.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.relay.SessionCount(),
	})
}

// handleCreateReservation validates and stores a new reservation, then
// kicks off the outbound call in the background. The client polls the
// reservation for progress; creation never waits on the call.
func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req domain.NewReservation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if msg := validateNewReservation(req); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	reservation, err := s.store.Create(req)
	if err != nil {
		s.log.Error().Err(err).Msg("creating reservation")
		writeMessage(w, http.StatusInternalServerError, "Failed to create reservation")
		return
	}

	go s.calls.InitiateCall(context.WithoutCancel(r.Context()), reservation.ID)

	writeJSON(w, http.StatusCreated, reservation)
}

func validateNewReservation(req domain.NewReservation) string {
	switch {
	case req.Name == "":
		return "name is required"
	case req.PhoneNumber == "":
		return "phoneNumber is required"
	case req.Date == "":
		return "date is required"
	case req.Time == "":
		return "time is required"
	case req.PartySize < 1 || req.PartySize > maxPartySize:
		return "partySize must be between 1 and " + strconv.Itoa(maxPartySize)
	}
	return ""
}

func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	reservation, err := s.store.Get(id)
	if err != nil {
		s.log.Error().Err(err).Str("reservationId", id).Msg("fetching reservation")
		writeMessage(w, http.StatusInternalServerError, "Failed to fetch reservation")
		return
	}
	if reservation == nil {
		writeMessage(w, http.StatusNotFound, "Reservation not found")
		return
	}

	writeJSON(w, http.StatusOK, reservation)
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	reservations, err := s.store.ListRecent(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("listing reservations")
		writeMessage(w, http.StatusInternalServerError, "Failed to fetch reservations")
		return
	}
	if reservations == nil {
		reservations = []domain.Reservation{}
	}

	writeJSON(w, http.StatusOK, reservations)
}

func (s *Server) handleRetryReservation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.calls.Retry(r.Context(), id); err != nil {
		if errors.Is(err, call.ErrReservationNotFound) {
			writeMessage(w, http.StatusNotFound, "Reservation not found")
			return
		}
		s.log.Error().Err(err).Str("reservationId", id).Msg("retrying reservation")
		writeMessage(w, http.StatusInternalServerError, "Failed to retry reservation")
		return
	}

	writeMessage(w, http.StatusOK, "Reservation call retry initiated")
}

// handleCallStatus is the telephony provider's status callback. The body
// is a plain status update applied as a merge.
func (s *Server) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	var update domain.StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if update.ID == "" {
		writeMessage(w, http.StatusBadRequest, "id is required")
		return
	}
	if !update.Status.Valid() {
		writeMessage(w, http.StatusBadRequest, "invalid status value")
		return
	}

	reservation, err := s.store.MergeStatus(update)
	if err != nil {
		s.log.Error().Err(err).Str("reservationId", update.ID).Msg("updating reservation status")
		writeMessage(w, http.StatusInternalServerError, "Failed to update reservation status")
		return
	}
	if reservation == nil {
		writeMessage(w, http.StatusNotFound, "Reservation not found")
		return
	}

	writeJSON(w, http.StatusOK, reservation)
}

// agentResponse is the voice-agent outcome callback body. The provider
// has sent the reservation ID under two different keys and as either a
// string or a number; both are accepted.
type agentResponse struct {
	ReservationID       domain.FlexString `json:"reservationId"`
	ReservationIDAlt    domain.FlexString `json:"reservation_id"`
	Status              domain.Status     `json:"status"`
	StatusMessage       string            `json:"statusMessage"`
	ConfirmedDate       string            `json:"confirmedDate"`
	ConfirmedTime       string            `json:"confirmedTime"`
	SpecialInstructions string            `json:"specialInstructions"`
	PartySize           domain.FlexInt    `json:"partySize"`
	PersonName          string            `json:"personName"`
}

// handleAgentResponse applies the voice agent's conversation outcome.
// Status is the only mandatory field. A missing reservation ID falls
// back to the most recent reservation, a convenience that is only safe
// with a single call in flight.
func (s *Server) handleAgentResponse(w http.ResponseWriter, r *http.Request) {
	var resp agentResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if resp.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required status parameter"})
		return
	}
	if !resp.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid status value"})
		return
	}

	id := string(resp.ReservationID)
	if id == "" {
		id = string(resp.ReservationIDAlt)
	}
	if id == "" {
		s.log.Warn().Msg("agent response without reservation ID, using most recent reservation")
		recent, err := s.store.ListRecent(1)
		if err != nil {
			s.log.Error().Err(err).Msg("resolving most recent reservation")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process agent response"})
			return
		}
		if len(recent) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "No reservations found"})
			return
		}
		id = recent[0].ID
	}

	update := buildAgentUpdate(id, resp)

	reservation, err := s.store.MergeStatus(update)
	if err != nil {
		s.log.Error().Err(err).Str("reservationId", id).Msg("processing agent response")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process agent response"})
		return
	}
	if reservation == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Reservation not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Agent response processed successfully",
		"reservation": reservation,
	})
}

// buildAgentUpdate fills in the per-status default message and details
// the way the original callback contract defines them.
func buildAgentUpdate(id string, resp agentResponse) domain.StatusUpdate {
	update := domain.StatusUpdate{
		ID:                  id,
		Status:              resp.Status,
		StatusMessage:       resp.StatusMessage,
		PersonName:          resp.PersonName,
		ConfirmedPartySize:  int(resp.PartySize),
		SpecialInstructions: resp.SpecialInstructions,
	}
	if update.StatusMessage == "" {
		update.StatusMessage = "Reservation response received"
	}

	switch resp.Status {
	case domain.StatusSuccess:
		update.StatusDetails = "The restaurant has confirmed your reservation"
		update.FinalDateTime = domain.FormatConfirmedDateTime(resp.ConfirmedDate, resp.ConfirmedTime)
	case domain.StatusError:
		if resp.StatusMessage == "" {
			update.StatusMessage = "The restaurant was unable to accommodate the reservation"
		}
		update.StatusDetails = "The restaurant was unable to accommodate the reservation at the requested time"
	case domain.StatusNotReached:
		if resp.StatusMessage == "" {
			update.StatusMessage = "Unable to connect with the restaurant"
		}
		update.StatusDetails = "We couldn't connect with the restaurant. The line may be busy or they might be closed."
	}

	return update
}
