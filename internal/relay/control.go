package relay

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/soyeahso/tablecall/internal/domain"
)

// ControlMessage is an agent-leg message the relay interprets instead of
// forwarding. Anything that does not decode as one is treated as media.
type ControlMessage struct {
	Type      string           `json:"type"`
	ID        json.RawMessage  `json:"id,omitempty"`
	Function  string           `json:"function,omitempty"`
	Arguments functionArgs     `json:"arguments,omitempty"`
	Result    completionResult `json:"result,omitempty"`
}

type completionResult struct {
	Success           bool   `json:"success"`
	ConfirmedDateTime string `json:"confirmedDateTime,omitempty"`
}

type functionArgs struct {
	Date                string         `json:"date,omitempty"`
	Time                string         `json:"time,omitempty"`
	PartySize           domain.FlexInt `json:"partySize,omitempty"`
	SpecialInstructions string         `json:"specialInstructions,omitempty"`
}

// functionResult is the reply sent back to the agent for a function_call,
// echoing the call ID verbatim.
type functionResult struct {
	Type   string          `json:"type"`
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result"`
}

// DecodeControl attempts to read data as a control message. Returns false
// when the payload is not JSON or its type is not a recognized control
// type; such messages must be forwarded untouched.
func DecodeControl(data []byte) (ControlMessage, bool) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{}, false
	}
	switch msg.Type {
	case "completion", "function_call":
		return msg, true
	}
	return ControlMessage{}, false
}

// handleControl processes a control message from the session's agent leg.
// Status updates go through the sink keyed by the session's reservation;
// a session without one logs and drops the update.
func (m *Manager) handleControl(sessionID string, agent *wsConn, msg ControlMessage) {
	switch msg.Type {
	case "completion":
		m.handleCompletion(sessionID, msg)
	case "function_call":
		m.handleFunctionCall(sessionID, agent, msg)
	}
}

// handleCompletion records the conversation's final outcome.
func (m *Manager) handleCompletion(sessionID string, msg ControlMessage) {
	reservationID := m.sessionReservationID(sessionID)
	if reservationID == "" {
		m.log.Warn().Str("sessionId", sessionID).
			Msg("completion received for a session with no reservation")
		return
	}

	update := domain.StatusUpdate{ID: reservationID}
	if msg.Result.Success {
		update.Status = domain.StatusSuccess
		update.StatusMessage = "Reservation confirmed"
		update.StatusDetails = "The restaurant has confirmed your reservation"
		update.FinalDateTime = msg.Result.ConfirmedDateTime
	} else {
		update.Status = domain.StatusError
		update.StatusMessage = "Reservation failed"
		update.StatusDetails = "The restaurant was unable to accommodate the reservation at the requested time"
	}

	if _, err := m.statuses.MergeStatus(update); err != nil {
		m.log.Error().Err(err).Str("reservationId", reservationID).
			Msg("recording completion")
		return
	}
	m.log.Info().Str("reservationId", reservationID).Bool("success", msg.Result.Success).
		Msg("conversation completed")
}

// handleFunctionCall executes one of the agent's tool calls and replies
// with a function_result on the same connection. Unrecognized functions
// get no reply at all.
func (m *Manager) handleFunctionCall(sessionID string, agent *wsConn, msg ControlMessage) {
	var result any

	switch msg.Function {
	case "checkAvailability":
		result = map[string]any{
			"available":        true,
			"alternativeTimes": []string{"18:30", "19:30", "20:00"},
		}

	case "confirmReservation":
		code := fmt.Sprintf("RES%04d", rand.IntN(10000))
		result = map[string]any{
			"success":          true,
			"confirmationCode": code,
		}
		m.recordConfirmation(sessionID, msg.Arguments)

	default:
		m.log.Warn().Str("function", msg.Function).Str("sessionId", sessionID).
			Msg("unknown agent function")
		return
	}

	reply := functionResult{Type: "function_result", ID: msg.ID, Result: result}
	if err := agent.SendJSON(reply); err != nil {
		m.log.Warn().Err(err).Str("sessionId", sessionID).
			Msg("sending function result")
	}
}

// recordConfirmation persists a confirmReservation call as a success
// status with the confirmed details.
func (m *Manager) recordConfirmation(sessionID string, args functionArgs) {
	reservationID := m.sessionReservationID(sessionID)
	if reservationID == "" {
		m.log.Warn().Str("sessionId", sessionID).
			Msg("confirmation received for a session with no reservation")
		return
	}

	update := domain.StatusUpdate{
		ID:                  reservationID,
		Status:              domain.StatusSuccess,
		StatusMessage:       "Reservation confirmed",
		StatusDetails:       "The restaurant has confirmed your reservation",
		FinalDateTime:       domain.FormatConfirmedDateTime(args.Date, args.Time),
		ConfirmedPartySize:  int(args.PartySize),
		SpecialInstructions: args.SpecialInstructions,
	}

	if _, err := m.statuses.MergeStatus(update); err != nil {
		m.log.Error().Err(err).Str("reservationId", reservationID).
			Msg("recording confirmation")
		return
	}
	m.log.Info().Str("reservationId", reservationID).Msg("reservation confirmed by agent")
}
