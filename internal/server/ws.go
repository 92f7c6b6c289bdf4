package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/tablecall/internal/relay"
)

const maxSocketMessageBytes = 1 << 20

// handleTransportSocket accepts the telephony media leg.
func (s *Server) handleTransportSocket(w http.ResponseWriter, r *http.Request) {
	s.handleSocket(w, r, s.relay.RunTransport)
}

// handleAgentSocket accepts the voice agent's conversation leg.
func (s *Server) handleAgentSocket(w http.ResponseWriter, r *http.Request) {
	s.handleSocket(w, r, s.relay.RunAgent)
}

// handleSocket upgrades the connection and hands it to the relay. Both
// legs require agentId and sessionId; reservationId is optional. The
// parameters are checked after the upgrade so the violation is reported
// as a websocket close, which is what the providers can observe.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request, run func(*websocket.Conn, relay.ConnParams)) {
	q := r.URL.Query()
	params := relay.ConnParams{
		SessionID:     q.Get("sessionId"),
		AgentID:       q.Get("agentId"),
		ReservationID: q.Get("reservationId"),
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	if params.SessionID == "" || params.AgentID == "" {
		s.log.Warn().Str("path", r.URL.Path).Msg("websocket connection missing required parameters")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "agentId and sessionId are required"))
		conn.Close()
		return
	}

	conn.SetReadLimit(maxSocketMessageBytes)

	s.log.Debug().Str("path", r.URL.Path).Str("sessionId", params.SessionID).
		Msg("new websocket connection")

	run(conn, params)
}
