// Package relay pairs the two legs of a reservation call, the transport
// leg carrying the phone call's media and the voice agent's conversation
// leg, under a shared session ID. It forwards messages between them and
// intercepts the agent's control messages.
package relay

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/tablecall/internal/domain"
	"github.com/soyeahso/tablecall/internal/logging"
)

// connState tracks whether a session's agent leg is attached.
type connState string

const (
	stateConnecting   connState = "connecting"
	stateConnected    connState = "connected"
	stateDisconnected connState = "disconnected"
)

// StatusSink receives reservation status updates triggered by agent
// control messages. (nil, nil) means the reservation is unknown.
type StatusSink interface {
	MergeStatus(update domain.StatusUpdate) (*domain.Reservation, error)
}

// ConnParams are the connection-time parameters both legs must supply.
// ReservationID is optional.
type ConnParams struct {
	SessionID     string
	AgentID       string
	ReservationID string
}

// session is the pairing of one or more transport legs with at most one
// live agent leg. It exists from the first reference to its ID until the
// last transport leg detaches.
type session struct {
	id            string
	agentID       string
	reservationID string
	state         connState
	agent         *wsConn // live send handle; nil unless state is connected
}

// transportConn is one registered transport-leg connection.
type transportConn struct {
	id            string
	sessionID     string
	agentID       string
	reservationID string
	sock          *wsConn
}

// Manager owns the session and transport registries. It is injected into
// the websocket handlers; there is no package-level state.
type Manager struct {
	statuses StatusSink
	log      *logging.Logger

	mu         sync.Mutex
	sessions   map[string]*session
	transports map[string]*transportConn
}

// NewManager creates an empty relay manager.
func NewManager(statuses StatusSink, log *logging.Logger) *Manager {
	return &Manager{
		statuses:   statuses,
		log:        log.Sub("relay"),
		sessions:   make(map[string]*session),
		transports: make(map[string]*transportConn),
	}
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// TransportCount returns the number of registered transport connections.
func (m *Manager) TransportCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transports)
}

// RunTransport registers a transport-leg connection and processes its
// messages until it disconnects. Messages are forwarded verbatim to the
// session's agent leg when one is connected; otherwise they are dropped,
// never buffered.
func (m *Manager) RunTransport(sock *websocket.Conn, p ConnParams) {
	conn := newWSConn(sock)
	tc := &transportConn{
		id:            "twilio-" + uuid.New().String(),
		sessionID:     p.SessionID,
		agentID:       p.AgentID,
		reservationID: p.ReservationID,
		sock:          conn,
	}

	m.attachTransport(tc)
	defer m.detachTransport(tc)

	for {
		messageType, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.log.Debug().Str("connId", tc.id).Msg("transport leg closed")
			} else {
				m.log.Warn().Err(err).Str("connId", tc.id).Msg("transport read error")
			}
			return
		}

		agent := m.agentHandle(tc.sessionID)
		if agent == nil {
			m.log.Debug().Str("sessionId", tc.sessionID).
				Msg("no connected agent leg, dropping transport message")
			continue
		}
		if err := agent.Send(messageType, data); err != nil {
			m.log.Warn().Err(err).Str("sessionId", tc.sessionID).
				Msg("forwarding to agent leg")
		}
	}
}

// RunAgent attaches an agent-leg connection to its session and processes
// its messages until it disconnects. Control messages are interpreted
// locally; everything else fans out to every transport leg of the session.
func (m *Manager) RunAgent(sock *websocket.Conn, p ConnParams) {
	conn := newWSConn(sock)
	m.attachAgent(conn, p)
	defer m.detachAgent(p.SessionID, conn)

	for {
		messageType, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.log.Debug().Str("sessionId", p.SessionID).Msg("agent leg closed")
			} else {
				m.log.Warn().Err(err).Str("sessionId", p.SessionID).Msg("agent read error")
			}
			return
		}

		if ctrl, ok := DecodeControl(data); ok {
			m.handleControl(p.SessionID, conn, ctrl)
			continue
		}

		m.fanOut(p.SessionID, messageType, data)
	}
}

// attachTransport registers the connection and ensures a session record
// exists, creating one in connecting state when needed.
func (m *Manager) attachTransport(tc *transportConn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transports[tc.id] = tc
	if _, ok := m.sessions[tc.sessionID]; !ok {
		m.sessions[tc.sessionID] = &session{
			id:            tc.sessionID,
			agentID:       tc.agentID,
			reservationID: tc.reservationID,
			state:         stateConnecting,
		}
		m.log.Info().Str("sessionId", tc.sessionID).Msg("session created")
	}
	m.log.Info().Str("connId", tc.id).Str("sessionId", tc.sessionID).
		Msg("transport leg attached")
}

// detachTransport removes the connection. When it was the session's last
// transport leg, the session is torn down and any agent-leg connection is
// closed, freeing resources without relying on agent-side cleanup.
func (m *Manager) detachTransport(tc *transportConn) {
	m.mu.Lock()
	delete(m.transports, tc.id)

	remaining := false
	for _, other := range m.transports {
		if other.sessionID == tc.sessionID {
			remaining = true
			break
		}
	}

	var agent *wsConn
	if !remaining {
		if sess, ok := m.sessions[tc.sessionID]; ok {
			agent = sess.agent
			delete(m.sessions, tc.sessionID)
			m.log.Info().Str("sessionId", tc.sessionID).Msg("session removed")
		}
	}
	m.mu.Unlock()

	tc.sock.Close()
	if agent != nil {
		agent.Close()
	}
	m.log.Info().Str("connId", tc.id).Msg("transport leg detached")
}

// attachAgent installs the connection as the session's live agent handle,
// superseding any previous one. The replaced handle is simply discarded:
// at most one agent-leg writer is live per session.
func (m *Manager) attachAgent(conn *wsConn, p ConnParams) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[p.SessionID]
	if !ok {
		sess = &session{
			id:            p.SessionID,
			agentID:       p.AgentID,
			reservationID: p.ReservationID,
			state:         stateConnected,
			agent:         conn,
		}
		m.sessions[p.SessionID] = sess
		m.log.Info().Str("sessionId", p.SessionID).Msg("session created by agent leg")
		return
	}

	sess.agent = conn
	sess.state = stateConnected
	m.log.Info().Str("sessionId", p.SessionID).Msg("agent leg attached")
}

// detachAgent marks the session disconnected, but only if conn is still
// the live handle; a superseded connection must not demote its
// replacement. The session record stays: a transport leg may still be
// attached and a replacement agent leg may arrive.
func (m *Manager) detachAgent(sessionID string, conn *wsConn) {
	m.mu.Lock()
	if sess, ok := m.sessions[sessionID]; ok && sess.agent == conn {
		sess.agent = nil
		sess.state = stateDisconnected
		m.log.Info().Str("sessionId", sessionID).Msg("agent leg detached")
	}
	m.mu.Unlock()

	conn.Close()
}

// agentHandle returns the session's live agent send handle, or nil when
// the session is absent or not connected.
func (m *Manager) agentHandle(sessionID string) *wsConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok || sess.state != stateConnected {
		return nil
	}
	return sess.agent
}

// sessionReservationID returns the reservation bound to the session, if
// any.
func (m *Manager) sessionReservationID(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionID]; ok {
		return sess.reservationID
	}
	return ""
}

// fanOut forwards a message verbatim to every transport leg registered
// for the session.
func (m *Manager) fanOut(sessionID string, messageType int, data []byte) {
	m.mu.Lock()
	var targets []*wsConn
	for _, tc := range m.transports {
		if tc.sessionID == sessionID {
			targets = append(targets, tc.sock)
		}
	}
	m.mu.Unlock()

	for _, sock := range targets {
		if err := sock.Send(messageType, data); err != nil {
			m.log.Warn().Err(err).Str("sessionId", sessionID).
				Msg("forwarding to transport leg")
		}
	}
}
