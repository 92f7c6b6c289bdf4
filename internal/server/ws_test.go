package server

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, baseURL, path, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + path
	if query != "" {
		wsURL += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketMissingParamsClosedWithPolicyViolation(t *testing.T) {
	ts, _, _ := testServer(t)

	for _, path := range []string{"/stream", "/elevenlabs"} {
		for _, query := range []string{"", "sessionId=s1", "agentId=a1"} {
			conn := dialWS(t, ts.URL, path, query)
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

			_, _, err := conn.ReadMessage()
			require.Error(t, err)

			closeErr, ok := err.(*websocket.CloseError)
			require.True(t, ok, "expected close error on %s?%s, got %v", path, query, err)
			assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		}
	}
}

func TestWebSocketPairingThroughServerRoutes(t *testing.T) {
	ts, _, _ := testServer(t)

	transport := dialWS(t, ts.URL, "/stream", "sessionId=s1&agentId=a1&reservationId=r1")
	agent := dialWS(t, ts.URL, "/elevenlabs", "sessionId=s1&agentId=a1")

	media := []byte(`{"event":"media","media":{"payload":"YXVkaW8="}}`)

	// the agent leg may still be attaching; retry until the frame arrives
	require.NoError(t, agent.SetReadDeadline(time.Now().Add(3*time.Second)))
	done := make(chan []byte, 1)
	go func() {
		_, data, err := agent.ReadMessage()
		if err == nil {
			done <- data
		}
	}()

	require.Eventually(t, func() bool {
		require.NoError(t, transport.WriteMessage(websocket.TextMessage, media))
		select {
		case data := <-done:
			assert.Equal(t, media, data)
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}
