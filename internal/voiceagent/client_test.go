package voiceagent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/tablecall/internal/config"
	"github.com/soyeahso/tablecall/internal/logging"
)

func TestStartOutboundCall(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"callSid": "CA-test-123"})
	}))
	defer ts.Close()

	client := NewClient(config.ElevenLabsConfig{
		APIKey:        "xi-key",
		AgentID:       "agent-1",
		PhoneNumberID: "phone-1",
		BaseURL:       ts.URL,
	}, logging.New(nil, "silent"))

	session, err := client.StartOutboundCall(context.Background(), CallDetails{
		PersonName:          "Alex",
		PhoneNumber:         "+14155550100",
		Date:                "2025-04-23",
		Time:                "19:30",
		PartySize:           4,
		SpecialInstructions: "Window table",
		ReservationID:       "res-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "agent-1", session.AgentID)
	assert.Equal(t, "CA-test-123", session.CallSID)
	assert.Equal(t, "/convai/twilio/outbound_call", gotPath)
	assert.Equal(t, "xi-key", gotKey)

	assert.Equal(t, "agent-1", gotBody["agent_id"])
	assert.Equal(t, "phone-1", gotBody["agent_phone_number_id"])
	assert.Equal(t, "+14155550100", gotBody["to_number"])

	initiation, ok := gotBody["conversation_initiation_client_data"].(map[string]any)
	require.True(t, ok)
	vars, ok := initiation["dynamic_variables"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alex", vars["personName"])
	assert.Equal(t, "4", vars["partySize"])
	assert.Equal(t, "res-1", vars["reservationId"])
}

func TestStartOutboundCallFallsBackToSimulatedSession(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(config.ElevenLabsConfig{
		APIKey:  "xi-key",
		AgentID: "agent-1",
		BaseURL: ts.URL,
	}, logging.New(nil, "silent"))

	session, err := client.StartOutboundCall(context.Background(), CallDetails{
		PhoneNumber:   "+14155550100",
		ReservationID: "res-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "agent-1", session.AgentID)
	assert.True(t, strings.HasPrefix(session.CallSID, "simulated-call-"))
}

func TestStartOutboundCallUnreachableProvider(t *testing.T) {
	client := NewClient(config.ElevenLabsConfig{
		APIKey:  "xi-key",
		AgentID: "agent-1",
		BaseURL: "http://127.0.0.1:1",
	}, logging.New(nil, "silent"))

	session, err := client.StartOutboundCall(context.Background(), CallDetails{
		PhoneNumber:   "+14155550100",
		ReservationID: "res-1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(session.CallSID, "simulated-call-"))
}
