package voiceagent

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/tablecall/internal/config"
	"github.com/soyeahso/tablecall/internal/logging"
)

func simulatorDetails() CallDetails {
	return CallDetails{
		PersonName:    "Alex",
		PhoneNumber:   "+441632960000",
		Date:          "2025-04-23",
		Time:          "19:30",
		PartySize:     4,
		ReservationID: "res-1",
	}
}

func callbackCapture(t *testing.T) (*httptest.Server, chan map[string]any) {
	t.Helper()
	payloads := make(chan map[string]any, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		payloads <- payload
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)
	return ts, payloads
}

func TestSimulatorDeliversSuccessOutcome(t *testing.T) {
	ts, payloads := callbackCapture(t)

	sim := NewSimulator(ts.URL, config.SimulationConfig{
		MinDelayMs: 5, MaxDelayMs: 10, SuccessRate: 1,
	}, logging.New(nil, "silent"))

	sim.Schedule(simulatorDetails(), nil)

	select {
	case payload := <-payloads:
		assert.Equal(t, "res-1", payload["reservationId"])
		assert.Equal(t, "success", payload["status"])
		assert.Equal(t, "Reservation confirmed", payload["statusMessage"])
		assert.Equal(t, "2025-04-23", payload["confirmedDate"])
		assert.Equal(t, "19:30", payload["confirmedTime"])
		assert.Equal(t, "Alex", payload["personName"])
		assert.Equal(t, "4", payload["partySize"])
		assert.Equal(t, "No special requests", payload["specialInstructions"])
	case <-time.After(2 * time.Second):
		t.Fatal("no simulated callback received")
	}
}

func TestSimulatorDeliversFailureOutcome(t *testing.T) {
	ts, payloads := callbackCapture(t)

	sim := NewSimulator(ts.URL, config.SimulationConfig{
		MinDelayMs: 5, MaxDelayMs: 10, SuccessRate: 0,
	}, logging.New(nil, "silent"))

	sim.Schedule(simulatorDetails(), nil)

	select {
	case payload := <-payloads:
		assert.Equal(t, "error", payload["status"])
		assert.Equal(t, "Reservation failed", payload["statusMessage"])
		assert.NotContains(t, payload, "confirmedDate")
	case <-time.After(2 * time.Second):
		t.Fatal("no simulated callback received")
	}
}

func TestSimulatorRejectionWordingForcesFailure(t *testing.T) {
	ts, payloads := callbackCapture(t)

	sim := NewSimulator(ts.URL, config.SimulationConfig{
		MinDelayMs: 5, MaxDelayMs: 10, SuccessRate: 1,
	}, logging.New(nil, "silent"))

	sim.Schedule(simulatorDetails(), []string{"Sorry, we are fully booked tonight"})

	select {
	case payload := <-payloads:
		assert.Equal(t, "error", payload["status"])
	case <-time.After(2 * time.Second):
		t.Fatal("no simulated callback received")
	}
}

func TestSimulatorCancelDropsPendingOutcome(t *testing.T) {
	ts, payloads := callbackCapture(t)

	sim := NewSimulator(ts.URL, config.SimulationConfig{
		MinDelayMs: 100, MaxDelayMs: 150, SuccessRate: 1,
	}, logging.New(nil, "silent"))

	sim.Schedule(simulatorDetails(), nil)
	assert.True(t, sim.Cancel("res-1"))
	assert.False(t, sim.Cancel("res-1"))

	select {
	case <-payloads:
		t.Fatal("cancelled outcome was still delivered")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestSimulatorRescheduleReplacesTimer(t *testing.T) {
	ts, payloads := callbackCapture(t)

	sim := NewSimulator(ts.URL, config.SimulationConfig{
		MinDelayMs: 5, MaxDelayMs: 10, SuccessRate: 1,
	}, logging.New(nil, "silent"))

	sim.Schedule(simulatorDetails(), nil)
	sim.Schedule(simulatorDetails(), nil)

	select {
	case <-payloads:
	case <-time.After(2 * time.Second):
		t.Fatal("no simulated callback received")
	}

	// only the replacement fires
	select {
	case <-payloads:
		t.Fatal("superseded timer also fired")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSimulatorRequiresReservationID(t *testing.T) {
	ts, payloads := callbackCapture(t)

	sim := NewSimulator(ts.URL, config.SimulationConfig{
		MinDelayMs: 1, MaxDelayMs: 2, SuccessRate: 1,
	}, logging.New(nil, "silent"))

	d := simulatorDetails()
	d.ReservationID = ""
	sim.Schedule(d, nil)

	select {
	case <-payloads:
		t.Fatal("outcome delivered without a reservation ID")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestContainsRejection(t *testing.T) {
	assert.True(t, containsRejection([]string{"No availability"}))
	assert.True(t, containsRejection([]string{"sorry, we can't"}))
	assert.True(t, containsRejection([]string{"We are FULL tonight"}))
	assert.False(t, containsRejection([]string{"Yes, see you then"}))
}
