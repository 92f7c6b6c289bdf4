package voiceagent

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/tablecall/internal/config"
	"github.com/soyeahso/tablecall/internal/logging"
)

// Simulator emulates an agent conversation when a real call cannot be
// placed. After a randomized delay it POSTs an outcome to the same
// agent-response endpoint the live agent uses, so both paths share one
// state-transition entry point. Pending timers are keyed by reservation
// ID; scheduling again (a retry) cancels the stale timer first.
type Simulator struct {
	callbackURL string
	minDelay    time.Duration
	maxDelay    time.Duration
	successRate float64
	http        *http.Client
	log         *logging.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewSimulator creates a simulator posting outcomes to callbackURL
// (the full /api/agent-response URL).
func NewSimulator(callbackURL string, cfg config.SimulationConfig, log *logging.Logger) *Simulator {
	return &Simulator{
		callbackURL: callbackURL,
		minDelay:    time.Duration(cfg.MinDelayMs) * time.Millisecond,
		maxDelay:    time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		successRate: cfg.SuccessRate,
		http:        &http.Client{Timeout: 15 * time.Second},
		log:         log.Sub("simulator"),
	}
}

// Schedule queues a simulated conversation outcome for the reservation in
// d. Supplied restaurant responses bias the outcome: any rejection wording
// forces a failure. A previously scheduled outcome for the same
// reservation is cancelled.
func (s *Simulator) Schedule(d CallDetails, restaurantResponses []string) {
	if d.ReservationID == "" {
		s.log.Error().Msg("simulated conversation scheduled without a reservation ID")
		return
	}

	delay := s.minDelay
	if s.maxDelay > s.minDelay {
		delay += time.Duration(rand.Int64N(int64(s.maxDelay - s.minDelay)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timers == nil {
		s.timers = make(map[string]*time.Timer)
	}
	if old, ok := s.timers[d.ReservationID]; ok {
		old.Stop()
	}
	s.log.Info().Str("reservationId", d.ReservationID).Dur("delay", delay).
		Msg("simulated conversation scheduled")
	s.timers[d.ReservationID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, d.ReservationID)
		s.mu.Unlock()
		s.fire(d, restaurantResponses)
	})
}

// Cancel drops a pending simulated outcome. Returns true if a timer was
// still pending.
func (s *Simulator) Cancel(reservationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[reservationID]
	if !ok {
		return false
	}
	delete(s.timers, reservationID)
	return t.Stop()
}

// fire synthesizes the conversation outcome and delivers it through the
// public agent-response callback.
func (s *Simulator) fire(d CallDetails, restaurantResponses []string) {
	success := s.outcome(restaurantResponses)

	payload := map[string]any{
		"reservationId": d.ReservationID,
		"status":        "error",
		"statusMessage": "Reservation failed",
	}
	if success {
		instructions := d.SpecialInstructions
		if instructions == "" {
			instructions = "No special requests"
		}
		payload["status"] = "success"
		payload["statusMessage"] = "Reservation confirmed"
		payload["confirmedDate"] = d.Date
		payload["confirmedTime"] = d.Time
		payload["personName"] = d.PersonName
		payload["partySize"] = strconv.Itoa(d.PartySize)
		payload["specialInstructions"] = instructions
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Msg("encoding simulated callback")
		return
	}

	resp, err := s.http.Post(s.callbackURL, "application/json", bytes.NewReader(raw))
	if err != nil {
		s.log.Error().Err(err).Str("reservationId", d.ReservationID).
			Msg("delivering simulated callback")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Error().Int("status", resp.StatusCode).Str("reservationId", d.ReservationID).
			Msg("simulated callback rejected")
		return
	}
	s.log.Info().Str("reservationId", d.ReservationID).Bool("success", success).
		Msg("simulated conversation outcome delivered")
}

// outcome decides success or failure. Explicit rejection wording in the
// restaurant responses always fails; otherwise the configured success
// rate applies.
func (s *Simulator) outcome(restaurantResponses []string) bool {
	if len(restaurantResponses) == 0 {
		return rand.Float64() < s.successRate
	}
	return !containsRejection(restaurantResponses)
}

func containsRejection(responses []string) bool {
	for _, r := range responses {
		lower := strings.ToLower(r)
		if strings.Contains(lower, "no") ||
			strings.Contains(lower, "sorry") ||
			strings.Contains(lower, "full") {
			return true
		}
	}
	return false
}
