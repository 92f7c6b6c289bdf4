// Package call orchestrates placing the outbound reservation call.
package call

import (
	"context"
	"errors"

	"github.com/soyeahso/tablecall/internal/domain"
	"github.com/soyeahso/tablecall/internal/logging"
	"github.com/soyeahso/tablecall/internal/telephony"
	"github.com/soyeahso/tablecall/internal/voiceagent"
)

// ErrReservationNotFound is returned by Retry for an unknown ID.
var ErrReservationNotFound = errors.New("reservation not found")

// reservationTwiML is what Twilio plays while the agent leg connects.
const reservationTwiML = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say>Connecting your call to the reservation voice agent...</Say>
</Response>`

// Store is the slice of the repository the initiator needs.
type Store interface {
	Get(id string) (*domain.Reservation, error)
	MergeStatus(update domain.StatusUpdate) (*domain.Reservation, error)
}

// AgentStarter starts a voice-agent conversation for an outbound call.
type AgentStarter interface {
	StartOutboundCall(ctx context.Context, d voiceagent.CallDetails) (voiceagent.AgentSession, error)
}

// Scheduler queues and cancels simulated conversation outcomes.
type Scheduler interface {
	Schedule(d voiceagent.CallDetails, restaurantResponses []string)
	Cancel(reservationID string) bool
}

// Initiator drives the call-placement flow: it primes the voice agent,
// places the Twilio call, and records every outcome as a status merge so
// a polling client never sees a reservation silently stuck in pending.
type Initiator struct {
	store     Store
	dialer    telephony.Dialer
	agent     AgentStarter
	simulator Scheduler
	publicURL string
	log       *logging.Logger
}

// NewInitiator wires the initiator. publicURL is the externally reachable
// base URL used to build provider callback URLs.
func NewInitiator(store Store, dialer telephony.Dialer, agent AgentStarter, sim Scheduler, publicURL string, log *logging.Logger) *Initiator {
	return &Initiator{
		store:     store,
		dialer:    dialer,
		agent:     agent,
		simulator: sim,
		publicURL: publicURL,
		log:       log.Sub("call"),
	}
}

// InitiateCall places the outbound call for a reservation. The reservation
// must exist; it was either just created or explicitly retried, so absence
// is an internal fault and is reported without touching any state. All
// collaborator failures resolve into a stored status update. The terminal
// transition never happens here: it is driven by the agent callback (or
// the simulated one), to avoid racing the asynchronous agent.
func (i *Initiator) InitiateCall(ctx context.Context, reservationID string) {
	reservation, err := i.store.Get(reservationID)
	if err != nil {
		i.log.Error().Err(err).Str("reservationId", reservationID).Msg("loading reservation")
		return
	}
	if reservation == nil {
		i.log.Error().Str("reservationId", reservationID).
			Msg("initiate called for a reservation that does not exist")
		return
	}

	i.mergeStatus(domain.StatusUpdate{
		ID:            reservationID,
		Status:        domain.StatusPending,
		StatusMessage: "Calling restaurant...",
	})

	details := voiceagent.CallDetails{
		PersonName:          reservation.Name,
		PhoneNumber:         reservation.PhoneNumber,
		Date:                reservation.Date,
		Time:                reservation.Time,
		PartySize:           reservation.PartySize,
		SpecialInstructions: reservation.SpecialRequests,
		ReservationID:       reservationID,
	}

	session, err := i.agent.StartOutboundCall(ctx, details)
	if err != nil {
		i.failInitiation(reservationID, err)
		return
	}

	result, err := i.dialer.PlaceCall(ctx, telephony.CallRequest{
		To:             reservation.PhoneNumber,
		TwiML:          reservationTwiML,
		StatusCallback: i.publicURL + "/api/call-status",
	})
	if err != nil {
		i.failInitiation(reservationID, err)
		return
	}

	if result.Simulated {
		i.log.Info().Str("reservationId", reservationID).Str("sid", result.SID).
			Msg("simulating call, geo permissions missing for destination")
		i.mergeStatus(domain.StatusUpdate{
			ID:            reservationID,
			Status:        domain.StatusPending,
			StatusMessage: "Simulating call - International number detected",
			StatusDetails: "Note: Your Twilio account needs international permissions enabled to make real calls to this number. Using simulation mode for demonstration purposes.",
		})
		i.simulator.Schedule(details, nil)
		return
	}

	i.log.Info().Str("reservationId", reservationID).Str("sid", result.SID).
		Str("agentCallSid", session.CallSID).
		Msg("call initiated, waiting for agent callback")
}

// Retry resets a reservation to pending and re-runs the call flow. Always
// permitted, regardless of the prior terminal state. A pending simulated
// outcome from the previous attempt is dropped so it cannot overwrite the
// new one.
func (i *Initiator) Retry(ctx context.Context, reservationID string) error {
	reservation, err := i.store.Get(reservationID)
	if err != nil {
		return err
	}
	if reservation == nil {
		return ErrReservationNotFound
	}

	if i.simulator.Cancel(reservationID) {
		i.log.Debug().Str("reservationId", reservationID).
			Msg("cancelled stale simulated outcome")
	}

	if _, err := i.store.MergeStatus(domain.StatusUpdate{
		ID:            reservationID,
		Status:        domain.StatusPending,
		StatusMessage: "Retrying reservation call",
	}); err != nil {
		return err
	}

	go i.InitiateCall(context.WithoutCancel(ctx), reservationID)
	return nil
}

// failInitiation records a terminal error for a failed call placement,
// distinguishing the geo-permission case so the user gets an actionable
// message.
func (i *Initiator) failInitiation(reservationID string, err error) {
	i.log.Error().Err(err).Str("reservationId", reservationID).Msg("initiating call")

	if telephony.IsInternationalPermissionsError(err) {
		i.mergeStatus(domain.StatusUpdate{
			ID:            reservationID,
			Status:        domain.StatusError,
			StatusMessage: "International permissions required",
			StatusDetails: "Your Twilio account needs international permissions enabled to call this number. Please visit https://www.twilio.com/console/voice/calls/geo-permissions/low-risk to enable international calling.",
		})
		return
	}

	i.mergeStatus(domain.StatusUpdate{
		ID:            reservationID,
		Status:        domain.StatusError,
		StatusMessage: "Failed to initiate call",
		StatusDetails: "There was an error connecting to the voice service. Please try again later.",
	})
}

func (i *Initiator) mergeStatus(update domain.StatusUpdate) {
	if _, err := i.store.MergeStatus(update); err != nil {
		i.log.Error().Err(err).Str("reservationId", update.ID).Msg("merging status")
	}
}
