// Package telephony places outbound calls through Twilio.
package telephony

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/soyeahso/tablecall/internal/config"
	"github.com/soyeahso/tablecall/internal/logging"
)

// ErrInternationalPermissions signals a Twilio geo-permission rejection.
// Callers treat this as "simulate the call", not as a terminal failure.
var ErrInternationalPermissions = errors.New("international permissions not enabled for destination")

// codeInternationalPermissions is Twilio's error code for calls to
// destinations the account has not enabled.
const codeInternationalPermissions = 21215

// CallRequest describes a single outbound call.
type CallRequest struct {
	To             string // destination in E.164
	TwiML          string
	StatusCallback string // URL Twilio POSTs call-progress updates to
}

// CallResult reports the placed (or simulated) call.
type CallResult struct {
	SID       string
	Simulated bool
}

// Dialer places outbound calls. The production implementation is Twilio;
// tests substitute fakes.
type Dialer interface {
	PlaceCall(ctx context.Context, req CallRequest) (CallResult, error)
}

// TwilioDialer implements Dialer with the Twilio REST API.
type TwilioDialer struct {
	client *twilio.RestClient
	from   string
	log    *logging.Logger
}

// NewTwilioDialer creates a dialer from Twilio credentials.
func NewTwilioDialer(cfg config.TwilioConfig, log *logging.Logger) (*TwilioDialer, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("twilio account SID and auth token are required")
	}
	if cfg.PhoneNumber == "" {
		return nil, errors.New("twilio phone number is required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioDialer{
		client: client,
		from:   cfg.PhoneNumber,
		log:    log.Sub("twilio"),
	}, nil
}

// PlaceCall creates an outbound call. A geo-permission rejection does not
// fail: the dialer falls back to a simulated call identifier so the rest
// of the flow can proceed in simulation mode.
func (d *TwilioDialer) PlaceCall(ctx context.Context, req CallRequest) (CallResult, error) {
	params := &openapi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(d.from)
	if req.TwiML != "" {
		params.SetTwiml(req.TwiML)
	}
	if req.StatusCallback != "" {
		params.SetStatusCallback(req.StatusCallback)
		params.SetStatusCallbackMethod("POST")
	}

	call, err := d.client.Api.CreateCall(params)
	if err != nil {
		if IsInternationalPermissionsError(err) {
			d.log.Warn().Str("to", req.To).
				Msg("geo permissions missing, falling back to simulation mode")
			return CallResult{SID: SimulatedCallSID(), Simulated: true}, nil
		}
		return CallResult{}, fmt.Errorf("creating call: %w", err)
	}

	sid := ""
	if call.Sid != nil {
		sid = *call.Sid
	}
	d.log.Info().Str("to", req.To).Str("sid", sid).Msg("call initiated")
	return CallResult{SID: sid}, nil
}

// IsInternationalPermissionsError reports whether err is Twilio's
// geo-permission rejection (code 21215).
func IsInternationalPermissionsError(err error) bool {
	if errors.Is(err, ErrInternationalPermissions) {
		return true
	}
	var restErr *twclient.TwilioRestError
	return errors.As(err, &restErr) && restErr.Code == codeInternationalPermissions
}

// SimulatedCallSID generates a recognizable identifier for a call that was
// never actually placed.
func SimulatedCallSID() string {
	return "SIMULATED_CALL_" + uuid.New().String()[:8]
}
