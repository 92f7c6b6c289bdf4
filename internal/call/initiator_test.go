package call

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/tablecall/internal/domain"
	"github.com/soyeahso/tablecall/internal/logging"
	"github.com/soyeahso/tablecall/internal/store"
	"github.com/soyeahso/tablecall/internal/telephony"
	"github.com/soyeahso/tablecall/internal/voiceagent"
)

// recordingStore wraps the memory store and keeps the merge history.
type recordingStore struct {
	*store.MemoryStore

	mu      sync.Mutex
	updates []domain.StatusUpdate
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: store.NewMemoryStore()}
}

func (r *recordingStore) MergeStatus(update domain.StatusUpdate) (*domain.Reservation, error) {
	r.mu.Lock()
	r.updates = append(r.updates, update)
	r.mu.Unlock()
	return r.MemoryStore.MergeStatus(update)
}

func (r *recordingStore) history() []domain.StatusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.StatusUpdate(nil), r.updates...)
}

type fakeDialer struct {
	result telephony.CallResult
	err    error

	mu     sync.Mutex
	calls  []telephony.CallRequest
	called chan struct{}
}

func newFakeDialer(result telephony.CallResult, err error) *fakeDialer {
	return &fakeDialer{result: result, err: err, called: make(chan struct{}, 8)}
}

func (d *fakeDialer) PlaceCall(ctx context.Context, req telephony.CallRequest) (telephony.CallResult, error) {
	d.mu.Lock()
	d.calls = append(d.calls, req)
	d.mu.Unlock()
	d.called <- struct{}{}
	return d.result, d.err
}

func (d *fakeDialer) lastCall(t *testing.T) telephony.CallRequest {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.calls)
	return d.calls[len(d.calls)-1]
}

type fakeAgent struct {
	err error
}

func (a *fakeAgent) StartOutboundCall(ctx context.Context, d voiceagent.CallDetails) (voiceagent.AgentSession, error) {
	if a.err != nil {
		return voiceagent.AgentSession{}, a.err
	}
	return voiceagent.AgentSession{AgentID: "agent-1", CallSID: "CA-agent"}, nil
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []voiceagent.CallDetails
	cancelled []string
	pending   bool
}

func (s *fakeScheduler) Schedule(d voiceagent.CallDetails, restaurantResponses []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, d)
}

func (s *fakeScheduler) Cancel(reservationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, reservationID)
	return s.pending
}

func (s *fakeScheduler) scheduledIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.scheduled))
	for i, d := range s.scheduled {
		ids[i] = d.ReservationID
	}
	return ids
}

func testInitiator(t *testing.T, dialer telephony.Dialer, agent AgentStarter) (*Initiator, *recordingStore, *fakeScheduler, string) {
	t.Helper()
	st := newRecordingStore()
	sim := &fakeScheduler{}

	created, err := st.Create(domain.NewReservation{
		Name:        "Alex",
		PhoneNumber: "+441632960000",
		PartySize:   4,
		Date:        "2025-04-23",
		Time:        "19:30",
	})
	require.NoError(t, err)

	i := NewInitiator(st, dialer, agent, sim, "https://example.ngrok.app", logging.New(nil, "silent"))
	return i, st, sim, created.ID
}

func TestInitiateCallPlacesRealCall(t *testing.T) {
	dialer := newFakeDialer(telephony.CallResult{SID: "CA-real"}, nil)
	i, st, sim, id := testInitiator(t, dialer, &fakeAgent{})

	i.InitiateCall(context.Background(), id)

	history := st.history()
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusPending, history[0].Status)
	assert.Equal(t, "Calling restaurant...", history[0].StatusMessage)

	req := dialer.lastCall(t)
	assert.Equal(t, "+441632960000", req.To)
	assert.Equal(t, "https://example.ngrok.app/api/call-status", req.StatusCallback)
	assert.NotEmpty(t, req.TwiML)

	// stays pending until the agent reports back
	r, err := st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, r.Status)
	assert.Empty(t, sim.scheduledIDs())
}

func TestInitiateCallSimulatedFallback(t *testing.T) {
	dialer := newFakeDialer(telephony.CallResult{SID: "SIMULATED_CALL_abc", Simulated: true}, nil)
	i, st, sim, id := testInitiator(t, dialer, &fakeAgent{})

	i.InitiateCall(context.Background(), id)

	history := st.history()
	require.Len(t, history, 2)
	assert.Equal(t, domain.StatusPending, history[1].Status)
	assert.Equal(t, "Simulating call - International number detected", history[1].StatusMessage)
	assert.Contains(t, history[1].StatusDetails, "simulation mode")

	assert.Equal(t, []string{id}, sim.scheduledIDs())

	// a geo-permission fallback never produces an error status
	r, err := st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, r.Status)
}

func TestInitiateCallGeoPermissionError(t *testing.T) {
	dialer := newFakeDialer(telephony.CallResult{}, telephony.ErrInternationalPermissions)
	i, st, _, id := testInitiator(t, dialer, &fakeAgent{})

	i.InitiateCall(context.Background(), id)

	r, err := st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, r.Status)
	assert.Equal(t, "International permissions required", r.StatusMessage)
	assert.Contains(t, r.StatusDetails, "geo-permissions")
}

func TestInitiateCallDialerFailure(t *testing.T) {
	dialer := newFakeDialer(telephony.CallResult{}, errors.New("twilio down"))
	i, st, _, id := testInitiator(t, dialer, &fakeAgent{})

	i.InitiateCall(context.Background(), id)

	r, err := st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, r.Status)
	assert.Equal(t, "Failed to initiate call", r.StatusMessage)
}

func TestInitiateCallAgentFailure(t *testing.T) {
	dialer := newFakeDialer(telephony.CallResult{SID: "CA-real"}, nil)
	i, st, _, id := testInitiator(t, dialer, &fakeAgent{err: errors.New("agent unavailable")})

	i.InitiateCall(context.Background(), id)

	r, err := st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, r.Status)
	assert.Equal(t, "Failed to initiate call", r.StatusMessage)
}

func TestInitiateCallUnknownReservation(t *testing.T) {
	dialer := newFakeDialer(telephony.CallResult{}, nil)
	i, st, _, _ := testInitiator(t, dialer, &fakeAgent{})

	i.InitiateCall(context.Background(), "missing")

	assert.Empty(t, st.history())
}

func TestRetryResetsAndReinitiates(t *testing.T) {
	dialer := newFakeDialer(telephony.CallResult{SID: "CA-real"}, nil)
	i, st, sim, id := testInitiator(t, dialer, &fakeAgent{})
	sim.pending = true

	_, err := st.MergeStatus(domain.StatusUpdate{ID: id, Status: domain.StatusSuccess})
	require.NoError(t, err)

	require.NoError(t, i.Retry(context.Background(), id))

	// synchronous part: stale timer cancelled, status reset
	assert.Equal(t, []string{id}, sim.cancelled)
	r, err := st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, r.Status)
	assert.Equal(t, "Retrying reservation call", r.StatusMessage)

	// the call itself runs in the background
	select {
	case <-dialer.called:
	case <-time.After(2 * time.Second):
		t.Fatal("retry never placed the call")
	}
}

func TestRetryUnknownReservation(t *testing.T) {
	dialer := newFakeDialer(telephony.CallResult{}, nil)
	i, _, _, _ := testInitiator(t, dialer, &fakeAgent{})

	err := i.Retry(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}
