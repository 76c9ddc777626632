package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"gameday-ticketing/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Authorize(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	args := m.Called(ctx, req)
	if a := args.Get(0); a != nil {
		return a.(*Authorization), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGateway) Capture(ctx context.Context, reference, key string) (string, error) {
	args := m.Called(ctx, reference, key)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) Cancel(ctx context.Context, reference string) error {
	args := m.Called(ctx, reference)
	return args.Error(0)
}

func newTestResilient(next Gateway) *Resilient {
	return NewResilient(next, 50*time.Millisecond, time.Millisecond, logger.NewConsoleLogger(nil))
}

func TestResilientRetriesTransientFailureOnce(t *testing.T) {
	next := new(MockGateway)
	next.On("Capture", mock.Anything, "pi_1", "capture-o1").Return("", ErrGatewayUnavailable).Once()
	next.On("Capture", mock.Anything, "pi_1", "capture-o1").Return("ch_1", nil).Once()

	id, err := newTestResilient(next).Capture(context.Background(), "pi_1", "capture-o1")
	require.NoError(t, err)
	assert.Equal(t, "ch_1", id)
	next.AssertNumberOfCalls(t, "Capture", 2)
}

func TestResilientGivesUpAfterOneRetry(t *testing.T) {
	next := new(MockGateway)
	next.On("Capture", mock.Anything, "pi_1", "capture-o1").Return("", ErrGatewayUnavailable)

	_, err := newTestResilient(next).Capture(context.Background(), "pi_1", "capture-o1")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	next.AssertNumberOfCalls(t, "Capture", 2)
}

func TestResilientDoesNotRetryDeclines(t *testing.T) {
	next := new(MockGateway)
	declined := &DeclinedError{Code: "card_declined", Message: "Your card was declined."}
	next.On("Authorize", mock.Anything, mock.Anything).Return(nil, declined)

	_, err := newTestResilient(next).Authorize(context.Background(), AuthorizationRequest{OrderID: "o1", Amount: 3250})
	require.Error(t, err)
	assert.True(t, IsDeclined(err))
	assert.Equal(t, "Your card was declined.", PublicMessage(err))
	next.AssertNumberOfCalls(t, "Authorize", 1)
}

type slowGateway struct {
	MockGateway
	calls int
}

func (s *slowGateway) Cancel(ctx context.Context, reference string) error {
	s.calls++
	<-ctx.Done()
	return ctx.Err()
}

func TestResilientBoundsEachAttempt(t *testing.T) {
	slow := &slowGateway{}

	started := time.Now()
	err := newTestResilient(slow).Cancel(context.Background(), "pi_1")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, 2, slow.calls)
	assert.Less(t, time.Since(started), time.Second)
}

func TestPublicMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "Payment could not be processed, please try again", PublicMessage(errors.New("dial tcp: refused")))
}
