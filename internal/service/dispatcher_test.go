package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"payreminder/internal/errors"
	"payreminder/internal/models"
	"payreminder/internal/policy"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	entries     []*models.QueueEntry
	claimDenied map[int64]bool

	fetchErr error
	claimErr error
	sentErr  error
	failErr  error
}

func newFakeStore(entries ...*models.QueueEntry) *fakeStore {
	return &fakeStore{entries: entries, claimDenied: map[int64]bool{}}
}

func (s *fakeStore) FetchPending(ctx context.Context, limit int) ([]models.QueueEntry, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var pending []models.QueueEntry
	for _, e := range s.entries {
		if e.Status == models.QueueStatusPending && len(pending) < limit {
			pending = append(pending, *e)
		}
	}
	return pending, nil
}

func (s *fakeStore) MarkSending(ctx context.Context, id int64) (bool, error) {
	if s.claimErr != nil {
		return false, s.claimErr
	}
	if s.claimDenied[id] {
		return false, nil
	}
	e := s.get(id)
	if e == nil || e.Status != models.QueueStatusPending {
		return false, nil
	}
	e.Status = models.QueueStatusSending
	e.Attempts++
	return true, nil
}

func (s *fakeStore) MarkSent(ctx context.Context, id int64, channelMessageID string) error {
	if s.sentErr != nil {
		return s.sentErr
	}
	e := s.get(id)
	e.Status = models.QueueStatusSent
	e.ChannelMessageID = &channelMessageID
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	if s.failErr != nil {
		return s.failErr
	}
	e := s.get(id)
	e.Status = models.QueueStatusFailed
	e.LastError = &reason
	return nil
}

func (s *fakeStore) get(id int64) *models.QueueEntry {
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

type fakeClient struct {
	sent    []string
	sendErr error
}

func (c *fakeClient) SendText(ctx context.Context, to, body string) (string, error) {
	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.sent = append(c.sent, to)
	return fmt.Sprintf("wamid.%d", len(c.sent)), nil
}

func pendingEntry(id int64, destination, body string) *models.QueueEntry {
	return &models.QueueEntry{
		ID:          id,
		Destination: destination,
		Body:        body,
		Status:      models.QueueStatusPending,
	}
}

func alwaysOpenWindow() *policy.SendWindow {
	return policy.NewSendWindow(0, 24, []int{0, 1, 2, 3, 4, 5, 6})
}

func closedWindow() *policy.SendWindow {
	// Pinned to a Sunday night, outside both hour and day bounds.
	sunday := time.Date(2026, 8, 9, 22, 0, 0, 0, time.UTC)
	return policy.NewSendWindow(9, 20, nil).WithClock(func() time.Time { return sunday })
}

func newTestDispatcher(store QueueStore, client *fakeClient, limiter *policy.RateLimiter,
	window *policy.SendWindow, bypass bool) *Dispatcher {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	d := NewDispatcher(store, client, limiter, window, policy.NewDelayPolicy(45, 120),
		DispatcherOptions{
			CountryCode:  "51",
			BatchSize:    15,
			BatchDelay:   time.Second,
			BypassWindow: bypass,
		}, logger)
	d.sleep = func(ctx context.Context, delay time.Duration) error { return nil }
	return d
}

func TestRunSendsPendingEntries(t *testing.T) {
	store := newFakeStore(
		pendingEntry(1, "+51987654321", "uno"),
		pendingEntry(2, "987654322", "dos"),
		pendingEntry(3, "51987654323", "tres"),
	)
	client := &fakeClient{}
	d := newTestDispatcher(store, client, policy.NewRateLimiter(30, 200), alwaysOpenWindow(), false)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Sent)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)

	// Destinations are normalized before hitting the channel.
	assert.Equal(t, []string{"51987654321", "51987654322", "51987654323"}, client.sent)

	for _, e := range store.entries {
		assert.Equal(t, models.QueueStatusSent, e.Status)
		require.NotNil(t, e.ChannelMessageID)
	}
}

func TestRunFailsInvalidDestinationWithoutConsumingBudget(t *testing.T) {
	store := newFakeStore(
		pendingEntry(1, "51987654321", "uno"),
		pendingEntry(2, "12", "destino roto"),
		pendingEntry(3, "51987654323", "tres"),
	)
	client := &fakeClient{}
	limiter := policy.NewRateLimiter(30, 200)
	d := newTestDispatcher(store, client, limiter, alwaysOpenWindow(), false)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 1, summary.Failed)

	assert.Equal(t, models.QueueStatusFailed, store.entries[1].Status)
	require.NotNil(t, store.entries[1].LastError)

	// Validation failures never reach the channel or the rate budget.
	assert.Len(t, client.sent, 2)
	assert.Equal(t, 2, limiter.GetStats().DailyCount)
}

func TestRunFailsEmptyBodyWithoutChannelAttempt(t *testing.T) {
	store := newFakeStore(pendingEntry(1, "51987654321", "   \n\n  "))
	client := &fakeClient{}
	d := newTestDispatcher(store, client, policy.NewRateLimiter(30, 200), alwaysOpenWindow(), false)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, client.sent)
	assert.Equal(t, models.QueueStatusFailed, store.entries[0].Status)
}

func TestRunChannelFailureIsTerminalAndConsumesBudget(t *testing.T) {
	store := newFakeStore(pendingEntry(1, "51987654321", "hola"))
	client := &fakeClient{sendErr: errors.New(errors.KindChannelRejected, "recipient not on whatsapp")}
	limiter := policy.NewRateLimiter(30, 200)
	d := newTestDispatcher(store, client, limiter, alwaysOpenWindow(), false)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, models.QueueStatusFailed, store.entries[0].Status)
	require.NotNil(t, store.entries[0].LastError)
	assert.Equal(t, "recipient not on whatsapp", *store.entries[0].LastError)

	// The attempt consumed a slot even though it failed.
	assert.Equal(t, 1, limiter.GetStats().DailyCount)
}

func TestRunRateLimitLeavesEntriesPending(t *testing.T) {
	store := newFakeStore(
		pendingEntry(1, "51987654321", "uno"),
		pendingEntry(2, "51987654322", "dos"),
	)
	client := &fakeClient{}
	d := newTestDispatcher(store, client, policy.NewRateLimiter(1, 200), alwaysOpenWindow(), false)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)

	// The deferred entry stays pending for the next run.
	assert.Equal(t, models.QueueStatusPending, store.entries[1].Status)
}

func TestRunDeferralsLogPolicyKind(t *testing.T) {
	store := newFakeStore(
		pendingEntry(1, "51987654321", "uno"),
		pendingEntry(2, "51987654322", "dos"),
	)
	logger, hook := logtest.NewNullLogger()
	d := NewDispatcher(store, &fakeClient{}, policy.NewRateLimiter(1, 200), alwaysOpenWindow(),
		policy.NewDelayPolicy(45, 120), DispatcherOptions{
			CountryCode: "51",
			BatchSize:   15,
			BatchDelay:  time.Second,
		}, logger)
	d.sleep = func(ctx context.Context, delay time.Duration) error { return nil }

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	found := false
	for _, entry := range hook.AllEntries() {
		if entry.Data["kind"] == string(errors.KindPolicyDeferral) {
			found = true
			break
		}
	}
	assert.True(t, found, "rate-budget deferral should be logged with its policy kind")
}

func TestRunClosedWindowLeavesEverythingPending(t *testing.T) {
	store := newFakeStore(
		pendingEntry(1, "51987654321", "uno"),
		pendingEntry(2, "51987654322", "dos"),
	)
	client := &fakeClient{}
	d := newTestDispatcher(store, client, policy.NewRateLimiter(30, 200), closedWindow(), false)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 2, summary.Skipped)
	assert.Empty(t, client.sent)
	for _, e := range store.entries {
		assert.Equal(t, models.QueueStatusPending, e.Status)
	}
}

func TestRunBypassWindowSendsOutsideHours(t *testing.T) {
	store := newFakeStore(pendingEntry(1, "51987654321", "hola"))
	client := &fakeClient{}
	d := newTestDispatcher(store, client, policy.NewRateLimiter(30, 200), closedWindow(), true)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Sent)
}

func TestRunSkipsContestedClaims(t *testing.T) {
	store := newFakeStore(
		pendingEntry(1, "51987654321", "uno"),
		pendingEntry(2, "51987654322", "dos"),
	)
	store.claimDenied[1] = true
	client := &fakeClient{}
	d := newTestDispatcher(store, client, policy.NewRateLimiter(30, 200), alwaysOpenWindow(), false)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{"51987654322"}, client.sent)
}

func TestRunAbortsOnStoreFailure(t *testing.T) {
	store := newFakeStore(pendingEntry(1, "51987654321", "hola"))
	store.claimErr = fmt.Errorf("database is locked")
	d := newTestDispatcher(store, &fakeClient{}, policy.NewRateLimiter(30, 200), alwaysOpenWindow(), false)

	_, err := d.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsStoreFailure(err))
}

func TestRunEmptyBacklog(t *testing.T) {
	d := newTestDispatcher(newFakeStore(), &fakeClient{}, policy.NewRateLimiter(30, 200), alwaysOpenWindow(), false)

	summary, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total())
}
