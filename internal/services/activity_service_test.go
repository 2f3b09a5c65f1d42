package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activitylog/internal/amqp"
	"activitylog/internal/cache"
	"activitylog/internal/core"
	"activitylog/internal/records"
	"activitylog/internal/records/memory"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ActivityChangedMessage
	err  error
}

func (f *fakePublisher) PublishActivityChanged(_ context.Context, msg *amqp.ActivityChangedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakePublisher) actions() []amqp.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]amqp.Action, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.Action
	}
	return out
}

// countingStore counts full list loads.
type countingStore struct {
	records.Store
	mu    sync.Mutex
	lists int
}

func (c *countingStore) ListActivities(ctx context.Context, f records.Filter) ([]core.ActivityRecord, error) {
	c.mu.Lock()
	c.lists++
	c.mu.Unlock()
	return c.Store.ListActivities(ctx, f)
}

var testNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func newRecord(personnel, location string, d core.Date, charges string) core.ActivityRecord {
	return core.ActivityRecord{
		CustomerName:  "Acme",
		WorkLocation:  location,
		Personnel:     personnel,
		Activity:      "Inspection",
		ActivityDate:  d,
		POStatus:      core.POApproved,
		PaymentStatus: core.PaymentPending,
		Charges:       core.Charges(charges),
	}
}

func newTestService(t *testing.T, rs ...core.ActivityRecord) (*ActivityService, *countingStore, *fakePublisher) {
	t.Helper()
	store := &countingStore{Store: memory.New(rs...)}
	pub := &fakePublisher{}
	loader := cache.NewLoader[[]core.ActivityRecord](cache.NewLRUCache[[]core.ActivityRecord](16, time.Minute))
	svc := NewActivityService(store, pub, loader, nil)
	svc.now = func() time.Time { return testNow }
	return svc, store, pub
}

func TestCreateValidatesAndPublishes(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t)

	created, err := svc.Create(ctx, newRecord(" Jane ", "NYC", core.NewDate(2024, 6, 1), "100"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "Jane", created.Personnel)

	_, err = svc.Create(ctx, newRecord("", "NYC", core.NewDate(2024, 6, 1), "100"))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, core.ErrEmptyPersonnel)

	_, err = svc.Create(ctx, newRecord("Jane", "NYC", core.NewDate(2024, 6, 1), "-5"))
	assert.ErrorIs(t, err, core.ErrInvalidCharges)

	assert.Equal(t, []amqp.Action{amqp.ActionCreated}, pub.actions())
	assert.Equal(t, int64(1), pub.msgs[0].ID)
	assert.Equal(t, testNow.UnixNano(), pub.msgs[0].Version)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	svc, _, pub := newTestService(t)
	pub.err = errors.New("broker down")

	_, err := svc.Create(context.Background(), newRecord("Jane", "NYC", core.NewDate(2024, 6, 1), "1"))
	assert.NoError(t, err)
}

func TestServiceWithoutPublisherOrCache(t *testing.T) {
	svc := NewActivityService(memory.New(), nil, nil, nil)
	_, err := svc.Create(context.Background(), newRecord("Jane", "NYC", core.NewDate(2024, 6, 1), "1"))
	require.NoError(t, err)

	list, err := svc.List(context.Background(), records.Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateMergesAndValidates(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t, newRecord("Jane", "NYC", core.NewDate(2024, 6, 1), "10"))

	loc := " LA "
	updated, err := svc.Update(ctx, 1, core.ActivityPatch{WorkLocation: &loc})
	require.NoError(t, err)
	assert.Equal(t, "LA", updated.WorkLocation)
	assert.Equal(t, "Jane", updated.Personnel)

	_, err = svc.Update(ctx, 1, core.ActivityPatch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)

	number := "INV-9"
	_, err = svc.Update(ctx, 1, core.ActivityPatch{InvoiceNumber: &number})
	assert.ErrorIs(t, err, core.ErrInvoiceNumber)

	_, err = svc.Update(ctx, 42, core.ActivityPatch{WorkLocation: &loc})
	assert.ErrorIs(t, err, records.ErrNotFound)

	assert.Equal(t, []amqp.Action{amqp.ActionUpdated}, pub.actions())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t, newRecord("Jane", "NYC", core.NewDate(2024, 6, 1), "10"))

	require.NoError(t, svc.Delete(ctx, 1))
	assert.ErrorIs(t, svc.Delete(ctx, 1), records.ErrNotFound)
	assert.Equal(t, []amqp.Action{amqp.ActionDeleted}, pub.actions())
}

func TestSnapshotCachedUntilWrite(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, newRecord("Jane", "NYC", core.NewDate(2024, 6, 1), "10"))

	_, err := svc.Stats(ctx, "")
	require.NoError(t, err)
	_, err = svc.ByPersonnel(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, store.lists)

	_, err = svc.Create(ctx, newRecord("John", "LA", core.NewDate(2024, 6, 2), "5"))
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalActivities)
	assert.Equal(t, 2, store.lists)
}

func TestStatsWindow(t *testing.T) {
	svc, _, _ := newTestService(t,
		newRecord("Jane", "NYC", core.NewDate(2024, 6, 15), "100.25"),
		newRecord("Jane", "NYC", core.NewDate(2024, 6, 9), "50"),
		newRecord("John", "LA", core.NewDate(2024, 6, 8), "7"),
		newRecord("John", "LA", core.LenientDate("soon"), "1"),
	)

	all, err := svc.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 4, all.TotalActivities)
	assert.Equal(t, "158.25", all.TotalCharges.String())
	assert.Nil(t, all.From)

	week, err := svc.Stats(context.Background(), "Week")
	require.NoError(t, err)
	assert.Equal(t, core.PeriodWeek, week.Period)
	assert.Equal(t, 2, week.TotalActivities)
	assert.Equal(t, "150.25", week.TotalCharges.String())
	assert.Equal(t, 1, week.Undated)
	assert.Equal(t, "2024-06-09", week.From.String())

	_, err = svc.Stats(context.Background(), "fortnight")
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)
}

func TestTrend(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t,
		newRecord("Jane", "NYC", core.NewDate(2024, 1, 15), "100"),
		newRecord("Jane", "NYC", core.NewDate(2024, 2, 3), "50"),
	)

	trend, err := svc.Trend(ctx, "month", "", "")
	require.NoError(t, err)
	require.Len(t, trend.Points, 2)
	assert.Equal(t, "2024-01", trend.Points[0].Label)

	weekly, err := svc.Trend(ctx, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, core.PeriodWeek, weekly.Period)

	ranged, err := svc.Trend(ctx, "month", "2023-12-01", "2024-03-31")
	require.NoError(t, err)
	assert.Len(t, ranged.Points, 4)

	_, err = svc.Trend(ctx, "month", "2024-01-01", "")
	assert.ErrorIs(t, err, core.ErrInvalidRange)
	_, err = svc.Trend(ctx, "month", "yesterday", "2024-01-01")
	assert.ErrorIs(t, err, core.ErrInvalidRange)
	_, err = svc.Trend(ctx, "hourly", "", "")
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)
}

func TestBreakdowns(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t,
		newRecord("Jane", "NYC", core.NewDate(2024, 6, 1), "100"),
		newRecord("John", "LA", core.NewDate(2024, 6, 2), "50"),
		newRecord("John", "LA", core.NewDate(2024, 6, 3), "bad"),
		newRecord("John", "LA", core.NewDate(2023, 1, 1), "10"),
	)

	people, err := svc.ByPersonnel(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, core.PeriodMonth, people.Period)
	assert.Equal(t, []core.PersonnelMetric{{Name: "John", Count: 2}, {Name: "Jane", Count: 1}}, people.Groups)

	places, err := svc.ByLocation(ctx, "month")
	require.NoError(t, err)
	require.Len(t, places.Groups, 2)
	assert.Equal(t, "LA", places.Groups[0].Location)
	assert.Equal(t, 2, places.Groups[0].Count)
	assert.Equal(t, "50", places.Groups[0].Revenue.String())
	assert.Equal(t, 1, places.Skipped)

	year, err := svc.ByPersonnel(ctx, "year")
	require.NoError(t, err)
	assert.Equal(t, 2, year.Groups[0].Count)

	_, err = svc.ByLocation(ctx, "decade")
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)
}

func TestListFilters(t *testing.T) {
	done := newRecord("Jane", "NYC", core.NewDate(2024, 6, 1), "1")
	done.ActivityCompleted = true
	svc, _, _ := newTestService(t, done, newRecord("John", "LA", core.NewDate(2024, 6, 2), "1"))

	list, err := svc.List(context.Background(), records.Filter{Status: "completed"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Jane", list[0].Personnel)

	_, err = svc.List(context.Background(), records.Filter{Status: "maybe"})
	assert.ErrorIs(t, err, records.ErrInvalidFilter)

	people, err := svc.Personnel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane", "John"}, people)
}
