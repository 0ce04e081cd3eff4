package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymbook/internal/model"
)

type fakeSource struct {
	appts []model.Appointment
	calls int
	from  time.Time
	err   error
}

func (f *fakeSource) ListApprovedSince(ctx context.Context, from time.Time) ([]model.Appointment, error) {
	f.calls++
	f.from = from
	return f.appts, f.err
}

func newCachedService(t *testing.T, src Source) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc := NewService(src, nil)
	svc.UseRedisCache(client, time.Minute)
	svc.SetClock(func() time.Time { return today.Add(10 * time.Hour) })
	return svc, mr
}

func TestGetUsageMetricsCachesReport(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{appts: []model.Appointment{
		{Date: today.AddDate(0, 0, -1), ServiceName: "Yoga", Coach: "Ada", Status: model.StatusApproved},
	}}
	svc, mr := newCachedService(t, src)

	r1, err := svc.GetUsageMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Weekly.ByService.Series[0].Total)
	assert.Equal(t, WindowStart(today), src.from)
	assert.True(t, mr.Exists(cacheKey(today)))

	r2, err := svc.GetUsageMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, r1.Weekly, r2.Weekly)

	require.NoError(t, svc.Invalidate(ctx))
	assert.False(t, mr.Exists(cacheKey(today)))

	_, err = svc.GetUsageMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestGetUsageMetricsCacheExpires(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	svc, mr := newCachedService(t, src)

	_, err := svc.GetUsageMetrics(ctx)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = svc.GetUsageMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestGetUsageMetricsWithoutCache(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	svc := NewService(src, nil)

	_, err := svc.GetUsageMetrics(ctx)
	require.NoError(t, err)
	_, err = svc.GetUsageMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.NoError(t, svc.Invalidate(ctx))

	src.err = errors.New("db down")
	_, err = svc.GetUsageMetrics(ctx)
	assert.Error(t, err)
}
