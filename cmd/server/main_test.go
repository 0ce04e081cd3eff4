package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymbook/internal/config"
	"gymbook/internal/events"
	"gymbook/internal/model"
	"gymbook/internal/usage"
)

type emptySource struct{}

func (emptySource) ListApprovedSince(context.Context, time.Time) ([]model.Appointment, error) {
	return nil, nil
}

func TestCatalogSyncInvalidatesUsageCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zerolog.Nop()
	usageSvc := usage.NewService(emptySource{}, &logger)
	usageSvc.UseRedisCache(client, time.Minute)

	bus := events.NewEventBus(&logger)
	subscribeEvents(bus, usageSvc, &logger)

	_, err := usageSvc.GetUsageMetrics(ctx)
	require.NoError(t, err)
	require.Len(t, mr.Keys(), 1)

	fc := &config.FacilityConfig{Services: []config.ServiceConfig{{ID: 1, Name: "Yoga"}}}
	require.NoError(t, bus.PublishJSON(events.TypeCatalogSynced, catalogPayload(fc)))
	assert.Empty(t, mr.Keys())
}

func TestCatalogPayload(t *testing.T) {
	fc := &config.FacilityConfig{
		Services: []config.ServiceConfig{{ID: 1}, {ID: 2}},
		Coaches:  []config.CoachConfig{{ID: 1}},
	}
	p := catalogPayload(fc)
	assert.Equal(t, 2, p.Services)
	assert.Equal(t, 1, p.Coaches)
	assert.False(t, p.At.IsZero())
}
