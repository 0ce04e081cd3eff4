package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchFacility reloads facility.yaml on change and calls onUpdate with the
// latest config. It performs an initial load before entering the watch loop.
func WatchFacility(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*FacilityConfig)) error {
	if path == "" {
		path = "configs/facility.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "facility_watch").Logger()
	}

	cfg, err := LoadFacilityConfig(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cfg, err := LoadFacilityConfig(path)
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("facility config reload failed")
					continue
				}
				lastMod = info.ModTime()
				log.Info().Str("config", cfg.String()).Msg("facility config reloaded")
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
