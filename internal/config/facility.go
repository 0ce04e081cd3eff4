package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gymbook/internal/model"
)

// ServiceConfig describes a bookable service.
type ServiceConfig struct {
	ID              int64   `yaml:"id"`
	Name            string  `yaml:"name"`
	DurationMinutes int     `yaml:"duration_minutes"`
	Price           float64 `yaml:"price"`
	Description     string  `yaml:"description"`
}

// CoachConfig describes a coach and the services they deliver.
type CoachConfig struct {
	ID            int64   `yaml:"id"`
	FullName      string  `yaml:"full_name"`
	ExpertiseTags string  `yaml:"expertise_tags"`
	Bio           string  `yaml:"bio"`
	Services      []int64 `yaml:"services"`
}

// HoursConfig is one weekday's opening hours. Day is 1=Mon .. 7=Sun.
type HoursConfig struct {
	Day    int    `yaml:"day"`
	Open   string `yaml:"open"`  // "08:00"
	Close  string `yaml:"close"` // "22:00"
	Closed bool   `yaml:"closed"`
}

// AdminConfig is an identity allowed to decide requests.
type AdminConfig struct {
	Identity string `yaml:"identity"`
	Name     string `yaml:"name"`
}

// FacilityConfig is the root of facility.yaml.
type FacilityConfig struct {
	Services     []ServiceConfig `yaml:"services"`
	Coaches      []CoachConfig   `yaml:"coaches"`
	OpeningHours []HoursConfig   `yaml:"opening_hours"`
	Admins       []AdminConfig   `yaml:"admins"`
}

// LoadFacilityConfig loads and validates facility.yaml.
func LoadFacilityConfig(path string) (*FacilityConfig, error) {
	if path == "" {
		path = "configs/facility.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facility config: %w", err)
	}

	var cfg FacilityConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse facility config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate facility config: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the configuration for errors. Coach names must be unique
// because bookings reference coaches by name.
func (c *FacilityConfig) Validate() error {
	if len(c.Services) == 0 {
		return fmt.Errorf("no services defined")
	}

	serviceIDs := make(map[int64]bool)
	serviceNames := make(map[string]bool)
	for i, s := range c.Services {
		if s.ID <= 0 {
			return fmt.Errorf("service[%d]: id must be positive, got %d", i, s.ID)
		}
		if serviceIDs[s.ID] {
			return fmt.Errorf("service[%d]: duplicate id %d", i, s.ID)
		}
		serviceIDs[s.ID] = true

		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("service[%d]: name is required", i)
		}
		if len([]rune(name)) > model.MaxNameLength {
			return fmt.Errorf("service[%d]: name longer than %d characters", i, model.MaxNameLength)
		}
		if serviceNames[name] {
			return fmt.Errorf("service[%d]: duplicate name '%s'", i, name)
		}
		serviceNames[name] = true

		if s.DurationMinutes < 0 {
			return fmt.Errorf("service[%d]: duration cannot be negative", i)
		}
		if s.Price < 0 {
			return fmt.Errorf("service[%d]: price cannot be negative", i)
		}
	}

	coachIDs := make(map[int64]bool)
	coachNames := make(map[string]bool)
	for i, co := range c.Coaches {
		if co.ID <= 0 {
			return fmt.Errorf("coach[%d]: id must be positive, got %d", i, co.ID)
		}
		if coachIDs[co.ID] {
			return fmt.Errorf("coach[%d]: duplicate id %d", i, co.ID)
		}
		coachIDs[co.ID] = true

		name := strings.TrimSpace(co.FullName)
		if name == "" {
			return fmt.Errorf("coach[%d]: full_name is required", i)
		}
		if len([]rune(name)) > model.MaxCoachLength {
			return fmt.Errorf("coach[%d]: full_name longer than %d characters", i, model.MaxCoachLength)
		}
		if coachNames[name] {
			return fmt.Errorf("coach[%d]: duplicate full_name '%s'", i, name)
		}
		coachNames[name] = true

		for _, sid := range co.Services {
			if !serviceIDs[sid] {
				return fmt.Errorf("coach[%d]: unknown service id %d", i, sid)
			}
		}
	}

	days := make(map[int]bool)
	for i, h := range c.OpeningHours {
		if h.Day < 1 || h.Day > 7 {
			return fmt.Errorf("opening_hours[%d]: invalid day %d, must be 1-7 (1=Mon, 7=Sun)", i, h.Day)
		}
		if days[h.Day] {
			return fmt.Errorf("opening_hours[%d]: duplicate day %d", i, h.Day)
		}
		days[h.Day] = true
		if h.Closed {
			continue
		}
		open, err := ParseClock(h.Open)
		if err != nil {
			return fmt.Errorf("opening_hours[%d].open: invalid format '%s', expected HH:MM", i, h.Open)
		}
		closeAt, err := ParseClock(h.Close)
		if err != nil {
			return fmt.Errorf("opening_hours[%d].close: invalid format '%s', expected HH:MM", i, h.Close)
		}
		if closeAt <= open {
			return fmt.Errorf("opening_hours[%d]: close must be after open", i)
		}
	}

	admins := make(map[string]bool)
	for i, a := range c.Admins {
		id := strings.TrimSpace(a.Identity)
		if id == "" {
			return fmt.Errorf("admin[%d]: identity is required", i)
		}
		if admins[id] {
			return fmt.Errorf("admin[%d]: duplicate identity '%s'", i, id)
		}
		admins[id] = true
	}

	return nil
}

func (c *FacilityConfig) applyDefaults() {
	for i := range c.Services {
		c.Services[i].Name = strings.TrimSpace(c.Services[i].Name)
		if c.Services[i].DurationMinutes == 0 {
			c.Services[i].DurationMinutes = model.DefaultServiceDuration
		}
	}
	for i := range c.Coaches {
		c.Coaches[i].FullName = strings.TrimSpace(c.Coaches[i].FullName)
	}
	for i := range c.Admins {
		c.Admins[i].Identity = strings.TrimSpace(c.Admins[i].Identity)
	}
}

// Hours converts the configured days into opening hours keyed by weekday.
// Days absent from the file are absent from the map.
func (c *FacilityConfig) Hours() map[time.Weekday]model.OpeningHours {
	out := make(map[time.Weekday]model.OpeningHours, len(c.OpeningHours))
	for _, h := range c.OpeningHours {
		day := WeekdayFromConfig(h.Day)
		oh := model.OpeningHours{DayOfWeek: day, IsClosed: h.Closed}
		if !h.Closed {
			open, errOpen := ParseClock(h.Open)
			closeAt, errClose := ParseClock(h.Close)
			if errOpen == nil && errClose == nil {
				oh.Open, oh.Close, oh.HasHours = open, closeAt, true
			}
		}
		out[day] = oh
	}
	return out
}

// ServiceByID returns the service config by ID.
func (c *FacilityConfig) ServiceByID(id int64) *ServiceConfig {
	for i := range c.Services {
		if c.Services[i].ID == id {
			return &c.Services[i]
		}
	}
	return nil
}

// String returns a summary of the configuration.
func (c *FacilityConfig) String() string {
	return fmt.Sprintf("FacilityConfig: %d services, %d coaches, %d days configured, %d admins",
		len(c.Services), len(c.Coaches), len(c.OpeningHours), len(c.Admins))
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// WeekdayFromConfig converts 1=Mon .. 7=Sun to time.Weekday.
func WeekdayFromConfig(day int) time.Weekday {
	return time.Weekday(day % 7)
}
