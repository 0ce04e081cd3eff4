// Package usage buckets approved bookings into weekly, monthly and yearly
// series for reporting.
package usage

import (
	"sort"
	"strings"
	"time"
)

// Unspecified labels rows with a blank service or coach name.
const Unspecified = "Unspecified"

// Period names a bucketing configuration.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// Category names the grouping dimension of a metric.
type Category string

const (
	CategoryService Category = "service"
	CategoryCoach   Category = "coach"
)

// Row is one approved booking reduced to what aggregation needs.
type Row struct {
	Date        time.Time
	ServiceName string
	CoachName   string
}

// Series is the per-bucket count for one label.
type Series struct {
	Label  string `json:"label"`
	Points []int  `json:"points"`
	Total  int    `json:"total"`
}

// Metric is one grouping over one period.
type Metric struct {
	Category Category `json:"category"`
	Period   Period   `json:"period"`
	Labels   []string `json:"labels"`
	Series   []Series `json:"series"`
}

// PeriodReport holds both groupings for a period.
type PeriodReport struct {
	ByService Metric `json:"by_service"`
	ByCoach   Metric `json:"by_coach"`
}

// Report is the full usage breakdown anchored at Today.
type Report struct {
	Today   string       `json:"today"`
	Weekly  PeriodReport `json:"weekly"`
	Monthly PeriodReport `json:"monthly"`
	Yearly  PeriodReport `json:"yearly"`
}

type bucketing struct {
	period  Period
	count   int
	anchor  time.Time
	monthly bool
}

func (b bucketing) index(date time.Time) int {
	if b.monthly {
		return (date.Year()-b.anchor.Year())*12 + int(date.Month()) - int(b.anchor.Month())
	}
	return daysBetween(b.anchor, date)
}

func (b bucketing) labels() []string {
	out := make([]string, b.count)
	for i := range out {
		if b.monthly {
			out[i] = b.anchor.AddDate(0, i, 0).Format("2006-01")
		} else {
			out[i] = b.anchor.AddDate(0, 0, i).Format("2006-01-02")
		}
	}
	return out
}

// WindowStart is the earliest date any period looks at: one year before today.
func WindowStart(today time.Time) time.Time {
	return dateOnly(today).AddDate(-1, 0, 0)
}

// Aggregate buckets rows relative to today. Rows outside a period's range
// are dropped from that period.
func Aggregate(rows []Row, today time.Time) Report {
	today = dateOnly(today)
	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())

	periods := []bucketing{
		{period: PeriodWeekly, count: 7, anchor: today.AddDate(0, 0, -6)},
		{period: PeriodMonthly, count: 30, anchor: today.AddDate(0, 0, -29)},
		{period: PeriodYearly, count: 12, anchor: firstOfMonth.AddDate(0, -11, 0), monthly: true},
	}

	reports := make([]PeriodReport, len(periods))
	for i, p := range periods {
		reports[i] = PeriodReport{
			ByService: buildMetric(rows, p, CategoryService, func(r Row) string { return r.ServiceName }),
			ByCoach:   buildMetric(rows, p, CategoryCoach, func(r Row) string { return r.CoachName }),
		}
	}

	return Report{
		Today:   today.Format("2006-01-02"),
		Weekly:  reports[0],
		Monthly: reports[1],
		Yearly:  reports[2],
	}
}

func buildMetric(rows []Row, b bucketing, category Category, labelOf func(Row) string) Metric {
	byLabel := make(map[string]*Series)
	for _, r := range rows {
		idx := b.index(dateOnly(r.Date))
		if idx < 0 || idx >= b.count {
			continue
		}
		label := normalizeLabel(labelOf(r))
		s, ok := byLabel[label]
		if !ok {
			s = &Series{Label: label, Points: make([]int, b.count)}
			byLabel[label] = s
		}
		s.Points[idx]++
		s.Total++
	}

	series := make([]Series, 0, len(byLabel))
	for _, s := range byLabel {
		series = append(series, *s)
	}
	sort.Slice(series, func(i, j int) bool {
		if series[i].Total != series[j].Total {
			return series[i].Total > series[j].Total
		}
		return series[i].Label < series[j].Label
	})

	return Metric{
		Category: category,
		Period:   b.period,
		Labels:   b.labels(),
		Series:   series,
	}
}

func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unspecified
	}
	return s
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b, ignoring DST shifts.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
