package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2025, 3, 20, 0, 0, 0, 0, time.Local)

func totalOf(m Metric) int {
	n := 0
	for _, s := range m.Series {
		n += s.Total
	}
	return n
}

func TestAggregateWindows(t *testing.T) {
	rows := []Row{
		{Date: today.AddDate(0, 0, -3), ServiceName: "Yoga", CoachName: "Ada"},
		{Date: today.AddDate(0, 0, -10), ServiceName: "Yoga", CoachName: "Bo"},
		{Date: today.AddDate(0, 0, -40), ServiceName: "Boxing", CoachName: "Ada"},
	}

	r := Aggregate(rows, today)

	assert.Equal(t, 1, totalOf(r.Weekly.ByService))
	assert.Equal(t, 2, totalOf(r.Monthly.ByService))
	assert.Equal(t, 3, totalOf(r.Yearly.ByService))
	assert.Equal(t, 3, totalOf(r.Yearly.ByCoach))
	assert.Equal(t, "2025-03-20", r.Today)
}

func TestAggregateBucketsAndLabels(t *testing.T) {
	rows := []Row{
		{Date: today, ServiceName: "Yoga", CoachName: "Ada"},
		{Date: today.AddDate(0, 0, -6), ServiceName: "Yoga", CoachName: "Ada"},
		{Date: today.AddDate(0, 0, -7), ServiceName: "Yoga", CoachName: "Ada"},
		{Date: today.AddDate(0, 0, 1), ServiceName: "Yoga", CoachName: "Ada"},
	}
	r := Aggregate(rows, today)

	weekly := r.Weekly.ByService
	require.Len(t, weekly.Labels, 7)
	assert.Equal(t, "2025-03-14", weekly.Labels[0])
	assert.Equal(t, "2025-03-20", weekly.Labels[6])
	require.Len(t, weekly.Series, 1)
	assert.Equal(t, []int{1, 0, 0, 0, 0, 0, 1}, weekly.Series[0].Points)

	monthly := r.Monthly.ByCoach
	require.Len(t, monthly.Labels, 30)
	assert.Equal(t, "2025-02-19", monthly.Labels[0])
	assert.Equal(t, 3, monthly.Series[0].Total)

	yearly := r.Yearly.ByService
	require.Len(t, yearly.Labels, 12)
	assert.Equal(t, "2024-04", yearly.Labels[0])
	assert.Equal(t, "2025-03", yearly.Labels[11])
	// Yearly buckets by month, so a later day in the current month still counts.
	assert.Equal(t, 4, yearly.Series[0].Points[11])
	assert.Equal(t, 0, yearly.Series[0].Points[10])
}

func TestAggregateYearlyDropsOlderMonths(t *testing.T) {
	rows := []Row{
		{Date: time.Date(2024, 4, 1, 0, 0, 0, 0, time.Local), ServiceName: "Yoga"},
		{Date: time.Date(2024, 3, 31, 0, 0, 0, 0, time.Local), ServiceName: "Yoga"},
	}
	r := Aggregate(rows, today)
	require.Len(t, r.Yearly.ByService.Series, 1)
	assert.Equal(t, 1, r.Yearly.ByService.Series[0].Total)
	assert.Equal(t, 1, r.Yearly.ByService.Series[0].Points[0])
}

func TestAggregateSortingAndUnspecified(t *testing.T) {
	rows := []Row{
		{Date: today, ServiceName: "Boxing", CoachName: ""},
		{Date: today, ServiceName: "Yoga", CoachName: "  "},
		{Date: today, ServiceName: "Yoga", CoachName: "Ada"},
		{Date: today, ServiceName: "Aerobics", CoachName: "Bo"},
		{Date: today, ServiceName: "", CoachName: "Cy"},
	}
	r := Aggregate(rows, today)

	var services []string
	for _, s := range r.Weekly.ByService.Series {
		services = append(services, s.Label)
	}
	assert.Equal(t, []string{"Yoga", "Aerobics", "Boxing", Unspecified}, services)

	coaches := r.Weekly.ByCoach.Series
	require.NotEmpty(t, coaches)
	assert.Equal(t, Unspecified, coaches[0].Label)
	assert.Equal(t, 2, coaches[0].Total)
	assert.Equal(t, CategoryCoach, r.Weekly.ByCoach.Category)
	assert.Equal(t, PeriodWeekly, r.Weekly.ByCoach.Period)
}

func TestAggregateEmpty(t *testing.T) {
	r := Aggregate(nil, today)
	assert.Empty(t, r.Monthly.ByService.Series)
	assert.NotNil(t, r.Monthly.ByService.Series)
	assert.Len(t, r.Monthly.ByService.Labels, 30)
}

func TestWindowStart(t *testing.T) {
	assert.Equal(t, time.Date(2024, 3, 20, 0, 0, 0, 0, time.Local), WindowStart(today.Add(15*time.Hour)))
}
