package insights

import (
	"fmt"
	"sort"
	"time"

	"github.com/mrlokans/readinglog/internal/entities"
)

// DailyLabelLayout is the chart label format, e.g. "7 Oct".
const DailyLabelLayout = "2 Jan"

// DailyPoint is the pages read on one calendar day.
type DailyPoint struct {
	Date      string `json:"date"` // YYYY-MM-DD in the aggregator's location
	Label     string `json:"label"`
	PagesRead int    `json:"pages_read"`
	Sessions  int    `json:"sessions"`
}

// DailySeries groups sessions by the calendar day they started on, oldest
// first. Sessions with a negative delta are left out of the series; they
// still count in the Insights totals.
func DailySeries(sessions []entities.SessionWithBook, loc *time.Location) []DailyPoint {
	if loc == nil {
		loc = time.UTC
	}

	byDay := map[string]*DailyPoint{}
	for _, s := range sessions {
		if s.TotalPagesRead < 0 || s.CreatedAt.IsZero() {
			continue
		}
		day := s.CreatedAt.In(loc)
		key := day.Format(time.DateOnly)
		point, ok := byDay[key]
		if !ok {
			point = &DailyPoint{Date: key, Label: day.Format(DailyLabelLayout)}
			byDay[key] = point
		}
		point.PagesRead += s.TotalPagesRead
		point.Sessions++
	}

	series := make([]DailyPoint, 0, len(byDay))
	for _, point := range byDay {
		series = append(series, *point)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series
}

// FormatDuration renders milliseconds as whole minutes and seconds, e.g.
// "12m 5s".
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / 1000
	return fmt.Sprintf("%dm %ds", totalSeconds/60, totalSeconds%60)
}
