package anomaly

import (
	"context"
	"fmt"

	"spendwatch-server/src/models"

	"github.com/shopspring/decimal"
)

const week = 7

// SpendingSpikeDetector compares the latest week's outflow against the
// average of the earlier weeks in the window.
type SpendingSpikeDetector struct {
	cfg SpendingSpikeConfig
}

func NewSpendingSpikeDetector(cfg SpendingSpikeConfig) *SpendingSpikeDetector {
	return &SpendingSpikeDetector{cfg: cfg}
}

func (d *SpendingSpikeDetector) Type() models.AnomalyType {
	return models.AnomalySpendingSpike
}

// weekBuckets splits the window into full weeks ending at w.To, most recent
// first. A trailing partial week is ignored.
func weekBuckets(w Window) []models.DateRange {
	n := w.Days / week
	buckets := make([]models.DateRange, 0, n)
	for i := 0; i < n; i++ {
		buckets = append(buckets, models.DateRange{
			From: w.To.AddDate(0, 0, -week*(i+1)),
			To:   w.To.AddDate(0, 0, -week*i),
		})
	}
	return buckets
}

func (d *SpendingSpikeDetector) Detect(ctx context.Context, w Window, q TransactionQuery) ([]models.Anomaly, error) {
	buckets := weekBuckets(w)
	if len(buckets) < d.cfg.MinWeeks {
		return nil, nil
	}

	totals := make([]models.PeriodTotal, len(buckets))
	for i, b := range buckets {
		total, err := q.OutflowTotal(ctx, w.SpaceID, b)
		if err != nil {
			return nil, err
		}
		totals[i] = total
	}

	current := totals[0]
	if current.Count == 0 {
		return nil, nil
	}
	prior := totals[1:]
	withData := 0
	sum := decimal.Zero
	for _, t := range prior {
		if t.Count > 0 {
			withData++
		}
		sum = sum.Add(t.Total.Abs())
	}
	if withData < d.cfg.MinPriorWeeksWithData {
		return nil, nil
	}

	average := sum.Div(decimal.NewFromInt(int64(len(prior))))
	if average.LessThan(d.cfg.AverageFloor) {
		average = d.cfg.AverageFloor
	}
	spend := current.Total.Abs()
	ratio := spend.Div(average).InexactFloat64()
	if ratio <= d.cfg.Ratio {
		return nil, nil
	}

	severity := models.SeverityMedium
	if ratio > d.cfg.HighRatio {
		severity = models.SeverityHigh
	}
	excess := spend.Sub(average)

	return []models.Anomaly{{
		Type:     models.AnomalySpendingSpike,
		Severity: severity,
		Description: fmt.Sprintf("Spending this week is %.1fx the weekly average (%s vs %s)",
			ratio, spend.StringFixed(2), average.StringFixed(2)),
		Amount: decimalPtr(excess),
		Date:   buckets[0].To,
		Metadata: map[string]any{
			"ratio":             round(ratio, 2),
			"currentWeekTotal":  spend.StringFixed(2),
			"historicalAverage": average.StringFixed(2),
			"weeks":             len(buckets),
			"weekStart":         buckets[0].From,
			"weekEnd":           buckets[0].To,
		},
	}}, nil
}
