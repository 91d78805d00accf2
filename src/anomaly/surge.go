package anomaly

import (
	"context"
	"fmt"

	"spendwatch-server/src/models"

	"github.com/shopspring/decimal"
)

// CategorySurgeDetector compares each category's spend in the window with its
// spend over the preceding baseline period, scaled to the window length.
type CategorySurgeDetector struct {
	cfg CategorySurgeConfig
}

func NewCategorySurgeDetector(cfg CategorySurgeConfig) *CategorySurgeDetector {
	return &CategorySurgeDetector{cfg: cfg}
}

func (d *CategorySurgeDetector) Type() models.AnomalyType {
	return models.AnomalyCategorySurge
}

func (d *CategorySurgeDetector) Detect(ctx context.Context, w Window, q TransactionQuery) ([]models.Anomaly, error) {
	recent, err := q.CategoryTotals(ctx, w.SpaceID, w.Range())
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, nil
	}

	baseline := models.DateRange{
		From: w.From.AddDate(0, 0, -d.cfg.BaselineDays),
		To:   w.From,
	}
	historical, err := q.CategoryTotals(ctx, w.SpaceID, baseline)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.CategoryTotal, len(historical))
	for _, h := range historical {
		if h.CategoryID != nil {
			byID[*h.CategoryID] = h
		}
	}

	days := decimal.NewFromInt(int64(w.Days))
	baselineDays := decimal.NewFromInt(int64(d.cfg.BaselineDays))
	var anomalies []models.Anomaly
	for _, r := range recent {
		if r.CategoryID == nil {
			continue
		}
		h, ok := byID[*r.CategoryID]
		if !ok || h.Total.IsZero() || h.Count < d.cfg.MinHistoryCount {
			continue
		}
		spend := r.Total.Abs()
		if spend.LessThanOrEqual(d.cfg.MinRecentAmount) {
			continue
		}

		normalized := h.Total.Abs().Mul(days).Div(baselineDays)
		if normalized.IsZero() {
			continue
		}
		ratio := spend.Div(normalized).InexactFloat64()
		severity, ok := d.severity(ratio)
		if !ok {
			continue
		}

		name := categoryName(r, h)
		label := *r.CategoryID
		if name != nil {
			label = *name
		}
		anomalies = append(anomalies, models.Anomaly{
			Type:     models.AnomalyCategorySurge,
			Severity: severity,
			Category: name,
			Description: fmt.Sprintf("%s spending is %.1fx its usual level for %d days (%s vs %s)",
				label, ratio, w.Days, spend.StringFixed(2), normalized.StringFixed(2)),
			Amount: decimalPtr(spend.Sub(normalized)),
			Date:   w.To,
			Metadata: map[string]any{
				"categoryId":         *r.CategoryID,
				"ratio":              round(ratio, 2),
				"recentTotal":        spend.StringFixed(2),
				"historicalTotal":    h.Total.Abs().StringFixed(2),
				"normalizedBaseline": normalized.StringFixed(2),
				"baselineDays":       d.cfg.BaselineDays,
			},
		})
	}
	return anomalies, nil
}

func (d *CategorySurgeDetector) severity(ratio float64) (models.Severity, bool) {
	switch {
	case ratio > d.cfg.HighRatio:
		return models.SeverityHigh, true
	case ratio > d.cfg.MediumRatio:
		return models.SeverityMedium, true
	case ratio > d.cfg.LowRatio:
		return models.SeverityLow, true
	default:
		return "", false
	}
}

func categoryName(totals ...models.CategoryTotal) *string {
	for _, t := range totals {
		if t.CategoryName != nil && *t.CategoryName != "" {
			return t.CategoryName
		}
	}
	return nil
}
