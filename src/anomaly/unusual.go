package anomaly

import (
	"context"
	"fmt"
	"math"

	"spendwatch-server/src/merchant"
	"spendwatch-server/src/models"
)

// UnusualAmountDetector flags charges that sit far outside a merchant's
// historical spread. History is everything before the window.
type UnusualAmountDetector struct {
	cfg UnusualAmountConfig
}

func NewUnusualAmountDetector(cfg UnusualAmountConfig) *UnusualAmountDetector {
	return &UnusualAmountDetector{cfg: cfg}
}

func (d *UnusualAmountDetector) Type() models.AnomalyType {
	return models.AnomalyUnusualAmount
}

func (d *UnusualAmountDetector) Detect(ctx context.Context, w Window, q TransactionQuery) ([]models.Anomaly, error) {
	recent, err := q.Outflows(ctx, w.SpaceID, w.Range())
	if err != nil {
		return nil, err
	}

	// nil means the merchant was looked up and has no usable baseline
	baselines := make(map[string]*MerchantStats)
	var anomalies []models.Anomaly
	for _, txn := range recent {
		if !txn.IsOutflow() {
			continue
		}
		id, ok := merchant.Resolve(txn.Merchant, txn.Description)
		if !ok {
			continue
		}

		stats, seen := baselines[id.Key]
		if !seen {
			history, err := q.MerchantHistory(ctx, w.SpaceID, id.Key, w.From)
			if err != nil {
				return nil, err
			}
			stats = d.baseline(id.Key, history, w)
			baselines[id.Key] = stats
		}
		if stats == nil || stats.StdDev == 0 {
			continue
		}

		z := math.Abs(ZScore(txn.Amount.InexactFloat64(), stats.Mean, stats.StdDev))
		severity, ok := d.severity(z)
		if !ok {
			continue
		}

		anomalies = append(anomalies, models.Anomaly{
			Type:          models.AnomalyUnusualAmount,
			Severity:      severity,
			TransactionID: strPtr(txn.ID),
			Merchant:      strPtr(id.Name),
			Description: fmt.Sprintf("Charge of %s at %s is %.1f standard deviations from the typical %s",
				money(txn.Amount, txn.Currency), id.Name, z, money(decimalFromFloat(stats.Mean), txn.Currency)),
			Amount: decimalPtr(txn.Amount),
			Date:   txn.Date,
			Metadata: map[string]any{
				"zScore":       round(z, 2),
				"mean":         round(stats.Mean, 2),
				"stdDev":       round(stats.StdDev, 2),
				"historyCount": stats.Count,
			},
		})
	}
	return anomalies, nil
}

func (d *UnusualAmountDetector) baseline(key string, history []models.Transaction, w Window) *MerchantStats {
	amounts := make([]float64, 0, len(history))
	for _, h := range history {
		if !h.IsOutflow() || !h.Date.Before(w.From) {
			continue
		}
		amounts = append(amounts, h.Amount.InexactFloat64())
	}
	stats, ok := ComputeMerchantStats(key, amounts, d.cfg.MinHistory)
	if !ok {
		return nil
	}
	return &stats
}

func (d *UnusualAmountDetector) severity(z float64) (models.Severity, bool) {
	switch {
	case z > d.cfg.HighZ:
		return models.SeverityHigh, true
	case z > d.cfg.MediumZ:
		return models.SeverityMedium, true
	case z > d.cfg.LowZ:
		return models.SeverityLow, true
	default:
		return "", false
	}
}
