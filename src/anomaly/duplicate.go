package anomaly

import (
	"context"
	"fmt"
	"sort"
	"time"

	"spendwatch-server/src/merchant"
	"spendwatch-server/src/models"
)

// DuplicateChargeDetector flags a charge when the same merchant charged the
// exact same amount shortly before it.
type DuplicateChargeDetector struct {
	cfg DuplicateChargeConfig
}

func NewDuplicateChargeDetector(cfg DuplicateChargeConfig) *DuplicateChargeDetector {
	return &DuplicateChargeDetector{cfg: cfg}
}

func (d *DuplicateChargeDetector) Type() models.AnomalyType {
	return models.AnomalyDuplicateCharge
}

type resolvedTxn struct {
	models.Transaction
	merchant merchant.Identity
}

func (d *DuplicateChargeDetector) Detect(ctx context.Context, w Window, q TransactionQuery) ([]models.Anomaly, error) {
	recent, err := q.Outflows(ctx, w.SpaceID, w.Range())
	if err != nil {
		return nil, err
	}

	txns := make([]resolvedTxn, 0, len(recent))
	for _, txn := range recent {
		if !txn.IsOutflow() {
			continue
		}
		id, ok := merchant.Resolve(txn.Merchant, txn.Description)
		if !ok {
			continue
		}
		txns = append(txns, resolvedTxn{Transaction: txn, merchant: id})
	}
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date) {
			return txns[i].Date.Before(txns[j].Date)
		}
		return txns[i].ID < txns[j].ID
	})

	var anomalies []models.Anomaly
	for j := 1; j < len(txns); j++ {
		later := txns[j]
		// Nearest earlier match wins and each later charge is reported once.
		// Three identical charges A, B, C yield A->B and B->C, never A->C.
		for i := j - 1; i >= 0; i-- {
			earlier := txns[i]
			gap := later.Date.Sub(earlier.Date)
			if gap > d.cfg.Window {
				break
			}
			if earlier.merchant.Key != later.merchant.Key || !earlier.Amount.Equal(later.Amount) {
				continue
			}
			anomalies = append(anomalies, d.anomaly(earlier, later, gap))
			break
		}
	}
	return anomalies, nil
}

// Confidence falls linearly from MaxConfidence at zero gap to MinConfidence
// at the edge of the window.
func (d *DuplicateChargeDetector) Confidence(gap time.Duration) float64 {
	if gap < 0 {
		gap = -gap
	}
	frac := float64(gap) / float64(d.cfg.Window)
	c := d.cfg.MaxConfidence - (d.cfg.MaxConfidence-d.cfg.MinConfidence)*frac
	if c < d.cfg.MinConfidence {
		return d.cfg.MinConfidence
	}
	if c > d.cfg.MaxConfidence {
		return d.cfg.MaxConfidence
	}
	return c
}

func (d *DuplicateChargeDetector) anomaly(earlier, later resolvedTxn, gap time.Duration) models.Anomaly {
	confidence := round(d.Confidence(gap), 3)
	severity := models.SeverityMedium
	if confidence >= d.cfg.HighConfidence {
		severity = models.SeverityHigh
	}
	hours := gap.Hours()
	return models.Anomaly{
		Type:          models.AnomalyDuplicateCharge,
		Severity:      severity,
		Confidence:    floatPtr(confidence),
		TransactionID: strPtr(later.ID),
		Merchant:      strPtr(later.merchant.Name),
		Description: fmt.Sprintf("Possible duplicate charge of %s at %s, %.1f hours after an identical charge",
			money(later.Amount, later.Currency), later.merchant.Name, hours),
		Amount: decimalPtr(later.Amount),
		Date:   later.Date,
		Metadata: map[string]any{
			"originalTransactionId": earlier.ID,
			"hoursApart":            round(hours, 2),
		},
	}
}
