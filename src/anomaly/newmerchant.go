package anomaly

import (
	"context"
	"fmt"

	"spendwatch-server/src/merchant"
	"spendwatch-server/src/models"
)

// NewMerchantLargeTransactionDetector flags large charges at merchants that
// never appear before the window.
type NewMerchantLargeTransactionDetector struct {
	cfg NewMerchantLargeConfig
}

func NewNewMerchantLargeTransactionDetector(cfg NewMerchantLargeConfig) *NewMerchantLargeTransactionDetector {
	return &NewMerchantLargeTransactionDetector{cfg: cfg}
}

func (d *NewMerchantLargeTransactionDetector) Type() models.AnomalyType {
	return models.AnomalyNewMerchantLarge
}

func (d *NewMerchantLargeTransactionDetector) Detect(ctx context.Context, w Window, q TransactionQuery) ([]models.Anomaly, error) {
	refs, err := q.MerchantsBefore(ctx, w.SpaceID, w.From)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if id, ok := merchant.Resolve(ref.Merchant, ref.Description); ok {
			known[id.Key] = struct{}{}
		}
	}

	recent, err := q.Outflows(ctx, w.SpaceID, w.Range())
	if err != nil {
		return nil, err
	}

	threshold := d.cfg.LargeAmount.Neg()
	var anomalies []models.Anomaly
	for _, txn := range recent {
		if !txn.Amount.LessThan(threshold) {
			continue
		}
		id, ok := merchant.Resolve(txn.Merchant, txn.Description)
		if !ok {
			continue
		}
		if _, seen := known[id.Key]; seen {
			continue
		}

		severity := models.SeverityMedium
		if txn.Amount.Abs().GreaterThan(d.cfg.HighAmount) {
			severity = models.SeverityHigh
		}
		anomalies = append(anomalies, models.Anomaly{
			Type:          models.AnomalyNewMerchantLarge,
			Severity:      severity,
			TransactionID: strPtr(txn.ID),
			Merchant:      strPtr(id.Name),
			Description:   fmt.Sprintf("Large charge of %s at new merchant %s", money(txn.Amount, txn.Currency), id.Name),
			Amount:        decimalPtr(txn.Amount),
			Date:          txn.Date,
			Metadata: map[string]any{
				"merchantKey":    id.Key,
				"knownMerchants": len(known),
			},
		})
	}
	return anomalies, nil
}
