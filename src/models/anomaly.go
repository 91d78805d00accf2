package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AnomalyType string

const (
	AnomalyUnusualAmount    AnomalyType = "unusual_amount"
	AnomalySpendingSpike    AnomalyType = "spending_spike"
	AnomalyNewMerchantLarge AnomalyType = "new_merchant_large"
	AnomalyCategorySurge    AnomalyType = "category_surge"
	AnomalyDuplicateCharge  AnomalyType = "duplicate_charge"
)

// AnomalyTypes lists every type in detector order.
var AnomalyTypes = []AnomalyType{
	AnomalyUnusualAmount,
	AnomalySpendingSpike,
	AnomalyNewMerchantLarge,
	AnomalyCategorySurge,
	AnomalyDuplicateCharge,
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// Rank orders severities; higher is more severe. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Anomaly is one finding. It is computed per request and never stored.
//
// TransactionID is nil for period level findings (spending spikes and
// category surges). Confidence is only set for duplicate charges.
type Anomaly struct {
	Type          AnomalyType      `json:"type"`
	Severity      Severity         `json:"severity"`
	Confidence    *float64         `json:"confidence,omitempty"`
	TransactionID *string          `json:"transaction_id"`
	Merchant      *string          `json:"merchant"`
	Category      *string          `json:"category"`
	Description   string           `json:"description"`
	Amount        *decimal.Decimal `json:"amount"`
	Date          time.Time        `json:"date"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
}

// Summary is the aggregate view over a detection run.
type Summary struct {
	TotalCount      int                 `json:"total_count"`
	BySeverity      map[Severity]int    `json:"by_severity"`
	ByType          map[AnomalyType]int `json:"by_type"`
	TotalImpact     decimal.Decimal     `json:"total_impact"`
	RecentAnomalies []Anomaly           `json:"recent_anomalies"`
}
