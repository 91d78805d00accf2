package anomaly

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds every threshold and default the engine uses. DefaultConfig
// returns the production values; tests may pass anything.
type Config struct {
	DefaultDays  int
	DefaultLimit int
	MaxDays      int
	MaxLimit     int
	SummarySize  int
	// Concurrency bounds how many detectors run at once. 1 runs them in order.
	Concurrency  int

	UnusualAmount    UnusualAmountConfig
	SpendingSpike    SpendingSpikeConfig
	NewMerchantLarge NewMerchantLargeConfig
	CategorySurge    CategorySurgeConfig
	DuplicateCharge  DuplicateChargeConfig
}

type UnusualAmountConfig struct {
	MinHistory int
	LowZ       float64
	MediumZ    float64
	HighZ      float64
}

type SpendingSpikeConfig struct {
	MinWeeks              int
	// MinPriorWeeksWithData is how many earlier weeks need transactions
	// before the current week can be judged.
	MinPriorWeeksWithData int
	Ratio                 float64
	HighRatio             float64
	// AverageFloor keeps the ratio finite when history is all zero.
	AverageFloor          decimal.Decimal
}

type NewMerchantLargeConfig struct {
	// LargeAmount is the outflow magnitude a charge must exceed.
	LargeAmount decimal.Decimal
	HighAmount  decimal.Decimal
}

type CategorySurgeConfig struct {
	BaselineDays    int
	MinHistoryCount int
	MinRecentAmount decimal.Decimal
	LowRatio        float64
	MediumRatio     float64
	HighRatio       float64
}

type DuplicateChargeConfig struct {
	Window         time.Duration
	MinConfidence  float64
	MaxConfidence  float64
	// HighConfidence is the confidence at or above which a duplicate is high
	// severity.
	HighConfidence float64
}

func DefaultConfig() Config {
	return Config{
		DefaultDays:  30,
		DefaultLimit: 50,
		MaxDays:      365,
		MaxLimit:     500,
		SummarySize:  5,
		Concurrency:  5,
		UnusualAmount: UnusualAmountConfig{
			MinHistory: 2,
			LowZ:       2.5,
			MediumZ:    3,
			HighZ:      4,
		},
		SpendingSpike: SpendingSpikeConfig{
			MinWeeks:              3,
			MinPriorWeeksWithData: 2,
			Ratio:                 1.5,
			HighRatio:             2.5,
			AverageFloor:          decimal.NewFromInt(1),
		},
		NewMerchantLarge: NewMerchantLargeConfig{
			LargeAmount: decimal.NewFromInt(500),
			HighAmount:  decimal.NewFromInt(1000),
		},
		CategorySurge: CategorySurgeConfig{
			BaselineDays:    90,
			MinHistoryCount: 3,
			MinRecentAmount: decimal.NewFromInt(100),
			LowRatio:        1.5,
			MediumRatio:     1.75,
			HighRatio:       2.5,
		},
		DuplicateCharge: DuplicateChargeConfig{
			Window:         48 * time.Hour,
			MinConfidence:  0.5,
			MaxConfidence:  1.0,
			HighConfidence: 0.9,
		},
	}
}

// Validate rejects configurations the detectors cannot run with.
func (c Config) Validate() error {
	if c.DefaultDays <= 0 || c.DefaultDays > c.MaxDays {
		return fmt.Errorf("default days %d outside 1..%d", c.DefaultDays, c.MaxDays)
	}
	if c.DefaultLimit <= 0 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("default limit %d outside 1..%d", c.DefaultLimit, c.MaxLimit)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.CategorySurge.BaselineDays <= 0 {
		return fmt.Errorf("category baseline days must be positive, got %d", c.CategorySurge.BaselineDays)
	}
	if c.DuplicateCharge.Window <= 0 {
		return fmt.Errorf("duplicate window must be positive, got %s", c.DuplicateCharge.Window)
	}
	if c.DuplicateCharge.MinConfidence > c.DuplicateCharge.MaxConfidence {
		return fmt.Errorf("duplicate confidence range [%v, %v] is empty",
			c.DuplicateCharge.MinConfidence, c.DuplicateCharge.MaxConfidence)
	}
	return nil
}
