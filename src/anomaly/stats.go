package anomaly

import "math"

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sumSqDiff float64
	for _, v := range values {
		sumSqDiff += (v - mean) * (v - mean)
	}
	return math.Sqrt(sumSqDiff / float64(len(values)))
}

// ZScore returns how many standard deviations value lies from mean. A zero
// standard deviation yields 0: no variance means nothing is anomalous.
func ZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// MerchantStats is the historical baseline for one merchant key.
type MerchantStats struct {
	Merchant string
	Count    int
	Mean     float64
	StdDev   float64
}

// ComputeMerchantStats builds a baseline from historical amounts. ok is false
// when there are fewer than minCount values.
func ComputeMerchantStats(key string, amounts []float64, minCount int) (MerchantStats, bool) {
	if len(amounts) < minCount || len(amounts) == 0 {
		return MerchantStats{}, false
	}
	return MerchantStats{
		Merchant: key,
		Count:    len(amounts),
		Mean:     Mean(amounts),
		StdDev:   StdDev(amounts),
	}, true
}
