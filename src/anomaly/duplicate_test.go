package anomaly

import (
	"context"
	"testing"
	"time"

	"spendwatch-server/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectDuplicates(t *testing.T, txns ...models.Transaction) []models.Anomaly {
	t.Helper()
	d := NewDuplicateChargeDetector(DefaultConfig().DuplicateCharge)
	found, err := d.Detect(context.Background(), testWindow(30), newMemQuery(txns...))
	require.NoError(t, err)
	return found
}

func TestDuplicateCharge_FourHoursApart(t *testing.T) {
	first := daysAgo(3)
	found := detectDuplicates(t,
		txn("t1", "Streaming Co", "-100", first),
		txn("t2", "Streaming Co", "-100", first.Add(4*time.Hour)),
	)

	require.Len(t, found, 1)
	a := found[0]
	assert.Equal(t, models.AnomalyDuplicateCharge, a.Type)
	assert.Equal(t, "t2", *a.TransactionID)
	assert.Equal(t, first.Add(4*time.Hour), a.Date)
	require.NotNil(t, a.Confidence)
	assert.GreaterOrEqual(t, *a.Confidence, 0.85)
	assert.Equal(t, models.SeverityHigh, a.Severity)
	assert.Equal(t, "t1", a.Metadata["originalTransactionId"])
	assert.Equal(t, 4.0, a.Metadata["hoursApart"])
}

func TestDuplicateCharge_NotFlagged(t *testing.T) {
	first := daysAgo(10)
	t.Run("five days apart", func(t *testing.T) {
		assert.Empty(t, detectDuplicates(t,
			txn("t1", "Streaming Co", "-100", first),
			txn("t2", "Streaming Co", "-100", first.Add(5*24*time.Hour)),
		))
	})
	t.Run("different amounts", func(t *testing.T) {
		assert.Empty(t, detectDuplicates(t,
			txn("t1", "Streaming Co", "-100", first),
			txn("t2", "Streaming Co", "-150", first.Add(4*time.Hour)),
		))
	})
	t.Run("different merchants", func(t *testing.T) {
		assert.Empty(t, detectDuplicates(t,
			txn("t1", "Streaming Co", "-100", first),
			txn("t2", "Music Co", "-100", first.Add(time.Hour)),
		))
	})
	t.Run("unattributable", func(t *testing.T) {
		assert.Empty(t, detectDuplicates(t,
			described("t1", "#1", "-100", first),
			described("t2", "#1", "-100", first.Add(time.Hour)),
		))
	})
}

func TestDuplicateCharge_NearWindowEdge(t *testing.T) {
	first := daysAgo(10)
	found := detectDuplicates(t,
		txn("t1", "Hotel", "-250", first),
		txn("t2", "Hotel", "-250", first.Add(47*time.Hour)),
	)
	require.Len(t, found, 1)
	assert.Equal(t, models.SeverityMedium, found[0].Severity)
	assert.InDelta(t, 0.51, *found[0].Confidence, 0.01)
}

func TestDuplicateCharge_ChainReportsEachChargeOnce(t *testing.T) {
	first := daysAgo(4)
	found := detectDuplicates(t,
		txn("t1", "Parking", "-5", first),
		txn("t2", "Parking", "-5", first.Add(time.Hour)),
		txn("t3", "PARKING", "-5.00", first.Add(2*time.Hour)),
	)
	require.Len(t, found, 2)
	assert.Equal(t, "t2", *found[0].TransactionID)
	assert.Equal(t, "t1", found[0].Metadata["originalTransactionId"])
	assert.Equal(t, "t3", *found[1].TransactionID)
	assert.Equal(t, "t2", found[1].Metadata["originalTransactionId"])
}

func TestDuplicateCharge_ConfidenceCurve(t *testing.T) {
	d := NewDuplicateChargeDetector(DefaultConfig().DuplicateCharge)

	assert.Equal(t, 1.0, d.Confidence(0))
	assert.GreaterOrEqual(t, d.Confidence(10*time.Minute), 0.85)
	assert.Equal(t, 0.5, d.Confidence(48*time.Hour))
	assert.Equal(t, 0.5, d.Confidence(72*time.Hour))

	prev := d.Confidence(0)
	for h := 1; h <= 48; h++ {
		c := d.Confidence(time.Duration(h) * time.Hour)
		assert.Less(t, c, prev, "confidence must fall as the gap grows (%dh)", h)
		assert.GreaterOrEqual(t, c, 0.5)
		prev = c
	}
}
