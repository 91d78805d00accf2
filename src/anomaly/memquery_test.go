package anomaly

import (
	"context"
	"sort"
	"sync"
	"time"

	"spendwatch-server/src/merchant"
	"spendwatch-server/src/models"

	"github.com/shopspring/decimal"
)

const testSpace = "6f1c2a52-8c1e-4a55-9d55-4c4b0f6d2b11"

var testNow = time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)

func daysAgo(d float64) time.Time {
	return testNow.Add(-time.Duration(d * float64(24*time.Hour)))
}

func strp(s string) *string { return &s }

func txn(id, merchantName, amount string, at time.Time) models.Transaction {
	t := models.Transaction{
		ID:          id,
		SpaceID:     testSpace,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
		Description: merchantName,
		Date:        at,
	}
	if merchantName != "" {
		t.Merchant = strp(merchantName)
	}
	return t
}

func inCategory(t models.Transaction, categoryID string) models.Transaction {
	t.CategoryID = strp(categoryID)
	return t
}

func described(id, description, amount string, at time.Time) models.Transaction {
	t := txn(id, "", amount, at)
	t.Description = description
	return t
}

// memQuery is an in-memory TransactionQuery over a fixed slice.
type memQuery struct {
	mu         sync.Mutex
	txns       []models.Transaction
	categories map[string]string
	errs       map[string]error
	calls      map[string]int
}

func newMemQuery(txns ...models.Transaction) *memQuery {
	return &memQuery{
		txns:       txns,
		categories: map[string]string{},
		errs:       map[string]error{},
		calls:      map[string]int{},
	}
}

func (m *memQuery) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.errs[method]
}

func (m *memQuery) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *memQuery) outflows(spaceID string, keep func(models.Transaction) bool) []models.Transaction {
	var out []models.Transaction
	for _, t := range m.txns {
		if t.SpaceID == spaceID && t.IsOutflow() && keep(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memQuery) Outflows(ctx context.Context, spaceID string, r models.DateRange) ([]models.Transaction, error) {
	if err := m.record("Outflows"); err != nil {
		return nil, err
	}
	return m.outflows(spaceID, func(t models.Transaction) bool { return r.Contains(t.Date) }), nil
}

func (m *memQuery) MerchantHistory(ctx context.Context, spaceID, merchantKey string, before time.Time) ([]models.Transaction, error) {
	if err := m.record("MerchantHistory"); err != nil {
		return nil, err
	}
	return m.outflows(spaceID, func(t models.Transaction) bool {
		id, ok := merchant.Resolve(t.Merchant, t.Description)
		return ok && id.Key == merchantKey && t.Date.Before(before)
	}), nil
}

func (m *memQuery) OutflowTotal(ctx context.Context, spaceID string, r models.DateRange) (models.PeriodTotal, error) {
	if err := m.record("OutflowTotal"); err != nil {
		return models.PeriodTotal{}, err
	}
	total := models.PeriodTotal{Total: decimal.Zero}
	for _, t := range m.outflows(spaceID, func(t models.Transaction) bool { return r.Contains(t.Date) }) {
		total.Total = total.Total.Add(t.Amount)
		total.Count++
	}
	return total, nil
}

func (m *memQuery) CategoryTotals(ctx context.Context, spaceID string, r models.DateRange) ([]models.CategoryTotal, error) {
	if err := m.record("CategoryTotals"); err != nil {
		return nil, err
	}
	groups := map[string]*models.CategoryTotal{}
	var keys []string
	for _, t := range m.outflows(spaceID, func(t models.Transaction) bool { return r.Contains(t.Date) }) {
		key := ""
		if t.CategoryID != nil {
			key = *t.CategoryID
		}
		g, ok := groups[key]
		if !ok {
			g = &models.CategoryTotal{CategoryID: t.CategoryID, Total: decimal.Zero}
			if name, ok := m.categories[key]; ok {
				g.CategoryName = strp(name)
			}
			groups[key] = g
			keys = append(keys, key)
		}
		g.Total = g.Total.Add(t.Amount)
		g.Count++
	}
	sort.Strings(keys)
	out := make([]models.CategoryTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, *groups[k])
	}
	return out, nil
}

func (m *memQuery) MerchantsBefore(ctx context.Context, spaceID string, before time.Time) ([]models.MerchantRef, error) {
	if err := m.record("MerchantsBefore"); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []models.MerchantRef
	for _, t := range m.outflows(spaceID, func(t models.Transaction) bool { return t.Date.Before(before) }) {
		key := "\x00" + t.Description
		if t.Merchant != nil {
			key = *t.Merchant + key
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.MerchantRef{Merchant: t.Merchant, Description: t.Description})
	}
	return out, nil
}

type fakeAccess struct {
	mu    sync.Mutex
	err   error
	calls int
	role  Role
}

func (f *fakeAccess) VerifySpaceAccess(ctx context.Context, userID, spaceID string, minimum Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.role = minimum
	return f.err
}

func testWindow(days int) Window {
	return NewWindow(testSpace, testNow, days)
}
