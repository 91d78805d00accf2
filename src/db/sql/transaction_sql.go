package db

import (
	"context"
	"fmt"
	"time"

	"spendwatch-server/src/merchant"
	"spendwatch-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Amounts are selected as text and parsed into decimals, so numeric
// precision survives the trip and nothing downstream sees a float.
const transactionColumns = `id, amount::text, currency, merchant, description, date, category_id`

func scanTransaction(row pgx.Row, spaceID string) (models.Transaction, error) {
	var t models.Transaction
	var amount string
	err := row.Scan(&t.ID, &amount, &t.Currency, &t.Merchant, &t.Description, &t.Date, &t.CategoryID)
	if err != nil {
		return t, fmt.Errorf("failed to scan transaction: %w", err)
	}
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return t, fmt.Errorf("invalid amount %q on transaction %s: %w", amount, t.ID, err)
	}
	t.SpaceID = spaceID
	return t, nil
}

func collectTransactions(rows pgx.Rows, spaceID string) ([]models.Transaction, error) {
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows, spaceID)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func ListOutflows(ctx context.Context, pool *pgxpool.Pool, spaceID string, r models.DateRange) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE space_id = $1 AND amount < 0 AND date >= $2 AND date < $3
		ORDER BY date, id
	`
	rows, err := pool.Query(ctx, query, spaceID, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outflows: %w", err)
	}
	return collectTransactions(rows, spaceID)
}

// ListMerchantHistory narrows candidates in SQL with the same normalization
// merchant.Normalize applies, then resolves each row in Go because the
// description heuristics cannot be expressed in the query.
//
// The prefilter only agrees with merchant.Normalize on ASCII text. Go folds a
// few non-ASCII runes (the Kelvin sign, dotted capital I) into ASCII letters
// that Postgres lower() leaves alone, so such rows can be missed here. Merchant
// keys are ASCII in practice; matchMerchantHistory stays authoritative for
// everything the prefilter returns.
func ListMerchantHistory(ctx context.Context, pool *pgxpool.Pool, spaceID, merchantKey string, before time.Time) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE space_id = $1 AND amount < 0 AND date < $2
		  AND (regexp_replace(lower(coalesce(merchant, '')), '[^a-z0-9]+', '', 'g') = $3
		       OR regexp_replace(lower(description), '[^a-z0-9]+', '', 'g') LIKE '%' || $3 || '%')
		ORDER BY date, id
	`
	rows, err := pool.Query(ctx, query, spaceID, before, merchantKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch merchant history: %w", err)
	}
	candidates, err := collectTransactions(rows, spaceID)
	if err != nil {
		return nil, err
	}

	return matchMerchantHistory(candidates, merchantKey), nil
}

// matchMerchantHistory keeps the transactions whose resolved merchant key is
// exactly merchantKey.
func matchMerchantHistory(candidates []models.Transaction, merchantKey string) []models.Transaction {
	history := candidates[:0]
	for _, t := range candidates {
		if id, ok := merchant.Resolve(t.Merchant, t.Description); ok && id.Key == merchantKey {
			history = append(history, t)
		}
	}
	return history
}

func SumOutflows(ctx context.Context, pool *pgxpool.Pool, spaceID string, r models.DateRange) (models.PeriodTotal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)::text, COUNT(*)
		FROM transactions
		WHERE space_id = $1 AND amount < 0 AND date >= $2 AND date < $3
	`
	var total string
	var p models.PeriodTotal
	err := pool.QueryRow(ctx, query, spaceID, r.From, r.To).Scan(&total, &p.Count)
	if err != nil {
		return p, fmt.Errorf("failed to sum outflows: %w", err)
	}
	p.Total, err = decimal.NewFromString(total)
	if err != nil {
		return p, fmt.Errorf("invalid outflow total %q: %w", total, err)
	}
	return p, nil
}

func SumOutflowsByCategory(ctx context.Context, pool *pgxpool.Pool, spaceID string, r models.DateRange) ([]models.CategoryTotal, error) {
	query := `
		SELECT t.category_id, c.name, SUM(t.amount)::text, COUNT(*)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.space_id = $1 AND t.amount < 0 AND t.date >= $2 AND t.date < $3
		GROUP BY t.category_id, c.name
		ORDER BY t.category_id NULLS FIRST
	`
	rows, err := pool.Query(ctx, query, spaceID, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("failed to sum outflows by category: %w", err)
	}
	defer rows.Close()

	var totals []models.CategoryTotal
	for rows.Next() {
		var c models.CategoryTotal
		var total string
		if err := rows.Scan(&c.CategoryID, &c.CategoryName, &total, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		c.Total, err = decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("invalid category total %q: %w", total, err)
		}
		totals = append(totals, c)
	}
	return totals, rows.Err()
}

func ListMerchantsBefore(ctx context.Context, pool *pgxpool.Pool, spaceID string, before time.Time) ([]models.MerchantRef, error) {
	query := `
		SELECT DISTINCT merchant, description
		FROM transactions
		WHERE space_id = $1 AND amount < 0 AND date < $2
		ORDER BY merchant NULLS FIRST, description
	`
	rows, err := pool.Query(ctx, query, spaceID, before)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch historical merchants: %w", err)
	}
	defer rows.Close()

	var refs []models.MerchantRef
	for rows.Next() {
		var ref models.MerchantRef
		if err := rows.Scan(&ref.Merchant, &ref.Description); err != nil {
			return nil, fmt.Errorf("failed to scan merchant: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// TransactionStore serves anomaly detection queries from Postgres.
type TransactionStore struct {
	pool *pgxpool.Pool
}

func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

func (s *TransactionStore) Outflows(ctx context.Context, spaceID string, r models.DateRange) ([]models.Transaction, error) {
	return ListOutflows(ctx, s.pool, spaceID, r)
}

func (s *TransactionStore) MerchantHistory(ctx context.Context, spaceID, merchantKey string, before time.Time) ([]models.Transaction, error) {
	return ListMerchantHistory(ctx, s.pool, spaceID, merchantKey, before)
}

func (s *TransactionStore) OutflowTotal(ctx context.Context, spaceID string, r models.DateRange) (models.PeriodTotal, error) {
	return SumOutflows(ctx, s.pool, spaceID, r)
}

func (s *TransactionStore) CategoryTotals(ctx context.Context, spaceID string, r models.DateRange) ([]models.CategoryTotal, error) {
	return SumOutflowsByCategory(ctx, s.pool, spaceID, r)
}

func (s *TransactionStore) MerchantsBefore(ctx context.Context, spaceID string, before time.Time) ([]models.MerchantRef, error) {
	return ListMerchantsBefore(ctx, s.pool, spaceID, before)
}
