package anomaly

import (
	"context"
	"errors"
	"time"

	"spendwatch-server/src/models"
)

var (
	// ErrForbidden is returned by access verifiers when the user may not read
	// the space.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidOptions is returned for out of range detection options.
	ErrInvalidOptions = errors.New("invalid anomaly options")
)

// Role is a space membership level.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// Rank orders roles; a user satisfies a minimum role when their rank is at
// least as high. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleMember:
		return 2
	case RoleAdmin:
		return 3
	case RoleOwner:
		return 4
	default:
		return 0
	}
}

// AccessVerifier checks that userID holds at least minimum in spaceID. It
// returns ErrForbidden (or an error wrapping it) when access is denied.
type AccessVerifier interface {
	VerifySpaceAccess(ctx context.Context, userID, spaceID string, minimum Role) error
}

// TransactionQuery is the read-only view of a space's transactions. Only
// outflows (amount < 0) are ever returned.
type TransactionQuery interface {
	// Outflows lists transactions within r ordered by date, then id.
	Outflows(ctx context.Context, spaceID string, r models.DateRange) ([]models.Transaction, error)
	// MerchantHistory lists transactions dated before `before` whose resolved
	// merchant key equals merchantKey.
	MerchantHistory(ctx context.Context, spaceID, merchantKey string, before time.Time) ([]models.Transaction, error)
	// OutflowTotal sums the transactions within r.
	OutflowTotal(ctx context.Context, spaceID string, r models.DateRange) (models.PeriodTotal, error)
	// CategoryTotals sums the transactions within r per category.
	CategoryTotals(ctx context.Context, spaceID string, r models.DateRange) ([]models.CategoryTotal, error)
	// MerchantsBefore lists the distinct merchant references dated before `before`.
	MerchantsBefore(ctx context.Context, spaceID string, before time.Time) ([]models.MerchantRef, error)
}

// Window is the lookback range a detection run scans.
type Window struct {
	SpaceID string
	From    time.Time
	To      time.Time
	Days    int
}

// NewWindow returns the window of the given number of days ending at now.
func NewWindow(spaceID string, now time.Time, days int) Window {
	return Window{
		SpaceID: spaceID,
		From:    now.AddDate(0, 0, -days),
		To:      now,
		Days:    days,
	}
}

// Range returns the window as a date range.
func (w Window) Range() models.DateRange {
	return models.DateRange{From: w.From, To: w.To}
}

// Detector finds one kind of anomaly within a window. Implementations hold no
// state between calls and skip records with missing data instead of failing.
type Detector interface {
	Type() models.AnomalyType
	Detect(ctx context.Context, w Window, q TransactionQuery) ([]models.Anomaly, error)
}
