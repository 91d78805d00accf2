// Package anomaly scans a space's transaction history for unusual spending:
// outlier amounts, weekly spikes, large charges at new merchants, category
// surges and duplicate charges.
//
// Every run is a pure read-then-compute pass. Nothing is cached or stored
// between calls, so identical data and options produce identical output.
package anomaly

import (
	"context"
	"fmt"
	"sort"
	"time"

	"spendwatch-server/src/logger"
	"spendwatch-server/src/metrics"
	"spendwatch-server/src/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Options narrows a detection run. Zero values mean the configured defaults.
type Options struct {
	Days  int
	Limit int
}

// Engine runs the detectors for a space and ranks what they find.
type Engine struct {
	access    AccessVerifier
	query     TransactionQuery
	cfg       Config
	detectors []Detector
	now       func() time.Time
	log       zerolog.Logger
}

type EngineOption func(*Engine)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger used when the context carries none.
func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithDetectors replaces the default detector set.
func WithDetectors(detectors ...Detector) EngineOption {
	return func(e *Engine) { e.detectors = detectors }
}

// DefaultDetectors returns the five detectors in their fixed order.
func DefaultDetectors(cfg Config) []Detector {
	return []Detector{
		NewUnusualAmountDetector(cfg.UnusualAmount),
		NewSpendingSpikeDetector(cfg.SpendingSpike),
		NewNewMerchantLargeTransactionDetector(cfg.NewMerchantLarge),
		NewCategorySurgeDetector(cfg.CategorySurge),
		NewDuplicateChargeDetector(cfg.DuplicateCharge),
	}
}

func NewEngine(access AccessVerifier, query TransactionQuery, cfg Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("anomaly config: %w", err)
	}
	e := &Engine{
		access:    access,
		query:     query,
		cfg:       cfg,
		detectors: DefaultDetectors(cfg),
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) resolve(opts Options) (Options, error) {
	if opts.Days == 0 {
		opts.Days = e.cfg.DefaultDays
	}
	if opts.Limit == 0 {
		opts.Limit = e.cfg.DefaultLimit
	}
	if opts.Days < 0 || opts.Days > e.cfg.MaxDays {
		return opts, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidOptions, e.cfg.MaxDays)
	}
	if opts.Limit < 0 || opts.Limit > e.cfg.MaxLimit {
		return opts, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidOptions, e.cfg.MaxLimit)
	}
	return opts, nil
}

// DetectAnomalies verifies that userID can view spaceID, runs every detector
// over the lookback window and returns the top results by severity, newest
// first within a severity. Access and query errors are returned unchanged
// and no partial result is ever returned.
func (e *Engine) DetectAnomalies(ctx context.Context, spaceID, userID string, opts Options) ([]models.Anomaly, error) {
	if err := e.access.VerifySpaceAccess(ctx, userID, spaceID, RoleViewer); err != nil {
		return nil, err
	}
	opts, err := e.resolve(opts)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, e.log).With().Str("space_id", spaceID).Int("days", opts.Days).Logger()
	w := NewWindow(spaceID, e.now(), opts.Days)

	results := make([][]models.Anomaly, len(e.detectors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, d := range e.detectors {
		g.Go(func() error {
			start := time.Now()
			found, err := d.Detect(gctx, w, e.query)
			metrics.DetectorDurationSeconds.WithLabelValues(string(d.Type())).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.DetectorRunsTotal.WithLabelValues(string(d.Type()), "error").Inc()
				return err
			}
			metrics.DetectorRunsTotal.WithLabelValues(string(d.Type()), "ok").Inc()
			log.Debug().Str("detector", string(d.Type())).Int("count", len(found)).Msg("detector finished")
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []models.Anomaly
	for _, found := range results {
		merged = append(merged, found...)
	}
	SortAnomalies(merged)
	if len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	if merged == nil {
		merged = []models.Anomaly{}
	}
	for _, a := range merged {
		metrics.AnomaliesReturnedTotal.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	}
	log.Debug().Int("returned", len(merged)).Msg("anomaly detection finished")
	return merged, nil
}

// GetAnomalySummary runs detection with the default options and summarizes
// the result.
func (e *Engine) GetAnomalySummary(ctx context.Context, spaceID, userID string) (*models.Summary, error) {
	anomalies, err := e.DetectAnomalies(ctx, spaceID, userID, Options{})
	if err != nil {
		return nil, err
	}
	summary := Summarize(anomalies, e.cfg.SummarySize)
	return &summary, nil
}

var typeOrder = func() map[models.AnomalyType]int {
	m := make(map[models.AnomalyType]int, len(models.AnomalyTypes))
	for i, t := range models.AnomalyTypes {
		m[t] = i
	}
	return m
}()

// SortAnomalies orders by severity (high first) then date (newest first).
// Remaining ties break on type, transaction, merchant and category so the
// order never depends on detector scheduling.
func SortAnomalies(anomalies []models.Anomaly) {
	sort.SliceStable(anomalies, func(i, j int) bool {
		a, b := anomalies[i], anomalies[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if ta, tb := typeOrder[a.Type], typeOrder[b.Type]; ta != tb {
			return ta < tb
		}
		if sa, sb := deref(a.TransactionID), deref(b.TransactionID); sa != sb {
			return sa < sb
		}
		if sa, sb := deref(a.Merchant), deref(b.Merchant); sa != sb {
			return sa < sb
		}
		return deref(a.Category) < deref(b.Category)
	})
}

// Summarize counts anomalies by severity and type, sums the magnitude of
// their amounts and keeps the first recent of them.
func Summarize(anomalies []models.Anomaly, recent int) models.Summary {
	s := models.Summary{
		TotalCount:  len(anomalies),
		BySeverity:  make(map[models.Severity]int, len(models.Severities)),
		ByType:      make(map[models.AnomalyType]int, len(models.AnomalyTypes)),
		TotalImpact: decimal.Zero,
	}
	for _, sev := range models.Severities {
		s.BySeverity[sev] = 0
	}
	for _, t := range models.AnomalyTypes {
		s.ByType[t] = 0
	}
	for _, a := range anomalies {
		s.BySeverity[a.Severity]++
		s.ByType[a.Type]++
		if a.Amount != nil {
			s.TotalImpact = s.TotalImpact.Add(a.Amount.Abs())
		}
	}
	if recent > len(anomalies) {
		recent = len(anomalies)
	}
	if recent < 0 {
		recent = 0
	}
	s.RecentAnomalies = append([]models.Anomaly{}, anomalies[:recent]...)
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
