package indicator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"macropulse/internal/cache"
	"macropulse/internal/external/fred"
	"macropulse/internal/timeseries"
	"macropulse/pkg/config"
	"macropulse/pkg/logger"
)

// FREDSource is the slice of the FRED client the service needs.
type FREDSource interface {
	GetSeries(ctx context.Context, seriesID string, start, end time.Time) (timeseries.Series, error)
	NextReleaseDate(ctx context.Context, releaseID int, after time.Time) (time.Time, error)
	UpcomingReleases(ctx context.Context) ([]fred.Release, error)
}

// YahooSource is the slice of the Yahoo client the service needs.
type YahooSource interface {
	GetHistoricalPrices(ctx context.Context, symbol string, start, end time.Time, interval string) (timeseries.Series, error)
}

// Options adjusts a single indicator request.
type Options struct {
	Periods      int  // 0 uses the registry default
	ForceRefresh bool // bypass and overwrite the cache
}

// Service orchestrates indicator fetching, computation, and caching.
type Service struct {
	fred      FREDSource
	yahoo     YahooSource
	cache     *cache.Manager
	composite *CompositeCalculator
	regime    *RegimeCalculator
	logger    *logger.Logger
	workers   int
	fredTTL   time.Duration
	yahooTTL  time.Duration
	now       func() time.Time
}

// NewService creates the indicator service.
func NewService(cfg *config.Config, fredClient FREDSource, yahooClient YahooSource, cacheManager *cache.Manager, log *logger.Logger) *Service {
	return &Service{
		fred:      fredClient,
		yahoo:     yahooClient,
		cache:     cacheManager,
		composite: NewCompositeCalculator(log),
		regime:    NewRegimeCalculator(log),
		logger:    log.WithField("module", "indicator"),
		workers:   cfg.FetchWorkers,
		fredTTL:   cfg.Cache.FREDTTL,
		yahooTTL:  cfg.Cache.YahooTTL,
		now:       time.Now,
	}
}

// ttlFor resolves an indicator's cache TTL: a per-indicator registry
// override wins, otherwise the config TTL for the indicator's data source
// applies. Yahoo-backed series move intraday, so they get the shorter TTL.
func (s *Service) ttlFor(cfg Config) time.Duration {
	if cfg.TTL > 0 {
		return cfg.TTL
	}
	if len(cfg.YahooSeries) > 0 {
		return s.yahooTTL
	}
	return s.fredTTL
}

// WithClock replaces the service clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetIndicator computes one indicator, serving from cache when fresh.
func (s *Service) GetIndicator(ctx context.Context, key string, opts Options) (Result, error) {
	cfg, err := Lookup(key)
	if err != nil {
		return Result{Key: key, Status: StatusFailed, Error: err.Error()}, err
	}

	periods := opts.Periods
	if periods <= 0 {
		periods = cfg.Periods
	}

	cacheKey := cache.Key(cfg.Key, nil, map[string]interface{}{
		"periods":   periods,
		"frequency": cfg.Frequency,
	})

	if opts.ForceRefresh {
		s.cache.Invalidate(cacheKey)
	}

	var result Result
	cached, err := s.cache.GetOrCompute(ctx, cacheKey, s.ttlFor(cfg), &result, func(ctx context.Context) (interface{}, error) {
		return s.compute(ctx, cfg, periods)
	})
	if err != nil {
		return Result{Key: key, Status: StatusFailed, Error: err.Error()}, err
	}

	markCached(&result, cached)
	return result, nil
}

// compute dispatches on the registry's chart kind.
func (s *Service) compute(ctx context.Context, cfg Config, periods int) (Result, error) {
	switch cfg.ChartKind {
	case ChartComposite:
		return s.computeComposite(ctx, cfg)
	case ChartQuadrant:
		return s.computeRegime(ctx, cfg)
	case ChartDualAxis:
		return s.computeRatio(ctx, cfg, periods)
	case ChartLiquidity:
		return s.computeLiquidity(ctx, cfg)
	default:
		return s.computeSeries(ctx, cfg, periods)
	}
}

// nextRelease looks up the next scheduled release date for an indicator.
// A missing mapping or a calendar failure leaves the field unset; the
// release date is decoration, never a reason to fail the indicator.
func (s *Service) nextRelease(ctx context.Context, cfg Config) *time.Time {
	if cfg.ReleaseID == 0 {
		return nil
	}
	date, err := s.fred.NextReleaseDate(ctx, cfg.ReleaseID, s.now())
	if err != nil {
		s.logger.WithError(err).WithField("release_id", cfg.ReleaseID).Warn("Release date lookup failed")
		return nil
	}
	return &date
}

// fetchWindow converts a period count into a start date with headroom so
// lagged transforms have enough history.
func (s *Service) fetchWindow(periods int, frequency string) (time.Time, time.Time) {
	end := s.now()
	var start time.Time
	switch frequency {
	case "D":
		start = end.AddDate(0, 0, -(periods + 30))
	case "W":
		start = end.AddDate(0, 0, -7*(periods+4))
	default:
		start = end.AddDate(0, -(periods + 14), 0)
	}
	return start, end
}

func (s *Service) computeSeries(ctx context.Context, cfg Config, periods int) (Result, error) {
	start, end := s.fetchWindow(periods, cfg.Frequency)

	raw, err := s.fred.GetSeries(ctx, cfg.FREDSeries[0], start, end)
	if err != nil {
		return Result{}, fmt.Errorf("indicator %s: %w", cfg.Key, err)
	}

	series := raw.DropNaN()
	if len(series) == 0 {
		return Result{}, fmt.Errorf("indicator %s: no data", cfg.Key)
	}

	sr := &SeriesResult{
		Key:         cfg.Key,
		DisplayName: cfg.DisplayName,
		Status:      StatusOK,
		NextRelease: s.nextRelease(ctx, cfg),
		FetchedAt:   s.now(),
	}

	// Per-indicator derivation keyed by registry entry.
	switch cfg.Key {
	case "pce":
		yoy := timeseries.PercentChange(series, 12).DropNaN()
		sr.Series = series.Tail(periods)
		sr.Derived = yoy.Tail(periods)
		if last, ok := yoy.Last(); ok {
			sr.CurrentValue = last.Value
		}
		values := yoy.Values()
		if len(values) >= 2 {
			sr.Rising = values[len(values)-1] > values[len(values)-2]
		}
		sr.Bullish = sr.CurrentValue < cfg.Threshold
	case "core_cpi":
		mom := timeseries.PercentChange(series, 1).DropNaN()
		sr.Series = series.Tail(periods)
		sr.Derived = mom.Tail(periods)
		if last, ok := mom.Last(); ok {
			sr.CurrentValue = last.Value
		}
		sr.Rising = timeseries.ConsecutiveTrend(mom.TailValues(4), 3, timeseries.Increasing)
		sr.ConsecutiveMoves = timeseries.CountConsecutive(mom.TailValues(4), timeseries.Increasing)
		sr.Bullish = !sr.Rising
	case "hours_worked":
		mom := timeseries.PercentChange(series, 1).DropNaN()
		capped := mom.WithValues(timeseries.CapOutliers(mom.Values(), -2, 2))
		sr.Series = series.Tail(periods)
		sr.Derived = capped.Tail(periods)
		if last, ok := series.Last(); ok {
			sr.CurrentValue = last.Value
		}
		declines := timeseries.CountConsecutive(series.TailValues(4), timeseries.Decreasing)
		sr.ConsecutiveMoves = declines
		sr.Rising = declines == 0
		sr.Bullish = sr.CurrentValue > cfg.Threshold && declines < 3
	case "new_orders":
		mom := timeseries.PercentChange(series, 1).DropNaN()
		sr.Series = series.Tail(periods)
		sr.Derived = mom.Tail(periods)
		if last, ok := mom.Last(); ok {
			sr.CurrentValue = last.Value
		}
		sr.Bullish = sr.CurrentValue > cfg.Threshold
	default:
		// Raw-valued indicators: claims, yield curve, credit spread.
		sr.Series = series.Tail(periods)
		if last, ok := series.Last(); ok {
			sr.CurrentValue = last.Value
		}
		sr.Rising = timeseries.ConsecutiveTrend(series.TailValues(4), 3, timeseries.Increasing)
		sr.ConsecutiveMoves = timeseries.CountConsecutive(series.TailValues(4), timeseries.Increasing)
		switch cfg.Condition {
		case ConditionAboveThreshold:
			sr.Bullish = sr.CurrentValue > cfg.Threshold
		case ConditionBelowThreshold:
			sr.Bullish = sr.CurrentValue < cfg.Threshold
		default:
			sr.Bullish = !sr.Rising
		}
	}

	return Result{Key: cfg.Key, Status: sr.Status, Series: sr}, nil
}

func (s *Service) computeComposite(ctx context.Context, cfg Config) (Result, error) {
	// Extra history so the rolling volatility window has data to work with.
	start, end := s.fetchWindow(cfg.Periods+compositeStdWindow, cfg.Frequency)

	data := make(map[string]timeseries.Series, len(cfg.Components))
	for _, comp := range cfg.Components {
		series, err := s.fred.GetSeries(ctx, comp.SeriesID, start, end)
		if err != nil {
			s.logger.WithError(err).WithField("series_id", comp.SeriesID).Warn("Composite component fetch failed")
			continue
		}
		data[comp.SeriesID] = series
	}

	result, err := s.composite.Calculate(cfg.Components, data)
	if err != nil {
		return Result{}, fmt.Errorf("indicator %s: %w", cfg.Key, err)
	}
	result.NextRelease = s.nextRelease(ctx, cfg)
	result.FetchedAt = s.now()

	return Result{Key: cfg.Key, Status: result.Status, Composite: result}, nil
}

func (s *Service) computeRegime(ctx context.Context, cfg Config) (Result, error) {
	start, end := s.fetchWindow(cfg.Periods, cfg.Frequency)

	growth, err := s.fred.GetSeries(ctx, cfg.FREDSeries[0], start, end)
	if err != nil {
		return Result{}, fmt.Errorf("indicator %s: growth series: %w", cfg.Key, err)
	}
	inflation, err := s.fred.GetSeries(ctx, cfg.FREDSeries[1], start, end)
	if err != nil {
		return Result{}, fmt.Errorf("indicator %s: inflation series: %w", cfg.Key, err)
	}

	result, err := s.regime.Calculate(growth, inflation)
	if err != nil {
		return Result{}, fmt.Errorf("indicator %s: %w", cfg.Key, err)
	}
	result.FetchedAt = s.now()

	return Result{Key: cfg.Key, Status: result.Status, Regime: result}, nil
}

// computeRatio builds the copper/gold ratio against the 10Y treasury yield.
func (s *Service) computeRatio(ctx context.Context, cfg Config, periods int) (Result, error) {
	start, end := s.fetchWindow(periods, cfg.Frequency)

	copper, err := s.yahoo.GetHistoricalPrices(ctx, cfg.YahooSeries[0], start, end, "1d")
	if err != nil {
		return Result{}, fmt.Errorf("indicator %s: copper: %w", cfg.Key, err)
	}
	gold, err := s.yahoo.GetHistoricalPrices(ctx, cfg.YahooSeries[1], start, end, "1d")
	if err != nil {
		return Result{}, fmt.Errorf("indicator %s: gold: %w", cfg.Key, err)
	}
	yield, err := s.fred.GetSeries(ctx, cfg.FREDSeries[0], start, end)
	if err != nil {
		return Result{}, fmt.Errorf("indicator %s: yield: %w", cfg.Key, err)
	}

	merged := timeseries.MergeByDate(map[string]timeseries.Series{
		"copper": copper,
		"gold":   gold,
	})

	ratio := make(timeseries.Series, 0, len(merged.Dates))
	for i, date := range merged.Dates {
		c := merged.Columns["copper"][i]
		g := merged.Columns["gold"][i]
		if math.IsNaN(c) || math.IsNaN(g) || g == 0 {
			continue
		}
		ratio = append(ratio, timeseries.Point{Date: date, Value: c / g})
	}

	if len(ratio) == 0 {
		return Result{}, fmt.Errorf("indicator %s: no overlapping copper/gold data", cfg.Key)
	}

	sr := &SeriesResult{
		Key:         cfg.Key,
		DisplayName: cfg.DisplayName,
		Status:      StatusOK,
		Series:      ratio.Tail(periods),
		Derived:     yield.DropNaN().Tail(periods),
		FetchedAt:   s.now(),
	}
	if last, ok := ratio.Last(); ok {
		sr.CurrentValue = last.Value
	}
	values := ratio.Values()
	if len(values) >= 2 {
		sr.Rising = values[len(values)-1] > values[len(values)-2]
	}
	sr.Bullish = sr.Rising

	return Result{Key: cfg.Key, Status: sr.Status, Series: sr}, nil
}

// computeLiquidity derives net USD liquidity: Fed balance sheet minus
// reverse repo minus the Treasury General Account, scaled by GDP. WALCL
// reports in millions, RRPONTTLD/WTREGEN/GDP in billions.
func (s *Service) computeLiquidity(ctx context.Context, cfg Config) (Result, error) {
	start, end := s.fetchWindow(cfg.Periods, cfg.Frequency)

	lr := &LiquidityResult{
		Key:         cfg.Key,
		DisplayName: cfg.DisplayName,
		Status:      StatusOK,
		Components:  make(map[string]float64, len(cfg.FREDSeries)),
		FetchedAt:   s.now(),
	}

	// The subtraction inputs and GDP publish on different calendars, so
	// everything is resampled monthly and forward-filled before merging.
	// A missing subtraction input degrades the result instead of failing it.
	monthly := make(map[string]timeseries.Series, len(cfg.FREDSeries))
	for _, id := range cfg.FREDSeries {
		raw, err := s.fred.GetSeries(ctx, id, start, end)
		if err != nil {
			if id == liquidityFedBalance || id == liquidityGDP {
				return Result{}, fmt.Errorf("indicator %s: %s: %w", cfg.Key, id, err)
			}
			s.logger.WithError(err).WithField("series_id", id).Warn("Liquidity component fetch failed")
			lr.Status = StatusDegraded
			continue
		}
		m := raw.ResampleMonthly()
		monthly[id] = m.WithValues(timeseries.ForwardFill(m.Values()))
		if last, ok := raw.DropNaN().Last(); ok {
			lr.Components[id] = last.Value
		}
	}

	merged := timeseries.MergeByDate(monthly)

	liquidity := make(timeseries.Series, 0, len(merged.Dates))
	pctOfGDP := make(timeseries.Series, 0, len(merged.Dates))
	for i, date := range merged.Dates {
		fed := merged.Columns[liquidityFedBalance][i]
		gdp := merged.Columns[liquidityGDP][i]
		if math.IsNaN(fed) || math.IsNaN(gdp) || gdp == 0 {
			continue
		}

		// Net liquidity in millions of dollars.
		net := fed
		for _, id := range []string{liquidityReverseRepo, liquidityTreasuryAcct} {
			col, ok := merged.Columns[id]
			if !ok {
				continue
			}
			if v := col[i]; !math.IsNaN(v) {
				net -= v * 1000 // billions to millions
			}
		}

		liquidity = append(liquidity, timeseries.Point{Date: date, Value: net / 1e6})
		pctOfGDP = append(pctOfGDP, timeseries.Point{Date: date, Value: (net / 1000) / gdp})
	}

	if len(liquidity) == 0 {
		return Result{}, fmt.Errorf("indicator %s: no overlapping liquidity data", cfg.Key)
	}

	months := cfg.Periods
	lr.Series = liquidity.Tail(months)
	lr.PctOfGDP = pctOfGDP.Tail(months)
	if last, ok := pctOfGDP.Last(); ok {
		lr.CurrentValue = last.Value
	}

	// Three consecutive monthly moves in either direction make the trend.
	recent := liquidity.TailValues(4)
	rises := timeseries.CountConsecutive(recent, timeseries.Increasing)
	falls := timeseries.CountConsecutive(recent, timeseries.Decreasing)
	lr.Rising = rises >= 3
	lr.Falling = falls >= 3
	if falls > rises {
		lr.ConsecutiveMoves = falls
	} else {
		lr.ConsecutiveMoves = rises
	}
	lr.Bullish = lr.Rising

	return Result{Key: cfg.Key, Status: lr.Status, Liquidity: lr}, nil
}

// GetAll computes every registered indicator across a bounded worker pool,
// isolating per-indicator failures, and derives the cross-indicator flags.
func (s *Service) GetAll(ctx context.Context) (*Summary, error) {
	keys := Keys()

	s.logger.WithFields(map[string]interface{}{
		"indicators": len(keys),
		"workers":    s.workers,
	}).Info("Starting indicator refresh")

	type fetchResult struct {
		key    string
		result Result
		err    error
	}

	keyCh := make(chan string, len(keys))
	resultCh := make(chan fetchResult, len(keys))

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range keyCh {
				select {
				case <-ctx.Done():
					resultCh <- fetchResult{key: key, err: ctx.Err()}
					continue
				default:
				}
				result, err := s.GetIndicator(ctx, key, Options{})
				resultCh <- fetchResult{key: key, result: result, err: err}
			}
		}()
	}

	for _, key := range keys {
		keyCh <- key
	}
	close(keyCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	summary := &Summary{
		Results:     make(map[string]Result, len(keys)),
		GeneratedAt: s.now(),
	}

	failCount := 0
	for fr := range resultCh {
		if fr.err != nil {
			failCount++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", fr.key, fr.err))
			summary.Results[fr.key] = Result{Key: fr.key, Status: StatusFailed, Error: fr.err.Error()}
			continue
		}
		summary.Results[fr.key] = fr.result
	}

	s.deriveFlags(summary)

	s.logger.WithFields(map[string]interface{}{
		"success": len(keys) - failCount,
		"failed":  failCount,
	}).Info("Indicator refresh completed")

	return summary, nil
}

// deriveFlags computes the cross-indicator warning signals from whatever
// indicators succeeded. A missing input leaves its flag false.
func (s *Service) deriveFlags(summary *Summary) {
	if r, ok := summary.Results["initial_claims"]; ok && r.Series != nil {
		summary.ClaimsRising = r.Series.Rising
	}
	if r, ok := summary.Results["hours_worked"]; ok && r.Series != nil {
		summary.HoursWeakening = r.Series.ConsecutiveMoves >= 3
	}
	if r, ok := summary.Results["core_cpi"]; ok && r.Series != nil {
		summary.CPIAccelerating = r.Series.Rising
	}
	if r, ok := summary.Results["pce"]; ok && r.Series != nil {
		summary.PCERising = r.Series.Rising
	}
	if r, ok := summary.Results["pmi_proxy"]; ok && r.Composite != nil {
		summary.PMIBelow50 = r.Composite.Below50
	}

	summary.DangerCombination = summary.PMIBelow50 && summary.ClaimsRising && summary.HoursWeakening
	summary.RiskOnOpportunity = !summary.PCERising && !summary.ClaimsRising
}

// UpcomingReleases surfaces the FRED release calendar.
func (s *Service) UpcomingReleases(ctx context.Context) ([]fred.Release, error) {
	var releases []fred.Release
	key := cache.Key("releases", nil, nil)
	_, err := s.cache.GetOrCompute(ctx, key, time.Hour, &releases, func(ctx context.Context) (interface{}, error) {
		return s.fred.UpcomingReleases(ctx)
	})
	return releases, err
}

// Invalidate drops cached entries whose key contains the indicator key.
// Empty key clears the whole cache.
func (s *Service) Invalidate(key string) int {
	if key == "" {
		s.cache.ClearAll()
		return -1
	}
	return s.cache.InvalidatePattern(key)
}

// CacheStats reports cache performance counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.GetStats()
}

// CleanupCache sweeps expired disk entries.
func (s *Service) CleanupCache() cache.CleanupResult {
	return s.cache.Cleanup()
}

// markCached flips the cached flag on whichever payload is present.
func markCached(r *Result, cached bool) {
	switch {
	case r.Series != nil:
		r.Series.Cached = cached
	case r.Composite != nil:
		r.Composite.Cached = cached
	case r.Regime != nil:
		r.Regime.Cached = cached
	case r.Liquidity != nil:
		r.Liquidity.Cached = cached
	}
}
