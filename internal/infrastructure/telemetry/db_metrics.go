package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StoreMetricsConfig configures metrics collection on the engine's store.
type StoreMetricsConfig struct {
	Enabled bool
	// SlowQueryThreshold marks statements counted as slow. Sync pipelines
	// batch their writes, so a handful of slow statements usually points
	// at a missing index on entity_links or sync_executions.
	SlowQueryThreshold time.Duration
	// PoolStatsInterval is how often connection pool gauges are sampled.
	PoolStatsInterval time.Duration
}

// DefaultStoreMetricsConfig returns the default store metrics settings.
func DefaultStoreMetricsConfig() StoreMetricsConfig {
	return StoreMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
		PoolStatsInterval:  15 * time.Second,
	}
}

// StoreMetrics observes the engine's database: statement counts and
// latencies per operation, slow statements per table, and connection
// pool saturation.
type StoreMetrics struct {
	poolConnections    *Gauge
	poolConnectionsMax *Gauge
	queryTotal         *Counter
	queryDuration      *Histogram
	slowQueryTotal     *Counter

	cfg    StoreMetricsConfig
	logger *zap.Logger

	mu       sync.RWMutex
	sqlDB    *sql.DB
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewStoreMetrics builds the store instruments on meter.
func NewStoreMetrics(meter metric.Meter, cfg StoreMetricsConfig, logger *zap.Logger) (*StoreMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval == 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	m := &StoreMetrics{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	var err error
	if m.poolConnections, err = NewGauge(meter, "db_pool_connections",
		"Connections in the pool by state", "{connection}"); err != nil {
		return nil, err
	}
	if m.poolConnectionsMax, err = NewGauge(meter, "db_pool_connections_max",
		"Configured pool ceiling", "{connection}"); err != nil {
		return nil, err
	}
	if m.queryTotal, err = NewCounter(meter, "db_query_total",
		"Statements executed by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Statement latency distribution",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.slowQueryTotal, err = NewCounter(meter, "db_slow_query_total",
		"Statements exceeding the slow threshold, by table", "{query}"); err != nil {
		return nil, err
	}
	return m, nil
}

// SetSQLDB attaches the pool whose stats are sampled. Must be called
// before StartPoolStatsCollection.
func (m *StoreMetrics) SetSQLDB(db *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sqlDB = db
}

// StartPoolStatsCollection samples pool gauges until Stop or ctx cancel.
func (m *StoreMetrics) StartPoolStatsCollection(ctx context.Context) {
	m.mu.RLock()
	db := m.sqlDB
	m.mu.RUnlock()
	if db == nil {
		m.logger.Warn("Pool stats collection skipped: sql.DB not set")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.PoolStatsInterval)
		defer ticker.Stop()

		m.samplePool(ctx)
		for {
			select {
			case <-ticker.C:
				m.samplePool(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	m.logger.Info("Store pool stats collection started",
		zap.Duration("interval", m.cfg.PoolStatsInterval))
}

func (m *StoreMetrics) samplePool(ctx context.Context) {
	m.mu.RLock()
	db := m.sqlDB
	m.mu.RUnlock()
	if db == nil {
		return
	}

	stats := db.Stats()
	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	m.poolConnections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.poolConnections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.poolConnections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop terminates pool sampling. Safe to call more than once.
func (m *StoreMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

// RecordQuery records one completed statement.
func (m *StoreMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}

	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))

	if duration > m.cfg.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

type storeMetricsContextKey struct{}

// StoreMetricsPlugin is a GORM plugin feeding StoreMetrics from callbacks.
type StoreMetricsPlugin struct {
	metrics *StoreMetrics
}

// NewStoreMetricsPlugin wraps metrics in a GORM plugin.
func NewStoreMetricsPlugin(metrics *StoreMetrics) *StoreMetricsPlugin {
	return &StoreMetricsPlugin{metrics: metrics}
}

// Name implements gorm.Plugin.
func (p *StoreMetricsPlugin) Name() string { return "store_metrics" }

// Initialize implements gorm.Plugin. A before callback stamps the start
// time into the statement context; the after callback turns it into a
// latency sample.
func (p *StoreMetricsPlugin) Initialize(db *gorm.DB) error {
	before := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, storeMetricsContextKey{}, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			op := operation
			if op == "" {
				op = detectOperation(db.Statement.SQL.String())
			}
			p.record(db, op)
		}
	}

	// GORM's callback types are unexported, so the registration points
	// are held as method values.
	type registrar = func(string, func(*gorm.DB)) error
	hooks := []struct {
		name      string
		operation string
		before    registrar
		after     registrar
	}{
		{"create", "INSERT", db.Callback().Create().Before("gorm:create").Register, db.Callback().Create().After("gorm:create").Register},
		{"query", "SELECT", db.Callback().Query().Before("gorm:query").Register, db.Callback().Query().After("gorm:query").Register},
		{"update", "UPDATE", db.Callback().Update().Before("gorm:update").Register, db.Callback().Update().After("gorm:update").Register},
		{"delete", "DELETE", db.Callback().Delete().Before("gorm:delete").Register, db.Callback().Delete().After("gorm:delete").Register},
		{"row", "", db.Callback().Row().Before("gorm:row").Register, db.Callback().Row().After("gorm:row").Register},
		{"raw", "", db.Callback().Raw().Before("gorm:raw").Register, db.Callback().Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("store_metrics:before_"+h.name, before); err != nil {
			return err
		}
		if err := h.after("store_metrics:after_"+h.name, after(h.operation)); err != nil {
			return err
		}
	}
	return nil
}

func (p *StoreMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	var elapsed time.Duration
	if start, ok := ctx.Value(storeMetricsContextKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}
	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, elapsed)
}

func detectOperation(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}

// RegisterStoreMetrics wires StoreMetrics onto db: a GORM plugin for
// statement metrics plus pool stats sampling. Returns nil when disabled
// so callers can skip lifecycle management.
func RegisterStoreMetrics(db *gorm.DB, meterProvider *MeterProvider, cfg StoreMetricsConfig, logger *zap.Logger) (*StoreMetrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if meterProvider == nil || !meterProvider.IsEnabled() {
		return nil, nil
	}

	metrics, err := NewStoreMetrics(meterProvider.Meter("db.client"), cfg, logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics.SetSQLDB(sqlDB)

	if err := db.Use(NewStoreMetricsPlugin(metrics)); err != nil {
		return nil, err
	}

	logger.Info("Store metrics registered",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
		zap.Duration("pool_stats_interval", cfg.PoolStatsInterval),
	)
	return metrics, nil
}
