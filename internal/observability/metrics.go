package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/lms-progress/internal/domain/jobs"
	"github.com/yungbote/lms-progress/internal/pkg/logger"
	"github.com/yungbote/lms-progress/internal/platform/envutil"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *GaugeVec

	actionRuns     *CounterVec
	actionDuration *HistogramVec
	actionDepth    *GaugeVec

	migrationBatches *CounterVec
	migrationRows    *CounterVec
	migrationErrors  *CounterVec

	pgStats   *GaugeVec
	redisUp   *GaugeVec
	redisPing *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current is nil until Init runs with metrics enabled. Every method is nil-safe.
func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	d := envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// New builds an unregistered metrics set. Init is the process-wide entry point.
func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("lp_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"lp_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGaugeVec("lp_api_inflight_requests", "In-flight API requests.", nil),
		actionRuns:  NewCounterVec("lp_action_runs_total", "Scheduled action runs by hook/status.", []string{"hook", "status"}),
		actionDuration: NewHistogramVec(
			"lp_action_run_duration_seconds",
			"Scheduled action run duration in seconds by hook/status.",
			[]string{"hook", "status"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 300},
		),
		actionDepth:      NewGaugeVec("lp_action_queue_depth", "Scheduled actions by status.", []string{"status"}),
		migrationBatches: NewCounterVec("lp_migration_batches_total", "Migration batches by migration/status.", []string{"migration", "status"}),
		migrationRows:    NewCounterVec("lp_migration_records_total", "Legacy records read by migration.", []string{"migration"}),
		migrationErrors:  NewCounterVec("lp_migration_errors_total", "Per-record migration errors by migration.", []string{"migration"}),
		pgStats:          NewGaugeVec("lp_db_stats", "Database connection pool stats.", []string{"metric"}),
		redisUp:          NewGaugeVec("lp_redis_up", "Redis connectivity (1=up, 0=down).", nil),
		redisPing:        NewGaugeVec("lp_redis_ping_seconds", "Redis ping latency in seconds.", nil),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.actionRuns, m.actionDuration, m.actionDepth,
		m.migrationBatches, m.migrationRows, m.migrationErrors,
		m.pgStats, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

// ObserveAction records one handler run. status is the action's final status.
func (m *Metrics) ObserveAction(hook, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.actionRuns.Inc(hook, status)
	m.actionDuration.Observe(dur.Seconds(), hook, status)
}

func (m *Metrics) ActionRuns(hook, status string) float64 {
	if m == nil {
		return 0
	}
	return m.actionRuns.Value(hook, status)
}

// ObserveMigrationBatch records one migration batch.
func (m *Metrics) ObserveMigrationBatch(migration string, records, errs int, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "failed"
	}
	m.migrationBatches.Inc(migration, status)
	m.migrationRows.Add(float64(records), migration)
	m.migrationErrors.Add(float64(errs), migration)
}

func (m *Metrics) MigrationRecords(migration string) float64 {
	if m == nil {
		return 0
	}
	return m.migrationRows.Value(migration)
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: db handle unavailable", "error", err)
		}
		return
	}
	go m.every(ctx, func() {
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_seconds")
	})
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go m.every(ctx, func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

// StartActionQueueCollector samples scheduled action counts by status.
func (m *Metrics) StartActionQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go m.every(ctx, func() {
		if err := m.CollectActionQueue(ctx, db); err != nil && log != nil {
			log.Warn("metrics: action queue depth query failed", "error", err)
		}
	})
}

func (m *Metrics) CollectActionQueue(ctx context.Context, db *gorm.DB) error {
	if m == nil {
		return nil
	}
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&jobs.ScheduledAction{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range []string{
		jobs.ActionStatusPending, jobs.ActionStatusRunning, jobs.ActionStatusComplete,
		jobs.ActionStatusFailed, jobs.ActionStatusCanceled,
	} {
		m.actionDepth.Set(0, s)
	}
	for _, row := range rows {
		m.actionDepth.Set(float64(row.Count), strings.TrimSpace(row.Status))
	}
	return nil
}

func (m *Metrics) ActionDepth(status string) float64 {
	if m == nil {
		return 0
	}
	return m.actionDepth.Value(status)
}

func (m *Metrics) every(ctx context.Context, fn func()) {
	ticker := time.NewTicker(scrapeInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
