package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/notify-engine/internal/pkg/httputil"
)

const (
	statusUp       = "up"
	statusDown     = "down"
	statusDegraded = "degraded"
	notConfigured  = "not configured"
)

// HealthStatus represents the overall health of the service.
type HealthStatus struct {
	Status string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime string                    `json:"uptime"`
	Checks map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// EngineStatus reports whether the last rule lookup succeeded.
// *automation.Engine satisfies it.
type EngineStatus interface {
	IsHealthy() bool
	LastRunAt() time.Time
}

// JobCounter reports how many schedules are registered locally.
// *scheduler.Runner satisfies it.
type JobCounter interface {
	Len() int
}

// HealthChecker reports on the database, Redis, the automation engine and
// the local scheduler. Any dependency may be nil.
type HealthChecker struct {
	db        *sql.DB
	redis     redis.Cmdable
	engine    EngineStatus
	jobs      JobCounter
	startTime time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db *sql.DB, rdb redis.Cmdable, engine EngineStatus, jobs JobCounter) *HealthChecker {
	return &HealthChecker{db: db, redis: rdb, engine: engine, jobs: jobs, startTime: time.Now()}
}

// HandleHealth always answers 200; the body carries the status.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status: determineOverallStatus(checks),
		Uptime: formatUptime(time.Since(hc.startTime)),
		Checks: checks,
	})
}

//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness answers 503 when a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, 4)

	go func() { ch <- result{"database", hc.checkDatabase(ctx)} }()
	go func() { ch <- result{"redis", hc.checkRedis(ctx)} }()
	go func() { ch <- result{"automation", hc.checkEngine()} }()
	go func() { ch <- result{"scheduler", hc.checkScheduler()} }()

	checks := make(map[string]ComponentCheck, 4)
	for i := 0; i < 4; i++ {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: statusDown, Message: notConfigured}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(pingCtx)
	return latencyCheck(time.Since(start), time.Second, err)
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redis == nil {
		return ComponentCheck{Status: statusDown, Message: notConfigured}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.redis.Ping(pingCtx).Err()
	return latencyCheck(time.Since(start), 500*time.Millisecond, err)
}

func latencyCheck(latency, slow time.Duration, err error) ComponentCheck {
	if err != nil {
		return ComponentCheck{Status: statusDown, Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	if latency > slow {
		return ComponentCheck{Status: statusDegraded, Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: statusUp, Latency: latency.String(), Message: "connected"}
}

// checkEngine is degraded when the last rule lookup failed. An engine that
// has not run yet is healthy.
func (hc *HealthChecker) checkEngine() ComponentCheck {
	if hc.engine == nil {
		return ComponentCheck{Status: statusDown, Message: notConfigured}
	}
	last := hc.engine.LastRunAt()
	if !hc.engine.IsHealthy() {
		return ComponentCheck{Status: statusDegraded, Message: "last rule lookup failed at " + last.UTC().Format(time.RFC3339)}
	}
	if last.IsZero() {
		return ComponentCheck{Status: statusUp, Message: "no runs yet"}
	}
	return ComponentCheck{Status: statusUp, Message: "last run " + last.UTC().Format(time.RFC3339)}
}

func (hc *HealthChecker) checkScheduler() ComponentCheck {
	if hc.jobs == nil {
		return ComponentCheck{Status: statusDown, Message: notConfigured}
	}
	return ComponentCheck{Status: statusUp, Message: fmt.Sprintf("%d schedules registered", hc.jobs.Len())}
}

// determineOverallStatus is "unhealthy" when a configured database is down,
// "degraded" when any other configured check is not up, and "healthy"
// otherwise.
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if db, ok := checks["database"]; ok && db.Status == statusDown && db.Message != notConfigured {
		return "unhealthy"
	}
	for _, c := range checks {
		if c.Status == statusDegraded {
			return "degraded"
		}
		if c.Status == statusDown && c.Message != notConfigured {
			return "degraded"
		}
	}
	return "healthy"
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
