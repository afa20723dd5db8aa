package observability

import (
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultPoolStatsSchedule refreshes pool gauges every 15 seconds
const DefaultPoolStatsSchedule = "@every 15s"

// PoolStatsCollector copies database and Redis pool statistics into gauges on a cron schedule
type PoolStatsCollector struct {
	db      *sql.DB
	redis   *redis.Client
	metrics *Metrics
	logger  logrus.FieldLogger
	cron    *cron.Cron
}

// NewPoolStatsCollector creates a collector. Either pool may be nil.
func NewPoolStatsCollector(db *sql.DB, redis *redis.Client, metrics *Metrics, logger logrus.FieldLogger) *PoolStatsCollector {
	return &PoolStatsCollector{
		db:      db,
		redis:   redis,
		metrics: metrics,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start schedules collection and runs it once immediately
func (c *PoolStatsCollector) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultPoolStatsSchedule
	}

	if _, err := c.cron.AddFunc(schedule, c.Collect); err != nil {
		return fmt.Errorf("failed to schedule pool stats collection: %w", err)
	}

	c.Collect()
	c.cron.Start()
	c.logger.Infof("Pool stats collector started (schedule: %s)", schedule)
	return nil
}

// Stop stops the scheduler and waits for a running collection to finish
func (c *PoolStatsCollector) Stop() {
	<-c.cron.Stop().Done()
}

// Collect copies the current pool statistics into the gauges
func (c *PoolStatsCollector) Collect() {
	if c.metrics == nil {
		return
	}

	if c.db != nil {
		stats := c.db.Stats()
		c.metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
		c.metrics.DBConnectionsInUse.Set(float64(stats.InUse))
		c.metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		c.metrics.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
	}

	if c.redis != nil {
		stats := c.redis.PoolStats()
		c.metrics.RedisConnectionsTotal.Set(float64(stats.TotalConns))
		c.metrics.RedisConnectionsIdle.Set(float64(stats.IdleConns))
		c.metrics.RedisPoolTimeouts.Set(float64(stats.Timeouts))
	}
}
