package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pricetracker/backend/internal/domain"
	"github.com/robfig/cron/v3"
)

// Recomputer refreshes group aggregates
type Recomputer interface {
	RecomputeAggregates(ctx context.Context) (domain.AggregateStats, error)
}

// AggregateJob periodically recomputes group starting prices and images,
// picking up price and availability changes made outside ingestion.
type AggregateJob struct {
	cron       *cron.Cron
	recomputer Recomputer
	schedule   string
	timeout    time.Duration
}

// NewAggregateJob creates a job for a six-field cron schedule (with seconds).
// An empty schedule disables the job.
func NewAggregateJob(recomputer Recomputer, schedule string) *AggregateJob {
	return &AggregateJob{
		cron:       cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		recomputer: recomputer,
		schedule:   schedule,
		timeout:    10 * time.Minute,
	}
}

// Start schedules the job and starts the cron runner
func (j *AggregateJob) Start() error {
	if j.schedule == "" {
		log.Println("[SCHEDULER] Aggregate job disabled")
		return nil
	}

	if _, err := j.cron.AddFunc(j.schedule, j.Run); err != nil {
		return fmt.Errorf("invalid aggregate schedule %q: %w", j.schedule, err)
	}

	j.cron.Start()
	log.Printf("[SCHEDULER] Aggregate job scheduled (%s)", j.schedule)
	return nil
}

// Stop stops the runner and waits for a running job to finish
func (j *AggregateJob) Stop() {
	<-j.cron.Stop().Done()
}

// Run recomputes aggregates once
func (j *AggregateJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	stats, err := j.recomputer.RecomputeAggregates(ctx)
	if err != nil {
		log.Printf("[SCHEDULER] Aggregate recomputation failed: %v", err)
		return
	}

	log.Printf("[SCHEDULER] Aggregates refreshed in %s: groups=%d prices=%d images=%d failed=%d",
		time.Since(start).Round(time.Millisecond), stats.Groups, stats.PricesUpdated, stats.ImagesUpdated, stats.Failed)
}
