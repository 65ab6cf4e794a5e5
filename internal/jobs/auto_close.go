// Package jobs contains cron-driven background jobs of the worker.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"foodcoop/pkg/logger"
)

// DueOrderCloser closes Opened orders whose window ended.
type DueOrderCloser interface {
	CloseDue(ctx context.Context) (int, error)
}

// AutoCloseJob periodically closes orders marked for automatic closing.
type AutoCloseJob struct {
	closer  DueOrderCloser
	spec    string
	timeout time.Duration
	cron    *cron.Cron
	log     *logger.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAutoCloseJob creates the job. spec is a six-field cron expression (with seconds).
func NewAutoCloseJob(closer DueOrderCloser, spec string, log *logger.Logger) *AutoCloseJob {
	return &AutoCloseJob{
		closer:  closer,
		spec:    spec,
		timeout: time.Minute,
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:     log.WithComponent("auto_close_job"),
	}
}

// Start schedules the job.
func (j *AutoCloseJob) Start() error {
	j.mu.Lock()
	j.ctx, j.cancel = context.WithCancel(context.Background())
	j.mu.Unlock()

	if _, err := j.cron.AddFunc(j.spec, func() { j.RunOnce(j.ctx) }); err != nil {
		return fmt.Errorf("schedule auto-close %q: %w", j.spec, err)
	}

	j.cron.Start()
	j.log.Infow("auto-close job started", "spec", j.spec)
	return nil
}

// RunOnce closes all due orders once.
func (j *AutoCloseJob) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	closed, err := j.closer.CloseDue(ctx)
	if err != nil {
		j.log.WithContext(ctx).Errorw("auto-close run failed", "closed", closed, "error", err)
		return
	}
	if closed > 0 {
		j.log.WithContext(ctx).Infow("auto-closed orders", "closed", closed)
	}
}

// Stop cancels a running pass and waits for it to return.
func (j *AutoCloseJob) Stop() {
	j.mu.Lock()
	if j.cancel != nil {
		j.cancel()
	}
	j.mu.Unlock()

	<-j.cron.Stop().Done()
	j.log.Info("auto-close job stopped")
}
