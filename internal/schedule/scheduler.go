package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a unit of background work. Run receives the scheduler's context.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// CronScheduler runs named jobs on cron specs. Specs use the five field
// format or a descriptor such as "@every 5m".
type CronScheduler struct {
	cron   *cron.Cron
	logger *logrus.Logger

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID
}

func NewCronScheduler(logger *logrus.Logger) *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// Every returns an "@every" spec for interval.
func Every(interval time.Duration) string {
	return "@every " + interval.String()
}

// AddJob registers job under its name. Names must be unique.
func (c *CronScheduler) AddJob(job Job, spec string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := job.Name()
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("job %q already scheduled", name)
	}
	r := &runner{
		job:    job,
		ctx:    c.runContext,
		logger: c.logger.WithFields(logrus.Fields{"job": name, "spec": spec}),
	}
	id, err := c.cron.AddJob(spec, r)
	if err != nil {
		return fmt.Errorf("invalid spec %q for job %q: %w", spec, name, err)
	}
	c.entries[name] = id
	return nil
}

// Start launches the cron loop. Jobs run with ctx until Stop.
func (c *CronScheduler) Start(ctx context.Context) {
	c.mu.Lock()
	if ctx != nil {
		c.ctx = ctx
	}
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	c.mu.Unlock()

	c.cron.Start()
	for _, name := range names {
		next, _ := c.NextRun(name)
		c.logger.WithFields(logrus.Fields{"job": name, "next_run": next}).Info("Job scheduled")
	}
}

// Stop blocks until running jobs have returned.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

// NextRun reports when the named job fires next. The time is zero before
// Start.
func (c *CronScheduler) NextRun(name string) (time.Time, bool) {
	c.mu.Lock()
	id, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return c.cron.Entry(id).Next, true
}

func (c *CronScheduler) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// runner adapts a Job to cron.Job. A tick that arrives while the previous
// run is still going is dropped.
type runner struct {
	job     Job
	ctx     func() context.Context
	logger  *logrus.Entry
	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
}

func (r *runner) Run() {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.WithField("skipped", r.skipped.Add(1)).Warn("Job still running, tick dropped")
		return
	}
	defer r.running.Store(false)

	logger := r.logger.WithField("run", r.runs.Add(1))
	logger.Debug("Job started")

	start := time.Now()
	err := r.job.Run(r.ctx())
	logger = logger.WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		logger.WithError(err).Error("Job failed")
		return
	}
	logger.Debug("Job finished")
}
