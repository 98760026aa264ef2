package discovery

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// cronParser accepts the standard 5-field spec (minute hour dom month dow)
// plus descriptors such as @daily.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a cron spec.
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := cronParser.Parse(spec)
	if err != nil {
		return nil, eris.Wrapf(err, "scheduler: invalid cron spec %q", spec)
	}
	return s, nil
}

// zapCronLogger routes cron's internal logging through zap.
type zapCronLogger struct {
	log *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs a workflow on a cron schedule. Runs never overlap: a tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	spec     string
	workflow WorkflowRunner
	cron     *cron.Cron
	timeout  time.Duration
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithRunTimeout bounds each workflow run.
func WithRunTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.timeout = d }
}

// WithLocation evaluates the schedule in loc instead of the local zone.
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) {
		s.cron = newCron(loc)
	}
}

func newCron(loc *time.Location) *cron.Cron {
	logger := zapCronLogger{log: zap.L().Sugar().Named("cron")}
	opts := []cron.Option{
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	}
	if loc != nil {
		opts = append(opts, cron.WithLocation(loc))
	}
	return cron.New(opts...)
}

// NewScheduler validates spec and returns a Scheduler for wf.
func NewScheduler(spec string, wf WorkflowRunner, opts ...SchedulerOption) (*Scheduler, error) {
	if _, err := ParseSchedule(spec); err != nil {
		return nil, err
	}
	s := &Scheduler{spec: spec, workflow: wf, cron: newCron(nil)}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Next returns the next activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	sched, err := cronParser.Parse(s.spec)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(t)
}

// Run schedules the workflow and blocks until ctx is cancelled, then waits
// for any in-flight run to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) })
	if err != nil {
		return eris.Wrapf(err, "scheduler: add %q", s.spec)
	}

	s.cron.Start()
	zap.L().Info("scheduler: started",
		zap.String("spec", s.spec),
		zap.Time("next_run", s.Next(time.Now())),
	)

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	zap.L().Info("scheduler: stopped")
	return nil
}

// tick performs one scheduled run.
func (s *Scheduler) tick(parent context.Context) {
	if parent.Err() != nil {
		return
	}
	ctx := parent
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.timeout)
		defer cancel()
	}

	report, err := s.workflow.Run(ctx)
	if err != nil {
		zap.L().Error("scheduler: workflow failed", zap.Error(err))
		return
	}
	zap.L().Info("scheduler: workflow complete",
		zap.String("niche", report.Niche),
		zap.Int("processed", len(report.Processed)),
		zap.Int("succeeded", report.Succeeded()),
	)
}
