package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronBackend runs jobs in-process with robfig/cron.
type CronBackend struct {
	cron   *cron.Cron
	fire   FireFunc
	ctx    context.Context
	cancel context.CancelFunc
}

func NewCronBackend(fire FireFunc, logger *zap.Logger) *CronBackend {
	cronLogger := cronLogger{logger.Named("cron").Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &CronBackend{
		// an entry still running when its next tick arrives skips that tick
		cron:   cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		fire:   fire,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *CronBackend) Register(interval time.Duration, pipelineID string) (string, error) {
	id, err := c.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		c.fire(c.ctx, pipelineID)
	})
	if err != nil {
		return "", err
	}
	return strconv.Itoa(int(id)), nil
}

func (c *CronBackend) Unregister(entryID string) error {
	id, err := strconv.Atoi(entryID)
	if err != nil {
		return fmt.Errorf("invalid cron entry id %q", entryID)
	}
	c.cron.Remove(cron.EntryID(id))
	return nil
}

func (c *CronBackend) Next(entryID string) (time.Time, bool) {
	id, err := strconv.Atoi(entryID)
	if err != nil {
		return time.Time{}, false
	}
	entry := c.cron.Entry(cron.EntryID(id))
	if !entry.Valid() || entry.Next.IsZero() {
		return time.Time{}, false
	}
	return entry.Next, true
}

func (c *CronBackend) Start() error {
	c.cron.Start()
	return nil
}

// Stop waits for running jobs, then cancels their context.
func (c *CronBackend) Stop() {
	<-c.cron.Stop().Done()
	c.cancel()
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
