package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tradepilot/internal/automation/action"
	"tradepilot/internal/automation/agent"
	"tradepilot/internal/automation/condition"
	"tradepilot/internal/automation/history"
	"tradepilot/internal/automation/lease"
	"tradepilot/internal/automation/market"
	"tradepilot/internal/automation/notify"
	"tradepilot/internal/automation/planstore"
	"tradepilot/internal/automation/runner"
	"tradepilot/internal/automation/scheduler"
	"tradepilot/internal/common"
	"tradepilot/internal/server/dao"
	"tradepilot/internal/server/middleware"
	rpccall "tradepilot/internal/server/rpc_call"
	"tradepilot/internal/server/service"
)

type app struct {
	logger    *zap.Logger
	users     dao.UserDAO
	jwt       *middleware.JWT
	service   *service.PipelineService
	scheduler *scheduler.Scheduler
	feed      *market.BinanceFeed
	history   *market.PriceHistory

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
}

// prunePrices drops price samples past retention every interval.
func (a *app) prunePrices(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.history.Prune(ctx)
			if err != nil {
				a.logger.Warn("prune price samples failed", zap.Error(err))
				continue
			}
			a.logger.Debug("pruned price samples", zap.Int64("rows", n))
		}
	}
}

func build(ctx context.Context, cfg common.Config, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger, jwt: middleware.NewJWT(cfg)}

	db, err := dao.Open(cfg)
	if err != nil {
		return nil, err
	}
	pipelines := dao.NewPipelineDao(db)
	a.users = dao.NewUserDAO(db)

	// Redis 可选：未配置时租约与策略计划使用进程内实现
	var rdb *redis.Client
	var locker lease.Locker = lease.NewMemoryLocker()
	var plans planstore.Store = planstore.NewMemoryStore(cfg.PlanTTL)
	if cfg.RedisAddr != "" {
		rdb, err = common.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		locker = lease.NewRedisLocker(rdb)
		plans = planstore.NewRedisStore(rdb, cfg.PlanTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, execution lease and plan store are process local")
	}

	rpcClient, err := rpccall.NewClient(cfg.AgentRPCAddr)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rpcClient.Close)
	execAgent := agent.WithTimeout(rpcClient, cfg.AgentCallTimeout)

	cache := market.NewCache(5 * time.Minute)
	a.history = market.NewPriceHistory(dao.NewPriceDao(db), cfg.ScheduleInterval)
	a.feed = market.NewBinanceFeed(cfg.PriceFeedURL, cfg.PriceFeedSymbols, cache, a.history, logger)

	sinks := notify.Multi{notify.NewLogSink(logger)}
	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, notify.NewDiscordNotifier(cfg.DiscordWebhookURL))
	}
	var runEvents history.RunPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := notify.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			notify.EventNotification: cfg.KafkaTopic,
			notify.EventRunCompleted: cfg.KafkaTopic,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, publisher.Close)
		sinks = append(sinks, publisher)
		runEvents = publisher
	}

	var run *runner.Runner
	fire := func(ctx context.Context, pipelineID string) {
		if _, err := run.Run(ctx, pipelineID); err != nil && !errors.Is(err, runner.ErrBusy) && !errors.Is(err, runner.ErrNotRunnable) {
			logger.Warn("scheduled run failed", zap.String("pipeline_id", pipelineID), zap.Error(err))
		}
	}
	backend, err := newBackend(cfg, fire, logger)
	if err != nil {
		return nil, err
	}
	a.scheduler = scheduler.New(backend, cfg.ScheduleInterval, logger)

	run = runner.New(runner.Options{
		Pipelines:  pipelines,
		Conditions: condition.NewDefaultRegistry(cfg.ScheduleInterval),
		Actions: action.NewDefaultRegistry(action.Deps{
			Agent:  execAgent,
			Sink:   sinks,
			Market: cache,
			Plans:  plans,
		}),
		Recorder:    history.NewRecorder(pipelines, runEvents, logger),
		Agent:       execAgent,
		Prices:      a.history,
		Market:      cache,
		Locker:      locker,
		LeaseTTL:    cfg.LeaseTTL,
		Concurrency: cfg.RunConcurrency,
		NextRun:     a.scheduler.NextRun,
		Logger:      logger,
	})

	a.service = service.NewPipelineService(pipelines, a.scheduler, run, plans, logger)
	return a, nil
}

func newBackend(cfg common.Config, fire scheduler.FireFunc, logger *zap.Logger) (scheduler.Backend, error) {
	switch cfg.SchedulerBackend {
	case "cron", "":
		return scheduler.NewCronBackend(fire, logger), nil
	case "asynq":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("SCHEDULER_BACKEND=asynq requires REDIS_ADDR")
		}
		var opt asynq.RedisConnOpt = asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if strings.HasPrefix(cfg.RedisAddr, "redis://") || strings.HasPrefix(cfg.RedisAddr, "rediss://") {
			parsed, err := asynq.ParseRedisURI(cfg.RedisAddr)
			if err != nil {
				return nil, fmt.Errorf("parse REDIS_ADDR: %w", err)
			}
			opt = parsed
		}
		return scheduler.NewAsynqBackend(opt, cfg.RunConcurrency, fire, logger), nil
	}
	return nil, fmt.Errorf("unsupported SCHEDULER_BACKEND %q", cfg.SchedulerBackend)
}
