package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockbot/internal/audit"
	"stockbot/internal/config"
	"stockbot/internal/eventbus"
	"stockbot/internal/health"
	"stockbot/internal/inventory"
	"stockbot/internal/reactionroles"
	rtsup "stockbot/internal/runtime/supervisor"
	"stockbot/internal/status"
	"stockbot/internal/stock"
	"stockbot/internal/storage"
	"stockbot/internal/task/scheduler"
	kit "stockbot/internal/transport"
	discord "stockbot/internal/transport/discord/adapter"
	"stockbot/internal/transport/discord/router"
	logx "stockbot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter *discord.Adapter
	checker *stock.Checker
	loop    *scheduler.Loop // nil when the scheduler is disabled
	roles   *reactionroles.Manager
	cmdm    *router.CommandManager
	health  *health.Service
	audit   *audit.Writer

	loc       *time.Location
	startedAt time.Time
	updates   chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// The Discord log sink needs the adapter, and the adapter needs a logger,
	// so the sender is attached once both exist.
	logSvc, log := logx.New(mapLogConfig(cfg), nil)
	appLog := log.With(logx.String("comp", "app"))

	ad, err := discord.New(discord.Config{
		Token:     cfg.Discord.Token,
		GuildID:   cfg.Discord.GuildID,
		ChannelID: cfg.Discord.ChannelID,
	}, log)
	if err != nil {
		return nil, err
	}
	logSvc.SetSender(ad)

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log)
		if err != nil {
			return nil, err
		}
		store = st
		appLog.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	invCfg, err := mapInventoryConfig(cfg)
	if err != nil {
		return nil, err
	}
	inv := inventory.New(invCfg, nil, log.With(logx.String("comp", "inventory")))

	chkCfg, err := mapCheckerConfig(cfg)
	if err != nil {
		return nil, err
	}
	checker := stock.NewChecker(chkCfg, inv, ad, log.With(logx.String("comp", "stock")), bus)

	loc, err := location(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		checker: checker,
		loc:     loc,
		updates: make(chan kit.Update, 256),
	}

	if cfg.Scheduler.IsEnabled() {
		sched, err := Schedule(cfg)
		if err != nil {
			return nil, err
		}
		a.loop = scheduler.NewLoop("stock.poll", sched, checker.Job, log.With(logx.String("comp", "scheduler")))
	}

	var rrStore reactionroles.Store
	if store != nil {
		rrStore = store
		a.audit = audit.NewWriter(bus, store, log)
	}
	a.roles = reactionroles.NewManager(mapReactionRolesConfig(cfg, chkCfg.Registry), ad, ad, rrStore, bus, log)

	a.cmdm = router.NewCommandManager(log, ad, &router.Services{
		ReactionRoles:   a.roles,
		Emojis:          ad,
		Status:          a,
		Location:        loc,
		PromptChannelID: cfg.ReactionRoles.ChannelID,
	}, cfg.Discord.CommandPrefix, cfg.Discord.AdminUserIDs)
	a.cmdm.SetRegistry(router.Builtins())

	if cfg.Health.IsEnabled() {
		a.health = health.New(health.Config{Addr: cfg.Health.Addr}, a, log)
	}
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	// The health server comes up first so the host sees the process alive
	// while the gateway connects.
	if a.health != nil {
		a.health.Start(a.sup.Context())
	}

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return fmt.Errorf("discord: %w", err)
	}

	if n, err := a.roles.Restore(a.sup.Context()); err != nil {
		a.log.Warn("reaction-role sessions not restored", logx.Err(err))
	} else {
		a.log.Debug("reaction-role restore done", logx.Int("sessions", n))
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	if a.audit != nil {
		a.sup.GoRestart("audit.writer", a.audit.Run,
			rtsup.WithRestartBackoff(time.Second, 30*time.Second),
		)
	}

	if a.loop != nil {
		a.sup.GoRestart("stock.poll", a.loop.Run,
			rtsup.WithRestartBackoff(time.Second, 30*time.Second),
		)
	} else {
		a.log.Info("scheduler disabled; no stock checks will run")
	}

	a.sup.Go0("eventbus.log", a.logEvents)
	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started")
	return nil
}

func (a *App) logEvents(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

// reloadLoop applies the logging section live. Everything else is read once
// at startup, so other changes are only reported.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}

			sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Info("config reloaded (no changes)")
				continue
			}
			a.logs.Apply(mapLogConfig(newCfg))

			if cold := config.RestartRequired(sections); len(cold) > 0 {
				a.log.Warn("config changed; restart required for changes to take effect",
					logx.String("sections", strings.Join(cold, ",")))
			}
			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config reloaded", fields...)
		}
	}
}

// Status implements status.Provider.
func (a *App) Status() status.Snapshot {
	s := status.Snapshot{
		StartedAt:        a.startedAt,
		Uptime:           time.Since(a.startedAt).Truncate(time.Second).String(),
		SchedulerEnabled: a.loop != nil,
		LastCycle:        a.checker.Last(),
		Sessions:         a.roles.Sessions(),
		EventsDropped:    eventbus.Dropped(a.bus),
	}
	if a.loop != nil {
		s.Scheduler = a.loop.Snapshot()
	}
	for _, sup := range []*rtsup.Supervisor{a.sup, a.adapter.Supervisor(), a.healthSupervisor()} {
		if sup != nil {
			s.Goroutines = append(s.Goroutines, sup.Snapshot()...)
		}
	}
	return s
}

func (a *App) healthSupervisor() *rtsup.Supervisor {
	if a.health == nil {
		return nil
	}
	return a.health.Supervisor()
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	// Each step gets an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("health", time.Second, func(c context.Context) error {
		if a.health != nil {
			a.health.Stop(c)
		}
		return nil
	})
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
