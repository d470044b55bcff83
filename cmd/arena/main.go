// Package main provides the arena binary that plays a melee scenario in real
// time against the combat engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/melee/internal/config"
	"github.com/cory-johannsen/melee/internal/game/ability"
	"github.com/cory-johannsen/melee/internal/game/anim"
	"github.com/cory-johannsen/melee/internal/game/combat"
	"github.com/cory-johannsen/melee/internal/game/dice"
	"github.com/cory-johannsen/melee/internal/game/entity"
	"github.com/cory-johannsen/melee/internal/game/fx"
	"github.com/cory-johannsen/melee/internal/game/scenario"
	"github.com/cory-johannsen/melee/internal/game/tick"
	"github.com/cory-johannsen/melee/internal/game/weapon"
	"github.com/cory-johannsen/melee/internal/journal"
	"github.com/cory-johannsen/melee/internal/observability"
	"github.com/cory-johannsen/melee/internal/scripting"
	"github.com/cory-johannsen/melee/internal/server"
	"github.com/cory-johannsen/melee/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	scenarioPath := flag.String("scenario", "", "scenario file; overrides content.scenario_file")
	seed := flag.Uint64("seed", 0, "seed for sound and script picks; 0 = crypto source")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *scenarioPath != "" {
		cfg.Content.ScenarioFile = *scenarioPath
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	src := dice.NewCryptoSource()
	if *seed != 0 {
		src = dice.NewSeededSource(*seed)
	}
	picker := dice.NewPicker(src, observability.Component(logger, "dice"))

	// Load content
	contentStart := time.Now()
	clips, err := anim.LoadCatalog(cfg.Content.ClipsFile)
	if err != nil {
		logger.Fatal("loading animation clips", zap.Error(err))
	}
	particleCatalog, err := fx.LoadParticleCatalog(cfg.Content.ParticlesFile)
	if err != nil {
		logger.Fatal("loading particle effects", zap.Error(err))
	}
	weapons, err := weapon.Load(cfg.Content.WeaponsDir, clips)
	if err != nil {
		logger.Fatal("loading weapons", zap.Error(err))
	}
	abilities, err := ability.Load(cfg.Content.AbilitiesDir, clips, particleCatalog)
	if err != nil {
		logger.Fatal("loading abilities", zap.Error(err))
	}
	sc, err := scenario.Load(cfg.Content.ScenarioFile)
	if err != nil {
		logger.Fatal("loading scenario", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("clips", len(clips.Names())),
		zap.Int("weapons", len(weapons.All())),
		zap.Int("abilities", len(abilities.All())),
		zap.String("scenario", sc.Name),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	// Build the world
	sched := tick.NewScheduler(observability.Component(logger, "tick"))
	roster := entity.NewRoster(observability.Component(logger, "entity"))
	names := anim.Names{AttackTrigger: cfg.Combat.AttackTrigger, DefaultAttackSlot: cfg.Combat.DefaultAttackSlot}
	animator := anim.NewAnimator(names, sched.Now, observability.Component(logger, "anim"))
	particles := fx.NewParticleSystem(particleCatalog, roster, observability.Component(logger, "particles"))
	audio := fx.NewAudioLog(sched.Now, observability.Component(logger, "audio"))
	visuals := fx.NewWeaponVisuals(observability.Component(logger, "visuals"))
	sched.AddSystem("animation", animator.Update)
	sched.AddSystem("particles", particles.Update)

	// Combat event sinks
	recorder := &combat.Recorder{}
	sinks := combat.MultiSink{combat.LogSink{Logger: observability.Component(logger, "events")}, recorder}
	var (
		pool   *postgres.Pool
		writer *journal.Writer
	)
	if cfg.Journal.Enabled {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		writer, err = journal.NewWriter(postgres.NewJournalRepository(pool.DB()), cfg.Journal, observability.Component(logger, "journal"))
		if err != nil {
			logger.Fatal("creating journal writer", zap.Error(err))
		}
		sinks = append(sinks, writer)
	}

	engine, err := combat.NewEngine(combat.Deps{
		Scheduler: sched,
		Health:    roster,
		World:     roster,
		Speed:     roster,
		Offense:   roster,
		Anim:      animator,
		Sockets:   roster,
		Visuals:   visuals,
		Names:     names,
		Epsilon:   cfg.Combat.HealthEpsilon,
		Sink:      sinks,
		Logger:    observability.Component(logger, "combat"),
	})
	if err != nil {
		logger.Fatal("creating combat engine", zap.Error(err))
	}

	// Initialise scripting engine
	var scripts ability.Scripts
	if cfg.Content.ScriptsDir != "" {
		scriptStart := time.Now()
		scriptMgr := scripting.NewManager(picker, observability.Component(logger, "scripting"))
		defer scriptMgr.Close()
		if err := scriptMgr.Load(ability.ScriptScope, cfg.Content.ScriptsDir, cfg.Scripting.InstructionLimit); err != nil {
			logger.Fatal("loading ability scripts", zap.String("dir", cfg.Content.ScriptsDir), zap.Error(err))
		}
		wireScripting(scriptMgr, roster)
		scripts = scriptMgr
		logger.Info("scripting engine initialized",
			zap.String("dir", cfg.Content.ScriptsDir),
			zap.Duration("elapsed", time.Since(scriptStart)),
		)
	}

	runner, err := ability.NewRunner(ability.RunnerDeps{
		Scheduler:       sched,
		Particles:       particles,
		Audio:           audio,
		Anim:            animator,
		Positions:       roster,
		Picker:          picker,
		Names:           names,
		CleanupInterval: cfg.Effects.ParticleCleanupInterval,
		Logger:          observability.Component(logger, "effects"),
	})
	if err != nil {
		logger.Fatal("creating ability runner", zap.Error(err))
	}
	abilityMgr, err := ability.NewManager(ability.ManagerDeps{
		Runner:  runner,
		World:   roster,
		Scripts: scripts,
		Sink:    sinks,
		Epsilon: cfg.Combat.HealthEpsilon,
		Logger:  observability.Component(logger, "ability"),
	})
	if err != nil {
		logger.Fatal("creating ability manager", zap.Error(err))
	}

	director, err := scenario.NewDirector(scenario.DirectorDeps{
		Scheduler:         sched,
		Roster:            roster,
		Animator:          animator,
		Engine:            engine,
		Weapons:           weapons,
		Audio:             audio,
		Abilities:         abilities,
		Activator:         abilityMgr,
		DefaultBaseDamage: cfg.Combat.BaseDamage,
		Logger:            observability.Component(logger, "scenario"),
	})
	if err != nil {
		logger.Fatal("creating scenario director", zap.Error(err))
	}
	if err := director.Setup(sc); err != nil {
		logger.Fatal("setting up scenario", zap.Error(err))
	}

	// The driver is not running yet, so the timeline can be scheduled here.
	finished := make(chan struct{})
	director.Play(sc, func() { close(finished) })

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)
	if writer != nil {
		lifecycle.Add("journal", writer)
	}
	driver := tick.NewDriver(sched, cfg.Tick.Interval, cfg.Tick.MaxStep, observability.Component(logger, "driver"))
	lifecycle.Add("tick", driver)

	stop := make(chan struct{})
	lifecycle.Add("scenario", &server.FuncService{
		StartFn: func() error {
			select {
			case <-finished:
			case <-stop:
			}
			return nil
		},
		StopFn: func() { close(stop) },
	})

	logger.Info("arena initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("scenario", sc.Name),
		zap.Float64("duration_seconds", sc.DurationSeconds),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("arena stopped with error", zap.Error(err))
	}

	// The driver has stopped; nothing else touches the world now.
	runner.Shutdown()

	fields := []zap.Field{
		zap.Duration("game_time", sched.Now()),
		zap.Int("strikes", len(recorder.OfKind(combat.EventStrike))),
		zap.Int("damage_applied", len(recorder.OfKind(combat.EventDamageApplied))),
		zap.Int("damage_skipped", len(recorder.OfKind(combat.EventDamageSkipped))),
		zap.Int("abilities", len(recorder.OfKind(combat.EventAbilityActivated))),
		zap.Int("sounds", len(audio.Played())),
		zap.Int("failed_actions", director.Failures()),
	}
	if writer != nil {
		stats := pool.Stats()
		fields = append(fields,
			zap.Int64("journal_written", writer.Written()),
			zap.Int64("journal_dropped", writer.Dropped()),
			zap.Int64("journal_failed", writer.Failed()),
			zap.Int32("db_conns", stats.Total),
		)
	}
	logger.Info("arena finished", fields...)
	for _, c := range roster.All() {
		logger.Info("combatant",
			zap.String("name", c.Name),
			zap.String("health", fmt.Sprintf("%.1f%%", roster.HealthPercentage(c))),
		)
	}
}

// wireScripting connects the engine.combatant Lua module to the roster. The
// callbacks run inside ability activation on the tick goroutine.
func wireScripting(m *scripting.Manager, roster *entity.Roster) {
	m.GetCombatant = func(name string) *scripting.CombatantInfo {
		c, ok := roster.Lookup(name)
		if !ok {
			return nil
		}
		pos, _ := roster.Position(c)
		return &scripting.CombatantInfo{
			Name:       c.Name,
			Health:     roster.HealthPercentage(c),
			BaseDamage: roster.BaseDamage(c),
			X:          pos.X,
			Y:          pos.Y,
		}
	}
	m.ApplyDamage = func(name string, amount float64) (float64, error) {
		c, ok := roster.Lookup(name)
		if !ok {
			return 0, fmt.Errorf("combatant %q: %w", name, entity.ErrStale)
		}
		return roster.ApplyDamage(c, amount), nil
	}
	m.Heal = func(name string, amount float64) (float64, error) {
		c, ok := roster.Lookup(name)
		if !ok {
			return 0, fmt.Errorf("combatant %q: %w", name, entity.ErrStale)
		}
		return roster.Heal(c, amount), nil
	}
}
