// keelsim is a demonstration host for the keel runtime: it wires config,
// logging, the scheduler, Lua spawners, and PostgreSQL snapshots around a
// small moving-particles world. All simulation semantics live in the
// library packages; this binary is glue.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/keelforge/keel/config"
	"github.com/keelforge/keel/dispatch"
	"github.com/keelforge/keel/ecs"
	"github.com/keelforge/keel/persist"
	"github.com/keelforge/keel/saveload"
	"github.com/keelforge/keel/saveload/yamlcodec"
	"github.com/keelforge/keel/scripting"
)

// ── demo components ────────────────────────────────────────────

type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type Velocity struct {
	DX float64 `yaml:"dx"`
	DY float64 `yaml:"dy"`
}

type Health struct {
	HP int `yaml:"hp"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := os.Getenv("KEEL_CONFIG")
	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.Default()
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Optional PostgreSQL snapshot store
	var snapshots *persist.SnapshotRepo
	if cfg.Database.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		snapshots = persist.NewSnapshotRepo(db)
		log.Info("snapshot store ready", zap.String("name", cfg.Snapshot.Name))
	}

	// 4. Build the world
	w := ecs.NewWorld()
	for _, err := range []error{
		saveload.RegisterMarkers(w),
		ecs.Register[Position](w, ecs.PolicyVec),
		ecs.Register[Velocity](w, ecs.PolicyVec),
		ecs.Register[Health](w, ecs.PolicyDense),
	} {
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
	}
	markers := saveload.NewMarkerTable()
	slots := []saveload.Slot{
		saveload.Comp[Position]("position"),
		saveload.Comp[Velocity]("velocity"),
		saveload.Comp[Health]("health"),
	}

	// 4a. Restore the latest snapshot, if any
	if snapshots != nil {
		snap, err := snapshots.Latest(context.Background(), cfg.Snapshot.Name)
		switch {
		case err == nil:
			dec := yamlcodec.NewDecoder(bytes.NewReader(snap.Data))
			if err := saveload.Load(w, markers, dec, slots...); err != nil {
				return fmt.Errorf("restore snapshot %d: %w", snap.ID, err)
			}
			log.Info("world restored",
				zap.Int64("snapshot", snap.ID),
				zap.Int("entities", w.Pool().Count()))
		case errors.Is(err, persist.ErrNoSnapshot):
			log.Info("no snapshot, starting empty")
		default:
			return fmt.Errorf("load snapshot: %w", err)
		}
	}

	// 5. Scheduler and systems
	sched := dispatch.New(w,
		dispatch.WithWorkers(cfg.Sim.Workers),
		dispatch.WithLogger(log),
	)
	defer sched.Close()
	sched.Register(movementSystem{dt: cfg.Sim.TickRate.Seconds()})
	sched.Register(decaySystem{})

	// 6. Optional Lua spawners
	var scripts *scripting.Engine
	if cfg.Scripts.Dir != "" {
		scripts, err = scripting.NewEngine(cfg.Scripts.Dir, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer scripts.Close()
	}

	// 7. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Sim.TickRate)
	defer ticker.Stop()

	log.Info("simulation started",
		zap.Duration("tick", cfg.Sim.TickRate),
		zap.Int("workers", cfg.Sim.Workers))

	var tick int64
	for {
		select {
		case <-ticker.C:
			tick++
			if scripts != nil {
				stageSpawns(sched.Commands(), markers, scripts.OnTick(tick, w.Pool().Count()))
			}
			sched.Dispatch()
			if err := sched.Wait(); err != nil {
				return fmt.Errorf("tick %d: %w", tick, err)
			}
			if snapshots != nil && cfg.Snapshot.Interval > 0 && tick%int64(cfg.Snapshot.Interval) == 0 {
				saveSnapshot(snapshots, cfg.Snapshot, w, markers, slots, tick, log)
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			if snapshots != nil {
				saveSnapshot(snapshots, cfg.Snapshot, w, markers, slots, tick, log)
			}
			log.Info("simulation stopped")
			return nil
		}
	}
}

// stageSpawns converts Lua spawn requests into deferred entity creations.
func stageSpawns(buf *ecs.CommandBuffer, markers *saveload.MarkerTable, reqs []scripting.SpawnRequest) {
	for _, req := range reqs {
		for i := 0; i < req.Count; i++ {
			moving := req.Kind == "drone"
			x, y := req.X, req.Y
			buf.Create(func(w *ecs.World, e ecs.Entity) {
				ecs.MutStorageOf[Position](w).Insert(e, Position{X: x, Y: y})
				ecs.MutStorageOf[Health](w).Insert(e, Health{HP: 100})
				if moving {
					ecs.MutStorageOf[Velocity](w).Insert(e, Velocity{DX: 1, DY: 0})
				}
				markers.Mark(w, e)
			})
		}
	}
}

func saveSnapshot(repo *persist.SnapshotRepo, cfg config.SnapshotConfig, w *ecs.World, markers *saveload.MarkerTable, slots []saveload.Slot, tick int64, log *zap.Logger) {
	var buf bytes.Buffer
	enc := yamlcodec.NewEncoder(&buf)
	if err := saveload.Save(w, markers, enc, slots...); err != nil {
		log.Error("snapshot serialize failed", zap.Error(err))
		return
	}
	if err := enc.Close(); err != nil {
		log.Error("snapshot flush failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := repo.Save(ctx, cfg.Name, tick, buf.Bytes())
	if err != nil {
		log.Error("snapshot save failed", zap.Error(err))
		return
	}
	if cfg.Keep > 0 {
		if err := repo.Prune(ctx, cfg.Name, cfg.Keep); err != nil {
			log.Warn("snapshot prune failed", zap.Error(err))
		}
	}
	log.Info("snapshot saved",
		zap.Int64("snapshot", id),
		zap.Int64("tick", tick),
		zap.Int("bytes", buf.Len()))
}

// ── systems ────────────────────────────────────────────────────

type movementSystem struct {
	dt float64
}

func (movementSystem) Name() string { return "movement" }

func (movementSystem) Access() ecs.Access {
	return ecs.Access{
		Reads:  []ecs.Key{ecs.ComponentKey[Velocity]()},
		Writes: []ecs.Key{ecs.ComponentKey[Position]()},
	}
}

func (s movementSystem) Run(t *dispatch.Tick) {
	pos := ecs.MutStorageOf[Position](t.World)
	vel := ecs.StorageOf[Velocity](t.World)
	ecs.Each2(pos.Storage, vel, func(_ ecs.Entity, p *Position, v *Velocity) {
		p.X += v.DX * s.dt
		p.Y += v.DY * s.dt
	})
}

type decaySystem struct{}

func (decaySystem) Name() string { return "decay" }

func (decaySystem) Access() ecs.Access {
	return ecs.Access{Writes: []ecs.Key{ecs.ComponentKey[Health]()}}
}

func (decaySystem) Run(t *dispatch.Tick) {
	health := ecs.MutStorageOf[Health](t.World)
	for e := range t.World.Query().With(health.Mask()).Entities() {
		h, _ := health.Get(e)
		h.HP--
		if h.HP <= 0 {
			t.Commands.Destroy(e)
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
