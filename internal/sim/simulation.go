package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gam3du/gam3du-sub000/internal/dispatch"
	"github.com/gam3du/gam3du-sub000/internal/event"
)

// DefaultTickRate is the simulation frequency in Hz.
const DefaultTickRate = 60

// Config describes a simulation.
type Config struct {
	Width    int
	Height   int
	TickRate int
	Logger   *slog.Logger
}

// Simulation drives a World and its dispatch loop from one goroutine.
//
// Each step first advances the world (which may complete an effect and
// notify the registry), then runs one dispatch tick.
type Simulation struct {
	world    *World
	loop     *dispatch.Loop
	registry *event.Registry
	tickRate int
	logger   *slog.Logger
}

// New builds the robot world, the command-effect-completed registry and a
// dispatch loop executing commands against the world.
func New(cfg Config, loopOpts ...dispatch.Option) (*Simulation, error) {
	if cfg.TickRate == 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.TickRate < 0 {
		return nil, fmt.Errorf("sim: tick rate must be positive, got %d", cfg.TickRate)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := event.NewRegistry(event.CommandEffectCompleted, event.WithLogger(logger))
	world, err := NewWorld(cfg.Width, cfg.Height, registry, WithWorldLogger(logger))
	if err != nil {
		return nil, err
	}

	opts := append([]dispatch.Option{dispatch.WithLogger(logger)}, loopOpts...)
	loop, err := dispatch.New(world, registry, opts...)
	if err != nil {
		return nil, err
	}

	return &Simulation{
		world:    world,
		loop:     loop,
		registry: registry,
		tickRate: cfg.TickRate,
		logger:   logger,
	}, nil
}

// World returns the simulated world.
func (s *Simulation) World() *World { return s.world }

// Loop returns the dispatch loop; use it to register endpoints.
func (s *Simulation) Loop() *dispatch.Loop { return s.loop }

// Registry returns the command-effect-completed registry.
func (s *Simulation) Registry() *event.Registry { return s.registry }

// TickInterval returns the wall-clock duration of one step.
func (s *Simulation) TickInterval() time.Duration {
	return time.Second / time.Duration(s.tickRate)
}

// Step advances the world by dt and runs one dispatch tick.
func (s *Simulation) Step(ctx context.Context, dt time.Duration) int {
	s.world.Update(dt)
	return s.loop.Tick(ctx)
}

// Run steps the simulation at its tick rate until ctx is cancelled.
// Must be called from exactly one goroutine.
func (s *Simulation) Run(ctx context.Context) error {
	interval := s.TickInterval()
	s.logger.Info("simulation starting", "tick_rate", s.tickRate)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation stopping", "ticks", s.loop.Ticks())
			s.loop.Close()
			return ctx.Err()
		case now := <-ticker.C:
			s.Step(ctx, now.Sub(last))
			last = now
		}
	}
}
