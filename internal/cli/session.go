package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gam3du/gam3du-sub000/internal/channel"
	"github.com/gam3du/gam3du-sub000/internal/config"
	"github.com/gam3du/gam3du-sub000/internal/dispatch"
	"github.com/gam3du/gam3du-sub000/internal/schema"
	"github.com/gam3du/gam3du-sub000/internal/sim"
	"github.com/gam3du/gam3du-sub000/internal/store"
)

// session is a running robot simulation with one client endpoint, plus
// the optional journal and metrics server configured for it.
type session struct {
	sim     *sim.Simulation
	client  *channel.Client
	store   *store.Store
	journal *store.Journal
	logger  *slog.Logger

	cancel      context.CancelFunc
	done        chan struct{}
	metricsDone <-chan struct{}
}

// startSession builds the simulation described by cfg, connects a client
// for api over the configured transport and starts stepping on its own
// goroutine. Close must be called to stop it.
func startSession(ctx context.Context, cfg config.Config, api *schema.API, logger *slog.Logger) (*session, error) {
	s := &session{logger: logger, done: make(chan struct{})}
	ctx, s.cancel = context.WithCancel(ctx)

	var loopOpts []dispatch.Option
	if cfg.Dispatch.PendingTimeout > 0 {
		loopOpts = append(loopOpts, dispatch.WithPendingTimeout(cfg.Dispatch.PendingTimeout))
	}

	if cfg.Journal.Path != "" {
		st, err := store.Open(cfg.Journal.Path)
		if err != nil {
			s.cancel()
			return nil, &LoadError{Code: ErrCodeDatabase, Message: fmt.Sprintf("open journal: %v", err), Err: err}
		}
		journal, err := st.BeginRun(ctx, string(api.Name), logger)
		if err != nil {
			_ = st.Close()
			s.cancel()
			return nil, &LoadError{Code: ErrCodeDatabase, Message: err.Error(), Err: err}
		}
		s.store, s.journal = st, journal
		loopOpts = append(loopOpts, dispatch.WithObserver(journal))
		logger.Info("journal run started", "run_id", journal.RunID(), "path", cfg.Journal.Path)
	}

	if cfg.Metrics.Addr != "" {
		reg := newMetricsRegistry()
		loopOpts = append(loopOpts, dispatch.WithMetrics(dispatch.NewMetrics(reg)))
		done, err := startMetricsServer(ctx, cfg.Metrics.Addr, reg, logger)
		if err != nil {
			s.abort()
			return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("metrics server: %v", err), Err: err}
		}
		s.metricsDone = done
	}

	simulation, err := sim.New(sim.Config{
		Width:    cfg.Simulation.PlaneWidth,
		Height:   cfg.Simulation.PlaneHeight,
		TickRate: cfg.Simulation.TickRate,
		Logger:   logger,
	}, loopOpts...)
	if err != nil {
		s.abort()
		return nil, &LoadError{Code: ErrCodeConfig, Message: err.Error(), Err: err}
	}
	s.sim = simulation

	chanOpts := []channel.Option{
		channel.WithPollInterval(cfg.Script.PollInterval),
		channel.WithLogger(logger),
	}
	var server *channel.Server
	switch cfg.Transport.Kind {
	case config.TransportRing:
		s.client, server, err = channel.SharedRing(api, cfg.Transport.RingCapacity, chanOpts...)
		if err != nil {
			s.abort()
			return nil, &LoadError{Code: ErrCodeConfig, Message: err.Error(), Err: err}
		}
	default:
		s.client, server = channel.InProcess(api, chanOpts...)
	}
	simulation.Loop().AddEndpoint(server)

	go func() {
		defer close(s.done)
		if err := simulation.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("simulation stopped", "error", err)
		}
	}()
	return s, nil
}

// abort releases what startSession acquired before the simulation ran.
func (s *session) abort() {
	s.cancel()
	if s.metricsDone != nil {
		<-s.metricsDone
	}
	if s.journal != nil {
		s.journal.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

// Close stops the simulation and waits for it, then closes the client,
// the metrics server and the journal, flushing queued entries. The world
// may be read afterwards.
func (s *session) Close() error {
	s.cancel()
	<-s.done
	s.client.Close()
	if s.metricsDone != nil {
		<-s.metricsDone
	}
	if s.journal != nil {
		s.journal.Close()
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// RunID is the journal run id, or "" when journaling is off.
func (s *session) RunID() string {
	if s.journal == nil {
		return ""
	}
	return s.journal.RunID()
}

// RobotState is the robot's pose as reported by run and call.
type RobotState struct {
	X      int       `json:"x"`
	Y      int       `json:"y"`
	Facing string    `json:"facing"`
	Color  []float32 `json:"color"`
}

func (r RobotState) String() string {
	return fmt.Sprintf("(%d, %d) facing %s", r.X, r.Y, r.Facing)
}

// robotState reads the world; only valid after Close.
func (s *session) robotState() RobotState {
	r := s.sim.World().Robot()
	return RobotState{X: r.X, Y: r.Y, Facing: r.Facing.String(), Color: r.Color[:]}
}
