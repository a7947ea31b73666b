package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gam3du/gam3du-sub000/internal/dispatch"
	"github.com/gam3du/gam3du-sub000/internal/event"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// Direction is the robot heading.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Left returns the heading after a counter-clockwise quarter turn.
func (d Direction) Left() Direction { return (d + 3) % 4 }

// Right returns the heading after a clockwise quarter turn.
func (d Direction) Right() Direction { return (d + 1) % 4 }

// Delta returns the tile offset of one step. North is -y.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	default:
		return -1, 0
	}
}

// Robot is the robot's observable state.
type Robot struct {
	X, Y   int
	Facing Direction
	Color  [3]float32
}

// effect is a time-extended change applied when remaining reaches zero.
type effect struct {
	command   schema.Identifier
	remaining time.Duration
	apply     func(*Robot)
}

// World is a robot on a width x height tile plane.
//
// World implements dispatch.Handler. Movement and turning start an effect
// and return Pending; Update advances the effect and notifies the registry
// when it completes. All methods run on the simulation goroutine.
type World struct {
	width, height int
	robot         Robot
	tiles         map[[2]int]string
	effect        *effect
	registry      *event.Registry
	logger        *slog.Logger
	lines         []string
}

// WorldOption configures a World.
type WorldOption func(*World)

// WithWorldLogger sets the logger used for the "log" command and effects.
func WithWorldLogger(l *slog.Logger) WorldOption {
	return func(w *World) { w.logger = l }
}

// NewWorld places the robot at the plane's centre facing north.
func NewWorld(width, height int, registry *event.Registry, opts ...WorldOption) (*World, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("sim: plane must be at least 1x1, got %dx%d", width, height)
	}
	if registry == nil {
		return nil, fmt.Errorf("sim: nil registry")
	}

	w := &World{
		width:    width,
		height:   height,
		robot:    Robot{X: width / 2, Y: height / 2, Facing: North, Color: [3]float32{1, 1, 1}},
		tiles:    make(map[[2]int]string),
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Robot returns a copy of the robot state.
func (w *World) Robot() Robot {
	return w.robot
}

// Tile returns the paint color of a tile, or "" if unpainted.
func (w *World) Tile(x, y int) string {
	return w.tiles[[2]int{x, y}]
}

// Busy reports whether an effect is in progress.
func (w *World) Busy() bool {
	return w.effect != nil
}

// Lines returns the messages written with the "log" command.
func (w *World) Lines() []string {
	return append([]string(nil), w.lines...)
}

// Update advances the current effect by dt. When it finishes, the effect is
// applied and the registry notified.
func (w *World) Update(dt time.Duration) {
	if w.effect == nil {
		return
	}
	w.effect.remaining -= dt
	if w.effect.remaining > 0 {
		return
	}

	done := w.effect
	w.effect = nil
	done.apply(&w.robot)

	n, delivered := w.registry.Notify()
	w.logger.Debug("effect completed",
		"command", string(done.command),
		"x", w.robot.X,
		"y", w.robot.Y,
		"facing", w.robot.Facing.String(),
		"seq", n.Seq,
		"subscribers", delivered)
}

// Execute implements dispatch.Handler for the robot API.
func (w *World) Execute(_ context.Context, call dispatch.Call) dispatch.Result {
	args := call.Arguments

	switch call.Command() {
	case "move forward":
		if w.blocked() {
			return dispatch.Ok(schema.BooleanValue(false))
		}
		dx, dy := w.robot.Facing.Delta()
		return w.start(call.Command(), args[0], func(r *Robot) {
			r.X += dx
			r.Y += dy
		})

	case "turn left":
		return w.start(call.Command(), args[0], func(r *Robot) { r.Facing = r.Facing.Left() })

	case "turn right":
		return w.start(call.Command(), args[0], func(r *Robot) { r.Facing = r.Facing.Right() })

	case "paint tile":
		w.tiles[[2]int{w.robot.X, w.robot.Y}] = string(args[0].(schema.StringValue))
		return dispatch.Ok(schema.Unit)

	case "robot color rgb":
		var color [3]float32
		for i, arg := range args {
			c := float32(arg.(schema.FloatValue))
			if c < 0 || c > 1 {
				return dispatch.Fail(fmt.Errorf("color component %s must be between 0 and 1, got %g", call.Function.Parameters[i].Name, c))
			}
			color[i] = c
		}
		w.robot.Color = color
		return dispatch.Ok(schema.Unit)

	case "position":
		return dispatch.Ok(schema.ListValue{schema.IntegerValue(w.robot.X), schema.IntegerValue(w.robot.Y)})

	case "is blocked":
		return dispatch.Ok(schema.BooleanValue(w.blocked()))

	case "log":
		msg := string(args[0].(schema.StringValue))
		w.lines = append(w.lines, msg)
		w.logger.Info("script log", "message", msg)
		return dispatch.Ok(schema.Unit)

	default:
		return dispatch.Fail(dispatch.UnknownCommand(call.Command()))
	}
}

func (w *World) start(command schema.Identifier, duration schema.Value, apply func(*Robot)) dispatch.Result {
	if w.effect != nil {
		return dispatch.Fail(fmt.Errorf("robot is busy with %q", w.effect.command))
	}
	ms := int64(duration.(schema.IntegerValue))
	w.effect = &effect{
		command:   command,
		remaining: time.Duration(ms) * time.Millisecond,
		apply:     apply,
	}
	return dispatch.Pending()
}

func (w *World) blocked() bool {
	dx, dy := w.robot.Facing.Delta()
	x, y := w.robot.X+dx, w.robot.Y+dy
	return x < 0 || y < 0 || x >= w.width || y >= w.height
}
