package teleop

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/commands"
	"github.com/banshee-data/subsea-teleop/internal/config"
	"github.com/banshee-data/subsea-teleop/internal/joystick"
	"github.com/banshee-data/subsea-teleop/internal/timeutil"
	"github.com/banshee-data/subsea-teleop/internal/units"
	"github.com/banshee-data/subsea-teleop/internal/validators"
)

// InputSink receives inbound messages from a transport. Implementations must
// not block.
type InputSink interface {
	SubmitFrame(f joystick.Frame)
	SubmitDepth(depth float64)
	SubmitOrientation(o Orientation)
}

// TransitionRecorder persists controller transitions.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, t Transition) error
}

// Status is the externally visible state, replaced atomically after every
// tick.
type Status struct {
	ControllerState

	LinkHealthy  bool `json:"link_healthy"`
	DepthSettled bool `json:"depth_settled"`
	YawSettled   bool `json:"yaw_settled"`

	Loop          LoopSummary `json:"loop"`
	Published     uint64      `json:"published"`
	PublishErrors uint64      `json:"publish_errors"`
	DroppedInputs uint64      `json:"dropped_inputs"`
}

// RunnerOptions wires a Runner's collaborators. Nil fields get defaults: the
// real clock, a publisher that discards, no transition recording.
type RunnerOptions struct {
	Clock       timeutil.Clock
	Publisher   commands.Publisher
	Transitions TransitionRecorder
}

// Runner drives a Controller at the configured rate. Inputs arrive through
// latest-value mailboxes; each tick drains them, runs the controller once and
// publishes the resulting cycle.
type Runner struct {
	ctrl   *Controller
	clock  timeutil.Clock
	period time.Duration
	pub    commands.Publisher
	trans  TransitionRecorder

	frames      *Mailbox[joystick.Frame]
	depth       *Mailbox[float64]
	orientation *Mailbox[Orientation]

	link        *validators.DetectionValidator
	depthSettle *validators.ErrorValidator
	yawSettle   *validators.ErrorValidator
	stats       *LoopStats
	lastFrame   time.Time

	status        atomic.Pointer[Status]
	published     atomic.Uint64
	publishErrors atomic.Uint64
}

// NewRunner builds a controller from cfg and the loop around it.
func NewRunner(cfg config.ControllerConfig, opts RunnerOptions) *Runner {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	pub := opts.Publisher
	if pub == nil {
		pub = commands.PublisherFunc(func(context.Context, commands.Cycle) error { return nil })
	}

	r := &Runner{
		ctrl:        NewController(cfg),
		clock:       clock,
		period:      cfg.Period(),
		pub:         pub,
		trans:       opts.Transitions,
		frames:      NewMailbox[joystick.Frame](),
		depth:       NewMailbox[float64](),
		orientation: NewMailbox[Orientation](),
		link:        validators.NewDetectionValidator(clock, cfg.LinkMinFrames, cfg.LinkWindow),
		depthSettle: validators.NewErrorValidator(clock, cfg.SettleDepthError, cfg.SettleDuration),
		yawSettle:   validators.NewErrorValidator(clock, cfg.SettleYawError, cfg.SettleDuration),
		stats:       NewLoopStats(cfg.Period()),
	}
	r.status.Store(&Status{ControllerState: r.ctrl.Snapshot()})
	return r
}

// SubmitFrame queues the latest gamepad frame.
func (r *Runner) SubmitFrame(f joystick.Frame) { r.frames.Put(f) }

// SubmitDepth queues the latest measured depth.
func (r *Runner) SubmitDepth(depth float64) { r.depth.Put(depth) }

// SubmitOrientation queues the latest measured attitude.
func (r *Runner) SubmitOrientation(o Orientation) { r.orientation.Put(o) }

// Status returns the state as of the last tick.
func (r *Runner) Status() Status { return *r.status.Load() }

// Run ticks until ctx is cancelled. Publishing errors are logged and
// counted; they never stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.period)
	defer ticker.Stop()

	logf("loop running at %s", r.period)
	for {
		select {
		case <-ctx.Done():
			logf("loop stopped")
			return nil
		case <-ticker.C():
			r.tick(ctx)
		}
	}
}

func (r *Runner) drain() {
	if f, ok := r.frames.TryTake(); ok {
		r.ctrl.SetFrame(f)
		r.link.RecordAndCheck()
		r.lastFrame = r.clock.Now()
	}
	if d, ok := r.depth.TryTake(); ok {
		r.ctrl.SetDepth(d)
	}
	if o, ok := r.orientation.TryTake(); ok {
		r.ctrl.SetOrientation(o)
	}
}

func (r *Runner) tick(ctx context.Context) {
	now := r.clock.Now()
	r.stats.Observe(now)
	r.drain()

	cyc, ok := r.ctrl.Tick(now)
	transitions := r.ctrl.DrainTransitions()
	if r.trans != nil {
		for _, t := range transitions {
			if err := r.trans.RecordTransition(ctx, t); err != nil {
				logf("failed to record %s transition: %v", t.Kind, err)
			}
		}
	}
	if ok {
		if err := r.pub.Publish(ctx, cyc); err != nil {
			r.publishErrors.Add(1)
			logf("publish cycle %d: %v", cyc.Seq, err)
		} else {
			r.published.Add(1)
		}
	}

	r.status.Store(r.buildStatus())
}

func (r *Runner) buildStatus() *Status {
	st := r.ctrl.Snapshot()

	if st.State == StateArmed && st.DepthTrusted && st.DepthArmed {
		r.depthSettle.Observe(st.Setpoint.Depth - st.MeasuredDepth)
	} else {
		r.depthSettle.Reset()
	}
	if st.State == StateArmed && st.AttitudeTrusted {
		r.yawSettle.Observe(units.AngleErrorDegrees(st.Setpoint.Yaw, st.Measured.Yaw))
	} else {
		r.yawSettle.Reset()
	}

	// The link verdict only updates when a frame arrives, so a silent link
	// also needs a recent frame.
	linkHealthy := r.link.IsValid() && !r.lastFrame.IsZero() &&
		r.clock.Since(r.lastFrame) <= r.link.Window()

	return &Status{
		ControllerState: st,
		LinkHealthy:     linkHealthy,
		DepthSettled:    r.depthSettle.IsValid(),
		YawSettled:      r.yawSettle.IsValid(),
		Loop:            r.stats.Summary(),
		Published:       r.published.Load(),
		PublishErrors:   r.publishErrors.Load(),
		DroppedInputs:   r.frames.Dropped() + r.depth.Dropped() + r.orientation.Dropped(),
	}
}
