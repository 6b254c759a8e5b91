package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/subsea-teleop/internal/commands"
	"github.com/banshee-data/subsea-teleop/internal/teleop"
)

// recorderQueue is the number of events buffered ahead of the writer.
const recorderQueue = 1024

// ErrRecorderClosed is returned for events submitted after Close.
var ErrRecorderClosed = errors.New("session recorder closed")

const (
	modeSetpoint = "setpoint"
	modeMoment   = "moment"
	modeForce    = "force"
)

type event struct {
	transition *teleop.Transition
	cycle      *commands.Cycle
}

// Recorder writes controller output to the session log. It implements
// commands.Publisher and teleop.TransitionRecorder; events are queued and
// written in order by one goroutine so the control loop never waits on disk.
type Recorder struct {
	db    *DB
	queue chan event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	written atomic.Uint64

	// Owned by the writer goroutine.
	session   string
	closedID  string
	closedSeq uint64
	lastNs    int64
	lastSeq   uint64
}

// NewRecorder starts a writer for db. Call Close to flush and stop it.
func NewRecorder(db *DB) *Recorder {
	r := &Recorder{
		db:    db,
		queue: make(chan event, recorderQueue),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// RecordTransition queues t.
func (r *Recorder) RecordTransition(_ context.Context, t teleop.Transition) error {
	return r.enqueue(event{transition: &t})
}

// Publish queues c.
func (r *Recorder) Publish(_ context.Context, c commands.Cycle) error {
	return r.enqueue(event{cycle: &c})
}

func (r *Recorder) enqueue(e event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.queue <- e:
		return nil
	default:
		r.dropped.Add(1)
		return fmt.Errorf("session log queue full")
	}
}

// Stats returns the number of events written and dropped.
func (r *Recorder) Stats() (written, dropped uint64) {
	return r.written.Load(), r.dropped.Load()
}

// Close writes any queued events, ends an open session and stops the writer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		var err error
		switch {
		case e.transition != nil:
			err = r.writeTransition(*e.transition)
		case e.cycle != nil:
			err = r.writeCycle(*e.cycle)
		}
		if err != nil {
			logf("session log write failed: %v", err)
			continue
		}
		r.written.Add(1)
	}
	if r.session != "" {
		if _, err := r.db.Exec(
			`UPDATE sessions SET ended_ns = ?, end_seq = ? WHERE session_id = ?`,
			r.lastNs, int64(r.lastSeq), r.session,
		); err != nil {
			logf("failed to end session %s: %v", r.session, err)
		}
	}
}

func (r *Recorder) writeTransition(t teleop.Transition) error {
	switch t.Kind {
	case teleop.TransitionArm:
		id := uuid.NewString()
		if _, err := r.db.Exec(
			`INSERT INTO sessions (session_id, started_ns, start_seq) VALUES (?, ?, ?)`,
			id, t.Time.UnixNano(), int64(t.Seq),
		); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		r.session = id
		logf("session %s started", id)
	case teleop.TransitionDisarm:
		if r.session != "" {
			if _, err := r.db.Exec(
				`UPDATE sessions SET ended_ns = ?, end_seq = ? WHERE session_id = ?`,
				t.Time.UnixNano(), int64(t.Seq), r.session,
			); err != nil {
				return fmt.Errorf("end session: %w", err)
			}
			logf("session %s ended", r.session)
		}
		// The disarm cycle belongs to the session it ends.
		r.closedID, r.closedSeq = r.session, t.Seq
		r.session = ""
	}

	_, err := r.db.Exec(
		`INSERT INTO transitions (session_id, seq, time_ns, kind, enabled) VALUES (?, ?, ?, ?, ?)`,
		nullString(r.sessionFor(t.Seq)), int64(t.Seq), t.Time.UnixNano(), string(t.Kind), t.Enabled,
	)
	return err
}

func (r *Recorder) sessionFor(seq uint64) string {
	if r.session != "" {
		return r.session
	}
	if r.closedID != "" && seq == r.closedSeq {
		return r.closedID
	}
	return ""
}

func (r *Recorder) writeCycle(c commands.Cycle) error {
	if err := c.Validate(); err != nil {
		return err
	}
	row := cycleRowFrom(c)
	r.lastNs, r.lastSeq = c.Time.UnixNano(), c.Seq

	var pneumatics sql.NullString
	if row.Pneumatics != nil {
		b, err := json.Marshal(row.Pneumatics)
		if err != nil {
			return err
		}
		pneumatics = sql.NullString{String: string(b), Valid: true}
	}
	var reset sql.NullBool
	if row.ResetPWM != nil {
		reset = sql.NullBool{Bool: *row.ResetPWM, Valid: true}
	}

	_, err := r.db.Exec(`INSERT INTO cycles (
			session_id, seq, time_ns, attitude_mode, roll, pitch, yaw,
			moment_x, moment_y, moment_z, depth_mode, depth, force_z,
			force_x, force_y, plane, reset_pwm, pneumatics
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullString(r.sessionFor(c.Seq)), int64(c.Seq), c.Time.UnixNano(),
		row.AttitudeMode, row.Roll, row.Pitch, row.Yaw,
		row.MomentX, row.MomentY, row.MomentZ,
		row.DepthMode, row.Depth, row.ForceZ,
		row.ForceX, row.ForceY, int(row.Plane), reset, pneumatics,
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// cycleRowFrom flattens a cycle into its stored form.
func cycleRowFrom(c commands.Cycle) CycleRow {
	row := CycleRow{
		Seq:    c.Seq,
		Time:   c.Time,
		ForceX: c.Linear.X,
		ForceY: c.Linear.Y,
		Plane:  c.Plane,
	}
	switch a := c.Attitude.(type) {
	case commands.AttitudeSetpoint:
		row.AttitudeMode = modeSetpoint
		row.Roll, row.Pitch, row.Yaw = a.Roll, a.Pitch, a.Yaw
	case commands.RawMoment:
		row.AttitudeMode = modeMoment
		row.MomentX, row.MomentY, row.MomentZ = a.X, a.Y, a.Z
	}
	switch d := c.Depth.(type) {
	case commands.DepthSetpoint:
		row.DepthMode = modeSetpoint
		row.Depth = d.Depth
	case commands.RawVerticalForce:
		row.DepthMode = modeForce
		row.ForceZ = d.Z
	}
	if c.Reset != nil {
		v := c.Reset.ResetPWM
		row.ResetPWM = &v
	}
	if p := c.Pneumatics; p != nil {
		row.Pneumatics = &commands.PneumaticsCommand{
			TorpedoPort:   p.TorpedoPort,
			TorpedoStbd:   p.TorpedoStbd,
			Manipulator:   p.Manipulator,
			MarkerDropper: p.MarkerDropper,
			DurationMs:    int(p.Duration.Milliseconds()),
		}
	}
	return row
}
