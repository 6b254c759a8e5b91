package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/commands"
	"github.com/banshee-data/subsea-teleop/internal/teleop"
)

// ErrSessionNotFound is returned when no session has the requested id.
var ErrSessionNotFound = errors.New("session not found")

// Session is one ARMED period.
type Session struct {
	ID          string     `json:"id"`
	Started     time.Time  `json:"started"`
	Ended       *time.Time `json:"ended,omitempty"`
	StartSeq    uint64     `json:"start_seq"`
	EndSeq      *uint64    `json:"end_seq,omitempty"`
	Note        string     `json:"note,omitempty"`
	Cycles      int        `json:"cycles"`
	Transitions int        `json:"transitions"`
}

// Duration returns how long the session lasted, or zero while it is open.
func (s Session) Duration() time.Duration {
	if s.Ended == nil {
		return 0
	}
	return s.Ended.Sub(s.Started)
}

// CycleRow is a stored cycle. Only the fields selected by AttitudeMode and
// DepthMode are meaningful.
type CycleRow struct {
	Seq          uint64                      `json:"seq"`
	Time         time.Time                   `json:"time"`
	AttitudeMode string                      `json:"attitude_mode"`
	Roll         float64                     `json:"roll"`
	Pitch        float64                     `json:"pitch"`
	Yaw          float64                     `json:"yaw"`
	MomentX      float64                     `json:"moment_x"`
	MomentY      float64                     `json:"moment_y"`
	MomentZ      float64                     `json:"moment_z"`
	DepthMode    string                      `json:"depth_mode"`
	Depth        float64                     `json:"depth"`
	ForceZ       float64                     `json:"force_z"`
	ForceX       float64                     `json:"force_x"`
	ForceY       float64                     `json:"force_y"`
	Plane        commands.AlignmentPlane     `json:"plane"`
	ResetPWM     *bool                       `json:"reset_pwm,omitempty"`
	Pneumatics   *commands.PneumaticsCommand `json:"pneumatics,omitempty"`
}

// ClosedLoopAttitude reports whether the row carries an attitude setpoint.
func (c CycleRow) ClosedLoopAttitude() bool { return c.AttitudeMode == modeSetpoint }

// ClosedLoopDepth reports whether the row carries a depth setpoint.
func (c CycleRow) ClosedLoopDepth() bool { return c.DepthMode == modeSetpoint }

const sessionColumns = `s.session_id, s.started_ns, s.ended_ns, s.start_seq, s.end_seq, s.note,
	(SELECT COUNT(*) FROM cycles c WHERE c.session_id = s.session_id),
	(SELECT COUNT(*) FROM transitions t WHERE t.session_id = s.session_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		s               Session
		startedNs, seq  int64
		endedNs, endSeq sql.NullInt64
	)
	if err := row.Scan(&s.ID, &startedNs, &endedNs, &seq, &endSeq, &s.Note, &s.Cycles, &s.Transitions); err != nil {
		return Session{}, err
	}
	s.Started = time.Unix(0, startedNs).UTC()
	s.StartSeq = uint64(seq)
	if endedNs.Valid {
		t := time.Unix(0, endedNs.Int64).UTC()
		s.Ended = &t
	}
	if endSeq.Valid {
		v := uint64(endSeq.Int64)
		s.EndSeq = &v
	}
	return s, nil
}

// ListSessions returns up to limit sessions, newest first. A limit of zero
// or less returns all of them.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s ORDER BY s.started_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetSession returns one session.
func (db *DB) GetSession(ctx context.Context, id string) (Session, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// SetSessionNote replaces a session's free-text note.
func (db *DB) SetSessionNote(ctx context.Context, id, note string) error {
	res, err := db.ExecContext(ctx, `UPDATE sessions SET note = ? WHERE session_id = ?`, note, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// SessionCycles returns a session's cycles in sequence order.
func (db *DB) SessionCycles(ctx context.Context, id string) ([]CycleRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT seq, time_ns, attitude_mode, roll, pitch, yaw,
			moment_x, moment_y, moment_z, depth_mode, depth, force_z,
			force_x, force_y, plane, reset_pwm, pneumatics
		FROM cycles WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRow
	for rows.Next() {
		var (
			c          CycleRow
			seq, ns    int64
			plane      int
			reset      sql.NullBool
			pneumatics sql.NullString
		)
		if err := rows.Scan(&seq, &ns, &c.AttitudeMode, &c.Roll, &c.Pitch, &c.Yaw,
			&c.MomentX, &c.MomentY, &c.MomentZ, &c.DepthMode, &c.Depth, &c.ForceZ,
			&c.ForceX, &c.ForceY, &plane, &reset, &pneumatics); err != nil {
			return nil, err
		}
		c.Seq = uint64(seq)
		c.Time = time.Unix(0, ns).UTC()
		c.Plane = commands.AlignmentPlane(plane)
		if reset.Valid {
			v := reset.Bool
			c.ResetPWM = &v
		}
		if pneumatics.Valid {
			var p commands.PneumaticsCommand
			if err := json.Unmarshal([]byte(pneumatics.String), &p); err != nil {
				return nil, fmt.Errorf("cycle %d pneumatics: %w", seq, err)
			}
			c.Pneumatics = &p
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SessionTransitions returns a session's transitions in sequence order.
func (db *DB) SessionTransitions(ctx context.Context, id string) ([]teleop.Transition, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT seq, time_ns, kind, enabled FROM transitions WHERE session_id = ? ORDER BY seq, transition_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []teleop.Transition
	for rows.Next() {
		var (
			t       teleop.Transition
			seq, ns int64
			kind    string
		)
		if err := rows.Scan(&seq, &ns, &kind, &t.Enabled); err != nil {
			return nil, err
		}
		t.Seq = uint64(seq)
		t.Time = time.Unix(0, ns).UTC()
		t.Kind = teleop.TransitionKind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}
