// Command teleop-plot renders the recorded setpoints and open-loop outputs of
// a teleop session as PNG charts.
package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/banshee-data/subsea-teleop/internal/db"
	"github.com/banshee-data/subsea-teleop/internal/security"
)

var errNoSessions = errors.New("no sessions recorded")

var (
	dbPath  = flag.String("db-path", "teleop.db", "Session log database")
	session = flag.String("session", "", "Session ID to plot (default: most recent)")
	outDir  = flag.String("out", ".", "Output directory; must be under the working or temp directory")
)

func main() {
	flag.Parse()

	if err := security.ValidateDatabasePath(*dbPath); err != nil {
		log.Fatalf("invalid database path: %v", err)
	}
	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	s, err := pickSession(ctx, database, *session)
	if err != nil {
		log.Fatalf("failed to find session: %v", err)
	}
	rows, err := database.SessionCycles(ctx, s.ID)
	if err != nil {
		log.Fatalf("failed to load cycles: %v", err)
	}
	log.Printf("session %s: %d cycles over %s", s.ID, len(rows), s.Duration())

	files, err := renderSession(s, rows, *outDir)
	if err != nil {
		log.Fatalf("failed to render plots: %v", err)
	}
	for _, f := range files {
		log.Printf("wrote %s", f)
	}
}

type sessionReader interface {
	ListSessions(ctx context.Context, limit int) ([]db.Session, error)
	GetSession(ctx context.Context, id string) (db.Session, error)
}

// pickSession returns the named session, or the most recent one when id is
// empty.
func pickSession(ctx context.Context, r sessionReader, id string) (db.Session, error) {
	if id != "" {
		return r.GetSession(ctx, id)
	}
	sessions, err := r.ListSessions(ctx, 1)
	if err != nil {
		return db.Session{}, err
	}
	if len(sessions) == 0 {
		return db.Session{}, errNoSessions
	}
	return sessions[0], nil
}
