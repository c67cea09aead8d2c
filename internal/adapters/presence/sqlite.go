package presence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dkeye/convo/internal/core"
	"github.com/dkeye/convo/internal/domain"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps presence in a sqlite file so several processes, or
// a restart, see the same last-seen directory.
type SQLiteStore struct {
	db   *sql.DB
	feed *feed
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open presence db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("presence db %s: %w", pragma, err)
		}
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS presence (
		name      TEXT PRIMARY KEY,
		room      TEXT NOT NULL DEFAULT '',
		online    INTEGER NOT NULL DEFAULT 0,
		last_seen INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create presence table: %w", err)
	}
	log.Info().Str("module", "presence").Str("path", path).Msg("sqlite presence store ready")
	return &SQLiteStore{db: db, feed: newFeed()}, nil
}

func (s *SQLiteStore) MarkOnline(ctx context.Context, name domain.Identity, room domain.RoomID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO presence (name, room, online, last_seen)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET
			room=excluded.room,
			online=1,
			last_seen=excluded.last_seen`,
		string(name), string(room), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("mark online %s: %w", name, err)
	}
	s.feed.publish(core.PresenceRecord{Name: name, Room: room, Online: true, LastSeen: at})
	return nil
}

func (s *SQLiteStore) MarkOffline(ctx context.Context, name domain.Identity, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO presence (name, online, last_seen)
		VALUES (?, 0, ?)
		ON CONFLICT(name) DO UPDATE SET
			online=0,
			last_seen=excluded.last_seen`,
		string(name), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("mark offline %s: %w", name, err)
	}
	s.feed.publish(core.PresenceRecord{Name: name, Online: false, LastSeen: at})
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]core.PresenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, room, online, last_seen FROM presence ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	defer rows.Close()

	var out []core.PresenceRecord
	for rows.Next() {
		var (
			name, room string
			online     int
			lastSeen   int64
		)
		if err := rows.Scan(&name, &room, &online, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		out = append(out, core.PresenceRecord{
			Name:     domain.Identity(name),
			Room:     domain.RoomID(room),
			Online:   online == 1,
			LastSeen: time.UnixMilli(lastSeen),
		})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Subscribe(ctx context.Context) <-chan core.PresenceRecord {
	return s.feed.subscribe(ctx)
}

func (s *SQLiteStore) Close() error {
	s.feed.close()
	return s.db.Close()
}
