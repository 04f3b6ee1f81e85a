package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/finlit/ankabot/internal/flow"
)

const timeLayout = "2006-01-02 15:04:05"

// Store persists completed registrations. One registrations row per finished
// session plus one answers row per field, so the schema survives form
// variants with different field sets.
type Store struct {
	DB  *sql.DB
	loc *time.Location
}

func Open(dbPath string, loc *time.Location) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS registrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT,
			username TEXT,
			form TEXT,
			created_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS answers (
			registration_id INTEGER,
			position INTEGER,
			field TEXT,
			value TEXT,
			FOREIGN KEY (registration_id) REFERENCES registrations(id)
		);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			return nil, err
		}
	}

	if loc == nil {
		loc = time.Local
	}
	return &Store{DB: db, loc: loc}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// SaveRecord inserts one completed record and returns its row id.
func (s *Store) SaveRecord(rec *flow.CompletedRecord) (int64, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO registrations (user_id, username, form, created_at) VALUES (?, ?, ?, ?)`,
		rec.UserID, rec.Username, rec.Form, rec.CreatedAt.In(s.loc).Format(timeLayout),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, a := range rec.Answers {
		_, err = tx.Exec(
			`INSERT INTO answers (registration_id, position, field, value) VALUES (?, ?, ?, ?)`,
			id, i, a.Field, a.Value.String(),
		)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Stats are the time-bucketed completion counts for the admin surface.
type Stats struct {
	Total int
	Today int
	Week  int
}

// Stats counts registrations in total, today, and since Monday of the
// current week, all in the store's configured zone.
func (s *Store) Stats(now time.Time) (Stats, error) {
	rows, err := s.DB.Query(`SELECT created_at FROM registrations`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	now = now.In(s.loc)
	year, month, day := now.Date()
	todayStart := time.Date(year, month, day, 0, 0, 0, 0, s.loc)
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday closes the week
	}
	weekStart := todayStart.AddDate(0, 0, -(weekday - 1))

	var st Stats
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return Stats{}, err
		}
		st.Total++
		ts, err := time.ParseInLocation(timeLayout, raw, s.loc)
		if err != nil {
			continue
		}
		if !ts.Before(todayStart) {
			st.Today++
		}
		if !ts.Before(weekStart) {
			st.Week++
		}
	}
	return st, rows.Err()
}

// Recipients returns the distinct user ids of everyone who ever completed a
// registration, for bulk outbound messaging.
func (s *Store) Recipients() ([]string, error) {
	rows, err := s.DB.Query(`SELECT DISTINCT user_id FROM registrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StoredAnswer is one persisted field value.
type StoredAnswer struct {
	Position int
	Field    string
	Value    string
}

// StoredRecord is one persisted registration with its answers in step order.
type StoredRecord struct {
	ID        int64
	UserID    string
	Username  string
	Form      string
	CreatedAt string
	Answers   []StoredAnswer
}

// AllRecords returns every registration, newest first, for tabular export.
func (s *Store) AllRecords() ([]StoredRecord, error) {
	rows, err := s.DB.Query(`SELECT id, user_id, username, form, created_at FROM registrations ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []StoredRecord
	byID := make(map[int64]int)
	for rows.Next() {
		var r StoredRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Username, &r.Form, &r.CreatedAt); err != nil {
			return nil, err
		}
		byID[r.ID] = len(recs)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := s.DB.Query(`SELECT registration_id, position, field, value FROM answers ORDER BY registration_id, position`)
	if err != nil {
		return nil, err
	}
	defer arows.Close()

	for arows.Next() {
		var regID int64
		var a StoredAnswer
		if err := arows.Scan(&regID, &a.Position, &a.Field, &a.Value); err != nil {
			return nil, err
		}
		idx, ok := byID[regID]
		if !ok {
			return nil, fmt.Errorf("store: answer for unknown registration %d", regID)
		}
		recs[idx].Answers = append(recs[idx].Answers, a)
	}
	return recs, arows.Err()
}
