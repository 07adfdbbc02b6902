// Package store persists help requests, ranked lists and volunteers in a
// SQLite database. Transactions open in immediate mode on a single
// connection, so read-modify-write cycles on one request are fully
// serialized: the guard the dispatch engine relies on.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aidline/dispatch/core/model"
	corestore "github.com/aidline/dispatch/core/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS help_requests (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    lat REAL,
    lng REAL,
    resume TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL,
    current_volunteer_id TEXT NOT NULL DEFAULT '',
    current_volunteer_index INTEGER NOT NULL DEFAULT 0,
    processing_at INTEGER,
    last_response TEXT NOT NULL DEFAULT '',
    last_responder_id TEXT NOT NULL DEFAULT '',
    last_responded_at INTEGER
);
CREATE TABLE IF NOT EXISTS ranked_lists (
    request_id TEXT PRIMARY KEY,
    entries TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS volunteers (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL DEFAULT '',
    is_volunteer INTEGER NOT NULL DEFAULT 0,
    volunteer_status TEXT NOT NULL DEFAULT '',
    lat REAL,
    lng REAL,
    skills TEXT NOT NULL DEFAULT '',
    experience TEXT NOT NULL DEFAULT '',
    languages TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT ''
);`

// SQLiteStore implements corestore.Store on a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection serializes every transaction; the dispatch load is a
	// handful of short writes per request, not a throughput problem.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

type sqlTx struct {
	tx *sql.Tx
}

// RunInTx executes fn inside one immediate transaction and commits only when
// fn succeeds.
func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(tx corestore.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&sqlTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const requestColumns = `id, owner_id, lat, lng, resume, status,
    current_volunteer_id, current_volunteer_index, processing_at,
    last_response, last_responder_id, last_responded_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (model.HelpRequest, error) {
	var (
		req                      model.HelpRequest
		lat, lng                 sql.NullFloat64
		resumeJSON               string
		processingAt, lastRespAt sql.NullInt64
	)
	err := row.Scan(&req.ID, &req.OwnerID, &lat, &lng, &resumeJSON, &req.Status,
		&req.CurrentVolunteerID, &req.CurrentVolunteerIndex, &processingAt,
		&req.LastResponse, &req.LastResponderID, &lastRespAt)
	if err == sql.ErrNoRows {
		return model.HelpRequest{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.HelpRequest{}, err
	}
	if lat.Valid && lng.Valid {
		req.Location = &model.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	if resumeJSON != "" {
		if err := json.Unmarshal([]byte(resumeJSON), &req.Resume); err != nil {
			return model.HelpRequest{}, fmt.Errorf("decode resume for %s: %w", req.ID, err)
		}
	}
	if processingAt.Valid {
		t := time.Unix(0, processingAt.Int64)
		req.ProcessingAt = &t
	}
	if lastRespAt.Valid {
		t := time.Unix(0, lastRespAt.Int64)
		req.LastRespondedAt = &t
	}
	return req, nil
}

func requestArgs(req model.HelpRequest) ([]any, error) {
	resume := req.Resume
	if resume == nil {
		resume = map[string]any{}
	}
	resumeJSON, err := json.Marshal(resume)
	if err != nil {
		return nil, fmt.Errorf("encode resume for %s: %w", req.ID, err)
	}
	var lat, lng any
	if req.Location != nil {
		lat, lng = req.Location.Lat, req.Location.Lng
	}
	var processingAt, lastRespAt any
	if req.ProcessingAt != nil {
		processingAt = req.ProcessingAt.UnixNano()
	}
	if req.LastRespondedAt != nil {
		lastRespAt = req.LastRespondedAt.UnixNano()
	}
	return []any{req.ID, req.OwnerID, lat, lng, string(resumeJSON), string(req.Status),
		req.CurrentVolunteerID, req.CurrentVolunteerIndex, processingAt,
		req.LastResponse, req.LastResponderID, lastRespAt}, nil
}

func (t *sqlTx) GetRequest(id string) (model.HelpRequest, error) {
	row := t.tx.QueryRow(`SELECT `+requestColumns+` FROM help_requests WHERE id = ?`, id)
	return scanRequest(row)
}

func (t *sqlTx) PutRequest(req model.HelpRequest) error {
	args, err := requestArgs(req)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(`INSERT INTO help_requests (`+requestColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            owner_id = excluded.owner_id,
            lat = excluded.lat,
            lng = excluded.lng,
            resume = excluded.resume,
            status = excluded.status,
            current_volunteer_id = excluded.current_volunteer_id,
            current_volunteer_index = excluded.current_volunteer_index,
            processing_at = excluded.processing_at,
            last_response = excluded.last_response,
            last_responder_id = excluded.last_responder_id,
            last_responded_at = excluded.last_responded_at`, args...)
	return err
}

func (t *sqlTx) GetRankedList(requestID string) (model.RankedList, error) {
	var (
		entriesJSON string
		createdAt   int64
	)
	err := t.tx.QueryRow(`SELECT entries, created_at FROM ranked_lists WHERE request_id = ?`, requestID).
		Scan(&entriesJSON, &createdAt)
	if err == sql.ErrNoRows {
		return model.RankedList{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.RankedList{}, err
	}
	list := model.RankedList{RequestID: requestID, CreatedAt: time.Unix(0, createdAt)}
	if err := json.Unmarshal([]byte(entriesJSON), &list.Entries); err != nil {
		return model.RankedList{}, fmt.Errorf("decode ranked list for %s: %w", requestID, err)
	}
	return list, nil
}

func (t *sqlTx) CreateRankedList(list model.RankedList) error {
	// Existence check and insert run in the same immediate transaction, so
	// the write-once guarantee holds without relying on driver error codes.
	var one int
	err := t.tx.QueryRow(`SELECT 1 FROM ranked_lists WHERE request_id = ?`, list.RequestID).Scan(&one)
	if err == nil {
		return corestore.ErrRankedListExists
	}
	if err != sql.ErrNoRows {
		return err
	}
	entriesJSON, err := json.Marshal(list.Entries)
	if err != nil {
		return fmt.Errorf("encode ranked list for %s: %w", list.RequestID, err)
	}
	_, err = t.tx.Exec(`INSERT INTO ranked_lists (request_id, entries, created_at) VALUES (?, ?, ?)`,
		list.RequestID, string(entriesJSON), list.CreatedAt.UnixNano())
	return err
}

func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (model.HelpRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM help_requests WHERE id = ?`, id)
	return scanRequest(row)
}

func (s *SQLiteStore) ListEligibleVolunteers(ctx context.Context) ([]model.Volunteer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, is_volunteer, volunteer_status,
        lat, lng, skills, experience, languages, notes
        FROM volunteers WHERE is_volunteer = 1 AND volunteer_status = ?`, model.VolunteerStatusApproved)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Volunteer
	for rows.Next() {
		var (
			v        model.Volunteer
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&v.ID, &v.Username, &v.IsVolunteer, &v.VolunteerStatus,
			&lat, &lng, &v.Skills, &v.Experience, &v.Languages, &v.Notes); err != nil {
			return nil, err
		}
		if lat.Valid && lng.Valid {
			v.Location = &model.Location{Lat: lat.Float64, Lng: lng.Float64}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CreateRequest inserts a new help request. Request intake belongs to the
// sign-up service; this exists for that service, for seeding and for tests.
func (s *SQLiteStore) CreateRequest(ctx context.Context, req model.HelpRequest) error {
	return s.RunInTx(ctx, func(tx corestore.Tx) error {
		return tx.PutRequest(req)
	})
}

// UpsertVolunteer inserts or updates a volunteer record.
func (s *SQLiteStore) UpsertVolunteer(ctx context.Context, v model.Volunteer) error {
	var lat, lng any
	if v.Location != nil {
		lat, lng = v.Location.Lat, v.Location.Lng
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO volunteers
        (id, username, is_volunteer, volunteer_status, lat, lng, skills, experience, languages, notes)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            username = excluded.username,
            is_volunteer = excluded.is_volunteer,
            volunteer_status = excluded.volunteer_status,
            lat = excluded.lat,
            lng = excluded.lng,
            skills = excluded.skills,
            experience = excluded.experience,
            languages = excluded.languages,
            notes = excluded.notes`,
		v.ID, v.Username, v.IsVolunteer, v.VolunteerStatus, lat, lng,
		v.Skills, v.Experience, v.Languages, v.Notes)
	return err
}
