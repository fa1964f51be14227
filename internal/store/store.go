// Package store persists the engine's data in SQLite: active
// memories, the append-only archive, learned rules and session brain
// state. The engine itself never touches storage; the store is the
// collaborator that feeds it snapshots and writes back results.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/vkoven/membrain/internal/types"
)

// Store wraps the SQLite database
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens or creates the database under statePath
func Open(statePath string, log zerolog.Logger) (*Store, error) {
	dbPath := filepath.Join(statePath, "membrain.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug().Str("path", dbPath).Msg("store opened")
	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id          TEXT PRIMARY KEY,
		fingerprint TEXT,
		record      TEXT NOT NULL,
		created_at  TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_fingerprint ON memories(fingerprint);

	CREATE TABLE IF NOT EXISTS archive (
		seq              INTEGER PRIMARY KEY AUTOINCREMENT,
		memory_id        TEXT NOT NULL,
		entry            TEXT NOT NULL,
		reason           TEXT NOT NULL,
		archived_at      TIMESTAMP NOT NULL,
		score_at_archive REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_archive_memory ON archive(memory_id);

	CREATE TABLE IF NOT EXISTS rules (
		id         TEXT PRIMARY KEY,
		record     TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		state      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

// SaveMemory inserts or replaces one memory record
func (s *Store) SaveMemory(m *types.Memory) error {
	record, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal memory %s: %w", m.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO memories (id, fingerprint, record, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET fingerprint = excluded.fingerprint, record = excluded.record`,
		m.ID, m.Fingerprint, string(record), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("save memory %s: %w", m.ID, err)
	}
	return nil
}

// GetMemory loads one memory by id; nil when absent
func (s *Store) GetMemory(id string) (*types.Memory, error) {
	var record string
	err := s.db.QueryRow(`SELECT record FROM memories WHERE id = ?`, id).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory %s: %w", id, err)
	}
	var m types.Memory
	if err := json.Unmarshal([]byte(record), &m); err != nil {
		return nil, fmt.Errorf("decode memory %s: %w", id, err)
	}
	return &m, nil
}

// ListMemories loads the full active set
func (s *Store) ListMemories() ([]*types.Memory, error) {
	rows, err := s.db.Query(`SELECT record FROM memories ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var memories []*types.Memory
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var m types.Memory
		if err := json.Unmarshal([]byte(record), &m); err != nil {
			s.log.Warn().Err(err).Msg("skipping undecodable memory record")
			continue
		}
		memories = append(memories, &m)
	}
	return memories, rows.Err()
}

// DeleteMemory removes a memory from the active set. Used only after
// it has been written to the archive; memories are never hard-deleted
// without an archive entry.
func (s *Store) DeleteMemory(id string) error {
	_, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	return nil
}

// CountMemories returns the active set size
func (s *Store) CountMemories() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

// AppendArchive writes archive entries. The archive table is
// append-only: nothing in the codebase updates or deletes rows.
func (s *Store) AppendArchive(entries []types.ArchiveEntry) error {
	for _, e := range entries {
		record, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal archive entry %s: %w", e.Memory.ID, err)
		}
		_, err = s.db.Exec(`
			INSERT INTO archive (memory_id, entry, reason, archived_at, score_at_archive)
			VALUES (?, ?, ?, ?, ?)`,
			e.Memory.ID, string(record), e.Reason, e.ArchivedAt, e.ScoreAtArchive)
		if err != nil {
			return fmt.Errorf("append archive %s: %w", e.Memory.ID, err)
		}
	}
	return nil
}

// LatestArchiveEntry returns the most recent archive entry for a
// memory id; nil when the id was never archived.
func (s *Store) LatestArchiveEntry(memoryID string) (*types.ArchiveEntry, error) {
	var record string
	err := s.db.QueryRow(`
		SELECT entry FROM archive WHERE memory_id = ? ORDER BY seq DESC LIMIT 1`,
		memoryID).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archive entry %s: %w", memoryID, err)
	}
	var e types.ArchiveEntry
	if err := json.Unmarshal([]byte(record), &e); err != nil {
		return nil, fmt.Errorf("decode archive entry %s: %w", memoryID, err)
	}
	return &e, nil
}

// CountArchive returns the archive size
func (s *Store) CountArchive() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM archive`).Scan(&n)
	return n, err
}

// SaveRules replaces the learned rule set
func (s *Store) SaveRules(rules []*types.LearnedRule) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range rules {
		record, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal rule %s: %w", r.ID, err)
		}
		_, err = tx.Exec(`
			INSERT INTO rules (id, record, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
			r.ID, string(record), r.UpdatedAt)
		if err != nil {
			return fmt.Errorf("save rule %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// ListRules loads all learned rules
func (s *Store) ListRules() ([]*types.LearnedRule, error) {
	rows, err := s.db.Query(`SELECT record FROM rules ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []*types.LearnedRule
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var r types.LearnedRule
		if err := json.Unmarshal([]byte(record), &r); err != nil {
			s.log.Warn().Err(err).Msg("skipping undecodable rule record")
			continue
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

// SaveBrainState persists one session's state
func (s *Store) SaveBrainState(sessionID string, state *types.BrainState) error {
	record, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state %s: %w", sessionID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		sessionID, string(record), time.Now())
	if err != nil {
		return fmt.Errorf("save state %s: %w", sessionID, err)
	}
	return nil
}

// LoadBrainState loads one session's state; a fresh zero state when
// the session is unknown.
func (s *Store) LoadBrainState(sessionID string) (*types.BrainState, error) {
	var record string
	err := s.db.QueryRow(`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&record)
	if err == sql.ErrNoRows {
		return &types.BrainState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", sessionID, err)
	}
	var state types.BrainState
	if err := json.Unmarshal([]byte(record), &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", sessionID, err)
	}
	return &state, nil
}
