/*
Package sqlite provides a SQLite-backed implementation of the engine's
storage interfaces.

PURPOSE:
  Persists schedules, versions, rules, deviations, the materialized
  calendar cache, and the query log. In production, the same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  schedules:             Named recurring processes
  versions:              Configuration epochs; at most one active per
                         schedule, enforced with a partial unique index
  rules:                 Type-tagged run-day definitions per version
  deviations:            Manual per-date overrides
  materialized_calendar: Cached run dates, replaced wholesale per range
  query_log:             Audit trail of should-run decisions

CACHE REPLACEMENT:
  ReplaceRange wraps the range delete and the bulk insert in a single SQL
  transaction: readers never observe a half-cleared range, and a failure
  rolls back to the previous cache contents.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/schedguard.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/schedule-guard/engine"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		country TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS versions (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL REFERENCES schedules(id),
		effective_from TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- At most one active version per schedule
	CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_one_active
		ON versions(schedule_id) WHERE active;
	CREATE INDEX IF NOT EXISTS idx_versions_schedule
		ON versions(schedule_id);

	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL REFERENCES schedules(id),
		version_id TEXT NOT NULL REFERENCES versions(id),
		rule_type TEXT NOT NULL,
		rule_config TEXT,
		effective_from TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_rules_schedule_version
		ON rules(schedule_id, version_id);

	CREATE TABLE IF NOT EXISTS deviations (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL REFERENCES schedules(id),
		version_id TEXT NOT NULL REFERENCES versions(id),
		deviation_date TEXT NOT NULL,
		action TEXT NOT NULL,
		reason TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		expires_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_deviations_schedule_version_date
		ON deviations(schedule_id, version_id, deviation_date);

	CREATE TABLE IF NOT EXISTS materialized_calendar (
		schedule_id TEXT NOT NULL,
		version_id TEXT NOT NULL,
		occurs_on TEXT NOT NULL,
		UNIQUE(schedule_id, version_id, occurs_on)
	);

	CREATE INDEX IF NOT EXISTS idx_materialized_lookup
		ON materialized_calendar(schedule_id, version_id, occurs_on);

	CREATE TABLE IF NOT EXISTS query_log (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL,
		query_date TEXT NOT NULL,
		should_run BOOLEAN NOT NULL,
		deviation_applied BOOLEAN NOT NULL DEFAULT FALSE,
		reason TEXT,
		queried_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_query_log_schedule
		ON query_log(schedule_id, queried_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// rowScanner lets the scan helpers work on both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// timeLayout is fixed-width, so ORDER BY over the stored strings stays
// chronological even for sub-second timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// SCHEDULES (engine.ScheduleStore)
// =============================================================================

func (s *Store) SaveSchedule(ctx context.Context, sch engine.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO schedules (id, name, description, country, active, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			country = excluded.country,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		sch.ID.String(), sch.Name, nullString(sch.Description), nullString(sch.Country),
		sch.Active, nullString(sch.CreatedBy),
		sch.CreatedAt.UTC().Format(timeLayout),
		time.Now().UTC().Format(timeLayout),
	)
	return err
}

// DeleteSchedule undoes a half-created schedule. The versions foreign key
// refuses a schedule that already has history.
func (s *Store) DeleteSchedule(ctx context.Context, id engine.ScheduleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id.String())
	return err
}

func (s *Store) FindSchedule(ctx context.Context, id engine.ScheduleID) (*engine.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, country, active, created_by, created_at, updated_at FROM schedules WHERE id = ?",
		id.String(),
	)
	sch, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sch, err
}

func (s *Store) FindScheduleByName(ctx context.Context, name string) (*engine.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, country, active, created_by, created_at, updated_at FROM schedules WHERE name = ?",
		name,
	)
	sch, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sch, err
}

func (s *Store) ListSchedules(ctx context.Context) ([]engine.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, description, country, active, created_by, created_at, updated_at FROM schedules ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []engine.Schedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *sch)
	}
	return schedules, rows.Err()
}

func scanSchedule(sc rowScanner) (*engine.Schedule, error) {
	var (
		sch                  engine.Schedule
		id                   string
		description, country sql.NullString
		createdBy            sql.NullString
		createdAt, updatedAt string
	)
	if err := sc.Scan(&id, &sch.Name, &description, &country, &sch.Active, &createdBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt schedule id %q: %w", id, err)
	}
	sch.ID = parsed
	sch.Description = description.String
	sch.Country = country.String
	sch.CreatedBy = createdBy.String
	sch.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sch.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &sch, nil
}

// =============================================================================
// VERSIONS (engine.VersionStore)
// =============================================================================

func (s *Store) SaveVersion(ctx context.Context, v engine.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO versions (id, schedule_id, effective_from, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		v.ID.String(), v.ScheduleID.String(),
		v.EffectiveFrom.UTC().Format(timeLayout),
		v.Active,
	)
	return err
}

// SwapActiveVersion deactivates the current active version and inserts the
// new version with its rule in one SQL transaction, satisfying the partial
// unique index on active versions. A rollback leaves the previous active
// version untouched.
func (s *Store) SwapActiveVersion(ctx context.Context, v engine.Version, r engine.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE versions SET active = FALSE WHERE schedule_id = ? AND active",
		v.ScheduleID.String(),
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO versions (id, schedule_id, effective_from, active) VALUES (?, ?, ?, ?)",
		v.ID.String(), v.ScheduleID.String(),
		v.EffectiveFrom.UTC().Format(timeLayout), v.Active,
	); err != nil {
		return err
	}

	var effectiveFrom any
	if !r.EffectiveFrom.IsZero() {
		effectiveFrom = r.EffectiveFrom.String()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rules (id, schedule_id, version_id, rule_type, rule_config, effective_from, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.ScheduleID.String(), r.VersionID.String(),
		string(r.Type), nullString(r.Config), effectiveFrom, r.Active,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) ActiveVersion(ctx context.Context, scheduleID engine.ScheduleID) (*engine.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, schedule_id, effective_from, active FROM versions WHERE schedule_id = ? AND active",
		scheduleID.String(),
	)

	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (s *Store) VersionsBySchedule(ctx context.Context, scheduleID engine.ScheduleID) ([]engine.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, schedule_id, effective_from, active FROM versions WHERE schedule_id = ? ORDER BY effective_from",
		scheduleID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []engine.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

func scanVersion(sc rowScanner) (*engine.Version, error) {
	var (
		v                engine.Version
		id, scheduleID   string
		effectiveFromStr string
	)
	if err := sc.Scan(&id, &scheduleID, &effectiveFromStr, &v.Active); err != nil {
		return nil, err
	}

	var err error
	if v.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("corrupt version id %q: %w", id, err)
	}
	if v.ScheduleID, err = uuid.Parse(scheduleID); err != nil {
		return nil, fmt.Errorf("corrupt schedule id %q: %w", scheduleID, err)
	}
	v.EffectiveFrom, _ = time.Parse(time.RFC3339Nano, effectiveFromStr)
	return &v, nil
}

// =============================================================================
// RULES (engine.RuleStore)
// =============================================================================

func (s *Store) SaveRule(ctx context.Context, r engine.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rules (id, schedule_id, version_id, rule_type, rule_config, effective_from, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rule_type = excluded.rule_type,
			rule_config = excluded.rule_config,
			active = excluded.active
	`

	var effectiveFrom any
	if !r.EffectiveFrom.IsZero() {
		effectiveFrom = r.EffectiveFrom.String()
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID.String(), r.ScheduleID.String(), r.VersionID.String(),
		string(r.Type), nullString(r.Config), effectiveFrom, r.Active,
	)
	return err
}

func (s *Store) ActiveRules(ctx context.Context, scheduleID engine.ScheduleID, versionID engine.VersionID) ([]engine.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, schedule_id, version_id, rule_type, rule_config, effective_from, active
		FROM rules
		WHERE schedule_id = ? AND version_id = ? AND active
		ORDER BY effective_from`,
		scheduleID.String(), versionID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []engine.Rule
	for rows.Next() {
		var (
			r                        engine.Rule
			id, schedID, versID      string
			ruleConfig, effectiveStr sql.NullString
		)
		if err := rows.Scan(&id, &schedID, &versID, &r.Type, &ruleConfig, &effectiveStr, &r.Active); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt rule id %q: %w", id, err)
		}
		if r.ScheduleID, err = uuid.Parse(schedID); err != nil {
			return nil, err
		}
		if r.VersionID, err = uuid.Parse(versID); err != nil {
			return nil, err
		}
		r.Config = ruleConfig.String
		if effectiveStr.Valid {
			d, err := engine.ParseDate(effectiveStr.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt rule effective_from %q: %w", effectiveStr.String, err)
			}
			r.EffectiveFrom = d
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// =============================================================================
// DEVIATIONS (engine.DeviationStore)
// =============================================================================

func (s *Store) SaveDeviation(ctx context.Context, d engine.Deviation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt any
	if d.ExpiresAt != nil {
		expiresAt = d.ExpiresAt.String()
	}

	query := `
		INSERT INTO deviations (id, schedule_id, version_id, deviation_date, action, reason, created_by, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		d.ID.String(), d.ScheduleID.String(), d.VersionID.String(),
		d.Date.String(), string(d.Action), nullString(d.Reason),
		nullString(d.CreatedBy),
		d.CreatedAt.UTC().Format(timeLayout),
		expiresAt,
	)
	return err
}

func (s *Store) FindByScheduleAndVersion(ctx context.Context, scheduleID engine.ScheduleID, versionID engine.VersionID) ([]engine.Deviation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, schedule_id, version_id, deviation_date, action, reason, created_by, created_at, expires_at
		FROM deviations
		WHERE schedule_id = ? AND version_id = ?
		ORDER BY created_at, id`,
		scheduleID.String(), versionID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deviations []engine.Deviation
	for rows.Next() {
		var (
			d                   engine.Deviation
			id, schedID, versID string
			dateStr, createdAt  string
			reason, createdBy   sql.NullString
			expiresAt           sql.NullString
		)
		if err := rows.Scan(&id, &schedID, &versID, &dateStr, &d.Action, &reason, &createdBy, &createdAt, &expiresAt); err != nil {
			return nil, err
		}
		if d.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt deviation id %q: %w", id, err)
		}
		if d.ScheduleID, err = uuid.Parse(schedID); err != nil {
			return nil, err
		}
		if d.VersionID, err = uuid.Parse(versID); err != nil {
			return nil, err
		}
		if d.Date, err = engine.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("corrupt deviation date %q: %w", dateStr, err)
		}
		d.Reason = reason.String
		d.CreatedBy = createdBy.String
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if expiresAt.Valid {
			exp, err := engine.ParseDate(expiresAt.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt deviation expiry %q: %w", expiresAt.String, err)
			}
			d.ExpiresAt = &exp
		}
		deviations = append(deviations, d)
	}
	return deviations, rows.Err()
}

// =============================================================================
// MATERIALIZED CALENDAR (engine.MaterializedStore)
// =============================================================================

// ReplaceRange deletes the cached entries dated within [from, to] and
// inserts the new dates inside one SQL transaction.
func (s *Store) ReplaceRange(ctx context.Context, scheduleID engine.ScheduleID, versionID engine.VersionID, from, to engine.Date, dates []engine.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ISO dates sort lexicographically, so string comparison is date
	// comparison here.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM materialized_calendar
		WHERE schedule_id = ? AND version_id = ? AND occurs_on >= ? AND occurs_on <= ?`,
		scheduleID.String(), versionID.String(), from.String(), to.String(),
	)
	if err != nil {
		return err
	}

	for _, d := range dates {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO materialized_calendar (schedule_id, version_id, occurs_on) VALUES (?, ?, ?)",
			scheduleID.String(), versionID.String(), d.String(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) EntriesInRange(ctx context.Context, scheduleID engine.ScheduleID, versionID engine.VersionID, from, to engine.Date) ([]engine.MaterializedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT schedule_id, version_id, occurs_on
		FROM materialized_calendar
		WHERE schedule_id = ? AND version_id = ? AND occurs_on >= ? AND occurs_on <= ?
		ORDER BY occurs_on`,
		scheduleID.String(), versionID.String(), from.String(), to.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []engine.MaterializedEntry
	for rows.Next() {
		var schedID, versID, dateStr string
		if err := rows.Scan(&schedID, &versID, &dateStr); err != nil {
			return nil, err
		}

		var e engine.MaterializedEntry
		if e.ScheduleID, err = uuid.Parse(schedID); err != nil {
			return nil, err
		}
		if e.VersionID, err = uuid.Parse(versID); err != nil {
			return nil, err
		}
		if e.OccursOn, err = engine.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("corrupt materialized date %q: %w", dateStr, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// QUERY LOG (engine.QueryLogStore)
// =============================================================================

func (s *Store) AppendQueryLog(ctx context.Context, entry engine.QueryLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO query_log (id, schedule_id, query_date, should_run, deviation_applied, reason, queried_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID.String(), entry.ScheduleID.String(), entry.QueryDate.String(),
		entry.ShouldRun, entry.DeviationApplied, nullString(entry.Reason),
		entry.QueriedAt.UTC().Format(timeLayout),
	)
	return err
}

func (s *Store) QueryLogBySchedule(ctx context.Context, scheduleID engine.ScheduleID, limit int) ([]engine.QueryLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, schedule_id, query_date, should_run, deviation_applied, reason, queried_at
		FROM query_log
		WHERE schedule_id = ?
		ORDER BY queried_at DESC
		LIMIT ?`,
		scheduleID.String(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []engine.QueryLogEntry
	for rows.Next() {
		var (
			e                  engine.QueryLogEntry
			id, schedID        string
			dateStr, queriedAt string
			reason             sql.NullString
		)
		if err := rows.Scan(&id, &schedID, &dateStr, &e.ShouldRun, &e.DeviationApplied, &reason, &queriedAt); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if e.ScheduleID, err = uuid.Parse(schedID); err != nil {
			return nil, err
		}
		if e.QueryDate, err = engine.ParseDate(dateStr); err != nil {
			return nil, err
		}
		e.Reason = reason.String
		e.QueriedAt, _ = time.Parse(time.RFC3339Nano, queriedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"query_log", "materialized_calendar", "deviations", "rules", "versions", "schedules"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
