// Package jetdb persists runs of the jet substructure engine to SQLite.
package jetdb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/jetsub/internal/engine"
	"github.com/banshee-data/jetsub/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// DB is the SQLite run store. The embedded *sql.DB stays available for ad hoc
// queries and the tailsql console.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies all migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMAs are per connection.
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// MigrateUp runs all pending migrations. No pending migrations is not an error.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the underlying DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (db *DB) MigrateDown() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version and dirty state, or
// 0, false, nil for an unmigrated database.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger on top of monitoring.Logf.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Debugf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return monitoring.Verbose()
}

// Run is one invocation of the engine over an input file.
type Run struct {
	RunID      string `json:"run_id"`
	CreatedAt  int64  `json:"created_at"` // unix nanoseconds
	Version    string `json:"version"`
	InputPath  string `json:"input_path"`
	ConfigJSON string `json:"config_json,omitempty"`
	NumJets    int    `json:"num_jets"`
}

// JetRow is the stored form of an engine.JetResult.
type JetRow struct {
	RunID           string
	JetIndex        int
	NumConstituents int
	PrunedMass      float64
	MassDrop        float64
	NumSubjets      int
	PrunedPt        float64
	PrunedEta       float64
	PrunedPhi       float64
	Error           string

	// Volatility is NaN when the run did not compute it or it was undefined.
	Volatility       float64
	VolatilityTrials int
	Converged        bool
	TrialMasses      []float64
}

// InsertRun stores a run header. An empty RunID gets a fresh UUID and a zero
// CreatedAt is set to now.
func (db *DB) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	var configStr interface{}
	if run.ConfigJSON != "" {
		configStr = run.ConfigJSON
	}
	_, err := db.Exec(`
		INSERT INTO jet_runs (run_id, created_at, version, input_path, config_json, num_jets)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAt, run.Version, run.InputPath, configStr, run.NumJets,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// InsertResults stores every jet result of a run in one transaction. Trial
// masses are stored only for jets whose volatility was computed.
func (db *DB) InsertResults(runID string, results map[int]engine.JetResult) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	jetStmt, err := tx.Prepare(`
		INSERT INTO jet_results (
			run_id, jet_index, num_constituents, pruned_mass, mass_drop, num_subjets,
			pruned_pt, pruned_eta, pruned_phi, error,
			volatility, volatility_trials, converged
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare jet insert: %w", err)
	}
	defer jetStmt.Close()

	trialStmt, err := tx.Prepare(`INSERT INTO jet_trials (run_id, jet_index, trial, pruned_mass) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trial insert: %w", err)
	}
	defer trialStmt.Close()

	for idx := 0; idx < len(results); idx++ {
		r, ok := results[idx]
		if !ok {
			return fmt.Errorf("results missing jet %d", idx)
		}
		var errStr, vol interface{}
		if r.Err != nil {
			errStr = r.Err.Error()
		}
		if r.VolatilityDefined {
			vol = r.Volatility
		}
		if _, err := jetStmt.Exec(
			runID, idx, r.NumConstituents, r.PrunedMass, r.MassDrop, len(r.Subjets),
			r.PrunedJet.Pt(), r.PrunedJet.Eta(), r.PrunedJet.Phi(), errStr,
			vol, r.VolatilityTrials, r.Converged,
		); err != nil {
			return fmt.Errorf("insert jet %d: %w", idx, err)
		}
		for trial, m := range r.TrialMasses {
			if _, err := trialStmt.Exec(runID, idx, trial, m); err != nil {
				return fmt.Errorf("insert jet %d trial %d: %w", idx, trial, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	monitoring.Debugf("stored %d jet results for run %s", len(results), runID)
	return nil
}

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns() ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, created_at, version, input_path, config_json, num_jets
		FROM jet_runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var configStr sql.NullString
		if err := rows.Scan(&r.RunID, &r.CreatedAt, &r.Version, &r.InputPath, &configStr, &r.NumJets); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ConfigJSON = configStr.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by ID.
func (db *DB) GetRun(runID string) (*Run, error) {
	var r Run
	var configStr sql.NullString
	err := db.QueryRow(`
		SELECT run_id, created_at, version, input_path, config_json, num_jets
		FROM jet_runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.CreatedAt, &r.Version, &r.InputPath, &configStr, &r.NumJets)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.ConfigJSON = configStr.String
	return &r, nil
}

// GetResults returns the stored jets of a run ordered by jet index.
func (db *DB) GetResults(runID string) ([]JetRow, error) {
	rows, err := db.Query(`
		SELECT run_id, jet_index, num_constituents, pruned_mass, mass_drop, num_subjets,
		       pruned_pt, pruned_eta, pruned_phi, error,
		       volatility, volatility_trials, converged
		FROM jet_results
		WHERE run_id = ?
		ORDER BY jet_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []JetRow
	for rows.Next() {
		var j JetRow
		var errStr sql.NullString
		var vol sql.NullFloat64
		if err := rows.Scan(
			&j.RunID, &j.JetIndex, &j.NumConstituents, &j.PrunedMass, &j.MassDrop, &j.NumSubjets,
			&j.PrunedPt, &j.PrunedEta, &j.PrunedPhi, &errStr,
			&vol, &j.VolatilityTrials, &j.Converged,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		j.Error = errStr.String
		j.Volatility = math.NaN()
		if vol.Valid {
			j.Volatility = vol.Float64
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		masses, err := db.trialMasses(runID, out[i].JetIndex)
		if err != nil {
			return nil, err
		}
		out[i].TrialMasses = masses
	}
	return out, nil
}

func (db *DB) trialMasses(runID string, jetIndex int) ([]float64, error) {
	rows, err := db.Query(`
		SELECT pruned_mass FROM jet_trials
		WHERE run_id = ? AND jet_index = ?
		ORDER BY trial`, runID, jetIndex)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var masses []float64
	for rows.Next() {
		var m float64
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		masses = append(masses, m)
	}
	return masses, rows.Err()
}

// DeleteRun removes a run and, through the foreign keys, its results.
func (db *DB) DeleteRun(runID string) error {
	res, err := db.Exec(`DELETE FROM jet_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
