package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/sdrsweep/internal/models"
)

const resultColumns = `partition_key, row_key, experiment_id, name, description,
    start_time, end_time, duration_ns, duration_sec,
    ip_min_value, ip_max_value, ip_max_boost, ip_min_pct_overlap_duty_cycles,
    ip_input_bits, ip_num_columns, ip_cells_per_column, ip_duty_cycle_period,
    ip_local_area_density, ip_activation_threshold,
    op_state, op_converged, op_sweeps, op_first_stable_sweep, op_last_stable_sweep,
    output_file`

// SQLiteResultStore implements ResultStore on a SQLite database.
type SQLiteResultStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteResultStore opens (creating if needed) <projectRoot>/.sdrsweep/results.db.
func NewSQLiteResultStore(projectRoot string) (*SQLiteResultStore, error) {
	dir := LocalPath(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", DirName, err)
	}
	return OpenSQLiteResultStore(filepath.Join(dir, "results.db"))
}

// OpenSQLiteResultStore opens the database at dbPath.
func OpenSQLiteResultStore(dbPath string) (*SQLiteResultStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteResultStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteResultStore) Path() string { return s.dbPath }

// Save inserts res.
func (s *SQLiteResultStore) Save(ctx context.Context, res *models.Result) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignKeys(res)

	_, err := s.db.ExecContext(ctx, `INSERT INTO experiment_results (`+resultColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.PartitionKey, res.RowKey, res.ExperimentID, res.Name, nullString(res.Description),
		formatTime(res.StartTime), formatTime(res.EndTime), int64(res.Duration), res.DurationSec,
		res.MinValue, res.MaxValue, res.BoostMax, res.MinPctOverlapDutyCycles,
		res.InputBits, res.NumColumns, res.CellsPerColumn, res.DutyCyclePeriod,
		res.LocalAreaDensity, res.ActivationThreshold,
		res.State, boolToInt(res.Converged), res.Sweeps, res.FirstStableSweep, res.LastStableSweep,
		res.OutputFile, formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicate, res.RowKey)
		}
		return "", fmt.Errorf("failed to insert result: %w", err)
	}
	return res.RowKey, nil
}

// Get returns the result stored under rowKey.
func (s *SQLiteResultStore) Get(ctx context.Context, rowKey string) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM experiment_results WHERE row_key = ?`, rowKey)
	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rowKey)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// List returns up to limit results, newest first.
func (s *SQLiteResultStore) List(ctx context.Context, limit int) ([]models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ` + resultColumns + ` FROM experiment_results ORDER BY start_time DESC, row_key`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []models.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return out, nil
}

// Count returns the number of stored results.
func (s *SQLiteResultStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiment_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteResultStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (*models.Result, error) {
	var (
		res         models.Result
		description sql.NullString
		start, end  sql.NullString
		durationNS  int64
		converged   int
	)
	err := sc.Scan(
		&res.PartitionKey, &res.RowKey, &res.ExperimentID, &res.Name, &description,
		&start, &end, &durationNS, &res.DurationSec,
		&res.MinValue, &res.MaxValue, &res.BoostMax, &res.MinPctOverlapDutyCycles,
		&res.InputBits, &res.NumColumns, &res.CellsPerColumn, &res.DutyCyclePeriod,
		&res.LocalAreaDensity, &res.ActivationThreshold,
		&res.State, &converged, &res.Sweeps, &res.FirstStableSweep, &res.LastStableSweep,
		&res.OutputFile,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}

	res.Description = description.String
	res.StartTime = parseTime(start.String)
	res.EndTime = parseTime(end.String)
	res.Duration = time.Duration(durationNS)
	res.Converged = converged != 0
	return &res, nil
}

// assignKeys fills in missing storage keys.
func assignKeys(res *models.Result) {
	if res.PartitionKey == "" {
		res.PartitionKey = DefaultPartition
	}
	if res.RowKey == "" {
		res.RowKey = uuid.NewString()
	}
}

// timeLayout keeps a fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

var _ ResultStore = (*SQLiteResultStore)(nil)
