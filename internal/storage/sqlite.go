package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for reports and email logs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "csreport.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// isUniqueViolation reports whether err is a SQLite constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// --- Reports ---

const reportColumns = `id, lookup_code, custom_lookup_code, company_name, address, phone, website,
	contact_person, mobile, wechat, company_size, office_size,
	main_business, products, service_needs, chat_records,
	report_date, created_at, updated_at`

// InsertReport persists a new report. A lookup code collision, the race the
// allocation pre-check cannot close, surfaces as ErrDuplicateCode.
func (s *Store) InsertReport(ctx context.Context, r Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.LookupCode, r.CustomLookupCode, r.CompanyName, r.Address, r.Phone, r.Website,
		r.ContactPerson, r.Mobile, r.Wechat, r.CompanySize, r.OfficeSize,
		r.MainBusiness, r.Products, r.ServiceNeeds, r.ChatRecords,
		r.ReportDate, r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

// CodeExists reports whether code is already in use as either a generated or
// a caller-supplied lookup code.
func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reports WHERE lookup_code = ? OR custom_lookup_code = ?`,
		code, code,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetReportByCode returns the report whose lookup code (generated or custom)
// equals code. The two columns are stored identically for custom-code
// submissions; the dual match keeps older records with diverging values
// reachable.
func (s *Store) GetReportByCode(ctx context.Context, code string) (Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports WHERE lookup_code = ? OR custom_lookup_code = ?`,
		code, code,
	)
	return scanReport(row)
}

// ListReports returns all reports, newest first.
func (s *Store) ListReports(ctx context.Context) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (Report, error) {
	var r Report
	var createdAt, updatedAt string
	err := row.Scan(
		&r.ID, &r.LookupCode, &r.CustomLookupCode, &r.CompanyName, &r.Address, &r.Phone, &r.Website,
		&r.ContactPerson, &r.Mobile, &r.Wechat, &r.CompanySize, &r.OfficeSize,
		&r.MainBusiness, &r.Products, &r.ServiceNeeds, &r.ChatRecords,
		&r.ReportDate, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Report{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Report{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return r, nil
}

// --- Email logs ---

// SaveEmailLog records one email delivery attempt.
func (s *Store) SaveEmailLog(ctx context.Context, l EmailLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_logs (id, report_id, recipient, sent_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.ReportID, l.Recipient, l.SentAt.UTC().Format(time.RFC3339), l.Status,
	)
	return err
}

// ListEmailLogs returns the delivery attempts for one report, newest first.
func (s *Store) ListEmailLogs(ctx context.Context, reportID string) ([]EmailLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, recipient, sent_at, status
		FROM email_logs WHERE report_id = ? ORDER BY sent_at DESC`,
		reportID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []EmailLog
	for rows.Next() {
		var l EmailLog
		var sentAt string
		if err := rows.Scan(&l.ID, &l.ReportID, &l.Recipient, &sentAt, &l.Status); err != nil {
			return nil, err
		}
		if l.SentAt, err = time.Parse(time.RFC3339, sentAt); err != nil {
			return nil, fmt.Errorf("parsing sent_at: %w", err)
		}
		results = append(results, l)
	}
	return results, rows.Err()
}
