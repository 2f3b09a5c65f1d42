package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"activitylog/internal/auth"
	"activitylog/internal/core"
	"activitylog/internal/log"
	"activitylog/internal/records"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the records.Store backed by a local SQLite file. It
// also keeps the login accounts.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

var (
	_ records.Store  = (*SQLiteRepository)(nil)
	_ auth.UserStore = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Nop()
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListActivities(ctx context.Context, f records.Filter) ([]core.ActivityRecord, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	rows, err := r.queries.ListActivities(ctx, ListActivitiesParams{
		FilterStatus: f.Status != "",
		Completed:    f.Status == records.StatusCompleted,
		Personnel:    f.Personnel,
	})
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	out := make([]core.ActivityRecord, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	// Text ordering puts malformed dates anywhere; re-sort the same way the
	// other backends do.
	records.SortRecent(out)
	return out, nil
}

func (r *SQLiteRepository) GetActivity(ctx context.Context, id int64) (core.ActivityRecord, error) {
	row, err := r.queries.GetActivity(ctx, id)
	if err != nil {
		return core.ActivityRecord{}, notFound("get activity", id, err)
	}
	return fromRow(row), nil
}

func (r *SQLiteRepository) CreateActivity(ctx context.Context, rec core.ActivityRecord) (core.ActivityRecord, error) {
	row, err := r.queries.CreateActivity(ctx, toParams(rec))
	if err != nil {
		return core.ActivityRecord{}, fmt.Errorf("create activity: %w", err)
	}

	r.logger.InfoContext(ctx, "Activity saved to SQLite",
		log.FieldActivityID, row.ID,
		log.FieldPersonnel, row.Personnel,
		log.FieldCharges, row.Charges)

	return fromRow(row), nil
}

func (r *SQLiteRepository) UpdateActivity(ctx context.Context, id int64, p core.ActivityPatch) (core.ActivityRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.ActivityRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	current, err := q.GetActivity(ctx, id)
	if err != nil {
		return core.ActivityRecord{}, notFound("update activity", id, err)
	}

	next := p.Apply(fromRow(current))
	row, err := q.UpdateActivity(ctx, id, toParams(next))
	if err != nil {
		return core.ActivityRecord{}, fmt.Errorf("update activity %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.ActivityRecord{}, fmt.Errorf("commit update: %w", err)
	}

	r.logger.InfoContext(ctx, "Activity updated in SQLite", log.FieldActivityID, id)
	return fromRow(row), nil
}

func (r *SQLiteRepository) DeleteActivity(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteActivity(ctx, id)
	if err != nil {
		return fmt.Errorf("delete activity %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete activity %d: %w", id, records.ErrNotFound)
	}

	r.logger.InfoContext(ctx, "Activity deleted from SQLite", log.FieldActivityID, id)
	return nil
}

func (r *SQLiteRepository) ListPersonnel(ctx context.Context) ([]string, error) {
	names, err := r.queries.ListPersonnel(ctx)
	if err != nil {
		return nil, fmt.Errorf("list personnel: %w", err)
	}
	return names, nil
}

// Count returns the number of stored activities.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountActivities(ctx)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return n, nil
}

// Import inserts rs inside one transaction. Ids on rs are ignored.
func (r *SQLiteRepository) Import(ctx context.Context, rs []core.ActivityRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, rec := range rs {
		if _, err := q.CreateActivity(ctx, toParams(rec)); err != nil {
			return fmt.Errorf("import activity: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	r.logger.InfoContext(ctx, "Activities imported", log.FieldCount, len(rs))
	return nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	u, err := r.queries.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("get user: %w", err)
	}
	return auth.User{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash}, nil
}

func (r *SQLiteRepository) SaveUser(ctx context.Context, email, passwordHash string) (auth.User, error) {
	u, err := r.queries.UpsertUser(ctx, strings.TrimSpace(email), passwordHash)
	if err != nil {
		return auth.User{}, fmt.Errorf("save user: %w", err)
	}
	return auth.User{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash}, nil
}

func notFound(op string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", op, id, records.ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", op, id, err)
}

func toParams(rec core.ActivityRecord) ActivityParams {
	return ActivityParams{
		EndUser:           rec.EndUser,
		CustomerName:      rec.CustomerName,
		VendorName:        rec.VendorName,
		WorkLocation:      rec.WorkLocation,
		Personnel:         rec.Personnel,
		Activity:          rec.Activity,
		ActivityDate:      rec.ActivityDate.String(),
		ActivityCompleted: rec.ActivityCompleted,
		PoStatus:          string(rec.POStatus),
		Invoiced:          rec.Invoiced,
		InvoiceNumber:     rec.InvoiceNumber,
		PaymentStatus:     string(rec.PaymentStatus),
		ReportsPending:    rec.ReportsPending,
		Charges:           string(rec.Charges),
	}
}

func fromRow(a Activity) core.ActivityRecord {
	return core.ActivityRecord{
		ID:                a.ID,
		EndUser:           a.EndUser,
		CustomerName:      a.CustomerName,
		VendorName:        a.VendorName,
		WorkLocation:      a.WorkLocation,
		Personnel:         a.Personnel,
		Activity:          a.Activity,
		ActivityDate:      core.LenientDate(a.ActivityDate),
		ActivityCompleted: a.ActivityCompleted,
		POStatus:          core.POStatus(a.PoStatus),
		Invoiced:          a.Invoiced,
		InvoiceNumber:     a.InvoiceNumber,
		PaymentStatus:     core.PaymentStatus(a.PaymentStatus),
		ReportsPending:    a.ReportsPending,
		Charges:           core.Charges(a.Charges),
	}
}
