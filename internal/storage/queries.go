package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries runs the parameterized statements for the activities and users
// tables.
type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Activity struct {
	ID                int64
	EndUser           string
	CustomerName      string
	VendorName        string
	WorkLocation      string
	Personnel         string
	Activity          string
	ActivityDate      string
	ActivityCompleted bool
	PoStatus          string
	Invoiced          bool
	InvoiceNumber     string
	PaymentStatus     string
	ReportsPending    bool
	Charges           string
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
}

const activityColumns = `id, end_user, customer_name, vendor_name, work_location, personnel, activity,
activity_date, activity_completed, po_status, invoiced, invoice_number, payment_status,
reports_pending, charges`

func scanActivity(row interface{ Scan(...interface{}) error }) (Activity, error) {
	var i Activity
	err := row.Scan(
		&i.ID,
		&i.EndUser,
		&i.CustomerName,
		&i.VendorName,
		&i.WorkLocation,
		&i.Personnel,
		&i.Activity,
		&i.ActivityDate,
		&i.ActivityCompleted,
		&i.PoStatus,
		&i.Invoiced,
		&i.InvoiceNumber,
		&i.PaymentStatus,
		&i.ReportsPending,
		&i.Charges,
	)
	return i, err
}

const listActivities = `-- name: ListActivities :many
SELECT ` + activityColumns + `
FROM activities
WHERE (?1 = 0 OR activity_completed = ?2)
  AND (?3 = '' OR personnel = ?3)
ORDER BY activity_date DESC, id DESC`

type ListActivitiesParams struct {
	FilterStatus bool
	Completed    bool
	Personnel    string
}

func (q *Queries) ListActivities(ctx context.Context, arg ListActivitiesParams) ([]Activity, error) {
	rows, err := q.db.QueryContext(ctx, listActivities, arg.FilterStatus, arg.Completed, arg.Personnel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Activity
	for rows.Next() {
		i, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getActivity = `-- name: GetActivity :one
SELECT ` + activityColumns + `
FROM activities
WHERE id = ?`

func (q *Queries) GetActivity(ctx context.Context, id int64) (Activity, error) {
	row := q.db.QueryRowContext(ctx, getActivity, id)
	return scanActivity(row)
}

const createActivity = `-- name: CreateActivity :one
INSERT INTO activities (
    end_user, customer_name, vendor_name, work_location, personnel, activity,
    activity_date, activity_completed, po_status, invoiced, invoice_number,
    payment_status, reports_pending, charges
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + activityColumns

type ActivityParams struct {
	EndUser           string
	CustomerName      string
	VendorName        string
	WorkLocation      string
	Personnel         string
	Activity          string
	ActivityDate      string
	ActivityCompleted bool
	PoStatus          string
	Invoiced          bool
	InvoiceNumber     string
	PaymentStatus     string
	ReportsPending    bool
	Charges           string
}

func (q *Queries) CreateActivity(ctx context.Context, arg ActivityParams) (Activity, error) {
	row := q.db.QueryRowContext(ctx, createActivity,
		arg.EndUser,
		arg.CustomerName,
		arg.VendorName,
		arg.WorkLocation,
		arg.Personnel,
		arg.Activity,
		arg.ActivityDate,
		arg.ActivityCompleted,
		arg.PoStatus,
		arg.Invoiced,
		arg.InvoiceNumber,
		arg.PaymentStatus,
		arg.ReportsPending,
		arg.Charges,
	)
	return scanActivity(row)
}

const updateActivity = `-- name: UpdateActivity :one
UPDATE activities SET
    end_user = ?, customer_name = ?, vendor_name = ?, work_location = ?,
    personnel = ?, activity = ?, activity_date = ?, activity_completed = ?,
    po_status = ?, invoiced = ?, invoice_number = ?, payment_status = ?,
    reports_pending = ?, charges = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + activityColumns

func (q *Queries) UpdateActivity(ctx context.Context, id int64, arg ActivityParams) (Activity, error) {
	row := q.db.QueryRowContext(ctx, updateActivity,
		arg.EndUser,
		arg.CustomerName,
		arg.VendorName,
		arg.WorkLocation,
		arg.Personnel,
		arg.Activity,
		arg.ActivityDate,
		arg.ActivityCompleted,
		arg.PoStatus,
		arg.Invoiced,
		arg.InvoiceNumber,
		arg.PaymentStatus,
		arg.ReportsPending,
		arg.Charges,
		id,
	)
	return scanActivity(row)
}

const deleteActivity = `-- name: DeleteActivity :execrows
DELETE FROM activities WHERE id = ?`

func (q *Queries) DeleteActivity(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteActivity, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listPersonnel = `-- name: ListPersonnel :many
SELECT DISTINCT TRIM(personnel) AS name
FROM activities
WHERE TRIM(personnel) <> ''
ORDER BY name`

func (q *Queries) ListPersonnel(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listPersonnel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countActivities = `-- name: CountActivities :one
SELECT COUNT(*) FROM activities`

func (q *Queries) CountActivities(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countActivities).Scan(&n)
	return n, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, email, password_hash FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var i User
	err := q.db.QueryRowContext(ctx, getUserByEmail, email).Scan(&i.ID, &i.Email, &i.PasswordHash)
	return i, err
}

const upsertUser = `-- name: UpsertUser :one
INSERT INTO users (email, password_hash) VALUES (?, ?)
ON CONFLICT(email) DO UPDATE SET password_hash = excluded.password_hash
RETURNING id, email, password_hash`

func (q *Queries) UpsertUser(ctx context.Context, email, passwordHash string) (User, error) {
	var i User
	err := q.db.QueryRowContext(ctx, upsertUser, email, passwordHash).Scan(&i.ID, &i.Email, &i.PasswordHash)
	return i, err
}
