package fees

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts one ledger transaction. The ledger is append-only;
// there is no update or delete path.
func (r *Repository) Append(ctx context.Context, tx Transaction) (Transaction, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO fee_transactions (student_id, kind, amount_cents, description, method, reference, recorded_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		tx.StudentID, string(tx.Kind), tx.AmountCents, tx.Description, tx.Method, tx.Reference, tx.RecordedBy).
		Scan(&tx.ID, &tx.CreatedAt)
	return tx, err
}

// ListForStudent returns a student's full ledger, newest first.
func (r *Repository) ListForStudent(ctx context.Context, studentID int64) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_id, kind, amount_cents, description, method, reference, recorded_by, created_at
		 FROM fee_transactions WHERE student_id = $1 ORDER BY created_at DESC, id DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Transaction
	for rows.Next() {
		var tx Transaction
		var kind string
		if err := rows.Scan(&tx.ID, &tx.StudentID, &kind, &tx.AmountCents, &tx.Description, &tx.Method, &tx.Reference, &tx.RecordedBy, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Kind = TxKind(kind)
		result = append(result, tx)
	}
	return result, rows.Err()
}

// Get returns one transaction by id.
func (r *Repository) Get(ctx context.Context, id int64) (Transaction, error) {
	var tx Transaction
	var kind string
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, kind, amount_cents, description, method, reference, recorded_by, created_at
		 FROM fee_transactions WHERE id = $1`, id).
		Scan(&tx.ID, &tx.StudentID, &kind, &tx.AmountCents, &tx.Description, &tx.Method, &tx.Reference, &tx.RecordedBy, &tx.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, shared.ErrNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	tx.Kind = TxKind(kind)
	return tx, nil
}

// Summary computes the per-kind totals for one student.
func (r *Repository) Summary(ctx context.Context, studentID int64) (AccountSummary, error) {
	summary := AccountSummary{StudentID: studentID}
	err := r.pool.QueryRow(ctx,
		`SELECT
		   COALESCE(SUM(amount_cents) FILTER (WHERE kind = 'charge'), 0),
		   COALESCE(SUM(amount_cents) FILTER (WHERE kind = 'payment'), 0),
		   COALESCE(SUM(amount_cents) FILTER (WHERE kind = 'adjustment'), 0)
		 FROM fee_transactions WHERE student_id = $1`, studentID).
		Scan(&summary.ChargedCents, &summary.PaidCents, &summary.AdjustedCents)
	return summary, err
}

// AccountRows returns the accounts overview joined with students,
// ordered by outstanding balance descending.
func (r *Repository) AccountRows(ctx context.Context, limit, offset int) ([]AccountRow, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM students`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.full_name, s.class_name, s.admission_no,
		   COALESCE(SUM(CASE t.kind
		     WHEN 'charge' THEN t.amount_cents
		     ELSE -t.amount_cents END), 0) AS balance
		 FROM students s
		 LEFT JOIN fee_transactions t ON t.student_id = s.id
		 GROUP BY s.id, s.full_name, s.class_name, s.admission_no
		 ORDER BY balance DESC, s.full_name
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var result []AccountRow
	for rows.Next() {
		var row AccountRow
		if err := rows.Scan(&row.StudentID, &row.StudentName, &row.ClassName, &row.AdmissionNo, &row.BalanceCents); err != nil {
			return nil, 0, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Outstanding returns accounts whose balance exceeds the threshold.
func (r *Repository) Outstanding(ctx context.Context, minBalanceCents int64, limit int) ([]AccountRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.full_name, s.class_name, s.admission_no,
		   SUM(CASE t.kind WHEN 'charge' THEN t.amount_cents ELSE -t.amount_cents END) AS balance
		 FROM students s
		 JOIN fee_transactions t ON t.student_id = s.id
		 GROUP BY s.id, s.full_name, s.class_name, s.admission_no
		 HAVING SUM(CASE t.kind WHEN 'charge' THEN t.amount_cents ELSE -t.amount_cents END) > $1
		 ORDER BY balance DESC
		 LIMIT $2`, minBalanceCents, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []AccountRow
	for rows.Next() {
		var row AccountRow
		if err := rows.Scan(&row.StudentID, &row.StudentName, &row.ClassName, &row.AdmissionNo, &row.BalanceCents); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// RevenueByMonth aggregates collected payments per calendar month.
func (r *Repository) RevenueByMonth(ctx context.Context, from, to time.Time) ([]RevenueRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT date_trunc('month', created_at) AS month, SUM(amount_cents)
		 FROM fee_transactions
		 WHERE kind = 'payment' AND created_at >= $1 AND created_at < $2
		 GROUP BY month ORDER BY month`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []RevenueRow
	for rows.Next() {
		var row RevenueRow
		if err := rows.Scan(&row.Month, &row.Cents); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
