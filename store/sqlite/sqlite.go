/*
Package sqlite provides a SQLite-backed implementation of plan.TxStore.

TABLES:
  plans:        Plan header plus the JSON configuration it was generated from
  installments: One row per installment, amounts stored as decimal TEXT

DECIMALS:
  Amounts are written with decimal.Decimal.String() and read back with
  decimal.NewFromString, so no value ever passes through float64.

MIGRATIONS:
  Schema lives in migrations/*.sql, embedded in the binary and applied by
  golang-migrate on New().

CONCURRENCY:
  The pool is limited to one connection and writes take the store mutex.
  Settlement serialization per plan is the caller's job (plan.Service).

USAGE:
  store, err := sqlite.New("./data/payplan.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := plan.NewService(store, logger, recorder)

SEE ALSO:
  - plan/store.go: Interface definitions and ApplySettlement
  - plan/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payplan-engine/factory"
	"github.com/warp/payplan-engine/plan"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements plan.TxStore using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.PlanFactory
}

// New opens (or creates) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and avoids
	// SQLITE_BUSY between our own writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, factory: factory.NewPlanFactory()}
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
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	defer src.Close()

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	// m.Close would close s.db through the driver; only the source is ours
	// to release here.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// PLANS
// =============================================================================

// SavePlan inserts the plan and all its installments in one transaction.
func (s *Store) SavePlan(ctx context.Context, p plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := s.savePlan(ctx, sqlTx, p); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) savePlan(ctx context.Context, q querier, p plan.Plan) error {
	configJSON, err := s.factory.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("failed to encode plan config: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO plans (id, name, kind, config_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Config.Kind, configJSON, formatTime(p.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return plan.ErrDuplicatePlan
		}
		return fmt.Errorf("failed to insert plan: %w", err)
	}

	for _, inst := range p.Installments {
		if err := insertInstallment(ctx, q, p.ID, inst); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LoadPlan(ctx context.Context, id plan.PlanID) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadPlan(ctx, s.db, id)
}

func (s *Store) loadPlan(ctx context.Context, q querier, id plan.PlanID) (*plan.Plan, error) {
	var (
		p          = plan.Plan{ID: id}
		configJSON string
		createdAt  string
	)
	err := q.QueryRowContext(ctx,
		"SELECT name, config_json, created_at FROM plans WHERE id = ?", id,
	).Scan(&p.Name, &configJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, plan.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	var pj factory.PlanJSON
	if err := json.Unmarshal([]byte(configJSON), &pj); err != nil {
		return nil, fmt.Errorf("failed to decode plan config: %w", err)
	}
	if p.Config, err = s.factory.FromJSON(pj); err != nil {
		return nil, fmt.Errorf("stored plan config: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("plan %s created_at: %w", id, err)
	}

	p.Installments, err = loadInstallments(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]plan.PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPlans(ctx, s.db)
}

func listPlans(ctx context.Context, q querier) ([]plan.PlanRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.name, p.kind, p.created_at, COUNT(i.id)
		FROM plans p
		LEFT JOIN installments i ON i.plan_id = p.id
		GROUP BY p.id
		ORDER BY p.created_at ASC, p.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	records := []plan.PlanRecord{}
	for rows.Next() {
		var (
			r         plan.PlanRecord
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Kind, &createdAt, &r.InstallmentCount); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("plan %s created_at: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) DeletePlan(ctx context.Context, id plan.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePlan(ctx, s.db, id)
}

func deletePlan(ctx context.Context, q querier, id plan.PlanID) error {
	res, err := q.ExecContext(ctx, "DELETE FROM plans WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return requireRow(res, plan.ErrPlanNotFound)
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

func (s *Store) InsertInstallment(ctx context.Context, planID plan.PlanID, inst plan.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertInstallment(ctx, s.db, planID, inst)
}

func insertInstallment(ctx context.Context, q querier, planID plan.PlanID, inst plan.Installment) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO installments
		(id, plan_id, ord, total_in_plan, due_date, due_amount, amount_paid, paid, paid_at, kind, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inst.ID,
		planID,
		inst.Order,
		inst.TotalInPlan,
		inst.DueDate.String(),
		inst.DueAmount.String(),
		inst.AmountPaid.String(),
		inst.Paid,
		nullTime(inst.PaidAt),
		inst.Kind,
		inst.Notes,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return plan.ErrPlanNotFound
		}
		return fmt.Errorf("failed to insert installment: %w", err)
	}
	return nil
}

func (s *Store) UpdateInstallment(ctx context.Context, planID plan.PlanID, inst plan.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateInstallment(ctx, s.db, planID, inst)
}

func updateInstallment(ctx context.Context, q querier, planID plan.PlanID, inst plan.Installment) error {
	res, err := q.ExecContext(ctx, `
		UPDATE installments
		SET ord = ?, total_in_plan = ?, due_date = ?, due_amount = ?, amount_paid = ?,
		    paid = ?, paid_at = ?, kind = ?, notes = ?
		WHERE id = ? AND plan_id = ?
	`,
		inst.Order,
		inst.TotalInPlan,
		inst.DueDate.String(),
		inst.DueAmount.String(),
		inst.AmountPaid.String(),
		inst.Paid,
		nullTime(inst.PaidAt),
		inst.Kind,
		inst.Notes,
		inst.ID,
		planID,
	)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	return requireRow(res, plan.ErrInstallmentNotFound)
}

func (s *Store) DeleteInstallment(ctx context.Context, planID plan.PlanID, id plan.InstallmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteInstallment(ctx, s.db, planID, id)
}

func deleteInstallment(ctx context.Context, q querier, planID plan.PlanID, id plan.InstallmentID) error {
	res, err := q.ExecContext(ctx, "DELETE FROM installments WHERE id = ? AND plan_id = ?", id, planID)
	if err != nil {
		return fmt.Errorf("failed to delete installment: %w", err)
	}
	return requireRow(res, plan.ErrInstallmentNotFound)
}

func (s *Store) SetTotalInPlan(ctx context.Context, planID plan.PlanID, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setTotalInPlan(ctx, s.db, planID, n)
}

func setTotalInPlan(ctx context.Context, q querier, planID plan.PlanID, n int) error {
	_, err := q.ExecContext(ctx, "UPDATE installments SET total_in_plan = ? WHERE plan_id = ?", n, planID)
	if err != nil {
		return fmt.Errorf("failed to update installment count: %w", err)
	}
	return nil
}

func loadInstallments(ctx context.Context, q querier, planID plan.PlanID) ([]plan.Installment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, ord, total_in_plan, due_date, due_amount, amount_paid, paid, paid_at, kind, notes
		FROM installments
		WHERE plan_id = ?
		ORDER BY due_date ASC, ord ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var installments []plan.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

func scanInstallment(rows *sql.Rows) (plan.Installment, error) {
	var (
		inst       plan.Installment
		dueDate    string
		dueAmount  string
		amountPaid string
		paidAt     sql.NullString
	)

	err := rows.Scan(
		&inst.ID, &inst.Order, &inst.TotalInPlan, &dueDate, &dueAmount,
		&amountPaid, &inst.Paid, &paidAt, &inst.Kind, &inst.Notes,
	)
	if err != nil {
		return inst, fmt.Errorf("failed to scan installment: %w", err)
	}

	if inst.DueDate, err = plan.ParseDate(dueDate); err != nil {
		return inst, err
	}
	if inst.DueAmount, err = decimal.NewFromString(dueAmount); err != nil {
		return inst, fmt.Errorf("installment %s due_amount: %w", inst.ID, err)
	}
	if inst.AmountPaid, err = decimal.NewFromString(amountPaid); err != nil {
		return inst, fmt.Errorf("installment %s amount_paid: %w", inst.ID, err)
	}
	if paidAt.Valid {
		t, err := parseTime(paidAt.String)
		if err != nil {
			return inst, fmt.Errorf("installment %s paid_at: %w", inst.ID, err)
		}
		inst.PaidAt = &t
	}
	return inst, nil
}

// =============================================================================
// TRANSACTIONAL STORE (plan.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store plan.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every call through the open *sql.Tx. With a single pooled
// connection, touching s.db here would deadlock.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) SavePlan(ctx context.Context, p plan.Plan) error {
	return ts.parent.savePlan(ctx, ts.tx, p)
}

func (ts *txStore) LoadPlan(ctx context.Context, id plan.PlanID) (*plan.Plan, error) {
	return ts.parent.loadPlan(ctx, ts.tx, id)
}

func (ts *txStore) ListPlans(ctx context.Context) ([]plan.PlanRecord, error) {
	return listPlans(ctx, ts.tx)
}

func (ts *txStore) DeletePlan(ctx context.Context, id plan.PlanID) error {
	return deletePlan(ctx, ts.tx, id)
}

func (ts *txStore) InsertInstallment(ctx context.Context, planID plan.PlanID, inst plan.Installment) error {
	return insertInstallment(ctx, ts.tx, planID, inst)
}

func (ts *txStore) UpdateInstallment(ctx context.Context, planID plan.PlanID, inst plan.Installment) error {
	return updateInstallment(ctx, ts.tx, planID, inst)
}

func (ts *txStore) DeleteInstallment(ctx context.Context, planID plan.PlanID, id plan.InstallmentID) error {
	return deleteInstallment(ctx, ts.tx, planID, id)
}

func (ts *txStore) SetTotalInPlan(ctx context.Context, planID plan.PlanID, n int) error {
	return setTotalInPlan(ctx, ts.tx, planID, n)
}

// =============================================================================
// HELPERS
// =============================================================================

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique)
}

func isForeignKeyError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
