package crdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
	"github.com/harborview/reservations/internal/ledger"
	"github.com/harborview/reservations/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	SerializationFailureCode = "40001"
)

// Repository is the crdb-backed ledger and availability index. All writes go
// through SERIALIZABLE transactions; a serialization failure surfaces as
// domain.ErrSerializationFailure for the caller to retry.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) CreateReservation(ctx context.Context, res domain.Reservation, auth domain.PaymentAuthorization) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO reservations
				(id, guest_id, room_id, check_in, check_out, guest_count, status,
				 total_amount, currency, payment_ref, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, res.ID, res.GuestID, res.RoomID, res.Stay.CheckIn, res.Stay.CheckOut, res.GuestCount,
			res.Status, res.TotalAmount, res.Currency, res.PaymentRef, res.Version, res.CreatedAt, res.UpdatedAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO payment_authorizations
				(external_id, reservation_id, amount, currency, status, refunded_amount, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, auth.ExternalID, auth.ReservationID, auth.Amount, auth.Currency, auth.Status, auth.RefundedAmount, auth.CreatedAt, auth.UpdatedAt)
		if err != nil {
			return err
		}

		return r.insertEvent(ctx, tx, ledger.EventCreated, res)
	})
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, guest_id, room_id, check_in, check_out, guest_count, status,
		       total_amount, currency, payment_ref, checked_in_at,
		       pending_change, pending_settlement, version, created_at, updated_at
		FROM reservations WHERE id = $1
	`, id)
	res, err := scanReservation(row)
	if err == pgx.ErrNoRows {
		return domain.Reservation{}, errors.Wrapf(domain.ErrNotFound, "reservation %s", id)
	}
	return res, err
}

func (r *Repository) Update(ctx context.Context, res domain.Reservation, eventType string) (domain.Reservation, error) {
	pendingChange, pendingSettlement, err := marshalPending(res)
	if err != nil {
		return domain.Reservation{}, err
	}

	updated := res
	updated.Version = res.Version + 1
	updated.UpdatedAt = time.Now().UTC()

	err = r.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE reservations SET
				room_id = $2, check_in = $3, check_out = $4, guest_count = $5,
				status = $6, total_amount = $7, payment_ref = $8, checked_in_at = $9,
				pending_change = $10, pending_settlement = $11,
				version = $12, updated_at = $13
			WHERE id = $1 AND version = $14
		`, res.ID, res.RoomID, res.Stay.CheckIn, res.Stay.CheckOut, res.GuestCount,
			res.Status, res.TotalAmount, res.PaymentRef, res.CheckedInAt,
			pendingChange, pendingSettlement, updated.Version, updated.UpdatedAt, res.Version)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`, res.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return errors.Wrapf(domain.ErrNotFound, "reservation %s", res.ID)
			}
			return domain.ErrStaleVersion
		}
		return r.insertEvent(ctx, tx, eventType, updated)
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return updated, nil
}

func (r *Repository) ListSettlementPending(ctx context.Context, limit int) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, guest_id, room_id, check_in, check_out, guest_count, status,
		       total_amount, currency, payment_ref, checked_in_at,
		       pending_change, pending_settlement, version, created_at, updated_at
		FROM reservations WHERE pending_settlement IS NOT NULL
		ORDER BY updated_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *Repository) ApplyAuthorizationStatus(ctx context.Context, externalID string, status domain.AuthorizationStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_authorizations SET status = $2, updated_at = $3
		WHERE external_id = $1 AND status != $2
	`, externalID, status, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_authorizations WHERE external_id = $1)`, externalID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errors.Wrapf(domain.ErrNotFound, "authorization %s", externalID)
		}
		// same status redelivered; idempotent no-op
	}
	return nil
}

func (r *Repository) SweepPastStays(ctx context.Context, today time.Time) (int, error) {
	var swept int
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, guest_id, room_id, check_in, check_out, guest_count, status,
			       total_amount, currency, payment_ref, checked_in_at,
			       pending_change, pending_settlement, version, created_at, updated_at
			FROM reservations WHERE status = $1 AND check_out < $2
		`, domain.StatusConfirmed, today)
		if err != nil {
			return err
		}
		past, err := collectReservations(rows)
		if err != nil {
			return err
		}

		for _, res := range past {
			res.Status = domain.StatusCompleted
			res.Version++
			res.UpdatedAt = time.Now().UTC()
			_, err := tx.Exec(ctx, `
				UPDATE reservations SET status = $2, version = $3, updated_at = $4 WHERE id = $1
			`, res.ID, res.Status, res.Version, res.UpdatedAt)
			if err != nil {
				return err
			}
			if err := r.insertEvent(ctx, tx, ledger.EventCompleted, res); err != nil {
				return err
			}
			swept++
		}
		return nil
	})
	return swept, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (domain.Reservation, error) {
	var res domain.Reservation
	var pendingChange, pendingSettlement []byte
	err := row.Scan(
		&res.ID, &res.GuestID, &res.RoomID, &res.Stay.CheckIn, &res.Stay.CheckOut,
		&res.GuestCount, &res.Status, &res.TotalAmount, &res.Currency, &res.PaymentRef,
		&res.CheckedInAt, &pendingChange, &pendingSettlement, &res.Version,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return domain.Reservation{}, err
	}
	if len(pendingChange) > 0 {
		res.PendingChange = &domain.ChangeRequest{}
		if err := json.Unmarshal(pendingChange, res.PendingChange); err != nil {
			return domain.Reservation{}, err
		}
	}
	if len(pendingSettlement) > 0 {
		res.PendingSettlement = &domain.PendingSettlement{}
		if err := json.Unmarshal(pendingSettlement, res.PendingSettlement); err != nil {
			return domain.Reservation{}, err
		}
	}
	return res, nil
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()
	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func marshalPending(res domain.Reservation) ([]byte, []byte, error) {
	var pendingChange, pendingSettlement []byte
	var err error
	if res.PendingChange != nil {
		pendingChange, err = json.Marshal(res.PendingChange)
		if err != nil {
			return nil, nil, err
		}
	}
	if res.PendingSettlement != nil {
		pendingSettlement, err = json.Marshal(res.PendingSettlement)
		if err != nil {
			return nil, nil, err
		}
	}
	return pendingChange, pendingSettlement, nil
}
