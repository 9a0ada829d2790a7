package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Reserve takes an exclusive claim on the room for the stay. The overlap
// check and insert run in one SERIALIZABLE transaction, so two concurrent
// claims for overlapping stays on the same room cannot both commit: one of
// them fails with a serialization error and retries into a conflict.
func (r *Repository) Reserve(ctx context.Context, roomID uuid.UUID, stay domain.Stay, reservationID uuid.UUID) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO room_claims (id, room_id, reservation_id, check_in, check_out, status)
			SELECT $1, $2, $3, $4, $5, 'ACTIVE'
			WHERE NOT EXISTS (
				SELECT 1 FROM room_claims
				WHERE room_id = $2 AND status = 'ACTIVE'
				  AND reservation_id != $3
				  AND check_in < $5 AND $4 < check_out
			)
		`, uuid.New(), roomID, reservationID, stay.CheckIn, stay.CheckOut)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		return nil
	})
}

func (r *Repository) Release(ctx context.Context, roomID uuid.UUID, stay domain.Stay, reservationID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE room_claims SET status = 'RELEASED'
		WHERE room_id = $1 AND reservation_id = $2
		  AND check_in = $3 AND check_out = $4 AND status = 'ACTIVE'
	`, roomID, reservationID, stay.CheckIn, stay.CheckOut)
	return err
}
