package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/adapters/mongo"
	redisadapter "github.com/harborview/reservations/internal/adapters/redis"
	"github.com/harborview/reservations/internal/config"
	"github.com/harborview/reservations/internal/domain"
	"github.com/harborview/reservations/internal/idempotency"
	"github.com/harborview/reservations/internal/ledger"
	"github.com/harborview/reservations/internal/lifecycle"
	"github.com/harborview/reservations/internal/observability"
)

const dateLayout = "2006-01-02"
const readCacheTTL = 30 * time.Second

type Handlers struct {
	cfg       *config.Config
	lifecycle *lifecycle.Service
	ledger    ledger.Ledger
	redis     *redisadapter.Cache
	idemp     *idempotency.Idempotency
	audit     *mongo.AuditLogger
	logger    observability.Logger
}

func NewHandlers(cfg *config.Config, svc *lifecycle.Service, led ledger.Ledger, redis *redisadapter.Cache, idemp *idempotency.Idempotency, audit *mongo.AuditLogger, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:       cfg,
		lifecycle: svc,
		ledger:    led,
		redis:     redis,
		idemp:     idemp,
		audit:     audit,
		logger:    logger,
	}
}

type reservationResponse struct {
	ID          uuid.UUID `json:"reservation_id"`
	GuestID     uuid.UUID `json:"guest_id"`
	RoomID      uuid.UUID `json:"room_id"`
	CheckIn     string    `json:"check_in"`
	CheckOut    string    `json:"check_out"`
	GuestCount  int       `json:"guest_count"`
	Status      string    `json:"status"`
	TotalAmount int64     `json:"total_amount"`
	Currency    string    `json:"currency"`
	CheckedInAt *string   `json:"checked_in_at,omitempty"`

	PendingPayment *pendingPaymentResponse `json:"pending_payment,omitempty"`

	Version int64 `json:"version"`
}

type pendingPaymentResponse struct {
	NewAmount int64 `json:"new_amount"`
	Delta     int64 `json:"delta"`
}

func renderReservation(res domain.Reservation) reservationResponse {
	out := reservationResponse{
		ID:          res.ID,
		GuestID:     res.GuestID,
		RoomID:      res.RoomID,
		CheckIn:     res.Stay.CheckIn.Format(dateLayout),
		CheckOut:    res.Stay.CheckOut.Format(dateLayout),
		GuestCount:  res.GuestCount,
		Status:      string(res.Status),
		TotalAmount: res.TotalAmount,
		Currency:    res.Currency,
		Version:     res.Version,
	}
	if res.CheckedInAt != nil {
		at := res.CheckedInAt.Format(time.RFC3339)
		out.CheckedInAt = &at
	}
	if res.PendingChange != nil {
		out.PendingPayment = &pendingPaymentResponse{
			NewAmount: res.PendingChange.NewAmount,
			Delta:     res.PendingChange.Delta,
		}
	}
	return out
}

// writeError maps domain sentinels to HTTP statuses. Serialization failures
// surface as 409 so the client retries the whole request.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrPaymentDeclined):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrStaleVersion),
		errors.Is(err, domain.ErrSerializationFailure):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) []byte {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func (h *Handlers) replay(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.Header.Get("Idempotency-Key")
	if h.idemp == nil {
		return key, false
	}
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return key, true
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return key, true
	}
	return key, false
}

func (h *Handlers) remember(r *http.Request, key string, status int, body []byte) {
	if h.idemp == nil {
		return
	}
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: status, Result: body})
}

func (h *Handlers) invalidate(r *http.Request, id uuid.UUID) {
	if h.redis == nil {
		return
	}
	if err := h.redis.DropReservation(r.Context(), id); err != nil {
		h.logger.WithError(err).WithField("reservation_id", id).Warn("failed to drop cached reservation")
	}
}

func (h *Handlers) auditTransition(r *http.Request, action string, res domain.Reservation) {
	if h.audit == nil {
		return
	}
	principal := r.Header.Get("X-Principal")
	if principal == "" {
		principal = "guest"
	}
	h.audit.LogTransition(r.Context(), action, principal, res)
}

func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request) {
	key, done := h.replay(w, r)
	if done {
		return
	}

	var req struct {
		GuestID    uuid.UUID `json:"guest_id"`
		RoomID     uuid.UUID `json:"room_id"`
		CheckIn    string    `json:"check_in"`
		CheckOut   string    `json:"check_out"`
		GuestCount int       `json:"guest_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	checkIn, err := time.Parse(dateLayout, req.CheckIn)
	if err != nil {
		http.Error(w, "check_in must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	checkOut, err := time.Parse(dateLayout, req.CheckOut)
	if err != nil {
		http.Error(w, "check_out must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	res, err := h.lifecycle.Create(r.Context(), lifecycle.CreateParams{
		GuestID:    req.GuestID,
		RoomID:     req.RoomID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		GuestCount: req.GuestCount,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.auditTransition(r, "reservation.created", res)
	body := h.writeJSON(w, http.StatusCreated, renderReservation(res))
	h.remember(r, key, http.StatusCreated, body)
}

func (h *Handlers) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if h.redis != nil {
		cached, err := h.redis.GetReservation(r.Context(), id)
		if err != nil {
			h.logger.WithError(err).Warn("reservation cache read failed")
		}
		if cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(cached)
			return
		}
	}

	res, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	body := h.writeJSON(w, http.StatusOK, renderReservation(res))
	if h.redis != nil {
		if err := h.redis.SetReservation(r.Context(), id, body, readCacheTTL); err != nil {
			h.logger.WithError(err).Warn("reservation cache write failed")
		}
	}
}

func (h *Handlers) ModifyReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	key, done := h.replay(w, r)
	if done {
		return
	}

	var req struct {
		RoomID     *uuid.UUID `json:"room_id"`
		CheckIn    *string    `json:"check_in"`
		CheckOut   *string    `json:"check_out"`
		GuestCount *int       `json:"guest_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := lifecycle.ModifyParams{RoomID: req.RoomID, GuestCount: req.GuestCount}
	if req.CheckIn != nil {
		t, err := time.Parse(dateLayout, *req.CheckIn)
		if err != nil {
			http.Error(w, "check_in must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		params.CheckIn = &t
	}
	if req.CheckOut != nil {
		t, err := time.Parse(dateLayout, *req.CheckOut)
		if err != nil {
			http.Error(w, "check_out must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		params.CheckOut = &t
	}

	result, err := h.lifecycle.Modify(r.Context(), id, params)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(r, id)

	resp := struct {
		Reservation     reservationResponse `json:"reservation"`
		PaymentRequired bool                `json:"payment_required"`
		Delta           int64               `json:"delta"`
		NewAmount       int64               `json:"new_amount"`
	}{
		Reservation:     renderReservation(result.Reservation),
		PaymentRequired: result.PaymentRequired,
		Delta:           result.Delta,
		NewAmount:       result.NewAmount,
	}
	// a staged upgrade is accepted, not yet applied
	status := http.StatusOK
	action := "reservation.modified"
	if result.PaymentRequired {
		status = http.StatusAccepted
		action = "reservation.modification_staged"
	}
	h.auditTransition(r, action, result.Reservation)
	body := h.writeJSON(w, status, resp)
	h.remember(r, key, status, body)
}

func (h *Handlers) ConfirmModification(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reservation.modified", h.lifecycle.ConfirmModification)
}

func (h *Handlers) AbandonModification(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reservation.modification_abandoned", h.lifecycle.AbandonModification)
}

func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reservation.cancelled", h.lifecycle.Cancel)
}

func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reservation.checked_in", h.lifecycle.CheckIn)
}

func (h *Handlers) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reservation.checked_out", h.lifecycle.CheckOut)
}

// transition is the shared shape of the body-less POST transitions.
func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, action string, op func(ctx context.Context, id uuid.UUID) (domain.Reservation, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	key, done := h.replay(w, r)
	if done {
		return
	}

	res, err := op(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(r, id)
	h.auditTransition(r, action, res)
	body := h.writeJSON(w, http.StatusOK, renderReservation(res))
	h.remember(r, key, http.StatusOK, body)
}

// PaymentCallback ingests provider webhooks. Applying a status the ledger has
// already seen is a no-op, so provider redeliveries are harmless.
func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthorizationID string `json:"authorization_id"`
		Status          string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var status domain.AuthorizationStatus
	switch req.Status {
	case "authorized":
		status = domain.AuthAuthorized
	case "captured", "succeeded":
		status = domain.AuthCaptured
	case "refunded":
		status = domain.AuthRefunded
	case "failed":
		status = domain.AuthFailed
	default:
		http.Error(w, "unknown status "+req.Status, http.StatusBadRequest)
		return
	}

	if err := h.ledger.ApplyAuthorizationStatus(r.Context(), req.AuthorizationID, status); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
