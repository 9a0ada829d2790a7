package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/availability"
	"github.com/harborview/reservations/internal/config"
	"github.com/harborview/reservations/internal/domain"
	"github.com/harborview/reservations/internal/ledger"
	"github.com/harborview/reservations/internal/lifecycle"
	"github.com/harborview/reservations/internal/observability"
	"github.com/harborview/reservations/internal/payments"
	"github.com/harborview/reservations/internal/policy"
	"github.com/harborview/reservations/internal/pricing"
)

type fakeCatalog struct {
	rooms map[uuid.UUID]domain.Room
	types map[uuid.UUID]domain.RoomType
}

func (c *fakeCatalog) Room(ctx context.Context, id uuid.UUID) (domain.Room, error) {
	room, ok := c.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	return room, nil
}

func (c *fakeCatalog) RoomType(ctx context.Context, id uuid.UUID) (domain.RoomType, error) {
	rt, ok := c.types[id]
	if !ok {
		return domain.RoomType{}, domain.ErrNotFound
	}
	return rt, nil
}

func (c *fakeCatalog) addRoom(rate int64, capacity int) uuid.UUID {
	typeID := uuid.New()
	roomID := uuid.New()
	c.types[typeID] = domain.RoomType{ID: typeID, Name: "standard", NightlyRate: rate, Capacity: capacity}
	c.rooms[roomID] = domain.Room{ID: roomID, RoomTypeID: typeID, Number: "101"}
	return roomID
}

type apiFixture struct {
	server   *httptest.Server
	catalog  *fakeCatalog
	ledger   *ledger.MemoryLedger
	provider *payments.FakeProvider
	keySeq   int
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := observability.NewLogger()
	catalog := &fakeCatalog{rooms: make(map[uuid.UUID]domain.Room), types: make(map[uuid.UUID]domain.RoomType)}
	led := ledger.NewMemoryLedger()
	provider := payments.NewFakeProvider()
	coord := payments.NewCoordinator(provider, payments.NewMemoryAuthStore(), logger)
	svc := lifecycle.NewService(
		availability.NewMemoryIndex(),
		coord,
		pricing.NewCalculator(),
		policy.NewCancellationPolicy(),
		led,
		catalog,
		"USD",
		logger,
	)

	cfg := &config.Config{Currency: "USD"}
	h := NewHandlers(cfg, svc, led, nil, nil, nil, logger)
	router := SetupRouter(h, logger, nil, nil)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &apiFixture{server: server, catalog: catalog, ledger: led, provider: provider}
}

func (f *apiFixture) post(t *testing.T, path string, payload interface{}) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode: %v", err)
		}
	} else {
		body.WriteString("{}")
	}
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, &body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	f.keySeq++
	req.Header.Set("Idempotency-Key", fmt.Sprintf("test-key-%016d", f.keySeq))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func day(offset int) string {
	return time.Now().UTC().AddDate(0, 0, offset).Format("2006-01-02")
}

func (f *apiFixture) createReservation(t *testing.T, roomID uuid.UUID) reservationResponse {
	t.Helper()
	resp := f.post(t, "/v1/reservations", map[string]interface{}{
		"guest_id":    uuid.New(),
		"room_id":     roomID,
		"check_in":    day(10),
		"check_out":   day(12),
		"guest_count": 2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var out reservationResponse
	decode(t, resp, &out)
	return out
}

func TestCreateAndGetReservation(t *testing.T) {
	f := newAPIFixture(t)
	roomID := f.catalog.addRoom(10000, 4)

	created := f.createReservation(t, roomID)
	if created.Status != "CONFIRMED" {
		t.Fatalf("status = %s", created.Status)
	}
	if created.TotalAmount != 20000 {
		t.Fatalf("total = %d, want 20000", created.TotalAmount)
	}

	resp, err := http.Get(f.server.URL + "/v1/reservations/" + created.ID.String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got reservationResponse
	decode(t, resp, &got)
	if got.ID != created.ID || got.TotalAmount != created.TotalAmount {
		t.Fatalf("get mismatch: %+v", got)
	}
}

func TestCreateConflictMapsTo409(t *testing.T) {
	f := newAPIFixture(t)
	roomID := f.catalog.addRoom(10000, 4)
	f.createReservation(t, roomID)

	resp := f.post(t, "/v1/reservations", map[string]interface{}{
		"guest_id":    uuid.New(),
		"room_id":     roomID,
		"check_in":    day(11),
		"check_out":   day(13),
		"guest_count": 1,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestCreateDeclinedMapsTo402(t *testing.T) {
	f := newAPIFixture(t)
	roomID := f.catalog.addRoom(10000, 4)
	f.provider.FailAuthorize = 1

	resp := f.post(t, "/v1/reservations", map[string]interface{}{
		"guest_id":    uuid.New(),
		"room_id":     roomID,
		"check_in":    day(10),
		"check_out":   day(12),
		"guest_count": 1,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.StatusCode)
	}
}

func TestMissingIdempotencyKeyRejected(t *testing.T) {
	f := newAPIFixture(t)
	roomID := f.catalog.addRoom(10000, 4)

	body, _ := json.Marshal(map[string]interface{}{
		"guest_id": uuid.New(), "room_id": roomID,
		"check_in": day(10), "check_out": day(12), "guest_count": 1,
	})
	resp, err := http.Post(f.server.URL+"/v1/reservations", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestModifyUpgradeThenConfirm(t *testing.T) {
	f := newAPIFixture(t)
	roomID := f.catalog.addRoom(10000, 4)
	bigger := f.catalog.addRoom(15000, 4)
	created := f.createReservation(t, roomID)

	resp := f.post(t, "/v1/reservations/"+created.ID.String()+"/modify", map[string]interface{}{
		"room_id": bigger,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("modify status = %d, want 202", resp.StatusCode)
	}
	var staged struct {
		Reservation     reservationResponse `json:"reservation"`
		PaymentRequired bool                `json:"payment_required"`
		Delta           int64               `json:"delta"`
	}
	decode(t, resp, &staged)
	if !staged.PaymentRequired || staged.Delta != 10000 {
		t.Fatalf("staged = %+v", staged)
	}
	if staged.Reservation.RoomID != roomID {
		t.Fatal("upgrade applied before payment")
	}

	resp = f.post(t, "/v1/reservations/"+created.ID.String()+"/modify/confirm", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm status = %d", resp.StatusCode)
	}
	var confirmed reservationResponse
	decode(t, resp, &confirmed)
	if confirmed.RoomID != bigger || confirmed.TotalAmount != 30000 {
		t.Fatalf("confirmed = %+v", confirmed)
	}
	if confirmed.PendingPayment != nil {
		t.Fatal("pending payment not cleared")
	}
}

func TestCancelOutsideWindowRefunds(t *testing.T) {
	f := newAPIFixture(t)
	roomID := f.catalog.addRoom(10000, 4)
	created := f.createReservation(t, roomID)

	resp := f.post(t, "/v1/reservations/"+created.ID.String()+"/cancel", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}
	var cancelled reservationResponse
	decode(t, resp, &cancelled)
	if cancelled.Status != "REFUNDED" {
		t.Fatalf("status = %s, want REFUNDED", cancelled.Status)
	}

	resp = f.post(t, "/v1/reservations/"+created.ID.String()+"/cancel", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second cancel status = %d, want 409", resp.StatusCode)
	}
}

func TestPaymentCallbackIdempotent(t *testing.T) {
	f := newAPIFixture(t)
	roomID := f.catalog.addRoom(10000, 4)
	created := f.createReservation(t, roomID)

	res, err := f.ledger.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	for i := 0; i < 2; i++ {
		body, _ := json.Marshal(map[string]string{
			"authorization_id": res.PaymentRef,
			"status":           "captured",
		})
		resp, err := http.Post(f.server.URL+"/v1/payments/callback", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("Post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("callback status = %d", resp.StatusCode)
		}
	}

	body, _ := json.Marshal(map[string]string{"authorization_id": res.PaymentRef, "status": "mystery"})
	resp, err := http.Post(f.server.URL+"/v1/payments/callback", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown status mapped to %d, want 400", resp.StatusCode)
	}
}

func TestGetUnknownReservation404(t *testing.T) {
	f := newAPIFixture(t)
	resp, err := http.Get(f.server.URL + "/v1/reservations/" + uuid.NewString())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
