package session

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/ticketchief/checkout-gateway/internal/checkout"
	"github.com/ticketchief/checkout-gateway/internal/model"
	"github.com/ticketchief/checkout-gateway/internal/seatmap"
)

type nopSource struct{}

func (nopSource) SeatMap(context.Context, string) (*model.SeatMap, error) {
	return &model.SeatMap{EventID: "event-1", Seats: map[string]model.Seat{}}, nil
}

func (nopSource) OpenStream(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(&neverReader{}), nil
}

type neverReader struct{}

func (*neverReader) Read([]byte) (int, error) { return 0, io.EOF }

type nopReserver struct{}

func (nopReserver) Reserve(context.Context, string, string, []string) (*model.Reservation, error) {
	return &model.Reservation{ID: "res-1"}, nil
}

type nopOrders struct{}

func (nopOrders) Create(context.Context, string, []model.OrderItem) (int64, error) { return 1, nil }
func (nopOrders) Finalize(context.Context, int64) (string, error)                  { return "corr-1", nil }

type nopPayments struct{}

func (nopPayments) Session(context.Context, string) (*model.PaymentSession, error) {
	return &model.PaymentSession{}, nil
}

func (nopPayments) SubmitCard(context.Context, string, model.CardDetails) (*model.CardAttemptResult, error) {
	return &model.CardAttemptResult{Status: model.AttemptSuccess}, nil
}

func countingFactory(created *int) Factory {
	return func(userID string) (*seatmap.Synchronizer, *checkout.Coordinator) {
		*created++
		syncer := seatmap.NewSynchronizer(nopSource{})
		coord := checkout.New(userID, nopReserver{}, nopOrders{}, nopPayments{}, syncer)
		return syncer, coord
	}
}

func TestManagerGet(t *testing.T) {
	var created int
	m := NewManager(countingFactory(&created), time.Hour)
	defer m.Close()

	s1 := m.Get("user-1")
	s2 := m.Get("user-1")
	if s1 != s2 {
		t.Fatal("expected the same session for repeated gets")
	}
	if created != 1 {
		t.Fatalf("expected one session created, got %d", created)
	}

	s3 := m.Get("user-2")
	if s3 == s1 {
		t.Fatal("expected distinct sessions per user")
	}
	if created != 2 {
		t.Fatalf("expected two sessions created, got %d", created)
	}
}

func TestManagerEvictsIdleSessions(t *testing.T) {
	var created int
	m := NewManager(countingFactory(&created), 10*time.Millisecond)
	defer m.Close()

	m.Get("user-1")
	time.Sleep(25 * time.Millisecond)

	// Any Get sweeps; the idle session must be rebuilt from scratch.
	m.Get("user-1")
	if created != 2 {
		t.Fatalf("expected idle session evicted and recreated, got %d creations", created)
	}
}

func TestSessionSelection(t *testing.T) {
	var created int
	m := NewManager(countingFactory(&created), time.Hour)
	defer m.Close()

	s := m.Get("user-1")
	s.SetSelection([]string{" a1", "a2 "})
	got := s.Selection()
	if len(got) != 2 || got[0] != "A1" || got[1] != "A2" {
		t.Fatalf("expected normalized selection, got %v", got)
	}

	got[0] = "Z9" // callers get a copy
	if s.Selection()[0] != "A1" {
		t.Fatal("selection must not be mutable through the returned slice")
	}

	s.SetSelection(nil)
	if len(s.Selection()) != 0 {
		t.Fatal("expected selection cleared")
	}
}
