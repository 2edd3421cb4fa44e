package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ticketchief/checkout-gateway/internal/client"
	"github.com/ticketchief/checkout-gateway/internal/model"
	"github.com/ticketchief/checkout-gateway/internal/queue"
)

// fakeClock advances by the slept duration so the session backoff runs
// instantly in tests.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

type fakeReserver struct {
	res      *model.Reservation
	err      error
	calls    int
	gotSeats []string
}

func (f *fakeReserver) Reserve(_ context.Context, eventID, userID string, seatIDs []string) (*model.Reservation, error) {
	f.calls++
	f.gotSeats = append([]string(nil), seatIDs...)
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		return f.res, nil
	}
	return &model.Reservation{
		ID:       "res-1",
		EventID:  eventID,
		SeatIDs:  seatIDs,
		HolderID: userID,
	}, nil
}

type fakeOrders struct {
	orderID       int64
	createErr     error
	correlationID string
	finalizeErr   error

	createCalls   int
	finalizeCalls int
	gotItems      []model.OrderItem
}

func (f *fakeOrders) Create(_ context.Context, _ string, items []model.OrderItem) (int64, error) {
	f.createCalls++
	f.gotItems = append([]model.OrderItem(nil), items...)
	if f.createErr != nil {
		return 0, f.createErr
	}
	return f.orderID, nil
}

func (f *fakeOrders) Finalize(_ context.Context, _ int64) (string, error) {
	f.finalizeCalls++
	if f.finalizeErr != nil {
		return "", f.finalizeErr
	}
	return f.correlationID, nil
}

// fakePayments answers Session from a queue of errors (nil meaning ready)
// and SubmitCard from a queue of results.  An exhausted session queue keeps
// returning its last entry.
type fakePayments struct {
	sessionErrs []error
	submits     []func() (*model.CardAttemptResult, error)

	sessionCalls int
	submitCalls  int
	gotCards     []model.CardDetails
}

func (f *fakePayments) Session(_ context.Context, correlationID string) (*model.PaymentSession, error) {
	f.sessionCalls++
	var err error
	if len(f.sessionErrs) > 0 {
		err = f.sessionErrs[0]
		if len(f.sessionErrs) > 1 {
			f.sessionErrs = f.sessionErrs[1:]
		}
	}
	if err != nil {
		return nil, err
	}
	return &model.PaymentSession{CorrelationID: correlationID, Status: "PENDING"}, nil
}

func (f *fakePayments) SubmitCard(_ context.Context, _ string, card model.CardDetails) (*model.CardAttemptResult, error) {
	f.submitCalls++
	f.gotCards = append(f.gotCards, card)
	if len(f.submits) == 0 {
		return &model.CardAttemptResult{Status: model.AttemptSuccess}, nil
	}
	next := f.submits[0]
	f.submits = f.submits[1:]
	return next()
}

func submitResult(r *model.CardAttemptResult) func() (*model.CardAttemptResult, error) {
	return func() (*model.CardAttemptResult, error) { return r, nil }
}

func submitError(err error) func() (*model.CardAttemptResult, error) {
	return func() (*model.CardAttemptResult, error) { return nil, err }
}

type fakeSeatView struct {
	mu      sync.Mutex
	view    *model.SeatMap
	reloads int
}

func (f *fakeSeatView) View() *model.SeatMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view.Clone()
}

func (f *fakeSeatView) Reload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return nil
}

type fakeJournal struct {
	records []model.CheckoutRecord
}

func (f *fakeJournal) Record(_ context.Context, rec model.CheckoutRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func availableView(basePrice int64, overrides map[string]int64) *fakeSeatView {
	seats := make(map[string]model.Seat)
	for _, row := range []byte{'A', 'B'} {
		for col := 1; col <= 10; col++ {
			id := string(row) + string(rune('0'+col))
			if col == 10 {
				id = string(row) + "10"
			}
			seats[id] = model.Seat{ID: id, Status: model.SeatAvailable, PriceCents: overrides[id]}
		}
	}
	return &fakeSeatView{view: &model.SeatMap{
		EventID:        "event-1",
		BasePriceCents: basePrice,
		Seats:          seats,
	}}
}

// harness bundles a coordinator with its fakes under the default test
// wiring: an instant clock, a journal and a captured publisher.
type harness struct {
	coord    *Coordinator
	clk      *fakeClock
	reserver *fakeReserver
	orders   *fakeOrders
	payments *fakePayments
	seats    *fakeSeatView
	journal  *fakeJournal
	events   []queue.CheckoutCompletedEvent
}

func newHarness(seats *fakeSeatView) *harness {
	h := &harness{
		clk:      newFakeClock(),
		reserver: &fakeReserver{},
		orders:   &fakeOrders{orderID: 41, correlationID: "corr-1"},
		payments: &fakePayments{},
		seats:    seats,
		journal:  &fakeJournal{},
	}
	h.coord = New("user-1", h.reserver, h.orders, h.payments, seats,
		WithClock(h.clk),
		WithJournal(h.journal),
		WithPublisher(func(_ context.Context, evt queue.CheckoutCompletedEvent) error {
			h.events = append(h.events, evt)
			return nil
		}),
	)
	return h
}

var testCard = model.CardDetails{Number: "4111111111111111", CVV: "123", Holder: "JANE DOE"}

func wantFailureCode(t *testing.T, err error, code FailureCode) *Failure {
	t.Helper()
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if failure.Code != code {
		t.Fatalf("expected failure code %s, got %s (%s)", code, failure.Code, failure.Message)
	}
	return failure
}

func TestRunHappyPath(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	res, err := h.coord.Run(context.Background(), []string{"A1", "A2", "A3"}, testCard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != StateSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", res.State)
	}
	if res.TotalCents != 3000 {
		t.Fatalf("expected total 3000 for three base-priced seats, got %d", res.TotalCents)
	}
	if res.OrderID != 41 || res.CorrelationID != "corr-1" {
		t.Fatalf("unexpected ids on result: order=%d corr=%s", res.OrderID, res.CorrelationID)
	}
	if res.Reservation == nil || res.Reservation.ID != "res-1" {
		t.Fatalf("expected reservation on result, got %+v", res.Reservation)
	}
	for _, it := range h.orders.gotItems {
		if it.UnitPriceCents != 1000 {
			t.Fatalf("expected base price on item %s, got %d", it.SeatID, it.UnitPriceCents)
		}
		if it.ReservationID != "res-1" {
			t.Fatalf("expected reservation id on item %s, got %q", it.SeatID, it.ReservationID)
		}
	}
	if got := h.coord.Status(); got != StateIdle {
		t.Fatalf("expected coordinator back at IDLE, got %s", got)
	}
	if h.seats.reloads != 1 {
		t.Fatalf("expected one seat reload after success, got %d", h.seats.reloads)
	}
	if len(h.events) != 1 {
		t.Fatalf("expected one completed event published, got %d", len(h.events))
	}
	evt := h.events[0]
	if evt.OrderID != 41 || evt.TotalAmountCents != 3000 || len(evt.SeatLabels) != 3 {
		t.Fatalf("unexpected published event: %+v", evt)
	}
	if len(h.journal.records) != 1 || h.journal.records[0].Outcome != string(StateSucceeded) {
		t.Fatalf("expected one SUCCEEDED journal record, got %+v", h.journal.records)
	}
}

func TestRunPriceResolution(t *testing.T) {
	t.Run("per-seat override wins over base price", func(t *testing.T) {
		h := newHarness(availableView(2000, map[string]int64{"A1": 2500}))
		res, err := h.coord.Run(context.Background(), []string{"A1", "A2"}, testCard)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if res.TotalCents != 4500 {
			t.Fatalf("expected 2500+2000=4500, got %d", res.TotalCents)
		}
	})

	t.Run("fixed default applies when no price is known", func(t *testing.T) {
		h := newHarness(availableView(0, nil))
		res, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if res.TotalCents != DefaultUnitPriceCents {
			t.Fatalf("expected fallback price %d, got %d", DefaultUnitPriceCents, res.TotalCents)
		}
	})
}

func TestRunValidationRejection(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	_, err := h.coord.Run(context.Background(), []string{"A1", "A3"}, testCard)
	failure := wantFailureCode(t, err, CodeValidation)
	if failure.Message == "" {
		t.Fatal("expected a rejection detail message")
	}
	if h.reserver.calls != 0 || h.orders.createCalls != 0 || h.payments.sessionCalls != 0 {
		t.Fatal("validation rejection must make no network calls")
	}
	if got := h.coord.Status(); got != StateIdle {
		t.Fatalf("expected IDLE after rejection, got %s", got)
	}
	if len(h.journal.records) != 1 || h.journal.records[0].FailureCode != string(CodeValidation) {
		t.Fatalf("expected a VALIDATION_ERROR journal record, got %+v", h.journal.records)
	}
}

func TestRunWithoutLoadedEvent(t *testing.T) {
	h := newHarness(&fakeSeatView{})
	_, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
	wantFailureCode(t, err, CodeValidation)
	if h.reserver.calls != 0 {
		t.Fatal("no reserve call expected without a loaded event")
	}
}

func TestRunReservationRejected(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	h.reserver.err = &client.APIError{StatusCode: 409, Detail: "seat A1 is no longer available"}

	_, err := h.coord.Run(context.Background(), []string{"A1", "A2"}, testCard)
	failure := wantFailureCode(t, err, CodeReservationRejected)
	if failure.Message != "seat A1 is no longer available" {
		t.Fatalf("expected backend detail verbatim, got %q", failure.Message)
	}
	if h.orders.createCalls != 0 {
		t.Fatal("no order must be created after a reservation denial")
	}
	if h.seats.reloads != 1 {
		t.Fatalf("expected a seat reload after the denial, got %d", h.seats.reloads)
	}
	if got := h.coord.Status(); got != StateIdle {
		t.Fatalf("expected IDLE after denial, got %s", got)
	}
}

func TestRunNormalizesSeatIDs(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	if _, err := h.coord.Run(context.Background(), []string{" a1 ", "a2"}, testCard); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(h.reserver.gotSeats) != 2 || h.reserver.gotSeats[0] != "A1" || h.reserver.gotSeats[1] != "A2" {
		t.Fatalf("expected normalized ids sent to reserve, got %v", h.reserver.gotSeats)
	}
}

func TestRunOrderCreationFails(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	h.orders.createErr = &client.APIError{StatusCode: 422, Detail: "reservation expired"}

	_, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
	failure := wantFailureCode(t, err, CodeOrderCreationFailed)
	if failure.Message != "reservation expired" {
		t.Fatalf("expected backend detail, got %q", failure.Message)
	}
	if h.orders.finalizeCalls != 0 {
		t.Fatal("no finalize expected after a failed create")
	}
}

func TestRunFinalizeFails(t *testing.T) {
	t.Run("error response aborts", func(t *testing.T) {
		h := newHarness(availableView(1000, nil))
		h.orders.finalizeErr = errors.New("connection refused")
		_, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
		wantFailureCode(t, err, CodePaymentSessionFailed)
	})

	t.Run("empty correlation id aborts", func(t *testing.T) {
		h := newHarness(availableView(1000, nil))
		h.orders.correlationID = ""
		_, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
		wantFailureCode(t, err, CodePaymentSessionFailed)
		if h.payments.sessionCalls != 0 {
			t.Fatal("no session poll expected without a correlation id")
		}
	})
}

func TestRunAwaitsSessionReadiness(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	h.payments.sessionErrs = []error{
		client.ErrSessionNotReady,
		client.ErrSessionNotReady,
		client.ErrSessionNotReady,
		nil,
	}

	res, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != StateSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", res.State)
	}
	if h.payments.sessionCalls != 4 {
		t.Fatalf("expected 4 session polls, got %d", h.payments.sessionCalls)
	}
	want := []time.Duration{150 * time.Millisecond, 225 * time.Millisecond, 337500 * time.Microsecond}
	if len(h.clk.slept) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %v", len(want), h.clk.slept)
	}
	for i, d := range want {
		if h.clk.slept[i] != d {
			t.Fatalf("sleep %d: expected %v, got %v", i, d, h.clk.slept[i])
		}
	}
}

func TestRunSessionTimeout(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	h.payments.sessionErrs = []error{client.ErrSessionNotReady}

	res, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
	wantFailureCode(t, err, CodePaymentSessionTimeout)
	if res.State != StatePaymentSessionPending {
		t.Fatalf("expected saga parked PAYMENT_SESSION_PENDING, got %s", res.State)
	}
	if res.OrderID != 41 || res.CorrelationID != "corr-1" {
		t.Fatalf("expected order ids retained for manual retry, got order=%d corr=%s", res.OrderID, res.CorrelationID)
	}
	if h.payments.submitCalls != 0 {
		t.Fatal("no card submission expected on timeout")
	}
	if got := h.coord.Status(); got != StatePaymentSessionPending {
		t.Fatalf("expected coordinator parked, got %s", got)
	}

	// Resume re-polls readiness and proceeds once the session exists.
	h.payments.sessionErrs = nil
	res, err = h.coord.Resume(context.Background(), testCard)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res.State != StateSucceeded {
		t.Fatalf("expected SUCCEEDED after resume, got %s", res.State)
	}
	if h.orders.createCalls != 1 || h.orders.finalizeCalls != 1 {
		t.Fatal("resume must not recreate or refinalize the order")
	}
}

func TestRunSessionLookupFails(t *testing.T) {
	t.Run("service error", func(t *testing.T) {
		h := newHarness(availableView(1000, nil))
		h.payments.sessionErrs = []error{&client.APIError{StatusCode: 500, Detail: "internal error"}}
		res, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
		wantFailureCode(t, err, CodePaymentServiceUnavailable)
		if res.State != StatePaymentSessionPending {
			t.Fatalf("expected saga parked, got %s", res.State)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		h := newHarness(availableView(1000, nil))
		h.payments.sessionErrs = []error{errors.New("connection reset")}
		_, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
		wantFailureCode(t, err, CodeNetwork)
	})
}

func TestRunRetryablePaymentFailure(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	h.payments.submits = []func() (*model.CardAttemptResult, error){
		submitResult(&model.CardAttemptResult{Status: model.AttemptFailed, Reason: "card declined", AttemptsRemaining: 1}),
	}

	res, err := h.coord.Run(context.Background(), []string{"A1", "A2"}, testCard)
	failure := wantFailureCode(t, err, CodePaymentFailedRetryable)
	if failure.Message != "card declined" {
		t.Fatalf("expected decline reason, got %q", failure.Message)
	}
	if res.State != StateFailedRetryable {
		t.Fatalf("expected FAILED_RETRYABLE, got %s", res.State)
	}
	if res.OrderID != 41 || res.CorrelationID != "corr-1" {
		t.Fatal("order and correlation ids must be retained for resubmission")
	}
	if res.AttemptsRemaining != 1 {
		t.Fatalf("expected 1 attempt remaining, got %d", res.AttemptsRemaining)
	}
	if got := h.coord.Status(); got != StateFailedRetryable {
		t.Fatalf("expected coordinator parked retryable, got %s", got)
	}

	// Resubmit runs only the card step with the new details.
	newCard := model.CardDetails{Number: "5555555555554444", CVV: "999", Holder: "JANE DOE"}
	res, err = h.coord.Resubmit(context.Background(), newCard)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if res.State != StateSucceeded {
		t.Fatalf("expected SUCCEEDED after resubmit, got %s", res.State)
	}
	if h.orders.createCalls != 1 || h.orders.finalizeCalls != 1 || h.reserver.calls != 1 {
		t.Fatal("resubmit must not repeat upstream saga steps")
	}
	if h.payments.submitCalls != 2 || h.payments.gotCards[1] != newCard {
		t.Fatalf("expected second submission with new card, got %d calls", h.payments.submitCalls)
	}
}

func TestRunTerminalPaymentFailure(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	h.payments.submits = []func() (*model.CardAttemptResult, error){
		submitResult(&model.CardAttemptResult{Status: model.AttemptFailed, Reason: "too many attempts", AttemptsRemaining: 0, IsFinal: true}),
	}

	res, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
	wantFailureCode(t, err, CodePaymentFailedTerminal)
	if res.State != StateFailedTerminal {
		t.Fatalf("expected FAILED_TERMINAL, got %s", res.State)
	}
	if got := h.coord.Status(); got != StateIdle {
		t.Fatalf("expected saga cleared to IDLE, got %s", got)
	}
	if h.seats.reloads != 1 {
		t.Fatalf("expected a seat reload after terminal failure, got %d", h.seats.reloads)
	}
	if _, err := h.coord.Resubmit(context.Background(), testCard); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable after terminal failure, got %v", err)
	}
	if len(h.events) != 0 {
		t.Fatal("no completed event must be published on failure")
	}
}

func TestRunExhaustedAttemptsAreTerminal(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	h.payments.submits = []func() (*model.CardAttemptResult, error){
		submitResult(&model.CardAttemptResult{Status: model.AttemptFailed, Reason: "card declined", AttemptsRemaining: 0}),
	}
	_, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
	wantFailureCode(t, err, CodePaymentFailedTerminal)
}

func TestRunSubmitTransportErrorParksRetryable(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	h.payments.submits = []func() (*model.CardAttemptResult, error){
		submitError(errors.New("connection reset")),
	}

	res, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
	wantFailureCode(t, err, CodePaymentFailedRetryable)
	if res.State != StateFailedRetryable {
		t.Fatalf("expected FAILED_RETRYABLE on unknown outcome, got %s", res.State)
	}
	if res.OrderID != 41 {
		t.Fatal("order id must be retained when the attempt outcome is unknown")
	}
}

func TestRunRejectsConcurrentEntry(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	release := make(chan struct{})
	started := make(chan struct{})
	h.payments.submits = []func() (*model.CardAttemptResult, error){
		func() (*model.CardAttemptResult, error) {
			close(started)
			<-release
			return &model.CardAttemptResult{Status: model.AttemptSuccess}, nil
		},
	}

	errc := make(chan error, 1)
	go func() {
		_, err := h.coord.Run(context.Background(), []string{"A1"}, testCard)
		errc <- err
	}()

	<-started
	if _, err := h.coord.Run(context.Background(), []string{"A2"}, testCard); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for concurrent run, got %v", err)
	}
	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestResubmitWithoutParkedSaga(t *testing.T) {
	h := newHarness(availableView(1000, nil))
	if _, err := h.coord.Resubmit(context.Background(), testCard); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable from idle, got %v", err)
	}
	if _, err := h.coord.Resume(context.Background(), testCard); !errors.Is(err, ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable from idle resume, got %v", err)
	}
}
