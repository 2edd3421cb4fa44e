// Package checkout implements the reservation→order→payment saga for one
// shopper session.  The coordinator walks the steps sequentially, validating
// before any network call, and compensates for partial failure by
// reconciling the local seat view rather than by cross-service rollback:
// hold release on abandonment is the event service's responsibility through
// its hold TTL.
package checkout

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ticketchief/checkout-gateway/internal/client"
	"github.com/ticketchief/checkout-gateway/internal/clock"
	"github.com/ticketchief/checkout-gateway/internal/model"
	"github.com/ticketchief/checkout-gateway/internal/queue"
	"github.com/ticketchief/checkout-gateway/internal/retry"
	"github.com/ticketchief/checkout-gateway/internal/seatmap"
)

// State is the saga position.  Succeeded and FailedTerminal fully clear the
// saga and drop back to Idle; FailedRetryable and PaymentSessionPending park
// the saga with its order and correlation ids retained.
type State string

const (
	StateIdle                  State = "IDLE"
	StateValidating            State = "VALIDATING"
	StateReserving             State = "RESERVING"
	StateOrderCreated          State = "ORDER_CREATED"
	StatePaymentSessionPending State = "PAYMENT_SESSION_PENDING"
	StatePaymentSubmitting     State = "PAYMENT_SUBMITTING"
	StateSucceeded             State = "SUCCEEDED"
	StateFailedRetryable       State = "FAILED_RETRYABLE"
	StateFailedTerminal        State = "FAILED_TERMINAL"
)

// DefaultSessionPolicy is the backoff for awaiting payment-session
// readiness: 150ms growing 1.5x per step, capped at 1s, for at most 8s.
var DefaultSessionPolicy = retry.Policy{
	Initial:    150 * time.Millisecond,
	Multiplier: 1.5,
	Max:        time.Second,
	Deadline:   8 * time.Second,
}

// DefaultUnitPriceCents prices a seat when neither a per-seat override nor
// an event base price is known.
const DefaultUnitPriceCents = 1000

// SeatReserver creates holds at the event/seating service.
type SeatReserver interface {
	Reserve(ctx context.Context, eventID, userID string, seatIDs []string) (*model.Reservation, error)
}

// OrderPlacer creates and finalizes orders at the order service.
type OrderPlacer interface {
	Create(ctx context.Context, userID string, items []model.OrderItem) (int64, error)
	Finalize(ctx context.Context, orderID int64) (string, error)
}

// PaymentGateway looks up payment sessions and submits card attempts.
type PaymentGateway interface {
	Session(ctx context.Context, correlationID string) (*model.PaymentSession, error)
	SubmitCard(ctx context.Context, correlationID string, card model.CardDetails) (*model.CardAttemptResult, error)
}

// SeatView is the synchronizer surface the coordinator needs: the current
// view for validation and pricing, and a reload to reconcile after any step
// that may have changed authoritative seat state.
type SeatView interface {
	View() *model.SeatMap
	Reload(ctx context.Context) error
}

// Journal records how checkout attempts ended.  Recording is best-effort;
// failures are logged and never change the saga outcome.
type Journal interface {
	Record(ctx context.Context, rec model.CheckoutRecord) error
}

// PublishFunc emits a checkout.completed event for downstream consumers such
// as the notification service.  Best-effort, like the journal.
type PublishFunc func(ctx context.Context, evt queue.CheckoutCompletedEvent) error

// Coordinator runs the checkout saga for a single shopper session.  At most
// one saga is in flight at a time; concurrent entry returns ErrBusy.  There
// is no cancellation token for an in-flight saga — it runs to success,
// terminal failure, or the session-poll deadline — matching the observed
// contract of the system this gateway fronts.
type Coordinator struct {
	userID   string
	events   SeatReserver
	orders   OrderPlacer
	payments PaymentGateway
	seats    SeatView

	clk       clock.Clock
	policy    retry.Policy
	journal   Journal
	publish   PublishFunc
	unitPrice int64

	mu            sync.Mutex
	inFlight      bool
	state         State
	eventID       string
	seatIDs       []string
	reservation   *model.Reservation
	items         []model.OrderItem
	orderID       int64
	correlationID string
	attemptsLeft  int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock injects the clock used for backoff timing and journal
// timestamps.
func WithClock(clk clock.Clock) Option { return func(c *Coordinator) { c.clk = clk } }

// WithSessionPolicy overrides the payment-session readiness backoff.
func WithSessionPolicy(p retry.Policy) Option { return func(c *Coordinator) { c.policy = p } }

// WithJournal wires the checkout audit journal.
func WithJournal(j Journal) Option { return func(c *Coordinator) { c.journal = j } }

// WithPublisher wires the checkout.completed event publisher.
func WithPublisher(p PublishFunc) Option { return func(c *Coordinator) { c.publish = p } }

// WithDefaultUnitPrice overrides the last-resort seat price in minor units.
func WithDefaultUnitPrice(cents int64) Option {
	return func(c *Coordinator) {
		if cents > 0 {
			c.unitPrice = cents
		}
	}
}

// New constructs a coordinator for one shopper.  All four service
// dependencies must be non-nil.
func New(userID string, events SeatReserver, orders OrderPlacer, payments PaymentGateway, seats SeatView, opts ...Option) *Coordinator {
	if events == nil || orders == nil || payments == nil || seats == nil {
		panic("nil dependency passed to checkout.New")
	}
	c := &Coordinator{
		userID:    userID,
		events:    events,
		orders:    orders,
		payments:  payments,
		seats:     seats,
		clk:       clock.NewSystem(),
		policy:    DefaultSessionPolicy,
		unitPrice: DefaultUnitPriceCents,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result describes where a checkout attempt ended up.  Failure is nil only
// when State is Succeeded.  After a retryable failure or a session-poll
// timeout, OrderID and CorrelationID identify the order the shopper can
// still pay for.
type Result struct {
	State             State              `json:"state"`
	Reservation       *model.Reservation `json:"reservation,omitempty"`
	OrderID           int64              `json:"orderId,omitempty"`
	CorrelationID     string             `json:"correlationId,omitempty"`
	TotalCents        int64              `json:"totalCents,omitempty"`
	AttemptsRemaining int                `json:"attemptsRemaining,omitempty"`
	Failure           *Failure           `json:"-"`
}

// Status reports the saga position.
func (c *Coordinator) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run executes the full saga for the candidate seat selection: validate,
// reserve, build and create the order, request and await the payment
// session, then submit one card attempt.  Starting a new run while a
// previous order is parked retryable abandons that order; the backend
// releases its hold when the TTL passes.
//
// The returned Result always describes the final resting state; when the
// saga did not succeed the returned error is the *Failure also carried on
// the Result.
func (c *Coordinator) Run(ctx context.Context, seatIDs []string, card model.CardDetails) (*Result, error) {
	if err := c.enter(StateValidating); err != nil {
		return nil, err
	}
	defer c.leave()

	// Step 1: validate.  Any rejection aborts with no network call.
	view := c.seats.View()
	if view == nil || view.EventID == "" {
		return c.abort(ctx, failf(CodeValidation, "validation", nil, "no event loaded"))
	}
	if len(seatIDs) == 0 {
		return c.abort(ctx, failf(CodeValidation, "validation", nil, "no seats selected"))
	}
	if err := seatmap.Validate(seatIDs, view); err != nil {
		var rej *seatmap.Rejection
		if errors.As(err, &rej) {
			return c.abort(ctx, failf(CodeValidation, "validation", err, "%s", rej.Detail))
		}
		return c.abort(ctx, failf(CodeValidation, "validation", err, "selection is not valid"))
	}

	ids := seatmap.Normalize(seatIDs)
	c.mu.Lock()
	c.eventID = view.EventID
	c.seatIDs = ids
	c.reservation = nil
	c.items = nil
	c.orderID = 0
	c.correlationID = ""
	c.mu.Unlock()

	// Step 2: reserve.  A denial is fatal for this attempt and usually means
	// a losing race against another client, so the true state is reloaded
	// before control returns.
	c.setState(StateReserving)
	res, err := c.events.Reserve(ctx, view.EventID, c.userID, ids)
	if err != nil {
		c.reconcile(ctx)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return c.abort(ctx, failf(CodeReservationRejected, "seat reservation", err, "%s", apiErr.Detail))
		}
		return c.abort(ctx, failf(CodeNetwork, "seat reservation", err, "seat reservation failed"))
	}
	c.mu.Lock()
	c.reservation = res
	c.mu.Unlock()

	// Step 3: build the order.  Unit prices resolve once — per-seat override,
	// else event base price, else the fixed default — and are frozen from
	// here on.
	items := make([]model.OrderItem, 0, len(ids))
	for _, id := range ids {
		price := view.Seats[id].PriceCents
		if price == 0 {
			price = view.BasePriceCents
		}
		if price == 0 {
			price = c.unitPrice
		}
		items = append(items, model.OrderItem{
			EventID:        view.EventID,
			SeatID:         id,
			UnitPriceCents: price,
			ReservationID:  res.ID,
		})
	}
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()

	// Step 4: create the order.
	orderID, err := c.orders.Create(ctx, c.userID, items)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return c.abort(ctx, failf(CodeOrderCreationFailed, "order creation", err, "%s", apiErr.Detail))
		}
		return c.abort(ctx, failf(CodeNetwork, "order creation", err, "order creation failed"))
	}
	c.mu.Lock()
	c.orderID = orderID
	c.state = StateOrderCreated
	c.mu.Unlock()

	// Step 5: request the payment session.  No correlation id means no
	// session and no retry.  The seats are not released here: hold release
	// on abandonment is the event service's TTL contract.
	correlationID, err := c.orders.Finalize(ctx, orderID)
	if err != nil || correlationID == "" {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return c.abort(ctx, failf(CodePaymentSessionFailed, "payment session", err, "%s", apiErr.Detail))
		}
		return c.abort(ctx, failf(CodePaymentSessionFailed, "payment session", err, "payment session could not be created"))
	}
	c.mu.Lock()
	c.correlationID = correlationID
	c.state = StatePaymentSessionPending
	c.mu.Unlock()

	// Steps 6 and 7.
	if failure := c.awaitSession(ctx); failure != nil {
		return c.settle(ctx, failure)
	}
	return c.submitCard(ctx, card)
}

// Resubmit re-enters step 7 only, with fresh card details, after a
// retryable payment failure.  The retained order and correlation ids are
// reused; nothing upstream of the card attempt is repeated.
func (c *Coordinator) Resubmit(ctx context.Context, card model.CardDetails) (*Result, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.state != StateFailedRetryable {
		c.mu.Unlock()
		return nil, ErrNotRetryable
	}
	c.inFlight = true
	c.state = StatePaymentSubmitting
	c.mu.Unlock()
	defer c.leave()

	return c.submitCard(ctx, card)
}

// Resume re-enters step 6 after a session-poll timeout left the saga parked
// in PaymentSessionPending, then proceeds to the card attempt.  The order is
// not recreated; only readiness is awaited again.
func (c *Coordinator) Resume(ctx context.Context, card model.CardDetails) (*Result, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.state != StatePaymentSessionPending || c.correlationID == "" {
		c.mu.Unlock()
		return nil, ErrNotRetryable
	}
	c.inFlight = true
	c.mu.Unlock()
	defer c.leave()

	if failure := c.awaitSession(ctx); failure != nil {
		return c.settle(ctx, failure)
	}
	return c.submitCard(ctx, card)
}

// awaitSession polls the payment service until the session materializes.  A
// not-found response continues polling; any other error is fatal.  On
// timeout the saga stays in PaymentSessionPending — the order is left for
// manual retry, not auto-cancelled.
func (c *Coordinator) awaitSession(ctx context.Context) *Failure {
	c.mu.Lock()
	correlationID := c.correlationID
	c.mu.Unlock()

	err := c.policy.Do(ctx, c.clk, func(ctx context.Context) (bool, error) {
		_, err := c.payments.Session(ctx, correlationID)
		if errors.Is(err, client.ErrSessionNotReady) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	})
	switch {
	case err == nil:
		c.setState(StatePaymentSubmitting)
		return nil
	case errors.Is(err, retry.ErrDeadline):
		return failf(CodePaymentSessionTimeout, "session readiness", err, "timed out waiting for payment session")
	default:
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return failf(CodePaymentServiceUnavailable, "session readiness", err, "%s", apiErr.Detail)
		}
		return failf(CodeNetwork, "session readiness", err, "payment session lookup failed")
	}
}

// submitCard runs step 7: a single card attempt against the ready session.
// Success and terminal failure both fully clear the saga and reconcile the
// seat view; a retryable failure parks the saga with its ids retained so the
// shopper can resubmit different card details.
func (c *Coordinator) submitCard(ctx context.Context, card model.CardDetails) (*Result, error) {
	c.mu.Lock()
	correlationID := c.correlationID
	c.mu.Unlock()

	attempt, err := c.payments.SubmitCard(ctx, correlationID, card)
	if err != nil {
		// The attempt outcome is unknown; park retryable so the shopper can
		// try again against the payment service's own attempt counter.
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return c.settle(ctx, failf(CodePaymentFailedRetryable, "card submission", err, "%s", apiErr.Detail))
		}
		return c.settle(ctx, failf(CodePaymentFailedRetryable, "card submission", err, "card submission failed"))
	}

	switch {
	case attempt.Status == model.AttemptSuccess:
		result := c.snapshotResult(StateSucceeded, nil)
		c.record(ctx, StateSucceeded, nil)
		c.announce(ctx, result)
		c.clearSaga()
		c.reconcile(ctx)
		return result, nil

	case attempt.IsFinal || attempt.AttemptsRemaining <= 0:
		// The backend cancels the order and releases the seats on a terminal
		// failure, so local order state is cleared and the view reconciled.
		failure := failf(CodePaymentFailedTerminal, "card submission", nil, "%s", attemptMessage(attempt))
		result := c.snapshotResult(StateFailedTerminal, failure)
		c.record(ctx, StateFailedTerminal, failure)
		c.clearSaga()
		c.reconcile(ctx)
		return result, failure

	default:
		failure := failf(CodePaymentFailedRetryable, "card submission", nil, "%s", attemptMessage(attempt))
		c.mu.Lock()
		c.attemptsLeft = attempt.AttemptsRemaining
		c.mu.Unlock()
		result := c.snapshotResult(StateFailedRetryable, failure)
		result.AttemptsRemaining = attempt.AttemptsRemaining
		c.record(ctx, StateFailedRetryable, failure)
		c.setState(StateFailedRetryable)
		return result, failure
	}
}

func attemptMessage(attempt *model.CardAttemptResult) string {
	if attempt.Reason != "" {
		return attempt.Reason
	}
	return "payment was declined"
}

// enter claims the saga for one run.
func (c *Coordinator) enter(s State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return ErrBusy
	}
	c.inFlight = true
	c.state = s
	return nil
}

// leave releases the in-flight claim without touching the parked state.
func (c *Coordinator) leave() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// abort records a pre-payment failure and drops the saga back to Idle.
func (c *Coordinator) abort(ctx context.Context, failure *Failure) (*Result, error) {
	result := c.snapshotResult(StateIdle, failure)
	c.record(ctx, StateIdle, failure)
	c.clearSaga()
	return result, failure
}

// settle records a payment-stage failure that parks the saga rather than
// clearing it: the session-poll timeout and unknown-outcome submissions.
func (c *Coordinator) settle(ctx context.Context, failure *Failure) (*Result, error) {
	parked := StatePaymentSessionPending
	if failure.Code == CodePaymentFailedRetryable {
		parked = StateFailedRetryable
	}
	c.setState(parked)
	result := c.snapshotResult(parked, failure)
	c.record(ctx, parked, failure)
	return result, failure
}

// snapshotResult builds a Result from the retained saga fields.
func (c *Coordinator) snapshotResult(s State, failure *Failure) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, it := range c.items {
		total += it.UnitPriceCents
	}
	return &Result{
		State:             s,
		Reservation:       c.reservation,
		OrderID:           c.orderID,
		CorrelationID:     c.correlationID,
		TotalCents:        total,
		AttemptsRemaining: c.attemptsLeft,
		Failure:           failure,
	}
}

// clearSaga drops all retained saga fields and returns to Idle.
func (c *Coordinator) clearSaga() {
	c.mu.Lock()
	c.state = StateIdle
	c.eventID = ""
	c.seatIDs = nil
	c.reservation = nil
	c.items = nil
	c.orderID = 0
	c.correlationID = ""
	c.attemptsLeft = 0
	c.mu.Unlock()
}

// reconcile reloads the seat view so the caller never trusts stale local
// state after an outcome that may have changed authoritative seat status.
func (c *Coordinator) reconcile(ctx context.Context) {
	if err := c.seats.Reload(ctx); err != nil {
		log.Printf("checkout: seat map reload failed: %v", err)
	}
}

// record appends a journal row for the outcome.  Journal errors are logged,
// never surfaced.
func (c *Coordinator) record(ctx context.Context, outcome State, failure *Failure) {
	if c.journal == nil {
		return
	}
	c.mu.Lock()
	rec := model.CheckoutRecord{
		ID:            uuid.NewString(),
		UserID:        c.userID,
		EventID:       c.eventID,
		SeatIDs:       append([]string(nil), c.seatIDs...),
		OrderID:       c.orderID,
		CorrelationID: c.correlationID,
		Outcome:       string(outcome),
		CreatedAt:     c.clk.Now(),
	}
	c.mu.Unlock()
	if failure != nil {
		rec.FailureCode = string(failure.Code)
		rec.Message = failure.Message
	}
	if err := c.journal.Record(ctx, rec); err != nil {
		log.Printf("journal: record checkout outcome failed: %v", err)
	}
}

// announce publishes checkout.completed for a successful saga.  Publish
// failures are logged and never change the outcome.
func (c *Coordinator) announce(ctx context.Context, result *Result) {
	if c.publish == nil {
		return
	}
	c.mu.Lock()
	evt := queue.CheckoutCompletedEvent{
		OrderID:          c.orderID,
		UserID:           c.userID,
		EventID:          c.eventID,
		CorrelationID:    c.correlationID,
		SeatLabels:       append([]string(nil), c.seatIDs...),
		TotalAmountCents: result.TotalCents,
		CompletedAt:      c.clk.Now().Format(time.RFC3339),
	}
	c.mu.Unlock()
	if err := c.publish(ctx, evt); err != nil {
		log.Printf("rabbit: publish checkout.completed failed: %v", err)
	}
}
