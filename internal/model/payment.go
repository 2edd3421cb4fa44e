package model

// PaymentSession is the payment service's view of a checkout in progress.
// Sessions materialize asynchronously after the order is finalized, so a
// lookup by correlation id can return "not found" for a short while even
// though creation was accepted.
type PaymentSession struct {
	CorrelationID string `json:"correlationId"`
	OrderID       int64  `json:"orderId"`
	AmountCents   int64  `json:"amountCents"`
	Status        string `json:"status"`
}

// CardDetails is one set of card credentials for a single attempt.  The
// gateway forwards them to the payment service and never stores them.
type CardDetails struct {
	Number string `json:"cardNumber"`
	CVV    string `json:"cardCvv"`
	Holder string `json:"cardHolder"`
}

// Attempt statuses reported by the payment service.
const (
	AttemptSuccess = "SUCCESS"
	AttemptFailed  = "FAILED"
)

// CardAttemptResult is the outcome of a single card submission.  IsFinal set
// means the session reached a terminal state and no further attempts will be
// accepted; AttemptsRemaining counts how many attempts are left otherwise.
type CardAttemptResult struct {
	Status            string `json:"status"`
	Reason            string `json:"reason,omitempty"`
	AttemptsRemaining int    `json:"attemptsRemaining"`
	IsFinal           bool   `json:"isFinal"`
}
