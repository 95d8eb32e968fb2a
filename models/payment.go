package models

// PaymentOrder is created by the backend for a single checkout attempt.
type PaymentOrder struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentVerification carries the identifiers returned by a successful
// checkout. The wire names follow the gateway's callback payload.
type PaymentVerification struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

// PaymentConfirmation is the backend's answer to a verification request.
type PaymentConfirmation struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	PaymentID string `json:"paymentId,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
}

// CheckoutRequest is what the external checkout needs to open.
type CheckoutRequest struct {
	Key         string `json:"key"`
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// OutcomeKind tags a CheckoutOutcome.
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeFailure   OutcomeKind = "failure"
)

// CheckoutOutcome is the result of one checkout: Success carries the
// verification identifiers, Failure a reason, Cancelled nothing.
type CheckoutOutcome struct {
	Kind    OutcomeKind          `json:"outcome"`
	Success *PaymentVerification `json:"success,omitempty"`
	Reason  string               `json:"reason,omitempty"`
}

func CheckoutSucceeded(v PaymentVerification) CheckoutOutcome {
	return CheckoutOutcome{Kind: OutcomeSuccess, Success: &v}
}

func CheckoutCancelled() CheckoutOutcome {
	return CheckoutOutcome{Kind: OutcomeCancelled}
}

func CheckoutFailed(reason string) CheckoutOutcome {
	return CheckoutOutcome{Kind: OutcomeFailure, Reason: reason}
}

// PaymentState is the payment coordinator's position in its state machine.
type PaymentState string

const (
	PaymentIdle               PaymentState = "Idle"
	PaymentOrderCreated       PaymentState = "OrderCreated"
	PaymentAwaitingCheckout   PaymentState = "AwaitingCheckout"
	PaymentVerifying          PaymentState = "Verifying"
	PaymentPaid               PaymentState = "Paid"
	PaymentVerificationFailed PaymentState = "VerificationFailed"
	PaymentCancelled          PaymentState = "Cancelled"
	PaymentGatewayFailed      PaymentState = "GatewayFailed"
)

// Retryable reports whether a new attempt may start from s.
func (s PaymentState) Retryable() bool {
	switch s {
	case "", PaymentIdle, PaymentCancelled, PaymentGatewayFailed, PaymentVerificationFailed:
		return true
	}
	return false
}

// InFlight reports whether an attempt is between order creation and a verdict.
func (s PaymentState) InFlight() bool {
	switch s {
	case PaymentOrderCreated, PaymentAwaitingCheckout, PaymentVerifying:
		return true
	}
	return false
}
