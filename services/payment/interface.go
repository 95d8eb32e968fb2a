package payment

import (
	"context"

	"atpkiosk/models"
)

// PaymentService runs one payment attempt at a time for a priced job.
type PaymentService interface {
	Pay(ctx context.Context, sessionID string, desc models.UploadDescriptor) (*models.PaymentConfirmation, error)
	State() models.PaymentState
}

// Backend is the part of the gateway the payment coordinator needs.
type Backend interface {
	CreateOrder(ctx context.Context, sessionID string, amount int64, idempotencyKey string) (*models.PaymentOrder, error)
	CompletePayment(ctx context.Context, sessionID string, v models.PaymentVerification) (*models.PaymentConfirmation, error)
}

// Checkout opens the external payment UI for an order and waits for the
// user to finish. Returning ctx's error means the wait was abandoned.
type Checkout interface {
	Open(ctx context.Context, req models.CheckoutRequest) (models.CheckoutOutcome, error)
}

// Observer is told about every payment state change.
type Observer func(models.PaymentState)
