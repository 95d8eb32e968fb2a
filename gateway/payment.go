package gateway

import (
	"context"
	"errors"
	"net/http"

	"atpkiosk/models"
	"atpkiosk/utils"
)

var (
	errMissingExpiry  = errors.New("session has no expiry")
	errMissingOrderID = errors.New("order has no id")
	errNotConfirmed   = errors.New("backend did not confirm payment")
)

type createOrderRequest struct {
	Amount int64 `json:"amount"`
}

// CreateOrder asks the backend for a payment order of amount minor units.
// idempotencyKey lets the backend collapse a manual retry of the same attempt.
func (c *Client) CreateOrder(ctx context.Context, sessionID string, amount int64, idempotencyKey string) (*models.PaymentOrder, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set(headerIdempotency, idempotencyKey)
	}

	var order models.PaymentOrder
	err := c.doJSON(ctx, http.MethodPost, c.endpoint("/api/session/%s/create-order", sessionID),
		createOrderRequest{Amount: amount}, &order, "Failed to create payment order", header)
	if err != nil {
		return nil, err
	}
	if order.OrderID == "" {
		return nil, utils.NewError(utils.KindServerRejected, "Failed to create payment order", errMissingOrderID)
	}
	return &order, nil
}

type confirmationResponse struct {
	Success   *bool  `json:"success"`
	Message   string `json:"message"`
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
}

// CompletePayment submits the checkout identifiers for server-side
// verification. A 2xx without an explicit "success": false counts as verified.
func (c *Client) CompletePayment(ctx context.Context, sessionID string, v models.PaymentVerification) (*models.PaymentConfirmation, error) {
	var out confirmationResponse
	err := c.doJSON(ctx, http.MethodPost, c.endpoint("/api/session/%s/payment/complete", sessionID),
		v, &out, "Payment verification failed", nil)
	if err != nil {
		return nil, err
	}
	if out.Success != nil && !*out.Success {
		msg := out.Message
		if msg == "" {
			msg = "Payment verification failed"
		}
		return nil, utils.NewError(utils.KindServerRejected, msg, errNotConfirmed)
	}
	return &models.PaymentConfirmation{
		Success:   true,
		Message:   out.Message,
		PaymentID: out.PaymentID,
		OrderID:   out.OrderID,
	}, nil
}
