// Package payment drives the two-phase payment: the backend creates an order,
// the external checkout collects payment, and the backend verifies it.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"atpkiosk/models"
	"atpkiosk/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultCurrency = "INR"

const (
	CodePaymentInProgress   = "PaymentInProgress"
	CodeInvalidAmount       = "InvalidAmount"
	CodeOrderCreationFailed = "OrderCreationFailed"
)

// Options configures a Coordinator.
type Options struct {
	CheckoutKey  string
	CheckoutName string
	Currency     string
	Observer     Observer
	Logger       *zap.Logger
}

// Coordinator is the payment state machine. A job is Paid only after the
// backend has verified the checkout result.
type Coordinator struct {
	backend  Backend
	checkout Checkout
	opts     Options
	logger   *zap.Logger
	newKey   func() string

	mu      sync.Mutex
	state   models.PaymentState
	busy    bool
	pending pendingOrder
}

// pendingOrder is an order request whose outcome is unknown. A retry for the
// same session and amount sends its key again.
type pendingOrder struct {
	key       string
	sessionID string
	amount    int64
}

func NewCoordinator(backend Backend, checkout Checkout, opts Options) *Coordinator {
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.CheckoutName == "" {
		opts.CheckoutName = "ATP Printing System"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		backend:  backend,
		checkout: checkout,
		opts:     opts,
		logger:   logger,
		newKey:   func() string { return uuid.New().String() },
		state:    models.PaymentIdle,
	}
}

func (c *Coordinator) State() models.PaymentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s models.PaymentState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.opts.Observer != nil {
		c.opts.Observer(s)
	}
}

// Pay runs one attempt. It is refused while another attempt is in flight or
// once the job is paid.
func (c *Coordinator) Pay(ctx context.Context, sessionID string, desc models.UploadDescriptor) (*models.PaymentConfirmation, error) {
	c.mu.Lock()
	if c.busy || !c.state.Retryable() {
		c.mu.Unlock()
		return nil, utils.NewCodedError(utils.KindInvalidInput, CodePaymentInProgress, "A payment is already in progress")
	}
	c.busy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	amount := desc.AmountMinor()
	if amount <= 0 {
		return nil, utils.NewCodedError(utils.KindInvalidInput, CodeInvalidAmount, "Nothing to pay for")
	}

	logger := c.logger.With(zap.String("sessionID", sessionID), zap.Int64("amount", amount))

	key := c.orderKey(sessionID, amount)
	order, err := c.backend.CreateOrder(ctx, sessionID, amount, key)
	if err == nil || !unresolved(ctx, err) {
		c.mu.Lock()
		c.pending = pendingOrder{}
		c.mu.Unlock()
	}
	if err != nil {
		if cerr := c.abandoned(ctx, err); cerr != nil {
			return nil, cerr
		}
		c.setState(models.PaymentIdle)
		logger.Warn("order creation failed", zap.Error(err))
		return nil, &utils.AppError{
			Kind:    utils.KindOf(err),
			Code:    CodeOrderCreationFailed,
			Message: utils.UserMessage(err),
			Err:     err,
		}
	}
	if order.Currency == "" {
		order.Currency = c.opts.Currency
	}
	if order.Amount <= 0 {
		order.Amount = amount
	}
	logger = logger.With(zap.String("orderID", order.OrderID))
	c.setState(models.PaymentOrderCreated)

	req := models.CheckoutRequest{
		Key:         c.opts.CheckoutKey,
		OrderID:     order.OrderID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Name:        c.opts.CheckoutName,
		Description: fmt.Sprintf("Print: %s (%d pages, %s)", desc.FileName, desc.PageCount, desc.ColorMode.Label()),
	}
	c.setState(models.PaymentAwaitingCheckout)
	outcome, err := c.checkout.Open(ctx, req)
	if err != nil {
		if cerr := c.abandoned(ctx, err); cerr != nil {
			return nil, cerr
		}
		c.setState(models.PaymentGatewayFailed)
		logger.Error("checkout could not be opened", zap.Error(err))
		return nil, utils.NewError(utils.KindGatewayFailure, "Payment could not be started. Please try again.", err)
	}

	switch outcome.Kind {
	case models.OutcomeCancelled:
		c.setState(models.PaymentIdle)
		logger.Info("checkout cancelled by user")
		return nil, utils.NewError(utils.KindCancelled, "Payment cancelled", nil)
	case models.OutcomeSuccess:
	default:
		reason := outcome.Reason
		if reason == "" {
			reason = "Payment failed"
		}
		c.setState(models.PaymentGatewayFailed)
		logger.Warn("checkout failed", zap.String("reason", reason))
		return nil, utils.NewError(utils.KindGatewayFailure, reason, nil)
	}

	if outcome.Success == nil {
		c.setState(models.PaymentGatewayFailed)
		return nil, utils.NewError(utils.KindGatewayFailure, "Payment failed", errors.New("checkout success without identifiers"))
	}
	v := *outcome.Success
	if v.OrderID == "" {
		v.OrderID = order.OrderID
	}

	c.setState(models.PaymentVerifying)
	conf, err := c.backend.CompletePayment(ctx, sessionID, v)
	if err != nil {
		if cerr := c.abandoned(ctx, err); cerr != nil {
			return nil, cerr
		}
		c.setState(models.PaymentVerificationFailed)
		logger.Warn("payment verification failed", zap.String("paymentID", v.PaymentID), zap.Error(err))
		if utils.IsKind(err, utils.KindNetworkError) {
			return nil, err
		}
		return nil, utils.NewError(utils.KindVerificationFailed, utils.UserMessage(err), err)
	}

	c.setState(models.PaymentPaid)
	logger.Info("payment verified", zap.String("paymentID", v.PaymentID))
	return conf, nil
}

// orderKey returns the idempotency key for an order request, repeating the
// key of an unresolved request for the same session and amount.
func (c *Coordinator) orderKey(sessionID string, amount int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pending
	if p.key == "" || p.sessionID != sessionID || p.amount != amount {
		c.pending = pendingOrder{key: c.newKey(), sessionID: sessionID, amount: amount}
	}
	return c.pending.key
}

// unresolved reports whether a failed request may still have reached the
// backend.
func unresolved(ctx context.Context, err error) bool {
	return ctx.Err() != nil || utils.IsKind(err, utils.KindNetworkError) || utils.IsKind(err, utils.KindCancelled)
}

// abandoned handles a step that failed because the caller gave up. The
// attempt goes back to Idle so it can be restarted.
func (c *Coordinator) abandoned(ctx context.Context, err error) error {
	if ctx.Err() == nil && !utils.IsKind(err, utils.KindCancelled) {
		return nil
	}
	c.setState(models.PaymentIdle)
	return utils.NewError(utils.KindCancelled, "Payment cancelled", err)
}

// Reset returns an idle or finished coordinator to Idle. It has no effect
// while an attempt is running.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.setState(models.PaymentIdle)
}
