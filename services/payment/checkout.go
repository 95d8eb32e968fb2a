package payment

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"atpkiosk/models"
	"atpkiosk/utils"
)

var (
	ErrNoPendingCheckout = utils.NewCodedError(utils.KindInvalidInput, "NoPendingCheckout", "No checkout is waiting for a result")
	ErrOrderMismatch     = utils.NewCodedError(utils.KindInvalidInput, "OrderMismatch", "Checkout result is for a different order")
	errCheckoutBusy      = errors.New("another checkout is already open")
)

type pendingCheckout struct {
	req    models.CheckoutRequest
	result chan models.CheckoutOutcome
}

// BridgeCheckout hands checkout requests to the renderer and waits for the
// renderer to post the outcome back.
type BridgeCheckout struct {
	mu      sync.Mutex
	pending *pendingCheckout
}

func NewBridgeCheckout() *BridgeCheckout {
	return &BridgeCheckout{}
}

func (b *BridgeCheckout) Open(ctx context.Context, req models.CheckoutRequest) (models.CheckoutOutcome, error) {
	p := &pendingCheckout{req: req, result: make(chan models.CheckoutOutcome, 1)}

	b.mu.Lock()
	if b.pending != nil {
		b.mu.Unlock()
		return models.CheckoutOutcome{}, errCheckoutBusy
	}
	b.pending = p
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.pending == p {
			b.pending = nil
		}
		b.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return models.CheckoutOutcome{}, ctx.Err()
	case out := <-p.result:
		return out, nil
	}
}

// Pending returns the request the renderer should open, if any.
func (b *BridgeCheckout) Pending() (models.CheckoutRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return models.CheckoutRequest{}, false
	}
	return b.pending.req, true
}

// Resolve delivers the renderer's outcome for orderID. Each checkout
// accepts exactly one outcome.
func (b *BridgeCheckout) Resolve(orderID string, outcome models.CheckoutOutcome) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return ErrNoPendingCheckout
	}
	if orderID != b.pending.req.OrderID {
		return ErrOrderMismatch
	}
	if outcome.Success != nil && outcome.Success.OrderID != "" && outcome.Success.OrderID != orderID {
		return ErrOrderMismatch
	}
	b.pending.result <- outcome
	b.pending = nil
	return nil
}

// TerminalCheckout collects the checkout result from an operator at a
// terminal. A blank payment id cancels.
type TerminalCheckout struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalCheckout(in io.Reader, out io.Writer) *TerminalCheckout {
	return &TerminalCheckout{in: bufio.NewReader(in), out: out}
}

func (t *TerminalCheckout) Open(ctx context.Context, req models.CheckoutRequest) (models.CheckoutOutcome, error) {
	fmt.Fprintf(t.out, "\n%s\n", req.Name)
	fmt.Fprintf(t.out, "  Order:  %s\n", req.OrderID)
	fmt.Fprintf(t.out, "  Amount: %s\n", utils.FormatCurrency(models.FromMinorUnits(req.Amount), req.Currency))
	fmt.Fprintf(t.out, "  %s\n", req.Description)

	paymentID, err := t.prompt(ctx, "Payment ID (blank to cancel): ")
	if err != nil {
		return models.CheckoutOutcome{}, err
	}
	if paymentID == "" {
		return models.CheckoutCancelled(), nil
	}
	signature, err := t.prompt(ctx, "Signature: ")
	if err != nil {
		return models.CheckoutOutcome{}, err
	}
	if signature == "" {
		return models.CheckoutFailed("No payment signature provided"), nil
	}
	return models.CheckoutSucceeded(models.PaymentVerification{
		PaymentID: paymentID,
		OrderID:   req.OrderID,
		Signature: signature,
	}), nil
}

func (t *TerminalCheckout) prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(t.out, label)

	type line struct {
		text string
		err  error
	}
	ch := make(chan line, 1)
	go func() {
		s, err := t.in.ReadString('\n')
		if errors.Is(err, io.EOF) && s != "" {
			err = nil
		}
		ch <- line{strings.TrimSpace(s), err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-ch:
		if errors.Is(l.err, io.EOF) {
			return "", nil
		}
		return l.text, l.err
	}
}
