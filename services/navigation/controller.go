package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"atpkiosk/models"
	"atpkiosk/services/jobstatus"
	"atpkiosk/services/payment"
	"atpkiosk/services/session"
	"atpkiosk/services/task"
	"atpkiosk/services/upload"
	"atpkiosk/utils"

	"go.uber.org/zap"
)

// DefaultAutoAdvanceDelay is how long the upload success message stays up
// before the controller moves on to payment.
const DefaultAutoAdvanceDelay = 2 * time.Second

// Poller starts job status polling for a session.
type Poller interface {
	Start(ctx context.Context, sessionID string, onUpdate jobstatus.UpdateFunc) *task.Handle
}

// Deps wires a Controller to its collaborators.
type Deps struct {
	Sessions         session.SessionService
	Uploads          upload.UploadService
	PaymentBackend   payment.Backend
	Checkout         payment.Checkout
	PaymentOptions   payment.Options
	Poller           Poller
	AutoAdvanceDelay time.Duration
	Logger           *zap.Logger
	Now              func() time.Time
}

// Controller owns the visit state. Every async result is stamped with the
// stage epoch it was started under and dropped if that stage is gone.
type Controller struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	state      State
	epoch      uint64
	sessionGen uint64
	stageCtx   context.Context
	stageStop  context.CancelFunc
	stageTasks *task.Group
	payments   *payment.Coordinator
	subs       map[int]chan State
	nextSub    int
	closed     bool

	root       context.Context
	rootCancel context.CancelFunc
}

func NewController(deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.AutoAdvanceDelay <= 0 {
		deps.AutoAdvanceDelay = DefaultAutoAdvanceDelay
	}
	root, cancel := context.WithCancel(context.Background())
	c := &Controller{
		deps:       deps,
		logger:     deps.Logger,
		now:        deps.Now,
		state:      Initial(),
		subs:       make(map[int]chan State),
		stageTasks: &task.Group{},
		root:       root,
		rootCancel: cancel,
	}
	c.stageCtx, c.stageStop = context.WithCancel(root)
	return c
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe delivers snapshots after every change. Slow readers only see
// the latest one. The returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 1)
	ch <- c.state
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Controller) broadcastLocked() {
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- c.state
	}
}

// applyLocked reduces ev and enters the new stage if it changed.
func (c *Controller) applyLocked(ev Event) State {
	prev := c.state
	c.state = Reduce(prev, ev)
	if c.state.Stage != prev.Stage {
		c.logger.Info("stage changed",
			zap.String("sessionID", c.state.SessionID),
			zap.String("from", string(prev.Stage)),
			zap.String("to", string(c.state.Stage)))
		c.enterStageLocked()
	}
	c.broadcastLocked()
	return c.state
}

func (c *Controller) dispatch(ev Event) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(ev)
}

// dispatchAt applies ev only if the stage that produced it is still live.
func (c *Controller) dispatchAt(epoch uint64, ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.epoch != epoch {
		return false
	}
	c.applyLocked(ev)
	return true
}

// dispatchVisit applies ev only if it belongs to the current visit.
func (c *Controller) dispatchVisit(gen uint64, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.sessionGen != gen {
		return
	}
	c.applyLocked(ev)
}

// enterStageLocked retires the previous stage's tasks and starts the new
// stage's background work.
func (c *Controller) enterStageLocked() {
	c.epoch++
	c.stageTasks.CancelAll()
	c.stageStop()
	c.stageCtx, c.stageStop = context.WithCancel(c.root)
	c.startStageTasksLocked()
}

func (c *Controller) startStageTasksLocked() {
	epoch := c.epoch
	switch c.state.Stage {
	case models.StageHome:
		if c.state.Session == nil || c.state.Expired || c.deps.Sessions == nil {
			return
		}
		h := c.deps.Sessions.StartCountdown(c.stageCtx, *c.state.Session, func(t session.Tick) {
			c.dispatchAt(epoch, CountdownTicked{Label: t.Label, Expired: t.Expired})
		})
		c.stageTasks.Add(h)

	case models.StageStatus:
		if c.deps.Poller == nil {
			return
		}
		h := c.deps.Poller.Start(c.stageCtx, c.state.SessionID, func(st models.JobStatus) {
			c.dispatchAt(epoch, JobStatusObserved{Status: st})
		})
		c.stageTasks.Add(h)
	}
}

// Open starts a new visit for a scanned session id, abandoning whatever the
// previous visit was doing.
func (c *Controller) Open(sessionID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.state
	}
	c.sessionGen++
	gen := c.sessionGen
	c.payments = payment.NewCoordinator(c.deps.PaymentBackend, &visitCheckout{c: c, gen: gen, inner: c.deps.Checkout}, c.paymentOptions(gen))

	c.state = Reduce(c.state, SessionRequested{SessionID: sessionID})
	c.enterStageLocked()
	epoch := c.epoch
	c.broadcastLocked()

	c.logger.Info("session requested", zap.String("sessionID", sessionID))
	h := task.Go(c.stageCtx, c.logger, "fetch-session:"+sessionID, func(ctx context.Context) {
		sess, err := c.deps.Sessions.FetchSession(ctx, sessionID)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("session lookup failed", zap.String("sessionID", sessionID), zap.Error(err))
			}
			c.dispatchAt(epoch, SessionFailed{Err: err})
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.epoch != epoch {
			return
		}
		c.applyLocked(SessionLoaded{Session: *sess, Now: c.now()})
		c.startStageTasksLocked()
	})
	c.stageTasks.Add(h)
	return c.state
}

func (c *Controller) paymentOptions(gen uint64) payment.Options {
	opts := c.deps.PaymentOptions
	opts.Logger = c.logger
	opts.Observer = func(st models.PaymentState) {
		c.dispatchVisit(gen, PaymentStateChanged{State: st})
	}
	return opts
}

// Navigate asks to move to stage to. The returned bool reports whether the
// move happened; a refusal leaves a notification in the state.
func (c *Controller) Navigate(to models.Stage) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.applyLocked(NavigateRequested{To: to, Now: c.now()})
	return st, st.Stage == to
}

// Upload admits and transfers a document for the current session. It
// blocks until the upload finishes, ctx ends, or the upload stage is left.
// On success the controller moves to payment after the auto-advance delay.
func (c *Controller) Upload(ctx context.Context, file models.CandidateFile, pageCount int, mode models.ColorMode) (*models.UploadDescriptor, error) {
	c.mu.Lock()
	if c.state.Stage != models.StageUpload {
		c.mu.Unlock()
		return nil, utils.NewCodedError(utils.KindInvalidInput, "WrongStage", "Uploads are only accepted on the upload screen")
	}
	if st, ok := usable(c.state, c.now()); !ok {
		c.state = st
		c.broadcastLocked()
		c.mu.Unlock()
		if st.Expired {
			return nil, utils.NewError(utils.KindExpired, MsgExpired, nil)
		}
		return nil, utils.NewError(utils.KindNotFound, MsgNoSession, nil)
	}
	if c.state.Upload.InProgress {
		c.mu.Unlock()
		return nil, utils.NewCodedError(utils.KindInvalidInput, "UploadInProgress", MsgUploadBusy)
	}
	if mode.Valid() && !c.state.Session.Supports(mode) {
		c.mu.Unlock()
		return nil, utils.NewCodedError(utils.KindInvalidInput, upload.CodeInvalidColorMode,
			fmt.Sprintf("%s is not available on this printer.", mode.Label()))
	}
	c.applyLocked(UploadStarted{})
	epoch := c.epoch
	stageCtx := c.stageCtx
	req := models.UploadRequest{SessionID: c.state.SessionID, File: file, PageCount: pageCount, ColorMode: mode}
	c.mu.Unlock()

	var (
		desc *models.UploadDescriptor
		err  error
	)
	h := task.Go(stageCtx, c.logger, "upload:"+req.SessionID, func(tctx context.Context) {
		desc, err = c.deps.Uploads.Upload(tctx, req, func(pct int) {
			c.dispatchAt(epoch, UploadProgressed{Percent: pct})
		})
	})
	c.mu.Lock()
	c.stageTasks.Add(h)
	c.mu.Unlock()

	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Cancel()
		h.Wait()
	}

	if err == nil && desc == nil {
		err = utils.NewError(utils.KindCancelled, "Upload cancelled", ctx.Err())
	}
	if errors.Is(err, context.Canceled) && !utils.IsKind(err, utils.KindCancelled) {
		err = utils.NewError(utils.KindCancelled, "Upload cancelled", err)
	}
	if err != nil {
		c.dispatchAt(epoch, UploadFailed{Err: err})
		return nil, err
	}
	if c.dispatchAt(epoch, UploadSucceeded{Descriptor: *desc}) {
		c.scheduleAutoAdvance(epoch)
	}
	return desc, nil
}

func (c *Controller) scheduleAutoAdvance(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	delay := c.deps.AutoAdvanceDelay
	h := task.Go(c.stageCtx, c.logger, "auto-advance", func(ctx context.Context) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		c.dispatchAt(epoch, NavigateRequested{To: models.StagePayment, Now: c.now()})
	})
	c.stageTasks.Add(h)
}

// StartPayment begins a payment attempt for the uploaded document. The
// attempt runs in the background; the returned handle ends with it.
func (c *Controller) StartPayment() (*task.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Stage != models.StagePayment {
		return nil, utils.NewCodedError(utils.KindInvalidInput, "WrongStage", "Payments are only accepted on the payment screen")
	}
	st, ok := usable(c.state, c.now())
	if !ok {
		c.state = st
		c.broadcastLocked()
		return nil, utils.NewError(utils.KindExpired, MsgExpired, nil)
	}
	if c.state.Upload.Descriptor == nil {
		return nil, utils.NewCodedError(utils.KindInvalidInput, "NoUpload", MsgUploadFirst)
	}
	if !c.state.Payment.State.Retryable() {
		return nil, utils.NewCodedError(utils.KindInvalidInput, payment.CodePaymentInProgress, MsgPaymentInFlight)
	}

	epoch := c.epoch
	desc := *c.state.Upload.Descriptor
	sessionID := c.state.SessionID
	coordinator := c.payments
	c.applyLocked(NotificationDismissed{})

	h := task.Go(c.stageCtx, c.logger, "payment:"+sessionID, func(ctx context.Context) {
		if _, err := coordinator.Pay(ctx, sessionID, desc); err != nil {
			c.dispatchAt(epoch, PaymentFailed{Err: err})
			return
		}
		c.dispatchAt(epoch, PaymentSucceeded{})
	})
	c.stageTasks.Add(h)
	return h, nil
}

// Dismiss clears the notification.
func (c *Controller) Dismiss() State {
	return c.dispatch(NotificationDismissed{})
}

// Close stops all background work and closes subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stageTasks.CancelAll()
	c.rootCancel()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// visitCheckout publishes the open checkout request in the state for the
// duration of the wait.
type visitCheckout struct {
	c     *Controller
	gen   uint64
	inner payment.Checkout
}

func (v *visitCheckout) Open(ctx context.Context, req models.CheckoutRequest) (models.CheckoutOutcome, error) {
	v.c.dispatchVisit(v.gen, CheckoutChanged{Request: &req})
	defer v.c.dispatchVisit(v.gen, CheckoutChanged{})
	return v.inner.Open(ctx, req)
}
