// Package navigation holds the kiosk's workflow state and the controller
// that moves a visit through home, upload, payment and status.
package navigation

import (
	"time"

	"atpkiosk/models"
	"atpkiosk/services/session"
	"atpkiosk/utils"
)

const (
	MsgExpired         = "Session has expired. Please scan a new QR code."
	MsgNoSession       = "No active session. Please scan a QR code."
	MsgUploadFirst     = "Please upload a document first"
	MsgPayFirst        = "Please complete payment first"
	MsgPaymentInFlight = "Please finish or cancel the current payment first"
	MsgUploadBusy      = "An upload is already in progress"
	MsgUploaded        = "File uploaded successfully!"
	MsgPaid            = "Payment successful! Your document will print shortly."
	MsgPrinted         = "Print job completed! Please collect your document."
	MsgPrintFailed     = "Print job failed. Please contact support."
)

type UploadView struct {
	InProgress bool                     `json:"inProgress"`
	Progress   int                      `json:"progress"`
	Descriptor *models.UploadDescriptor `json:"descriptor,omitempty"`
}

type PaymentView struct {
	State    models.PaymentState     `json:"state"`
	Checkout *models.CheckoutRequest `json:"checkout,omitempty"`
}

type JobView struct {
	Status   models.JobStatus `json:"status,omitempty"`
	LastGood models.JobStatus `json:"-"`
	Steps    []models.Step    `json:"steps,omitempty"`
}

// State is a snapshot of a kiosk visit. Values are never mutated in place;
// Reduce returns a new State.
type State struct {
	Stage          models.Stage         `json:"stage"`
	SessionID      string               `json:"sessionId,omitempty"`
	Session        *models.Session      `json:"session,omitempty"`
	SessionLoading bool                 `json:"sessionLoading"`
	Countdown      string               `json:"countdown,omitempty"`
	Expired        bool                 `json:"expired"`
	Upload         UploadView           `json:"upload"`
	Payment        PaymentView          `json:"payment"`
	Job            JobView              `json:"job"`
	Notification   *models.Notification `json:"notification,omitempty"`
}

// Initial is the state before any QR scan.
func Initial() State {
	return State{Stage: models.StageHome, Payment: PaymentView{State: models.PaymentIdle}}
}

// Event is anything that can change State.
type Event interface {
	isEvent()
}

type SessionRequested struct{ SessionID string }

type SessionLoaded struct {
	Session models.Session
	Now     time.Time
}

type SessionFailed struct{ Err error }

type CountdownTicked struct {
	Label   string
	Expired bool
}

type NavigateRequested struct {
	To  models.Stage
	Now time.Time
}

type UploadStarted struct{}

type UploadProgressed struct{ Percent int }

type UploadSucceeded struct{ Descriptor models.UploadDescriptor }

type UploadFailed struct{ Err error }

type PaymentStateChanged struct{ State models.PaymentState }

type CheckoutChanged struct{ Request *models.CheckoutRequest }

type PaymentSucceeded struct{}

type PaymentFailed struct{ Err error }

type JobStatusObserved struct{ Status models.JobStatus }

type Notified struct{ Notification models.Notification }

type NotificationDismissed struct{}

func (SessionRequested) isEvent()      {}
func (SessionLoaded) isEvent()         {}
func (SessionFailed) isEvent()         {}
func (CountdownTicked) isEvent()       {}
func (NavigateRequested) isEvent()     {}
func (UploadStarted) isEvent()         {}
func (UploadProgressed) isEvent()      {}
func (UploadSucceeded) isEvent()       {}
func (UploadFailed) isEvent()          {}
func (PaymentStateChanged) isEvent()   {}
func (CheckoutChanged) isEvent()       {}
func (PaymentSucceeded) isEvent()      {}
func (PaymentFailed) isEvent()         {}
func (JobStatusObserved) isEvent()     {}
func (Notified) isEvent()              {}
func (NotificationDismissed) isEvent() {}

func notice(sev models.Severity, msg string) *models.Notification {
	return &models.Notification{Message: msg, Severity: sev}
}

// errorNotice turns a failure into the single user-visible notification.
func errorNotice(err error) *models.Notification {
	return notice(models.Severity(utils.Severity(utils.KindOf(err))), utils.UserMessage(err))
}

// Reduce applies ev to s. It has no side effects.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case SessionRequested:
		next := Initial()
		next.SessionID = e.SessionID
		next.SessionLoading = true
		return next

	case SessionLoaded:
		if s.SessionID != "" && e.Session.SessionID != s.SessionID {
			return s
		}
		sess := e.Session
		s.Session = &sess
		s.SessionID = sess.SessionID
		s.SessionLoading = false
		s.Countdown = utils.FormatTimeRemaining(sess.ExpiresAt, e.Now)
		if session.IsExpired(sess, e.Now) {
			s.Expired = true
			s.Notification = notice(models.SeverityError, MsgExpired)
		}
		return s

	case SessionFailed:
		s.Session = nil
		s.SessionLoading = false
		s.Notification = errorNotice(e.Err)
		return s

	case CountdownTicked:
		if s.Expired {
			return s
		}
		s.Countdown = e.Label
		if e.Expired {
			s.Expired = true
			s.Countdown = utils.ExpiredLabel
			s.Notification = notice(models.SeverityError, MsgExpired)
		}
		return s

	case NavigateRequested:
		return navigate(s, e)

	case UploadStarted:
		s.Upload = UploadView{InProgress: true}
		s.Notification = nil
		return s

	case UploadProgressed:
		if !s.Upload.InProgress || e.Percent <= s.Upload.Progress {
			return s
		}
		s.Upload.Progress = min(e.Percent, 100)
		return s

	case UploadSucceeded:
		desc := e.Descriptor
		s.Upload = UploadView{Progress: 100, Descriptor: &desc}
		s.Payment = PaymentView{State: models.PaymentIdle}
		s.Notification = notice(models.SeveritySuccess, MsgUploaded)
		return s

	case UploadFailed:
		s.Upload = UploadView{}
		s.Notification = errorNotice(e.Err)
		return s

	case PaymentStateChanged:
		s.Payment.State = e.State
		return s

	case CheckoutChanged:
		s.Payment.Checkout = e.Request
		return s

	case PaymentSucceeded:
		s.Payment = PaymentView{State: models.PaymentPaid}
		s.Stage = models.StageStatus
		s.Job = JobView{
			Status:   models.JobPaid,
			LastGood: models.JobPaid,
			Steps:    models.BuildSteps(models.JobPaid, models.JobPaid),
		}
		s.Notification = notice(models.SeveritySuccess, MsgPaid)
		return s

	case PaymentFailed:
		s.Notification = errorNotice(e.Err)
		return s

	case JobStatusObserved:
		return observeJob(s, e.Status)

	case Notified:
		n := e.Notification
		s.Notification = &n
		return s

	case NotificationDismissed:
		s.Notification = nil
		return s
	}
	return s
}

// usable reports whether the session allows upload or payment at now.
func usable(s State, now time.Time) (State, bool) {
	if s.Session == nil {
		s.Notification = notice(models.SeverityError, MsgNoSession)
		return s, false
	}
	if s.Expired || session.IsExpired(*s.Session, now) {
		s.Expired = true
		s.Countdown = utils.ExpiredLabel
		s.Notification = notice(models.SeverityError, MsgExpired)
		return s, false
	}
	return s, true
}

func navigate(s State, e NavigateRequested) State {
	if e.To == s.Stage {
		return s
	}
	if s.Payment.State.InFlight() {
		s.Notification = notice(models.SeverityWarning, MsgPaymentInFlight)
		return s
	}

	switch e.To {
	case models.StageHome:
	case models.StageUpload:
		var ok bool
		if s, ok = usable(s, e.Now); !ok {
			return s
		}
		if s.Payment.State == models.PaymentPaid {
			s.Notification = notice(models.SeverityInfo, MsgPaid)
			return s
		}
	case models.StagePayment:
		var ok bool
		if s, ok = usable(s, e.Now); !ok {
			return s
		}
		if s.Upload.Descriptor == nil || s.Upload.InProgress {
			s.Notification = notice(models.SeverityWarning, MsgUploadFirst)
			return s
		}
	case models.StageStatus:
		if s.Payment.State != models.PaymentPaid {
			s.Notification = notice(models.SeverityWarning, MsgPayFirst)
			return s
		}
	default:
		return s
	}

	if s.Stage == models.StageUpload && s.Upload.InProgress {
		// The transfer is cancelled with the stage and its result dropped.
		s.Upload = UploadView{}
	}
	s.Stage = e.To
	s.Notification = nil
	return s
}

func observeJob(s State, status models.JobStatus) State {
	if s.Job.Status != "" && !s.Job.Status.Advances(status) {
		return s
	}
	s.Job.Status = status
	if status != models.JobFailed {
		s.Job.LastGood = status
	}
	s.Job.Steps = models.BuildSteps(status, s.Job.LastGood)
	switch status {
	case models.JobCompleted:
		s.Notification = notice(models.SeveritySuccess, MsgPrinted)
	case models.JobFailed:
		s.Notification = notice(models.SeverityError, MsgPrintFailed)
	}
	return s
}
