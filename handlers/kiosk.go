package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"atpkiosk/models"
	"atpkiosk/services/navigation"
	"atpkiosk/services/payment"
	"atpkiosk/services/task"
	"atpkiosk/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// KioskController is the part of the navigation controller the local API drives.
type KioskController interface {
	State() navigation.State
	Subscribe() (<-chan navigation.State, func())
	Open(sessionID string) navigation.State
	Navigate(to models.Stage) (navigation.State, bool)
	Upload(ctx context.Context, file models.CandidateFile, pageCount int, mode models.ColorMode) (*models.UploadDescriptor, error)
	StartPayment() (*task.Handle, error)
	Dismiss() navigation.State
}

// CheckoutBridge hands checkout requests to the renderer and takes back its result.
type CheckoutBridge interface {
	Pending() (models.CheckoutRequest, bool)
	Resolve(orderID string, outcome models.CheckoutOutcome) error
}

// KioskHandler serves the renderer-facing kiosk API.
type KioskHandler struct {
	ctrl     KioskController
	bridge   CheckoutBridge
	currency string
}

// NewKioskHandler creates a new KioskHandler instance.
func NewKioskHandler(ctrl KioskController, bridge CheckoutBridge, currency string) *KioskHandler {
	if currency == "" {
		currency = payment.DefaultCurrency
	}
	return &KioskHandler{ctrl: ctrl, bridge: bridge, currency: currency}
}

// GetStateHandler returns the current visit snapshot.
func (h *KioskHandler) GetStateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.State())
}

// StreamEventsHandler pushes a "state" event after every change until the
// client goes away.
func (h *KioskHandler) StreamEventsHandler(c *gin.Context) {
	updates, unsubscribe := h.ctrl.Subscribe()
	defer unsubscribe()

	getLogger(c).Debug("renderer subscribed")
	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case st, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("state", st)
			return true
		}
	})
}

// OpenSessionHandler starts a visit for a scanned session id. The lookup
// finishes in the background; the renderer follows it through the state.
func (h *KioskHandler) OpenSessionHandler(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("sessionID"))
	if sessionID == "" {
		utils.JSONError(c, http.StatusBadRequest, "Session ID is required", "")
		return
	}
	getLogger(c).Info("opening session", zap.String("sessionID", sessionID))
	c.JSON(http.StatusAccepted, h.ctrl.Open(sessionID))
}

type navigateRequest struct {
	Stage string `json:"stage" binding:"required"`
}

// NavigateHandler applies a navigation intent. A refused move answers 409
// with the notification explaining why.
func (h *KioskHandler) NavigateHandler(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	stage, err := models.ParseStage(req.Stage)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid stage", err.Error())
		return
	}
	st, accepted := h.ctrl.Navigate(stage)
	status := http.StatusOK
	if !accepted {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"accepted": accepted, "state": st})
}

// UploadHandler accepts multipart fields file, pageCount and colorMode and
// blocks until the document has reached the backend.
func (h *KioskHandler) UploadHandler(c *gin.Context) {
	logger := getLogger(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "File not provided", err.Error())
		return
	}
	pageCount, err := strconv.Atoi(c.PostForm("pageCount"))
	if err != nil {
		utils.JSONAppError(c, utils.NewCodedError(utils.KindInvalidInput, "InvalidPageCount", "Page count must be a whole number"))
		return
	}
	mode, err := models.ParseColorMode(c.PostForm("colorMode"))
	if err != nil {
		utils.JSONAppError(c, utils.NewCodedError(utils.KindInvalidInput, "InvalidColorMode", "Please choose BW or Color"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Failed to read file", err.Error())
		return
	}
	defer f.Close()

	candidate := models.CandidateFile{
		Name:     fileHeader.Filename,
		MIMEType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
		Content:  f,
	}
	desc, err := h.ctrl.Upload(c.Request.Context(), candidate, pageCount, mode)
	if err != nil {
		utils.JSONAppError(c, err)
		return
	}
	logger.Info("document uploaded",
		zap.String("file", desc.FileName),
		zap.Int("pages", desc.PageCount),
		zap.Float64("total", desc.TotalCost))
	c.JSON(http.StatusOK, desc)
}

// EstimateHandler prices pages in mode without touching the backend.
func (h *KioskHandler) EstimateHandler(c *gin.Context) {
	pages, err := strconv.Atoi(c.Query("pages"))
	if err != nil || pages < 1 {
		utils.JSONError(c, http.StatusBadRequest, "Page count must be at least 1", c.Query("pages"))
		return
	}
	mode, err := models.ParseColorMode(c.Query("mode"))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Please choose BW or Color", err.Error())
		return
	}
	amount := models.CalculateCost(pages, mode)
	c.JSON(http.StatusOK, gin.H{
		"pages":       pages,
		"colorMode":   mode,
		"amount":      amount,
		"amountMinor": models.CalculateCostMinor(pages, mode),
		"formatted":   utils.FormatCurrency(amount, h.currency),
	})
}

// StartPaymentHandler begins a payment attempt. The renderer then fetches
// the checkout request and reports its outcome.
func (h *KioskHandler) StartPaymentHandler(c *gin.Context) {
	if _, err := h.ctrl.StartPayment(); err != nil {
		utils.JSONAppError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.ctrl.State())
}

// GetCheckoutHandler returns the checkout the renderer should open.
func (h *KioskHandler) GetCheckoutHandler(c *gin.Context) {
	req, ok := h.bridge.Pending()
	if !ok {
		utils.JSONError(c, http.StatusNotFound, "No checkout pending", "")
		return
	}
	c.JSON(http.StatusOK, req)
}

type checkoutResultRequest struct {
	Outcome   string `json:"outcome" binding:"required"`
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
	Reason    string `json:"reason"`
}

// CheckoutResultHandler delivers the renderer's checkout outcome to the
// waiting payment attempt.
func (h *KioskHandler) CheckoutResultHandler(c *gin.Context) {
	var req checkoutResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	orderID := req.OrderID
	if orderID == "" {
		pending, ok := h.bridge.Pending()
		if !ok {
			utils.JSONAppError(c, payment.ErrNoPendingCheckout)
			return
		}
		orderID = pending.OrderID
	}

	var outcome models.CheckoutOutcome
	switch models.OutcomeKind(strings.ToLower(req.Outcome)) {
	case models.OutcomeSuccess:
		if req.PaymentID == "" || req.Signature == "" {
			utils.JSONError(c, http.StatusBadRequest, "paymentId and signature are required", "")
			return
		}
		outcome = models.CheckoutSucceeded(models.PaymentVerification{
			PaymentID: req.PaymentID,
			OrderID:   orderID,
			Signature: req.Signature,
		})
	case models.OutcomeCancelled:
		outcome = models.CheckoutCancelled()
	case models.OutcomeFailure:
		outcome = models.CheckoutFailed(req.Reason)
	default:
		utils.JSONError(c, http.StatusBadRequest, "Unknown outcome", req.Outcome)
		return
	}

	if err := h.bridge.Resolve(orderID, outcome); err != nil {
		utils.JSONAppError(c, err)
		return
	}
	getLogger(c).Info("checkout resolved", zap.String("orderID", orderID), zap.String("outcome", string(outcome.Kind)))
	c.JSON(http.StatusAccepted, gin.H{"message": "Checkout result received"})
}

// DismissNotificationHandler clears the notification slot.
func (h *KioskHandler) DismissNotificationHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Dismiss())
}
