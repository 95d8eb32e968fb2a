package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"atpkiosk/models"
	"atpkiosk/services/navigation"
	"atpkiosk/services/payment"
	"atpkiosk/services/task"
	"atpkiosk/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var zapNop = zap.NewNop()

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeController struct {
	mu         sync.Mutex
	state      navigation.State
	opened     []string
	navigated  []models.Stage
	allowed    bool
	uploadErr  error
	uploaded   models.CandidateFile
	uploadBody string
	payErr     error
	dismissed  int
}

func newFakeController() *fakeController {
	return &fakeController{state: navigation.Initial(), allowed: true}
}

func (f *fakeController) State() navigation.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) Subscribe() (<-chan navigation.State, func()) {
	ch := make(chan navigation.State, 1)
	ch <- f.State()
	close(ch)
	return ch, func() {}
}

func (f *fakeController) Open(sessionID string) navigation.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, sessionID)
	f.state = navigation.Reduce(f.state, navigation.SessionRequested{SessionID: sessionID})
	return f.state
}

func (f *fakeController) Navigate(to models.Stage) (navigation.State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, to)
	if f.allowed {
		f.state.Stage = to
	} else {
		f.state.Notification = &models.Notification{Message: navigation.MsgUploadFirst, Severity: models.SeverityError}
	}
	return f.state, f.allowed
}

func (f *fakeController) Upload(_ context.Context, file models.CandidateFile, pageCount int, mode models.ColorMode) (*models.UploadDescriptor, error) {
	body, _ := io.ReadAll(file.Content)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = file
	f.uploadBody = string(body)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	total := models.CalculateCost(pageCount, mode)
	return &models.UploadDescriptor{FileName: file.Name, Size: file.Size, PageCount: pageCount, ColorMode: mode, TotalCost: total, EstimatedCost: total}, nil
}

func (f *fakeController) StartPayment() (*task.Handle, error) {
	if f.payErr != nil {
		return nil, f.payErr
	}
	return task.Go(context.Background(), zapNop, "payment", func(context.Context) {}), nil
}

func (f *fakeController) Dismiss() navigation.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed++
	f.state.Notification = nil
	return f.state
}

func newTestRouter(ctrl KioskController, bridge CheckoutBridge) *gin.Engine {
	h := NewKioskHandler(ctrl, bridge, "INR")
	r := gin.New()
	api := r.Group("/api/kiosk")
	api.GET("/state", h.GetStateHandler)
	api.GET("/events", h.StreamEventsHandler)
	api.POST("/session/:sessionID", h.OpenSessionHandler)
	api.POST("/navigate", h.NavigateHandler)
	api.POST("/upload", h.UploadHandler)
	api.GET("/estimate", h.EstimateHandler)
	api.POST("/payment", h.StartPaymentHandler)
	api.GET("/checkout", h.GetCheckoutHandler)
	api.POST("/checkout/result", h.CheckoutResultHandler)
	api.DELETE("/notification", h.DismissNotificationHandler)
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOpenSessionHandler(t *testing.T) {
	ctrl := newFakeController()
	r := newTestRouter(ctrl, payment.NewBridgeCheckout())

	w := doJSON(r, http.MethodPost, "/api/kiosk/session/abc123", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var st navigation.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "abc123", st.SessionID)
	assert.True(t, st.SessionLoading)
	assert.Equal(t, []string{"abc123"}, ctrl.opened)
}

func TestNavigateHandler(t *testing.T) {
	ctrl := newFakeController()
	r := newTestRouter(ctrl, payment.NewBridgeCheckout())

	w := doJSON(r, http.MethodPost, "/api/kiosk/navigate", gin.H{"stage": "upload"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"accepted":true`)

	ctrl.allowed = false
	w = doJSON(r, http.MethodPost, "/api/kiosk/navigate", gin.H{"stage": "payment"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), navigation.MsgUploadFirst)

	w = doJSON(r, http.MethodPost, "/api/kiosk/navigate", gin.H{"stage": "checkout"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/kiosk/navigate", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []models.Stage{models.StageUpload, models.StagePayment}, ctrl.navigated)
}

func uploadRequest(t *testing.T, fields map[string]string, fileName, contentType, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/kiosk/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler(t *testing.T) {
	ctrl := newFakeController()
	r := newTestRouter(ctrl, payment.NewBridgeCheckout())

	req := uploadRequest(t, map[string]string{"pageCount": "3", "colorMode": "BW"}, "doc.pdf", "application/pdf", "%PDF-1.4 test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var desc models.UploadDescriptor
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &desc))
	assert.Equal(t, "doc.pdf", desc.FileName)
	assert.Equal(t, 3, desc.PageCount)
	assert.InDelta(t, 7.50, desc.TotalCost, 1e-9)
	assert.Equal(t, "application/pdf", ctrl.uploaded.MIMEType)
	assert.Equal(t, int64(len("%PDF-1.4 test")), ctrl.uploaded.Size)
	assert.Equal(t, "%PDF-1.4 test", ctrl.uploadBody)
}

func TestUploadHandler_BadInput(t *testing.T) {
	ctrl := newFakeController()
	r := newTestRouter(ctrl, payment.NewBridgeCheckout())

	tests := []struct {
		name   string
		fields map[string]string
		file   string
		code   string
	}{
		{"missing file", map[string]string{"pageCount": "1", "colorMode": "BW"}, "", ""},
		{"bad page count", map[string]string{"pageCount": "two", "colorMode": "BW"}, "a.pdf", "InvalidPageCount"},
		{"bad mode", map[string]string{"pageCount": "2", "colorMode": "sepia"}, "a.pdf", "InvalidColorMode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, uploadRequest(t, tt.fields, tt.file, "application/pdf", "x"))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			if tt.code != "" {
				var resp utils.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.code, resp.Code)
			}
		})
	}
}

func TestUploadHandler_ErrorKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{utils.NewCodedError(utils.KindInvalidInput, "FileTooLarge", "File size must be less than 10MB"), http.StatusBadRequest},
		{utils.NewError(utils.KindExpired, navigation.MsgExpired, nil), http.StatusGone},
		{utils.NewError(utils.KindNetworkError, "Network error", nil), http.StatusBadGateway},
		{utils.NewError(utils.KindServerRejected, "Corrupt PDF", nil), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		ctrl := newFakeController()
		ctrl.uploadErr = tt.err
		r := newTestRouter(ctrl, payment.NewBridgeCheckout())

		w := httptest.NewRecorder()
		r.ServeHTTP(w, uploadRequest(t, map[string]string{"pageCount": "1", "colorMode": "Color"}, "a.png", "image/png", "png"))
		assert.Equal(t, tt.status, w.Code)

		var resp utils.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, utils.UserMessage(tt.err), resp.Message)
		assert.Equal(t, string(utils.KindOf(tt.err)), resp.Kind)
	}
}

func TestEstimateHandler(t *testing.T) {
	r := newTestRouter(newFakeController(), payment.NewBridgeCheckout())

	w := doJSON(r, http.MethodGet, "/api/kiosk/estimate?pages=3&mode=BW", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Amount      float64 `json:"amount"`
		AmountMinor int64   `json:"amountMinor"`
		Formatted   string  `json:"formatted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 7.50, resp.Amount, 1e-9)
	assert.Equal(t, int64(750), resp.AmountMinor)
	assert.Equal(t, "₹7.50", resp.Formatted)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/api/kiosk/estimate?pages=0&mode=BW", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/api/kiosk/estimate?pages=2&mode=gold", nil).Code)
}

func TestStartPaymentHandler(t *testing.T) {
	ctrl := newFakeController()
	r := newTestRouter(ctrl, payment.NewBridgeCheckout())
	assert.Equal(t, http.StatusAccepted, doJSON(r, http.MethodPost, "/api/kiosk/payment", nil).Code)

	ctrl.payErr = utils.NewCodedError(utils.KindInvalidInput, payment.CodePaymentInProgress, navigation.MsgPaymentInFlight)
	w := doJSON(r, http.MethodPost, "/api/kiosk/payment", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), navigation.MsgPaymentInFlight)
}

func openCheckout(t *testing.T, bridge *payment.BridgeCheckout, req models.CheckoutRequest) <-chan models.CheckoutOutcome {
	t.Helper()
	out := make(chan models.CheckoutOutcome, 1)
	go func() {
		outcome, err := bridge.Open(context.Background(), req)
		if err == nil {
			out <- outcome
		}
		close(out)
	}()
	require.Eventually(t, func() bool {
		_, ok := bridge.Pending()
		return ok
	}, time.Second, 5*time.Millisecond)
	return out
}

func TestCheckoutFlow(t *testing.T) {
	bridge := payment.NewBridgeCheckout()
	r := newTestRouter(newFakeController(), bridge)

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/api/kiosk/checkout", nil).Code)

	req := models.CheckoutRequest{Key: "rzp_test", OrderID: "order_1", Amount: 750, Currency: "INR", Name: "ATP Printing System"}
	result := openCheckout(t, bridge, req)

	w := doJSON(r, http.MethodGet, "/api/kiosk/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.CheckoutRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, req, got)

	w = doJSON(r, http.MethodPost, "/api/kiosk/checkout/result", gin.H{
		"outcome": "success", "orderId": "order_1", "paymentId": "pay_9", "signature": "sig",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	outcome := <-result
	assert.Equal(t, models.OutcomeSuccess, outcome.Kind)
	require.NotNil(t, outcome.Success)
	assert.Equal(t, models.PaymentVerification{PaymentID: "pay_9", OrderID: "order_1", Signature: "sig"}, *outcome.Success)

	// Exactly one outcome per checkout.
	w = doJSON(r, http.MethodPost, "/api/kiosk/checkout/result", gin.H{"outcome": "cancelled", "orderId": "order_1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutResultHandler_Outcomes(t *testing.T) {
	tests := []struct {
		body gin.H
		want models.CheckoutOutcome
	}{
		{gin.H{"outcome": "cancelled"}, models.CheckoutCancelled()},
		{gin.H{"outcome": "FAILURE", "reason": "card declined"}, models.CheckoutFailed("card declined")},
	}
	for _, tt := range tests {
		bridge := payment.NewBridgeCheckout()
		r := newTestRouter(newFakeController(), bridge)
		result := openCheckout(t, bridge, models.CheckoutRequest{OrderID: "order_2", Amount: 500})

		w := doJSON(r, http.MethodPost, "/api/kiosk/checkout/result", tt.body)
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		assert.Equal(t, tt.want, <-result)
	}
}

func TestCheckoutResultHandler_Rejects(t *testing.T) {
	bridge := payment.NewBridgeCheckout()
	r := newTestRouter(newFakeController(), bridge)

	// Nothing pending.
	w := doJSON(r, http.MethodPost, "/api/kiosk/checkout/result", gin.H{"outcome": "cancelled"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	result := openCheckout(t, bridge, models.CheckoutRequest{OrderID: "order_3", Amount: 250})

	w = doJSON(r, http.MethodPost, "/api/kiosk/checkout/result", gin.H{"outcome": "success", "orderId": "order_3"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/kiosk/checkout/result", gin.H{"outcome": "cancelled", "orderId": "order_other"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/kiosk/checkout/result", gin.H{"outcome": "maybe", "orderId": "order_3"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, pending := bridge.Pending()
	assert.True(t, pending)

	w = doJSON(r, http.MethodPost, "/api/kiosk/checkout/result", gin.H{"outcome": "cancelled", "orderId": "order_3"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.OutcomeCancelled, (<-result).Kind)
}

func TestStreamEventsHandler(t *testing.T) {
	ctrl := newFakeController()
	ctrl.Open("abc123")
	srv := httptest.NewServer(newTestRouter(ctrl, payment.NewBridgeCheckout()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/kiosk/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.True(t, strings.HasPrefix(body, "event:state\n"), body)
	assert.Contains(t, body, `"sessionId":"abc123"`)
}

func TestDismissAndState(t *testing.T) {
	ctrl := newFakeController()
	ctrl.state.Notification = &models.Notification{Message: "x", Severity: models.SeverityInfo}
	r := newTestRouter(ctrl, payment.NewBridgeCheckout())

	w := doJSON(r, http.MethodGet, "/api/kiosk/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"notification"`)

	w = doJSON(r, http.MethodDelete, "/api/kiosk/notification", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"notification"`)
	assert.Equal(t, 1, ctrl.dismissed)
}
