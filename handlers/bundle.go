package handlers

import "github.com/gin-gonic/gin"

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Renderer token secret; empty leaves the kiosk API open.
	AuthSecret  string
	CORSOrigins []string
	RatePerMin  int

	// Kiosk endpoints
	GetStateHandler            gin.HandlerFunc
	StreamEventsHandler        gin.HandlerFunc
	OpenSessionHandler         gin.HandlerFunc
	NavigateHandler            gin.HandlerFunc
	UploadHandler              gin.HandlerFunc
	EstimateHandler            gin.HandlerFunc
	StartPaymentHandler        gin.HandlerFunc
	GetCheckoutHandler         gin.HandlerFunc
	CheckoutResultHandler      gin.HandlerFunc
	DismissNotificationHandler gin.HandlerFunc
}

// NewHandlerBundle assembles the bundle for a kiosk handler.
func NewHandlerBundle(kh *KioskHandler, authSecret string, corsOrigins []string, ratePerMin int) *HandlerBundle {
	return &HandlerBundle{
		AuthSecret:  authSecret,
		CORSOrigins: corsOrigins,
		RatePerMin:  ratePerMin,

		GetStateHandler:            kh.GetStateHandler,
		StreamEventsHandler:        kh.StreamEventsHandler,
		OpenSessionHandler:         kh.OpenSessionHandler,
		NavigateHandler:            kh.NavigateHandler,
		UploadHandler:              kh.UploadHandler,
		EstimateHandler:            kh.EstimateHandler,
		StartPaymentHandler:        kh.StartPaymentHandler,
		GetCheckoutHandler:         kh.GetCheckoutHandler,
		CheckoutResultHandler:      kh.CheckoutResultHandler,
		DismissNotificationHandler: kh.DismissNotificationHandler,
	}
}
