package models

import "io"

// CandidateFile is a document offered for upload, before admission.
type CandidateFile struct {
	Name     string
	MIMEType string
	Size     int64
	Content  io.Reader
}

// UploadRequest bundles a candidate file with the print options chosen for it.
type UploadRequest struct {
	SessionID string
	File      CandidateFile
	PageCount int
	ColorMode ColorMode
}

// UploadDescriptor is the priced job produced by a successful upload.
// The server's page count, mode and total are authoritative.
type UploadDescriptor struct {
	FileName      string    `json:"filename"`
	Size          int64     `json:"size"`
	PageCount     int       `json:"pageCount"`
	ColorMode     ColorMode `json:"colorMode"`
	TotalCost     float64   `json:"totalCost"`
	StorageURL    string    `json:"storageUrl"`
	QRCodeURL     string    `json:"qrCodeUrl,omitempty"`
	PreviewURL    string    `json:"previewUrl,omitempty"`
	EstimatedCost float64   `json:"estimatedCost"`
	PriceAdjusted bool      `json:"priceAdjusted"`
}

// AmountMinor is the total in minor units, as sent to order creation.
func (d UploadDescriptor) AmountMinor() int64 {
	return ToMinorUnits(d.TotalCost)
}

// UploadResult is what the backend reports after storing a document.
type UploadResult struct {
	FileName   string    `json:"fileName"`
	PageCount  int       `json:"pageCount"`
	ColorMode  ColorMode `json:"colorMode"`
	Amount     float64   `json:"amount"`
	StorageURL string    `json:"storageUrl"`
	QRCodeURL  string    `json:"qrCodeUrl"`
}

// UploadPlacement is a presigned destination issued by the backend.
type UploadPlacement struct {
	UploadURL string `json:"uploadUrl"`
	UploadResult
}
