package upload

import (
	"context"

	"atpkiosk/gateway"
	"atpkiosk/models"
)

// UploadService admits a document and turns it into a priced job.
type UploadService interface {
	Upload(ctx context.Context, req models.UploadRequest, onProgress gateway.ProgressFunc) (*models.UploadDescriptor, error)
}

// Backend is the part of the gateway the upload coordinator needs.
type Backend interface {
	UploadDocument(ctx context.Context, req models.UploadRequest, idempotencyKey string, onProgress gateway.ProgressFunc) (*models.UploadResult, error)
	RequestUploadURL(ctx context.Context, req models.UploadRequest, idempotencyKey string) (*models.UploadPlacement, error)
	PutPresigned(ctx context.Context, uploadURL string, file models.CandidateFile, onProgress gateway.ProgressFunc) error
}

// Previewer derives a preview image URL for a stored document.
type Previewer interface {
	PreviewURL(storageURL string) (string, error)
}
