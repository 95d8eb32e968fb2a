package storage

// PreviewService derives display URLs for documents the backend stored.
type PreviewService interface {
	// PreviewURL returns a first-page image of the stored document.
	PreviewURL(storageURL string) (string, error)
}
