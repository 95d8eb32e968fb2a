// Package upload validates candidate documents and transfers them to the
// print backend, producing the priced upload descriptor.
package upload

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"atpkiosk/gateway"
	"atpkiosk/models"
	"atpkiosk/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transfer modes.
const (
	ModeMultipart = "multipart"
	ModePresigned = "presigned"
)

type DefaultUploadService struct {
	backend   Backend
	mode      string
	previewer Previewer
	logger    *zap.Logger
	newKey    func() string

	mu      sync.Mutex
	pending pendingUpload
}

// pendingUpload is a transfer whose outcome is unknown. Sending the same
// document again repeats its key.
type pendingUpload struct {
	key       string
	sessionID string
	name      string
	mimeType  string
	size      int64
	pages     int
	mode      models.ColorMode
}

func pendingFor(req models.UploadRequest) pendingUpload {
	return pendingUpload{
		sessionID: req.SessionID,
		name:      req.File.Name,
		mimeType:  req.File.MIMEType,
		size:      req.File.Size,
		pages:     req.PageCount,
		mode:      req.ColorMode,
	}
}

// idempotencyKey returns the key for req, repeating the key of an unresolved
// transfer of the same document.
func (s *DefaultUploadService) idempotencyKey(req models.UploadRequest) string {
	want := pendingFor(req)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.key != "" {
		want.key = s.pending.key
		if s.pending == want {
			return want.key
		}
	}
	want.key = s.newKey()
	s.pending = want
	return want.key
}

// settle forgets the pending key once the backend has given a definite answer.
func (s *DefaultUploadService) settle(ctx context.Context, err error) {
	if err != nil && (ctx.Err() != nil || utils.IsKind(err, utils.KindNetworkError) || utils.IsKind(err, utils.KindCancelled)) {
		return
	}
	s.mu.Lock()
	s.pending = pendingUpload{}
	s.mu.Unlock()
}

// NewUploadService builds the coordinator. previewer may be nil.
func NewUploadService(backend Backend, mode string, previewer Previewer, logger *zap.Logger) *DefaultUploadService {
	if mode == "" {
		mode = ModeMultipart
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultUploadService{
		backend:   backend,
		mode:      mode,
		previewer: previewer,
		logger:    logger,
		newKey:    func() string { return uuid.New().String() },
	}
}

// progressGate forwards only forward-moving percentages and remembers the last.
type progressGate struct {
	mu   sync.Mutex
	last int
	fn   gateway.ProgressFunc
}

func newProgressGate(fn gateway.ProgressFunc) *progressGate {
	return &progressGate{last: -1, fn: fn}
}

func (g *progressGate) report(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if pct <= g.last {
		return
	}
	g.last = pct
	if g.fn != nil {
		g.fn(pct)
	}
}

func (s *DefaultUploadService) Upload(ctx context.Context, req models.UploadRequest, onProgress gateway.ProgressFunc) (*models.UploadDescriptor, error) {
	file, err := Admit(req.File, req.PageCount, req.ColorMode)
	if err != nil {
		return nil, err
	}
	req.File = file

	logger := s.logger.With(
		zap.String("sessionID", req.SessionID),
		zap.String("file", req.File.Name),
		zap.String("mode", s.mode))

	gate := newProgressGate(onProgress)
	gate.report(0)
	key := s.idempotencyKey(req)

	var result *models.UploadResult
	switch s.mode {
	case ModePresigned:
		result, err = s.uploadPresigned(ctx, req, key, gate.report)
	default:
		result, err = s.backend.UploadDocument(ctx, req, key, gate.report)
	}
	s.settle(ctx, err)
	if err != nil {
		logger.Warn("upload failed", zap.Error(err))
		return nil, err
	}
	gate.report(100)

	desc := reconcile(req, *result)
	if desc.PriceAdjusted {
		logger.Info("server price differs from estimate",
			zap.Float64("estimate", desc.EstimatedCost),
			zap.Float64("total", desc.TotalCost))
	}
	if s.previewer != nil && desc.StorageURL != "" {
		preview, err := s.previewer.PreviewURL(desc.StorageURL)
		if err != nil {
			logger.Debug("no preview for stored document", zap.Error(err))
		} else {
			desc.PreviewURL = preview
		}
	}
	logger.Info("document uploaded",
		zap.Int("pages", desc.PageCount),
		zap.Float64("total", desc.TotalCost))
	return &desc, nil
}

func (s *DefaultUploadService) uploadPresigned(ctx context.Context, req models.UploadRequest, key string, onProgress gateway.ProgressFunc) (*models.UploadResult, error) {
	placement, err := s.backend.RequestUploadURL(ctx, req, key)
	if err != nil {
		return nil, err
	}
	if err := s.backend.PutPresigned(ctx, placement.UploadURL, req.File, onProgress); err != nil {
		return nil, err
	}
	return &placement.UploadResult, nil
}

// reconcile builds the descriptor, letting the server's values win and
// keeping the local estimate for comparison.
func reconcile(req models.UploadRequest, res models.UploadResult) models.UploadDescriptor {
	desc := models.UploadDescriptor{
		FileName:   res.FileName,
		Size:       req.File.Size,
		PageCount:  res.PageCount,
		ColorMode:  res.ColorMode,
		StorageURL: res.StorageURL,
		QRCodeURL:  res.QRCodeURL,
	}
	if desc.FileName == "" {
		desc.FileName = req.File.Name
	}
	if desc.PageCount <= 0 {
		desc.PageCount = req.PageCount
	}
	if !desc.ColorMode.Valid() {
		desc.ColorMode = req.ColorMode
	}

	estimate := models.CalculateCostMinor(req.PageCount, req.ColorMode)
	desc.EstimatedCost = models.FromMinorUnits(estimate)
	total := models.ToMinorUnits(res.Amount)
	if res.Amount <= 0 {
		total = models.CalculateCostMinor(desc.PageCount, desc.ColorMode)
	}
	desc.TotalCost = models.FromMinorUnits(total)
	desc.PriceAdjusted = total != estimate
	return desc
}

// OpenCandidate opens a file from disk as an upload candidate. The type is
// guessed from the extension; an unknown extension leaves it for sniffing.
// The caller closes the returned file.
func OpenCandidate(path string) (models.CandidateFile, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.CandidateFile{}, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return models.CandidateFile{}, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return models.CandidateFile{}, nil, utils.NewError(utils.KindInvalidInput, "Please choose a file, not a folder", fmt.Errorf("%s is a directory", path))
	}
	return models.CandidateFile{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(filepath.Ext(path)),
		Size:     info.Size(),
		Content:  f,
	}, f, nil
}
