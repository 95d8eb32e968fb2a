package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"atpkiosk/models"
	"atpkiosk/utils"
)

// ProgressFunc receives transfer progress as a percentage in 0..100.
type ProgressFunc func(percent int)

// progressReader reports how much of total has been read, only when the
// whole-percent value moves forward.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	last       int
	onProgress ProgressFunc
}

func newProgressReader(r io.Reader, total int64, onProgress ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, last: -1, onProgress: onProgress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.onProgress != nil && p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct > p.last {
			p.last = pct
			p.onProgress(pct)
		}
	}
	return n, err
}

type uploadData struct {
	FileName      string           `json:"fileName"`
	PageCount     int              `json:"pageCount"`
	ColorMode     models.ColorMode `json:"colorMode"`
	Amount        float64          `json:"amount"`
	StorageURL    string           `json:"storageUrl"`
	CloudinaryURL string           `json:"cloudinaryUrl"`
	FileURL       string           `json:"fileUrl"`
	QRCodeURL     string           `json:"qrCodeUrl"`
}

func (d uploadData) result() models.UploadResult {
	storageURL := d.StorageURL
	if storageURL == "" {
		storageURL = d.CloudinaryURL
	}
	if storageURL == "" {
		storageURL = d.FileURL
	}
	return models.UploadResult{
		FileName:   d.FileName,
		PageCount:  d.PageCount,
		ColorMode:  d.ColorMode,
		Amount:     d.Amount,
		StorageURL: storageURL,
		QRCodeURL:  d.QRCodeURL,
	}
}

type uploadResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    uploadData `json:"data"`
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeUploadForm(mw *multipart.Writer, req models.UploadRequest, onProgress ProgressFunc) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(req.File.Name)))
	contentType := req.File.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, newProgressReader(req.File.Content, req.File.Size, onProgress)); err != nil {
		return fmt.Errorf("failed to stream file: %w", err)
	}

	fields := []struct{ name, value string }{
		{"sessionId", req.SessionID},
		{"pageCount", strconv.Itoa(req.PageCount)},
		{"colorMode", string(req.ColorMode)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}
	return mw.Close()
}

// UploadDocument streams the file and print options to the backend as a
// multipart form. Progress tracks file bytes handed to the transport.
func (c *Client) UploadDocument(ctx context.Context, req models.UploadRequest, idempotencyKey string, onProgress ProgressFunc) (*models.UploadResult, error) {
	const fallback = "Upload failed. Please try again."

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, req, onProgress))
	}()

	httpReq, err := c.newRequest(ctx, http.MethodPost, c.endpoint("/api/upload"), pr)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	if idempotencyKey != "" {
		httpReq.Header.Set(headerIdempotency, idempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, httpReq, err)
	}
	defer resp.Body.Close()

	var out uploadResponse
	if err := c.decode(httpReq, resp, &out, fallback); err != nil {
		return nil, err
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = fallback
		}
		return nil, utils.NewError(utils.KindServerRejected, msg, errors.New("upload not accepted"))
	}
	result := out.Data.result()
	return &result, nil
}

type uploadURLRequest struct {
	Filename    string           `json:"filename"`
	ContentType string           `json:"contentType"`
	PageCount   int              `json:"pageCount"`
	ColorMode   models.ColorMode `json:"colorMode"`
}

type placementResponse struct {
	UploadURL string `json:"uploadUrl"`
	uploadData
}

// RequestUploadURL asks the backend for a presigned upload destination.
func (c *Client) RequestUploadURL(ctx context.Context, req models.UploadRequest, idempotencyKey string) (*models.UploadPlacement, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set(headerIdempotency, idempotencyKey)
	}
	body := uploadURLRequest{
		Filename:    req.File.Name,
		ContentType: req.File.MIMEType,
		PageCount:   req.PageCount,
		ColorMode:   req.ColorMode,
	}

	var out placementResponse
	err := c.doJSON(ctx, http.MethodPost, c.endpoint("/api/session/%s/upload-request", req.SessionID),
		body, &out, "Failed to get upload URL", header)
	if err != nil {
		return nil, err
	}
	if out.UploadURL == "" {
		return nil, utils.NewError(utils.KindServerRejected, "Failed to get upload URL", errors.New("placement has no upload url"))
	}
	return &models.UploadPlacement{UploadURL: out.UploadURL, UploadResult: out.uploadData.result()}, nil
}

// PutPresigned uploads the raw file to a presigned URL. The backend's bearer
// token is deliberately not sent to the storage host.
func (c *Client) PutPresigned(ctx context.Context, uploadURL string, file models.CandidateFile, onProgress ProgressFunc) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, newProgressReader(file.Content, file.Size, onProgress))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.ContentLength = file.Size
	if file.MIMEType != "" {
		httpReq.Header.Set("Content-Type", file.MIMEType)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return c.transportError(ctx, httpReq, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Warn("storage rejected upload")
		return utils.NewError(utils.KindServerRejected, "Failed to upload file to storage",
			fmt.Errorf("storage responded %d", resp.StatusCode))
	}
	return nil
}
