package storage

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
)

// previewTransformation renders the first page, fitted to the kiosk's preview pane.
const previewTransformation = "pg_1,w_480,c_limit"

var (
	ErrNotCloudinary = errors.New("not a cloudinary delivery url")
	ErrNoPreview     = errors.New("document type has no image preview")

	versionSegment = regexp.MustCompile(`^v\d+$`)
	transformParam = regexp.MustCompile(`^([a-z]{1,3})_.+$`)
)

// transformKeys are the Cloudinary URL parameters a delivery path may carry
// ahead of the public id.
var transformKeys = map[string]bool{
	"a": true, "ac": true, "af": true, "ar": true, "b": true, "bo": true, "c": true,
	"co": true, "cs": true, "d": true, "dl": true, "dn": true, "dpr": true, "du": true,
	"e": true, "eo": true, "f": true, "fl": true, "fn": true, "fps": true, "g": true,
	"h": true, "if": true, "ki": true, "l": true, "o": true, "p": true, "pg": true,
	"q": true, "r": true, "so": true, "sp": true, "t": true, "u": true, "vc": true,
	"vs": true, "w": true, "x": true, "y": true, "z": true,
}

// isTransformation reports whether every comma-separated component of seg
// is a known transformation parameter.
func isTransformation(seg string) bool {
	for _, part := range strings.Split(seg, ",") {
		m := transformParam.FindStringSubmatch(part)
		if m == nil || !transformKeys[m[1]] {
			return false
		}
	}
	return true
}

var _ PreviewService = (*CloudinaryStorage)(nil)

// CloudinaryStorage builds delivery URLs for documents held in Cloudinary.
type CloudinaryStorage struct {
	cld       *cloudinary.Cloudinary
	cloudName string
}

// NewCloudinaryStorage creates a CloudinaryStorage from account credentials.
func NewCloudinaryStorage(cloudName, apiKey, apiSecret string) (*CloudinaryStorage, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("cloudinary credentials not set in configuration")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	cld.Config.URL.Analytics = false
	return &CloudinaryStorage{cld: cld, cloudName: cloudName}, nil
}

// Asset is a stored document as addressed by Cloudinary.
type Asset struct {
	CloudName    string
	ResourceType string
	PublicID     string
	Format       string
}

// ParseDeliveryURL splits a Cloudinary delivery URL into its parts. Any
// transformation and version segments are dropped.
func ParseDeliveryURL(raw string) (Asset, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Asset{}, fmt.Errorf("invalid storage url: %w", err)
	}
	if !strings.HasSuffix(u.Hostname(), "cloudinary.com") {
		return Asset{}, ErrNotCloudinary
	}

	// /<cloud>/<resource>/<delivery>/[<transformations>/][v<version>/]<public id>
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 {
		return Asset{}, ErrNotCloudinary
	}
	a := Asset{CloudName: parts[0], ResourceType: parts[1]}
	rest := parts[3:]
	for len(rest) > 1 && isTransformation(rest[0]) {
		rest = rest[1:]
	}
	if len(rest) > 1 && versionSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return Asset{}, ErrNotCloudinary
	}

	id := strings.Join(rest, "/")
	ext := path.Ext(id)
	a.PublicID = strings.TrimSuffix(id, ext)
	a.Format = strings.TrimPrefix(ext, ".")
	return a, nil
}

// PreviewURL returns a JPEG of the document's first page. Only image
// resources (which include PDFs) can be previewed.
func (s *CloudinaryStorage) PreviewURL(storageURL string) (string, error) {
	a, err := ParseDeliveryURL(storageURL)
	if err != nil {
		return "", err
	}
	if a.ResourceType != "image" {
		return "", ErrNoPreview
	}

	img, err := s.cld.Image(a.PublicID + ".jpg")
	if err != nil {
		return "", fmt.Errorf("failed to get asset: %w", err)
	}
	img.Transformation = previewTransformation
	preview, err := img.String()
	if err != nil {
		return "", fmt.Errorf("failed to get URL string: %w", err)
	}
	return preview, nil
}
