package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeliveryURL(t *testing.T) {
	tests := []struct {
		raw  string
		want Asset
	}{
		{
			"https://res.cloudinary.com/demo/image/upload/v1712345678/prints/doc.pdf",
			Asset{CloudName: "demo", ResourceType: "image", PublicID: "prints/doc", Format: "pdf"},
		},
		{
			"https://res.cloudinary.com/demo/image/upload/w_100/v2/prints/scan.png",
			Asset{CloudName: "demo", ResourceType: "image", PublicID: "prints/scan", Format: "png"},
		},
		{
			"https://res.cloudinary.com/demo/image/upload/c_fill,w_100/prints/doc.pdf",
			Asset{CloudName: "demo", ResourceType: "image", PublicID: "prints/doc", Format: "pdf"},
		},
		{
			"https://res.cloudinary.com/demo/image/upload/pg_2/e_grayscale/my_prints/doc.pdf",
			Asset{CloudName: "demo", ResourceType: "image", PublicID: "my_prints/doc", Format: "pdf"},
		},
		{
			"https://res.cloudinary.com/demo/raw/upload/report.docx",
			Asset{CloudName: "demo", ResourceType: "raw", PublicID: "report", Format: "docx"},
		},
	}
	for _, tt := range tests {
		got, err := ParseDeliveryURL(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseDeliveryURL("https://files.example.com/prints/doc.pdf")
	assert.ErrorIs(t, err, ErrNotCloudinary)
	_, err = ParseDeliveryURL("https://res.cloudinary.com/demo/image")
	assert.ErrorIs(t, err, ErrNotCloudinary)
}

func TestPreviewURL(t *testing.T) {
	s, err := NewCloudinaryStorage("demo", "key", "secret")
	require.NoError(t, err)

	preview, err := s.PreviewURL("https://res.cloudinary.com/demo/image/upload/v1712345678/prints/doc.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(preview, "https://res.cloudinary.com/demo/image/upload/"), preview)
	assert.Contains(t, preview, previewTransformation)
	assert.True(t, strings.HasSuffix(preview, "prints/doc.jpg"), preview)
	assert.NotContains(t, preview, "?")

	_, err = s.PreviewURL("https://res.cloudinary.com/demo/raw/upload/report.docx")
	assert.ErrorIs(t, err, ErrNoPreview)
}

func TestNewCloudinaryStorage_RequiresCredentials(t *testing.T) {
	_, err := NewCloudinaryStorage("demo", "", "secret")
	assert.Error(t, err)
}
