package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"atpkiosk/models"
	"atpkiosk/utils"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize is the largest document the kiosk accepts.
const MaxFileSize int64 = 10 << 20

// sniffLen is how much of an undeclared file is read to detect its type.
const sniffLen = 3072

const (
	CodeInvalidFileType  = "InvalidFileType"
	CodeFileTooLarge     = "FileTooLarge"
	CodeInvalidPageCount = "InvalidPageCount"
	CodeInvalidColorMode = "InvalidColorMode"
)

var allowedTypes = map[string]struct{}{
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"image/jpeg": {},
	"image/png":  {},
}

var typeAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
}

// NormalizeMIME lowercases a media type, drops its parameters and resolves
// aliases. An unparsable value yields "".
func NormalizeMIME(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(raw, ";", 2)[0]))
	}
	if alias, ok := typeAliases[mediaType]; ok {
		return alias
	}
	return mediaType
}

// Allowed reports whether the media type is printable.
func Allowed(mimeType string) bool {
	_, ok := allowedTypes[NormalizeMIME(mimeType)]
	return ok
}

// Admit checks a candidate locally, before any network traffic. The
// returned file has a normalized type; an undeclared type is sniffed from
// the first bytes, which remain readable from the returned Content.
func Admit(file models.CandidateFile, pageCount int, mode models.ColorMode) (models.CandidateFile, error) {
	if file.MIMEType == "" && file.Content != nil {
		sniffed, content, err := sniff(file.Content)
		if err != nil {
			return file, utils.NewError(utils.KindInvalidInput, "Could not read the selected file", err)
		}
		file.MIMEType = sniffed
		file.Content = content
	}
	file.MIMEType = NormalizeMIME(file.MIMEType)

	if _, ok := allowedTypes[file.MIMEType]; !ok {
		return file, utils.NewCodedError(utils.KindInvalidInput, CodeInvalidFileType,
			"Invalid file type. Please upload PDF, DOCX, JPG, or PNG files.")
	}
	if file.Size > MaxFileSize {
		return file, utils.NewCodedError(utils.KindInvalidInput, CodeFileTooLarge,
			fmt.Sprintf("File too large. Maximum size is %s.", utils.FormatFileSize(MaxFileSize)))
	}
	if pageCount < 1 {
		return file, utils.NewCodedError(utils.KindInvalidInput, CodeInvalidPageCount,
			"Page count must be at least 1.")
	}
	if !mode.Valid() {
		return file, utils.NewCodedError(utils.KindInvalidInput, CodeInvalidColorMode,
			"Please choose Black & White or Color.")
	}
	return file, nil
}

func sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]
	return mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), r), nil
}
