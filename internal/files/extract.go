package files

import (
	"bytes"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const contentTypePDF = "application/pdf"

var textTypes = map[string]bool{
	"application/json":     true,
	"application/xml":      true,
	"application/x-yaml":   true,
	"application/yaml":     true,
	"application/x-ndjson": true,
}

// DetectContentType prefers the declared type, then the extension, then
// content sniffing.
func DetectContentType(declared, filename string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ext := filepath.Ext(filename); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return http.DetectContentType(data)
}

// IsText reports whether contentType carries plain readable text.
func IsText(contentType string) bool {
	base, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		base = contentType
	}
	return strings.HasPrefix(base, "text/") || textTypes[base]
}

// ExtractText returns the readable text of data, or "" when the type has
// none. Invalid UTF-8 is rejected.
func ExtractText(contentType string, data []byte) (string, error) {
	if !IsText(contentType) {
		return "", nil
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidFile
	}
	return string(data), nil
}

// PageCount returns the page count of a PDF, or nil for other types.
func PageCount(contentType string, data []byte) (*int, error) {
	base, _, _ := mime.ParseMediaType(contentType)
	if base != contentTypePDF {
		return nil, nil
	}

	count, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, err
	}
	return &count, nil
}
