package ingest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aman-CERP/minirag/internal/config"
	raerrors "github.com/Aman-CERP/minirag/internal/errors"
)

// Validator enforces upload limits before and after extraction.
type Validator struct {
	maxFileSize int64
	allowed     map[string]struct{}
}

// NewValidator builds a validator from the upload config.
func NewValidator(cfg config.UploadConfig) *Validator {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[normalizeExt(ext)] = struct{}{}
	}
	return &Validator{maxFileSize: cfg.MaxFileSize, allowed: allowed}
}

func normalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// Extension returns the lower-cased extension of filename without the dot.
func Extension(filename string) string {
	return normalizeExt(filepath.Ext(filename))
}

// Allows reports whether filename has an allowed extension.
func (v *Validator) Allows(filename string) bool {
	_, ok := v.allowed[Extension(filename)]
	return ok
}

// CheckFile validates the filename and size of an upload.
func (v *Validator) CheckFile(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return raerrors.ValidationError("filename is required", nil)
	}

	ext := Extension(filename)
	if _, ok := v.allowed[ext]; !ok {
		return raerrors.New(raerrors.ErrCodeUnsupportedType,
			fmt.Sprintf("file type %q is not supported", ext), nil).
			WithDetail("filename", filename).
			WithSuggestion("Allowed types: " + v.allowedList())
	}

	if v.maxFileSize > 0 && size > v.maxFileSize {
		return raerrors.New(raerrors.ErrCodeFileTooLarge,
			fmt.Sprintf("file is %d bytes, limit is %d", size, v.maxFileSize), nil).
			WithDetail("filename", filename)
	}
	return nil
}

// CheckContent rejects extracted text with nothing but whitespace.
func (v *Validator) CheckContent(filename, text string) error {
	if strings.TrimSpace(text) == "" {
		return raerrors.New(raerrors.ErrCodeEmptyContent,
			"no text could be extracted", nil).
			WithDetail("filename", filename)
	}
	return nil
}

func (v *Validator) allowedList() string {
	exts := make([]string, 0, len(v.allowed))
	for ext := range v.allowed {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
