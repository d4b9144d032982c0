// Package errors provides structured error handling for minirag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (disk, records, locks)
//   - 3XX: Not-found errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates durable read/write failures.
	CategoryStorage Category = "STORAGE"
	// CategoryNotFound indicates a lookup for an absent entity.
	CategoryNotFound Category = "NOT_FOUND"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates broken invariants.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigRead     = "ERR_102_CONFIG_READ"
	ErrCodeChunkingConfig = "ERR_103_CHUNKING_CONFIG"

	// Storage errors (200-299)
	ErrCodeStorageWrite   = "ERR_201_STORAGE_WRITE"
	ErrCodeStorageRead    = "ERR_202_STORAGE_READ"
	ErrCodeStorageCorrupt = "ERR_203_STORAGE_CORRUPT"
	ErrCodeStorageLocked  = "ERR_204_STORAGE_LOCKED"
	ErrCodeDuplicateID    = "ERR_205_DUPLICATE_ID"
	ErrCodeStorageClosed  = "ERR_206_STORAGE_CLOSED"

	// Not-found errors (300-399)
	ErrCodeDocumentNotFound = "ERR_301_DOCUMENT_NOT_FOUND"
	ErrCodeFileNotFound     = "ERR_302_FILE_NOT_FOUND"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeUnsupportedType  = "ERR_402_UNSUPPORTED_TYPE"
	ErrCodeFileTooLarge     = "ERR_403_FILE_TOO_LARGE"
	ErrCodeEmptyContent     = "ERR_404_EMPTY_CONTENT"
	ErrCodeInvalidMaxResult = "ERR_405_INVALID_MAX_RESULTS"
	ErrCodeInvalidThreshold = "ERR_406_INVALID_THRESHOLD"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeIndexDivergence  = "ERR_502_INDEX_DIVERGENCE"
	ErrCodeExtractionFailed = "ERR_503_EXTRACTION_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "2" from "ERR_201_STORAGE_WRITE"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryNotFound
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigInvalid, ErrCodeChunkingConfig, ErrCodeStorageCorrupt:
		return SeverityFatal
	case ErrCodeIndexDivergence:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports codes a caller may reasonably retry.
// The engine itself never retries.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStorageLocked:
		return true
	default:
		return false
	}
}
