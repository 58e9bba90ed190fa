package constants

import "strings"

// OCRStatus is the normalized status reported by the OCR provider for a submitted job.
type OCRStatus string

const (
	OCRStatusPending OCRStatus = "pending"
	OCRStatusDone    OCRStatus = "done"
	OCRStatusFailed  OCRStatus = "failed"
)

// ParseOCRStatus maps the provider's free-form status string onto OCRStatus.
// Unknown values are treated as still pending.
func ParseOCRStatus(raw string) OCRStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "processed", "completed", "done":
		return OCRStatusDone
	case "failed", "error":
		return OCRStatusFailed
	default:
		return OCRStatusPending
	}
}

// ExtractState tracks one field-extraction request.
type ExtractState string

// PENDING -> PROMPTED -> (PARSED | EMPTY_ON_FAILURE) -> LOCATED -> RETURNED
const (
	ExtractPending        ExtractState = "PENDING"
	ExtractPrompted       ExtractState = "PROMPTED"
	ExtractParsed         ExtractState = "PARSED"
	ExtractEmptyOnFailure ExtractState = "EMPTY_ON_FAILURE"
	ExtractLocated        ExtractState = "LOCATED"
	ExtractReturned       ExtractState = "RETURNED"
)
