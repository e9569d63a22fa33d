package errors

import (
	"encoding/json"
	"fmt"
)

// FormatForCLI renders an error the way `spall` prints it to stderr: a
// concise message plus the stable code for reference. cmd/spall's main
// prints this as plain text and exits non-zero.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	se, ok := err.(*SpallError)
	if !ok {
		se = Wrap(CodeGeneric, err)
	}

	return fmt.Sprintf("Error: %s [%s]", se.Message, se.Code)
}

// wireError is the `{code, message}` JSON body the HTTP layer sends
// for both 404 and 500 responses, per spec.md §6.
type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FormatJSON returns the wire-format `{code, message}` body for err.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	se, ok := err.(*SpallError)
	if !ok {
		se = Wrap(CodeGeneric, err)
	}

	return json.Marshal(wireError{Code: se.Code, Message: se.Message})
}

// FormatForLog formats an error as slog-friendly key/value attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	se, ok := err.(*SpallError)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": se.Code,
		"message":    se.Message,
		"category":   string(se.Category),
		"severity":   string(se.Severity),
		"retryable":  se.Retryable,
	}

	if se.Cause != nil {
		result["cause"] = se.Cause.Error()
	}

	for k, v := range se.Details {
		result["detail_"+k] = v
	}

	return result
}
