// Package wire defines the versioned JSON envelope returned by the REST
// adapter and printed by the CLI in JSON mode.
package wire

import (
	"net/http"

	"studentattendance/internal/attendance"
)

// Version is the envelope version written on every response.
const Version = "v1"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every response body.
type Envelope struct {
	Version string             `json:"version"`
	Status  string             `json:"status"`
	Outcome attendance.Outcome `json:"outcome"`
	Message string             `json:"message,omitempty"`
	Data    any                `json:"data,omitempty"`
}

// OK wraps data in a success envelope.
func OK(message string, data any) Envelope {
	return Envelope{Version: Version, Status: StatusSuccess, Outcome: attendance.OutcomeSuccess, Message: message, Data: data}
}

// Fail classifies err into an error envelope. Storage faults carry a
// generic message so backend details stay in the logs.
func Fail(err error) Envelope {
	outcome := attendance.OutcomeOf(err)
	msg := err.Error()
	if outcome == attendance.OutcomeIOFailure {
		msg = "storage unavailable"
	}
	return Envelope{Version: Version, Status: StatusError, Outcome: outcome, Message: msg}
}

// HTTPStatus maps an outcome to its HTTP status code.
func HTTPStatus(o attendance.Outcome) int {
	switch o {
	case attendance.OutcomeSuccess:
		return http.StatusOK
	case attendance.OutcomeDuplicate:
		return http.StatusConflict
	case attendance.OutcomeValidation:
		return http.StatusBadRequest
	case attendance.OutcomeInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}
