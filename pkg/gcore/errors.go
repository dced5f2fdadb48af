package gcore

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Client wraps exactly one of them in a
// *RequestError.
var (
	// ErrNetwork covers transport failures and timeouts.
	ErrNetwork = errors.New("network error")
	// ErrStatus is returned for non-2xx HTTP responses.
	ErrStatus = errors.New("unexpected status")
	// ErrDecode is returned for malformed JSON or a body missing required fields.
	ErrDecode = errors.New("decode error")
)

// Endpoint names used in errors, logs and self-metrics.
const (
	EndpointZones         = "zones"
	EndpointZoneStats     = "zone_statistics"
	EndpointAllZonesStats = "all_zones_statistics"
)

// RequestError describes a failed call to the G-Core DNS API.
type RequestError struct {
	Endpoint   string
	Zone       string // empty unless Endpoint is EndpointZoneStats
	StatusCode int    // set for ErrStatus
	Kind       error  // ErrNetwork, ErrStatus or ErrDecode
	Err        error  // underlying cause, may be nil
}

func (e *RequestError) Error() string {
	msg := e.Endpoint
	if e.Zone != "" {
		msg += " zone " + e.Zone
	}
	msg += ": " + e.Kind.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
