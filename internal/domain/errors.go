package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfigurationMissing is returned when a required setting is empty.
// It is never retried.
var ErrConfigurationMissing = errors.New("configuration missing")

// ConfigError names the missing fields and wraps ErrConfigurationMissing.
type ConfigError struct {
	Fields []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfigurationMissing, strings.Join(e.Fields, ", "))
}

func (e *ConfigError) Unwrap() error { return ErrConfigurationMissing }

// TransportError covers timeouts and connection failures.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: transport: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is a non-success HTTP status from the remote service.
type ServiceError struct {
	Op     string
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// ParseError is a malformed response body or timestamp.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.What, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// Transient reports whether err should be shown as a short-lived error
// that clears by itself.
func Transient(err error) bool {
	var te *TransportError
	var se *ServiceError
	return errors.As(err, &te) || errors.As(err, &se)
}
