package colly

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// NotFoundError reports a project directory or file that could not be read.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unable to read %s: %s", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// ConfigMissingError reports an expected environment or key that is absent from the configuration.
type ConfigMissingError struct {
	Key    string
	Source string
}

func (e *ConfigMissingError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("no configuration found for %q", e.Key)
	}
	return fmt.Sprintf("no configuration found for %q in %s", e.Key, e.Source)
}

type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %s", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// HandlerNotFoundKind distinguishes a missing handler module from a missing export within it.
type HandlerNotFoundKind string

const (
	HandlerModuleNotFound HandlerNotFoundKind = "module"
	HandlerExportNotFound HandlerNotFoundKind = "export"
)

type HandlerNotFoundError struct {
	Kind   HandlerNotFoundKind
	Path   string
	Symbol string
	Err    error
}

func (e *HandlerNotFoundError) Error() string {
	if e.Kind == HandlerExportNotFound {
		return fmt.Sprintf("handler %q not exported by %s: %s", e.Symbol, e.Path, e.Err)
	}
	return fmt.Sprintf("handler module %s could not be loaded: %s", e.Path, e.Err)
}

func (e *HandlerNotFoundError) Unwrap() error { return e.Err }

// HandlerPanicError reports a local handler that panicked instead of returning.
type HandlerPanicError struct {
	Value interface{}
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// ApiError wraps a failed call to the AWS API.
type ApiError struct {
	Op  string
	Err error
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Err)
}

func (e *ApiError) Unwrap() error { return e.Err }

// Code returns the AWS error code, or an empty string when the error did not come from the API.
func (e *ApiError) Code() string {
	var apiErr smithy.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func isAPIErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == code
	}
	return false
}

// ignoreMissing drops NotFoundError and ConfigMissingError, returning any other error.
func ignoreMissing(err error) error {
	var notFound *NotFoundError
	var missing *ConfigMissingError
	if errors.As(err, &notFound) || errors.As(err, &missing) {
		return nil
	}
	return err
}
