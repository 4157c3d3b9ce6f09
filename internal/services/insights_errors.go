package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Status is the client-facing classification of an insights failure.
type Status string

const (
	StatusMissingConfigurationField Status = "ERR_MISSING_CONFIGURATION_FIELD"
	StatusInvalidConfigurationField Status = "ERR_INVALID_CONFIGURATION_FIELD"
	StatusDatasetNotFound           Status = "ERR_DATASET_NOT_FOUND"
	StatusDatasourceNotFound        Status = "ERR_DATASOURCE_NOT_FOUND"
	StatusTemplateNotFound          Status = "ERR_TEMPLATE_NOT_FOUND"
	StatusTemplateMissingProperty   Status = "ERR_TEMPLATE_MISSING_PROPERTY"
	StatusAlertNotFound             Status = "ERR_ALERT_NOT_FOUND"
	StatusInvalidRequest            Status = "ERR_INVALID_REQUEST"
	StatusTimeout                   Status = "ERR_TIMEOUT"
	StatusUnknown                   Status = "ERR_UNKNOWN"
)

// InsightsError is an error that already carries its client-facing status.
// Errors of this type pass through every layer unchanged.
type InsightsError struct {
	Status  Status
	Message string
	Err     error
}

func (e *InsightsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *InsightsError) Unwrap() error { return e.Err }

// HTTPStatus maps the status to a response code.
func (e *InsightsError) HTTPStatus() int {
	switch e.Status {
	case StatusMissingConfigurationField, StatusInvalidConfigurationField,
		StatusTemplateMissingProperty, StatusInvalidRequest:
		return http.StatusBadRequest
	case StatusDatasetNotFound, StatusDatasourceNotFound, StatusTemplateNotFound, StatusAlertNotFound:
		return http.StatusNotFound
	case StatusTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func newInsightsError(status Status, err error, format string, args ...interface{}) *InsightsError {
	return &InsightsError{Status: status, Message: fmt.Sprintf(format, args...), Err: err}
}

// ConfigurationError reports a required field missing from alert or dataset
// configuration.
func ConfigurationError(format string, args ...interface{}) *InsightsError {
	return newInsightsError(StatusMissingConfigurationField, nil, format, args...)
}

// InvalidConfigurationError reports a configuration field with a bad value.
func InvalidConfigurationError(err error, format string, args ...interface{}) *InsightsError {
	return newInsightsError(StatusInvalidConfigurationField, err, format, args...)
}

func NotFoundError(status Status, format string, args ...interface{}) *InsightsError {
	return newInsightsError(status, nil, format, args...)
}

func TimeoutError(err error, format string, args ...interface{}) *InsightsError {
	return newInsightsError(StatusTimeout, err, format, args...)
}

func InvalidRequestError(err error, format string, args ...interface{}) *InsightsError {
	return newInsightsError(StatusInvalidRequest, err, format, args...)
}

// AsInsightsError returns err unchanged when it is already classified, and
// wraps it as ERR_UNKNOWN otherwise.
func AsInsightsError(err error, format string, args ...interface{}) *InsightsError {
	if err == nil {
		return nil
	}
	var ie *InsightsError
	if errors.As(err, &ie) {
		return ie
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newInsightsError(StatusTimeout, err, format, args...)
	}
	return newInsightsError(StatusUnknown, err, format, args...)
}

// StatusOf returns the classification of err, ERR_UNKNOWN when unclassified.
func StatusOf(err error) Status {
	var ie *InsightsError
	if errors.As(err, &ie) {
		return ie.Status
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	return StatusUnknown
}
