package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrPermissionDenied = &AppError{Code: "NOTIF_001", Message: "notification permission not granted"}
	ErrScheduleFailed   = &AppError{Code: "NOTIF_002", Message: "failed to install reminder"}

	ErrInvalidRegimen = &AppError{Code: "REG_001", Message: "invalid regimen"}
	ErrInvalidAnchor  = &AppError{Code: "REG_002", Message: "anchor time must be HH:MM"}
	ErrInvalidStatus  = &AppError{Code: "LOG_001", Message: "status must be taken, missed, or skipped"}
	ErrInvalidDayKey  = &AppError{Code: "LOG_002", Message: "day key must be YYYY-MM-DD"}

	ErrUnauthorized = &AppError{Code: "AUTH_001", Message: "unauthorized"}
	ErrAccessDenied = &AppError{Code: "AUTH_002", Message: "access denied"}
	ErrNoSession    = &AppError{Code: "AUTH_003", Message: "no active session"}

	ErrStoreUnavailable = &AppError{Code: "STORE_001", Message: "store unavailable"}
	ErrStaleWrite       = &AppError{Code: "STORE_002", Message: "write superseded by a later entry"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
