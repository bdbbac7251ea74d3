package utils

import (
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrorRecordNotFound  = errors.New("record not found")
	ErrAggregationFailed = errors.New("aggregation failed")
)

type ErrorKind string

const (
	ErrorKindValidation   ErrorKind = "ValidationError"
	ErrorKindNotFound     ErrorKind = "NotFoundError"
	ErrorKindStorage      ErrorKind = "StorageError"
	ErrorKindPartialBatch ErrorKind = "PartialBatchError"
)

// AppError carries a user-facing message plus the kind used to pick the HTTP
// status. Err holds the underlying cause, if any.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...any) *AppError {
	return &AppError{Kind: ErrorKindNotFound, Message: fmt.Sprintf(format, args...), Err: ErrorRecordNotFound}
}

func NewStorageError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindStorage, Message: message, Err: err}
}

func NewPartialBatchError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindPartialBatch, Message: message, Err: err}
}

// ErrorKindOf defaults to StorageError for anything that is not an AppError.
func ErrorKindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, ErrorRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorKindNotFound
	}
	return ErrorKindStorage
}

// IsDuplicateKeyErr matches both the translated gorm error and the raw MySQL
// 1062 code (for handles opened without TranslateError).
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
