package utils

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"translated", gorm.ErrDuplicatedKey, true},
		{"wrapped translated", fmt.Errorf("insert summary: %w", gorm.ErrDuplicatedKey), true},
		{"mysql 1062", &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry '1' for key 'ulb_id'"}, true},
		{"wrapped mysql 1062", fmt.Errorf("insert summary: %w", &mysqlDriver.MySQLError{Number: 1062}), true},
		{"mysql foreign key", &mysqlDriver.MySQLError{Number: 1452}, false},
		{"record not found", gorm.ErrRecordNotFound, false},
		{"plain", errors.New("duplicate entry"), false},
	}
	for _, tc := range cases {
		if got := IsDuplicateKeyErr(tc.err); got != tc.want {
			t.Fatalf("%s: IsDuplicateKeyErr(%v) = %v, want %v", tc.name, tc.err, got, tc.want)
		}
	}
}

func TestErrorKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{NewValidationError("bad %s", "input"), ErrorKindValidation},
		{fmt.Errorf("wrapped: %w", NewNotFoundError("missing")), ErrorKindNotFound},
		{gorm.ErrRecordNotFound, ErrorKindNotFound},
		{NewPartialBatchError("1 of 2 rows failed", errors.New("row 0")), ErrorKindPartialBatch},
		{errors.New("connection refused"), ErrorKindStorage},
	}
	for _, tc := range cases {
		if got := ErrorKindOf(tc.err); got != tc.want {
			t.Fatalf("ErrorKindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
