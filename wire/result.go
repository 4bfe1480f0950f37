package wire

import (
	"errors"
	"fmt"
)

// Result is the status code carried in the first data byte of a NAK.
//
// Result implements error so command handlers can return a protocol
// outcome directly; AsResult recovers it.
type Result uint8

// Protocol result codes.
const (
	ResultSuccess           Result = 0
	ErrFail                 Result = 1
	ErrFailErrno            Result = 2
	ErrInvalidDataSize      Result = 3
	ErrInvalidSession       Result = 4
	ErrNoSessionsAvailable  Result = 5
	ErrEOF                  Result = 6
	ErrUnknownCommand       Result = 7
	ErrFailFileExists       Result = 8
	ErrFailFileProtected    Result = 9
	ErrFailFileDoesNotExist Result = 10

	// Local-only results. Never sent on the wire.
	ErrTimeout     Result = 200
	ErrFileIOError Result = 201
)

var resultNames = map[Result]string{
	ResultSuccess:           "success",
	ErrFail:                 "fail",
	ErrFailErrno:            "fail_errno",
	ErrInvalidDataSize:      "invalid_data_size",
	ErrInvalidSession:       "invalid_session",
	ErrNoSessionsAvailable:  "no_sessions_available",
	ErrEOF:                  "eof",
	ErrUnknownCommand:       "unknown_command",
	ErrFailFileExists:       "file_exists",
	ErrFailFileProtected:    "file_protected",
	ErrFailFileDoesNotExist: "file_does_not_exist",
	ErrTimeout:              "timeout",
	ErrFileIOError:          "file_io_error",
}

// String returns the snake_case result name.
func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("result(%d)", uint8(r))
}

// Error implements error.
func (r Result) Error() string {
	return "ftp: " + r.String()
}

// IsLocal reports whether r is a local-only result that must be mapped
// before it is put on the wire.
func (r Result) IsLocal() bool {
	return r >= ErrTimeout
}

// Wire returns the code to transmit for r. Local-only results collapse to ErrFail.
func (r Result) Wire() Result {
	if r.IsLocal() {
		return ErrFail
	}
	return r
}

// AsResult extracts the Result carried by err.
// Returns ResultSuccess for nil and ErrFail for errors carrying no Result.
func AsResult(err error) Result {
	if err == nil {
		return ResultSuccess
	}
	var r Result
	if errors.As(err, &r) {
		return r
	}
	return ErrFail
}
