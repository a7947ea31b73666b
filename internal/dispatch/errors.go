package dispatch

import (
	"errors"
	"fmt"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// CommandErrorCode categorizes dispatch errors.
type CommandErrorCode string

const (
	// ErrCodeUnknownCommand indicates the command is not in the endpoint's API.
	ErrCodeUnknownCommand CommandErrorCode = "UNKNOWN_COMMAND"

	// ErrCodeMissingArgument indicates a required argument was not supplied.
	ErrCodeMissingArgument CommandErrorCode = "MISSING_ARGUMENT"

	// ErrCodeWrongArgumentType indicates an argument of the wrong kind or
	// outside its integer bounds.
	ErrCodeWrongArgumentType CommandErrorCode = "WRONG_ARGUMENT_TYPE"

	// ErrCodeUnexpectedArgument indicates more arguments than parameters.
	ErrCodeUnexpectedArgument CommandErrorCode = "UNEXPECTED_ARGUMENT"

	// ErrCodeExecutionFailed indicates the handler rejected the command.
	ErrCodeExecutionFailed CommandErrorCode = "EXECUTION_FAILED"

	// ErrCodePendingTimeout indicates a pending command outlived its deadline.
	ErrCodePendingTimeout CommandErrorCode = "PENDING_TIMEOUT"
)

// CommandError is a recoverable dispatch error. Its Error text is what the
// client receives in the ErrorResponse.
type CommandError struct {
	Code      CommandErrorCode
	Command   schema.Identifier
	Parameter schema.Identifier
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	switch e.Code {
	case ErrCodeUnknownCommand:
		return fmt.Sprintf("Unknown Command: %s", e.Command)
	case ErrCodeMissingArgument:
		return fmt.Sprintf("Missing Argument: %s: %s", e.Command, e.Parameter)
	case ErrCodeWrongArgumentType:
		if e.Message != "" {
			return fmt.Sprintf("Wrong Argument Type: %s: %s: %s", e.Command, e.Parameter, e.Message)
		}
		return fmt.Sprintf("Wrong Argument Type: %s: %s", e.Command, e.Parameter)
	case ErrCodeUnexpectedArgument:
		return fmt.Sprintf("Unexpected Argument: %s: %s", e.Command, e.Message)
	case ErrCodePendingTimeout:
		return fmt.Sprintf("Pending Timeout: %s", e.Command)
	default:
		if e.Message != "" {
			return e.Message
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Command)
	}
}

// Unwrap returns the underlying cause, if any.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// UnknownCommand builds an ErrCodeUnknownCommand error.
func UnknownCommand(command schema.Identifier) *CommandError {
	return &CommandError{Code: ErrCodeUnknownCommand, Command: command}
}

// MissingArgument builds an ErrCodeMissingArgument error.
func MissingArgument(command, parameter schema.Identifier) *CommandError {
	return &CommandError{Code: ErrCodeMissingArgument, Command: command, Parameter: parameter}
}

// WrongArgumentType builds an ErrCodeWrongArgumentType error wrapping cause.
func WrongArgumentType(command, parameter schema.Identifier, cause error) *CommandError {
	e := &CommandError{Code: ErrCodeWrongArgumentType, Command: command, Parameter: parameter, Err: cause}
	var cerr *schema.CoercionError
	if errors.As(cause, &cerr) {
		e.Message = fmt.Sprintf("%s for %s", cerr.Reason, cerr.Type)
	}
	return e
}

// ExecutionFailed wraps a handler error.
func ExecutionFailed(command schema.Identifier, cause error) *CommandError {
	return &CommandError{Code: ErrCodeExecutionFailed, Command: command, Message: cause.Error(), Err: cause}
}

func codeOf(err error) (CommandErrorCode, bool) {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return "", false
}

// IsUnknownCommand reports whether err is an unknown-command error.
func IsUnknownCommand(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeUnknownCommand
}

// IsMissingArgument reports whether err is a missing-argument error.
func IsMissingArgument(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeMissingArgument
}

// IsWrongArgumentType reports whether err is a wrong-type or range error.
func IsWrongArgumentType(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeWrongArgumentType
}

// IsPendingTimeout reports whether err is a pending-deadline error.
func IsPendingTimeout(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodePendingTimeout
}
