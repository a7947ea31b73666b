package script

import (
	"errors"

	"github.com/dop251/goja"
)

// ScriptError is an uncaught JavaScript exception or a syntax error.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// IsScriptError reports whether err is (or wraps) a ScriptError.
func IsScriptError(err error) bool {
	var se *ScriptError
	return errors.As(err, &se)
}

// ErrInterrupted is returned when the script was stopped by Interrupt or by
// cancellation of its context.
var ErrInterrupted = errors.New("script interrupted")

func convertError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrInterrupted
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		// String() keeps the stack trace; Export() of an Error object is an
		// empty map.
		return &ScriptError{Message: exc.String()}
	}
	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		return &ScriptError{Message: syntax.Error()}
	}
	return err
}
