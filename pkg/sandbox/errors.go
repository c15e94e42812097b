package sandbox

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/datafrage-dev/datafrage/pkg/api"
)

// classify maps a goja execution error to the orchestrator's error
// taxonomy. The offending code fragment is attached so callers can
// inspect what failed without re-deriving it.
func classify(err error, code string, timeout time.Duration) *api.Error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if reason, ok := interrupted.Value().(interruptReason); ok && reason == interruptCancelled {
			return api.NewTimeoutError("execution cancelled by caller", code)
		}
		return api.NewTimeoutError(
			fmt.Sprintf("execution exceeded the %s budget", timeout), code)
	}

	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		return api.NewRuntimeFaultError(fmt.Sprintf("syntax error: %v", syntaxErr), code)
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		// Errors thrown by our own bindings carry their kind already.
		if exported, ok := exc.Value().Export().(error); ok {
			var apiErr *api.Error
			if errors.As(exported, &apiErr) {
				if apiErr.Fragment == "" {
					apiErr = &api.Error{Kind: apiErr.Kind, Message: apiErr.Message, Fragment: code}
				}
				return apiErr
			}
		}

		msg := exc.Value().String()
		switch {
		case strings.HasPrefix(msg, "ReferenceError"), strings.Contains(msg, "is not defined"):
			return api.NewNameMismatchError(msg, code)
		case strings.HasPrefix(msg, "TypeError"):
			return api.NewTypeMismatchError(msg, code)
		default:
			return api.NewRuntimeFaultError(msg, code)
		}
	}

	return api.NewRuntimeFaultError(err.Error(), code)
}
