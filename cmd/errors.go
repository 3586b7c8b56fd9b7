package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/josephgoksu/genesis/internal/app"
	"github.com/josephgoksu/genesis/internal/llm"
	"github.com/josephgoksu/genesis/internal/registry"
)

// Exit codes. Scripts rely on these.
const (
	exitFailure    = 1
	exitValidation = 2
	exitExhausted  = 3
	exitDenied     = 4
)

// errNotCreated is returned after a request ran out of QA attempts. The
// result has already been printed.
var errNotCreated = errors.New("agent was not created")

// PrintError prints a user-facing error. With --verbose the full chain is
// shown; otherwise only the outermost cause.
func PrintError(err error) {
	if errors.Is(err, errNotCreated) {
		return
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, "Error: "+userMessage(err))
}

func userMessage(err error) string {
	var verr *app.ValidationError
	var fault *llm.GatewayFault
	var rf *registry.RegistrationFault
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &fault):
		return fmt.Sprintf("the %s model call failed (%s). Check your API key and provider settings, or retry later.", fault.Model, fault.Kind)
	case errors.As(err, &rf) && len(rf.Violations) > 0:
		return fmt.Sprintf("registration denied by policy: %v", rf.Violations)
	}
	return err.Error()
}

func exitCode(err error) int {
	var rf *registry.RegistrationFault
	switch {
	case errors.Is(err, errNotCreated):
		return exitExhausted
	case app.FailureKind(err) == app.FailureValidation:
		return exitValidation
	case errors.As(err, &rf) && len(rf.Violations) > 0:
		return exitDenied
	}
	return exitFailure
}
