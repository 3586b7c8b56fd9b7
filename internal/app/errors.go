package app

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/josephgoksu/genesis/internal/llm"
	"github.com/josephgoksu/genesis/internal/registry"
)

// Instruction length limits in characters. The minimum applies to the
// trimmed text.
const (
	MinInstructionLength = 10
	MaxInstructionLength = 5000
)

// ValidationError rejects an instruction before any gateway call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid instruction: " + e.Reason }

// ValidateInstruction checks the raw instruction text.
func ValidateInstruction(instruction string) error {
	switch {
	case instruction == "" || strings.TrimSpace(instruction) == "":
		return &ValidationError{Reason: "instruction cannot be empty"}
	case utf8.RuneCountInString(strings.TrimSpace(instruction)) < MinInstructionLength:
		return &ValidationError{Reason: "too short, provide detailed requirements (min 10 characters)"}
	case utf8.RuneCountInString(instruction) > MaxInstructionLength:
		return &ValidationError{Reason: "too long, please be more concise (max 5000 characters)"}
	}
	return nil
}

// Failure kinds reported to telemetry and metrics.
const (
	FailureValidation   = "validation"
	FailureGateway      = "gateway"
	FailureExhausted    = "qa_exhausted"
	FailureRegistration = "registration"
	FailureCancelled    = "cancelled"
	FailureInternal     = "internal"
)

// FailureKind maps a Create error to one of the Failure constants.
func FailureKind(err error) string {
	var verr *ValidationError
	var fault *llm.GatewayFault
	var rfault *registry.RegistrationFault
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return FailureValidation
	case errors.As(err, &rfault):
		return FailureRegistration
	case errors.Is(err, context.Canceled):
		return FailureCancelled
	case errors.As(err, &fault):
		return FailureGateway
	case errors.Is(err, context.DeadlineExceeded):
		return FailureCancelled
	default:
		return FailureInternal
	}
}
