package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FaultKind classifies why a gateway round trip failed.
type FaultKind string

const (
	FaultTransport  FaultKind = "transport"
	FaultAuth       FaultKind = "auth"
	FaultRateLimit  FaultKind = "rate_limit"
	FaultQuota      FaultKind = "quota"
	FaultSafety     FaultKind = "safety"
	FaultTimeout    FaultKind = "timeout"
	FaultUnparsable FaultKind = "unparsable"
)

// GatewayFault is returned by a Gateway when the text-generation service
// could not produce a usable response. It is never a QA outcome.
type GatewayFault struct {
	Kind  FaultKind
	Model string
	Err   error
}

func (f *GatewayFault) Error() string {
	if f.Model != "" {
		return fmt.Sprintf("gateway %s fault (%s): %v", f.Kind, f.Model, f.Err)
	}
	return fmt.Sprintf("gateway %s fault: %v", f.Kind, f.Err)
}

func (f *GatewayFault) Unwrap() error { return f.Err }

// Retryable reports whether another round trip might succeed.
func (f *GatewayFault) Retryable() bool {
	switch f.Kind {
	case FaultRateLimit, FaultTimeout, FaultTransport:
		return true
	default:
		return false
	}
}

// IsGatewayFault reports whether err carries a GatewayFault.
func IsGatewayFault(err error) bool {
	var f *GatewayFault
	return errors.As(err, &f)
}

var faultPatterns = []struct {
	kind     FaultKind
	patterns []string
}{
	{FaultAuth, []string{"401", "403", "unauthorized", "invalid api key", "api key not valid", "invalid x-api-key", "permission denied", "api key is required"}},
	{FaultQuota, []string{"quota", "resource_exhausted", "resource exhausted", "insufficient_quota", "billing"}},
	{FaultRateLimit, []string{"429", "rate limit", "rate_limit", "too many requests"}},
	{FaultSafety, []string{"safety", "blocked", "content_filter", "content filter"}},
	{FaultTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
}

// classifyFault maps a provider error to a GatewayFault.
func classifyFault(err error, modelName string) *GatewayFault {
	var existing *GatewayFault
	if errors.As(err, &existing) {
		return existing
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GatewayFault{Kind: FaultTimeout, Model: modelName, Err: err}
	}

	msg := strings.ToLower(err.Error())
	for _, fp := range faultPatterns {
		for _, p := range fp.patterns {
			if strings.Contains(msg, p) {
				return &GatewayFault{Kind: fp.kind, Model: modelName, Err: err}
			}
		}
	}
	return &GatewayFault{Kind: FaultTransport, Model: modelName, Err: err}
}

// Classify maps an arbitrary collaborator error to a GatewayFault. Errors
// that already carry a fault are returned unchanged.
func Classify(err error, modelName string) *GatewayFault {
	return classifyFault(err, modelName)
}
