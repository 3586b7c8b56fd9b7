package agentspec

import (
	"fmt"
	"strings"
)

// MalformedResponseError reports a gateway response that arrived but did
// not have the required shape. Stages recover from it with a fallback.
type MalformedResponseError struct {
	Stage  string
	Fields []string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "malformed %s response", e.Stage)
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, ": missing or invalid %s", strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
