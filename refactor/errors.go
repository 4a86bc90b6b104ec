package refactor

import (
	"fmt"
	"regexp"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/internal/resolve"
)

// notFoundError is a failed lookup with a message naming what was missing
// and where.
type notFoundError struct {
	reason string
}

func (e *notFoundError) Error() string { return e.reason }

func (e *notFoundError) Unwrap() error { return core.ErrNotFound }

func notFound(format string, args ...any) error {
	return &notFoundError{reason: fmt.Sprintf(format, args...)}
}

// compile parses a name or line pattern.
func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, core.CodedError{Code: core.ECInvalidRegex, Message: fmt.Sprintf("invalid pattern %q", pattern), Detail: err.Error()}
	}
	return re, nil
}

// patternQuery builds a query for kind whose names match pattern. An empty
// pattern matches every name.
func patternQuery(kind resolve.Kind, pattern string) (resolve.Query, error) {
	q := resolve.Query{Kind: kind}
	if pattern == "" {
		return q, nil
	}
	re, err := compile(pattern)
	if err != nil {
		return q, err
	}
	q.Pattern = re
	return q, nil
}
