// Package dataaccess defines the data-access error hierarchy shared by the graph
// client, the object-graph session and the repository query layer. Driver
// failures are translated into a small set of kinds so callers can branch on
// what went wrong without knowing which driver produced the error.
package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Kind classifies a data-access failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidUsage covers malformed queries and wrong API usage.
	KindInvalidUsage
	// KindDataRetrieval covers results that could not be read or mapped.
	KindDataRetrieval
	// KindIncorrectResultSize is returned when a single result was expected.
	KindIncorrectResultSize
	// KindIntegrityViolation covers constraint failures.
	KindIntegrityViolation
	// KindTransientResource covers failures that may succeed on retry.
	KindTransientResource
	// KindPermissionDenied covers authentication and authorization failures.
	KindPermissionDenied
	// KindResourceFailure covers everything the database reports as its own fault.
	KindResourceFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidUsage:
		return "invalid_usage"
	case KindDataRetrieval:
		return "data_retrieval"
	case KindIncorrectResultSize:
		return "incorrect_result_size"
	case KindIntegrityViolation:
		return "integrity_violation"
	case KindTransientResource:
		return "transient_resource"
	case KindPermissionDenied:
		return "permission_denied"
	case KindResourceFailure:
		return "resource_failure"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrInvalidUsage        = errors.New("invalid data access api usage")
	ErrDataRetrieval       = errors.New("data retrieval failure")
	ErrIncorrectResultSize = errors.New("incorrect result size")
	ErrIntegrityViolation  = errors.New("data integrity violation")
	ErrTransientResource   = errors.New("transient data access resource failure")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrResourceFailure     = errors.New("data access resource failure")
)

var sentinels = map[Kind]error{
	KindInvalidUsage:        ErrInvalidUsage,
	KindDataRetrieval:       ErrDataRetrieval,
	KindIncorrectResultSize: ErrIncorrectResultSize,
	KindIntegrityViolation:  ErrIntegrityViolation,
	KindTransientResource:   ErrTransientResource,
	KindPermissionDenied:    ErrPermissionDenied,
	KindResourceFailure:     ErrResourceFailure,
}

// Error is a classified data-access failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "query users".
	Op string
	// Code carries the database status code when one was reported.
	Code string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else if s, ok := sentinels[e.Kind]; ok {
		b.WriteString(s.Error())
	} else {
		b.WriteString("data access failure")
	}
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New creates a classified error carrying msg.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Newf is New with formatting.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err under kind without inspecting it.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsTransient reports whether retrying the operation may succeed.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransientResource
}

// Translate converts a driver or runtime error into the data-access hierarchy.
// Errors that are already classified pass through untouched.
func Translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var de *Error
	if errors.As(err, &de) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransientResource, Op: op, Err: err}
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return &Error{Kind: kindForCode(neoErr.Code), Op: op, Code: neoErr.Code, Err: err}
	}

	switch {
	case neo4j.IsConnectivityError(err):
		return &Error{Kind: KindTransientResource, Op: op, Err: err}
	case neo4j.IsUsageError(err):
		return &Error{Kind: KindInvalidUsage, Op: op, Err: err}
	case neo4j.IsRetryable(err):
		return &Error{Kind: KindTransientResource, Op: op, Err: err}
	}

	return &Error{Kind: KindResourceFailure, Op: op, Err: err}
}

// kindForCode maps a Neo4j status code (Neo.<Classification>.<Category>.<Title>)
// to a kind.
func kindForCode(code string) Kind {
	parts := strings.Split(code, ".")
	if len(parts) < 4 {
		return KindResourceFailure
	}
	classification, category, title := parts[1], parts[2], parts[3]

	switch classification {
	case "TransientError":
		return KindTransientResource
	case "DatabaseError":
		return KindResourceFailure
	case "ClientError":
		switch {
		case category == "Security":
			return KindPermissionDenied
		case category == "Schema" && strings.Contains(title, "Constraint"):
			return KindIntegrityViolation
		case category == "Statement" && title == "EntityNotFound":
			return KindDataRetrieval
		case category == "Cluster", category == "Transaction" && title == "Terminated":
			return KindTransientResource
		default:
			return KindInvalidUsage
		}
	}
	return KindResourceFailure
}
