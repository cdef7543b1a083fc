package graph

import (
	"context"
	"errors"
)

// Client defines the minimal contract required by the session and repositories
// to interact with the underlying graph database.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result is a simplified representation of a query response.
type Result struct {
	Columns []string
	Records []Record
	Stats   Stats
}

// Record groups key-value pairs returned from the graph engine.
type Record map[string]any

// Stats summarises the updates a statement performed.
type Stats struct {
	NodesCreated         int  `json:"nodesCreated"`
	NodesDeleted         int  `json:"nodesDeleted"`
	RelationshipsCreated int  `json:"relationshipsCreated"`
	RelationshipsDeleted int  `json:"relationshipsDeleted"`
	PropertiesSet        int  `json:"propertiesSet"`
	LabelsAdded          int  `json:"labelsAdded"`
	LabelsRemoved        int  `json:"labelsRemoved"`
	IndexesAdded         int  `json:"indexesAdded"`
	IndexesRemoved       int  `json:"indexesRemoved"`
	ConstraintsAdded     int  `json:"constraintsAdded"`
	ConstraintsRemoved   int  `json:"constraintsRemoved"`
	ContainsUpdates      bool `json:"containsUpdates"`
}

// Single returns the only record of the result.
func (r Result) Single() (Record, bool) {
	if len(r.Records) != 1 {
		return nil, false
	}
	return r.Records[0], true
}

// FirstValue returns the first column of the first record. Column order comes
// from Columns when present so single-column results are deterministic.
func (r Result) FirstValue() (any, bool) {
	if len(r.Records) == 0 {
		return nil, false
	}
	rec := r.Records[0]
	if len(r.Columns) > 0 {
		v, ok := rec[r.Columns[0]]
		return v, ok
	}
	for _, v := range rec {
		return v, true
	}
	return nil, false
}

// Values returns the value of column for every record.
func (r Result) Values(column string) []any {
	out := make([]any, 0, len(r.Records))
	for _, rec := range r.Records {
		out = append(out, rec[column])
	}
	return out
}

// Options configures a graph client implementation.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

type writeModeKey struct{}

// WithWriteMode marks ctx so statements run through a session use a write
// transaction whatever clauses they contain.
func WithWriteMode(ctx context.Context) context.Context {
	return context.WithValue(ctx, writeModeKey{}, true)
}

// WriteMode reports whether ctx was marked by WithWriteMode.
func WriteMode(ctx context.Context) bool {
	forced, _ := ctx.Value(writeModeKey{}).(bool)
	return forced
}

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")
