package graph

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/vanshika/graphrepo/internal/dataaccess"
)

// NewNeo4jClient establishes a Bolt connection using the official Neo4j driver.
func NewNeo4jClient(ctx context.Context, opts Options) (*Neo4jClient, error) {
	if opts.URI == "" {
		return nil, ErrMissingURI
	}

	auth := neo4j.NoAuth()
	if opts.Username != "" {
		auth = neo4j.BasicAuth(opts.Username, opts.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, auth, func(c *neo4j.Config) {
		if opts.MaxConnections > 0 {
			c.MaxConnectionPoolSize = opts.MaxConnections
		}
	})
	if err != nil {
		return nil, dataaccess.Translate("create neo4j driver", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, dataaccess.Translate("verify graph connectivity", err)
	}

	return &Neo4jClient{
		driver:   driver,
		database: opts.Database,
	}, nil
}

// Neo4jClient runs statements in managed transactions so the driver retries
// transient failures on our behalf.
type Neo4jClient struct {
	driver   neo4j.DriverWithContext
	database string
}

func (c *Neo4jClient) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return run(ctx, tx, cypher, params)
	})
	if err != nil {
		return Result{}, dataaccess.Translate("execute write", err)
	}
	return res.(Result), nil
}

func (c *Neo4jClient) ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return run(ctx, tx, cypher, params)
	})
	if err != nil {
		return Result{}, dataaccess.Translate("execute read", err)
	}
	return res.(Result), nil
}

func (c *Neo4jClient) VerifyConnectivity(ctx context.Context) error {
	return dataaccess.Translate("verify graph connectivity", c.driver.VerifyConnectivity(ctx))
}

func (c *Neo4jClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EnsureUniqueConstraint creates a uniqueness constraint on label.property if
// it does not exist yet.
func EnsureUniqueConstraint(ctx context.Context, client Client, label, property string) error {
	if !identifierPattern.MatchString(label) || !identifierPattern.MatchString(property) {
		return dataaccess.Newf(dataaccess.KindInvalidUsage, "ensure constraint", "invalid identifier %s.%s", label, property)
	}
	name := fmt.Sprintf("%s_%s_unique", label, property)
	cypher := fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE", name, label, property)
	_, err := client.ExecuteWrite(ctx, cypher, nil)
	return err
}

func run(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) (Result, error) {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return Result{}, err
	}

	keys, err := res.Keys()
	if err != nil {
		return Result{}, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return Result{}, err
	}
	summary, err := res.Consume(ctx)
	if err != nil {
		return Result{}, err
	}

	return convertResult(keys, records, summary), nil
}

func convertResult(keys []string, records []*neo4j.Record, summary neo4j.ResultSummary) Result {
	out := Result{Columns: keys, Records: make([]Record, 0, len(records))}
	for _, rec := range records {
		record := make(Record, len(rec.Keys))
		for i, key := range rec.Keys {
			record[key] = rec.Values[i]
		}
		out.Records = append(out.Records, record)
	}

	if summary != nil && summary.Counters() != nil {
		counters := summary.Counters()
		out.Stats = Stats{
			NodesCreated:         counters.NodesCreated(),
			NodesDeleted:         counters.NodesDeleted(),
			RelationshipsCreated: counters.RelationshipsCreated(),
			RelationshipsDeleted: counters.RelationshipsDeleted(),
			PropertiesSet:        counters.PropertiesSet(),
			LabelsAdded:          counters.LabelsAdded(),
			LabelsRemoved:        counters.LabelsRemoved(),
			IndexesAdded:         counters.IndexesAdded(),
			IndexesRemoved:       counters.IndexesRemoved(),
			ConstraintsAdded:     counters.ConstraintsAdded(),
			ConstraintsRemoved:   counters.ConstraintsRemoved(),
			ContainsUpdates:      counters.ContainsUpdates(),
		}
	}
	return out
}
