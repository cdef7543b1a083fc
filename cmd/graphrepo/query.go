package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanshika/graphrepo/internal/graph"
	"github.com/vanshika/graphrepo/internal/ogm"
	"github.com/vanshika/graphrepo/internal/paging"
	"github.com/vanshika/graphrepo/internal/query"
)

type queryOptions struct {
	params []string
	sort   string
	page   int
	size   int
	write  bool
}

func newQueryCmd(a *app) *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:   "query CYPHER",
		Short: "Run a Cypher query and print the rows as JSON",
		Long: `Run a Cypher statement as an annotated query method. Rows are printed as
a JSON array of column to value maps. Updating statements print their counters
instead.`,
		Example: `  graphrepo query 'MATCH (u:User) RETURN u.name AS name' --sort name,desc --size 10
  graphrepo query 'MATCH (u:User {name: $name}) SET u.name = $to' -p name=Ann -p to=Anne
  graphrepo query 'CALL db.createLabel("Archived")' --write`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.closeClient(client)
			return runQuery(cmd.Context(), cmd.OutOrStdout(), client, args[0], opts)
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.params, "param", "p", nil, "query parameter as name=value, repeatable")
	flags.StringVar(&opts.sort, "sort", "", "sort as prop,dir;prop2,dir2")
	flags.IntVar(&opts.page, "page", 1, "one-based page number, used with --size")
	flags.IntVar(&opts.size, "size", 0, "page size; 0 returns every row")
	flags.BoolVar(&opts.write, "write", false, "run in a write transaction, for writing procedures the keyword check misses")
	return cmd
}

func runQuery(ctx context.Context, out io.Writer, client graph.Client, cypher string, opts queryOptions) error {
	method, args, err := queryMethod(cypher, opts)
	if err != nil {
		return err
	}
	q, err := query.New(ogm.NewSession(client, nil), method)
	if err != nil {
		return err
	}

	var result any
	if method.Returns == query.ReturnStatistics {
		result, err = query.Stats(ctx, q, args...)
	} else {
		result, err = query.Maps(ctx, q, args...)
	}
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// queryMethod declares cypher as a query method and lines up the arguments
// it is executed with.
func queryMethod(cypher string, opts queryOptions) (query.Method, []any, error) {
	method := query.Method{Name: "cli", Query: cypher, Returns: query.ReturnMaps, Write: opts.write}
	if ogm.IsWrite(cypher) {
		method.Returns = query.ReturnStatistics
	}

	var args []any
	for _, raw := range opts.params {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return query.Method{}, nil, fmt.Errorf("parameter %q must look like name=value", raw)
		}
		method.Params = append(method.Params, query.Named(name))
		args = append(args, parseValue(value))
	}

	sort, err := paging.ParseSort(opts.sort)
	if err != nil {
		return query.Method{}, nil, err
	}
	if opts.size > 0 {
		if opts.page < 1 {
			return query.Method{}, nil, fmt.Errorf("page must be at least 1, got %d", opts.page)
		}
		method.Params = append(method.Params, query.PageableParam())
		args = append(args, paging.Pageable{Page: opts.page - 1, Size: opts.size, Sort: sort})
	} else if sort.IsSorted() {
		method.Params = append(method.Params, query.SortParam())
		args = append(args, sort)
	}
	return method, args, nil
}

// parseValue turns a flag value into the narrowest Cypher literal type.
func parseValue(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
