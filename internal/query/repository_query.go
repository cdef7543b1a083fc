package query

import (
	"context"
	"log/slog"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/graph"
	"github.com/vanshika/graphrepo/internal/paging"
)

// Parameter names of the paging window appended to paged queries.
const (
	SkipParam  = "sdnSkip"
	LimitParam = "sdnLimit"

	skipLimit     = " SKIP $" + SkipParam + " LIMIT $" + LimitParam
	orderByClause = " ORDER BY "
)

// Session is what the executor needs from the object-graph session.
type Session interface {
	Query(ctx context.Context, cypher string, params map[string]any) (graph.Result, error)
	QueryForObject(ctx context.Context, t reflect.Type, cypher string, params map[string]any) (any, bool, error)
	QueryForList(ctx context.Context, t reflect.Type, cypher string, params map[string]any) ([]any, error)
	ResolveGraphID(v any) (string, bool)
}

var sortProperty = regexp.MustCompile("^([A-Za-z_][A-Za-z0-9_]*|`[^`]+`)(\\.([A-Za-z_][A-Za-z0-9_]*|`[^`]+`))*$")

// Option configures a GraphRepositoryQuery.
type Option func(*GraphRepositoryQuery)

// WithLogger logs executed statements at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(q *GraphRepositoryQuery) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithSortVariable qualifies unqualified dynamic sort properties with
// variable, for queries that return whole nodes.
func WithSortVariable(variable string) Option {
	return func(q *GraphRepositoryQuery) {
		q.sortVariable = variable
	}
}

// GraphRepositoryQuery executes one query method against a session.
type GraphRepositoryQuery struct {
	method       Method
	session      Session
	logger       *slog.Logger
	sortVariable string
}

// New validates method and binds it to session.
func New(session Session, method Method, opts ...Option) (*GraphRepositoryQuery, error) {
	if err := method.Validate(); err != nil {
		return nil, err
	}
	q := &GraphRepositoryQuery{
		method:  method,
		session: session,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "query", "method", method.Name)
	return q, nil
}

// MustNew is New for method tables declared at package level.
func MustNew(session Session, method Method, opts ...Option) *GraphRepositoryQuery {
	q, err := New(session, method, opts...)
	if err != nil {
		panic(err)
	}
	return q
}

// Method returns the method declaration.
func (q *GraphRepositoryQuery) Method() Method {
	return q.method
}

// Execute runs the method with args, one per declared parameter. The dynamic
// type of the result follows the return kind:
//
//	ReturnNothing     nil
//	ReturnEntity      the entity (or projection) value, nil when absent
//	ReturnCollection  []any
//	ReturnPage        paging.Page[any]
//	ReturnSlice       paging.Slice[any]
//	ReturnStatistics  graph.Stats
//	ReturnResult      graph.Result
//	ReturnMaps        []map[string]any
func (q *GraphRepositoryQuery) Execute(ctx context.Context, args ...any) (any, error) {
	accessor, err := NewAccessor(q.method, args)
	if err != nil {
		return nil, err
	}
	params := q.resolveParams(args)
	if q.method.Write {
		ctx = graph.WithWriteMode(ctx)
	}

	result, err := q.execute(ctx, q.method.Query, params, accessor)
	if err != nil {
		return nil, err
	}
	switch q.method.Returns {
	case ReturnNothing, ReturnResult, ReturnStatistics, ReturnMaps:
		return result, nil
	}

	target := q.method.Projection
	if dynamic, ok := accessor.Projection(); ok {
		target = dynamic
	}
	return processResult(result, target)
}

func (q *GraphRepositoryQuery) execute(ctx context.Context, cypher string, params map[string]any, accessor Accessor) (any, error) {
	pageable, paged := accessor.Pageable()
	sort := accessor.Sort()
	if paged && pageable.Sort.IsSorted() {
		sort = pageable.Sort
	}
	if sort.IsSorted() {
		var err error
		if cypher, err = q.addSorting(cypher, sort); err != nil {
			return nil, err
		}
	}

	switch {
	case q.method.Returns == ReturnNothing:
		_, err := q.query(ctx, cypher, params)
		return nil, err
	case q.method.IsCollectionQuery() && !q.method.ReturnsStatistics():
		return q.mappedCollection(ctx, cypher, params, pageable, paged)
	case q.method.Returns == ReturnStatistics:
		res, err := q.query(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Stats, nil
	case q.method.Returns == ReturnResult:
		return q.query(ctx, cypher, params)
	}

	q.logger.DebugContext(ctx, "executing query", "query", cypher)
	v, found, err := q.session.QueryForObject(ctx, q.method.ConcreteType(), cypher, params)
	if err != nil {
		return nil, q.wrap(err)
	}
	if !found {
		return nil, nil
	}
	return v, nil
}

func (q *GraphRepositoryQuery) query(ctx context.Context, cypher string, params map[string]any) (graph.Result, error) {
	q.logger.DebugContext(ctx, "executing query", "query", cypher)
	res, err := q.session.Query(ctx, cypher, params)
	if err != nil {
		return graph.Result{}, q.wrap(err)
	}
	return res, nil
}

func (q *GraphRepositoryQuery) mappedCollection(ctx context.Context, cypher string, params map[string]any, pageable paging.Pageable, paged bool) (any, error) {
	if q.method.Returns == ReturnMaps {
		if paged {
			cypher = q.addPaging(cypher, params, pageable)
		}
		res, err := q.query(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, len(res.Records))
		for i, rec := range res.Records {
			rows[i] = rec
		}
		return rows, nil
	}

	if (q.method.IsPageQuery() || q.method.IsSliceQuery()) && paged {
		cypher = q.addPaging(cypher, params, pageable)
	}

	q.logger.DebugContext(ctx, "executing query", "query", cypher)
	items, err := q.session.QueryForList(ctx, q.method.ConcreteType(), cypher, params)
	if err != nil {
		return nil, q.wrap(err)
	}
	if !q.method.IsPageQuery() && !q.method.IsSliceQuery() {
		return items, nil
	}

	var count *int64
	if paged {
		if count, err = q.computeCount(ctx, params); err != nil {
			return nil, err
		}
	}
	return q.createPage(items, pageable, paged, count), nil
}

// createPage cuts the window out of items. Slice queries fetch one row more
// than the page size so the extra row signals a following slice. Without a
// count query the total is estimated as at least one more page whenever the
// window came back full.
func (q *GraphRepositoryQuery) createPage(items []any, pageable paging.Pageable, paged bool, count *int64) any {
	if !paged {
		if q.method.IsPageQuery() {
			return paging.PageOf(items)
		}
		return paging.SliceOf(items)
	}

	size := pageable.Size
	var total int64
	if count != nil {
		total = *count
	} else {
		total = int64(pageable.Offset() + len(items))
		if len(items) == size {
			total += int64(size)
		}
	}

	window := min(len(items), size)
	hasNext := window < len(items)
	content := items[:window]

	if q.method.IsPageQuery() {
		return paging.NewPage(content, pageable, total)
	}
	return paging.NewSlice(content, pageable, hasNext)
}

func (q *GraphRepositoryQuery) computeCount(ctx context.Context, params map[string]any) (*int64, error) {
	if strings.TrimSpace(q.method.CountQuery) == "" {
		return nil, nil
	}
	res, err := q.query(ctx, q.method.CountQuery, params)
	if err != nil {
		return nil, err
	}
	v, ok := res.FirstValue()
	if !ok {
		return nil, nil
	}
	n, ok := graph.ToInt64(v)
	if !ok {
		return nil, dataaccess.Newf(dataaccess.KindDataRetrieval, "count "+q.method.Name, "count query returned %T", v)
	}
	return &n, nil
}

func (q *GraphRepositoryQuery) addSorting(cypher string, sort paging.Sort) (string, error) {
	qualified := paging.Sort{Orders: make([]paging.Order, 0, len(sort.Orders))}
	for _, o := range sort.Orders {
		if !sortProperty.MatchString(o.Property) {
			return "", dataaccess.Newf(dataaccess.KindInvalidUsage, "query method "+q.method.Name, "invalid sort property %q", o.Property)
		}
		if q.sortVariable != "" && !strings.Contains(o.Property, ".") {
			o.Property = q.sortVariable + "." + o.Property
		}
		qualified.Orders = append(qualified.Orders, o)
	}
	return formatBaseQuery(cypher) + orderByClause + qualified.Cypher(), nil
}

func (q *GraphRepositoryQuery) addPaging(cypher string, params map[string]any, pageable paging.Pageable) string {
	params[SkipParam] = pageable.Page * pageable.Size
	if q.method.IsSliceQuery() {
		params[LimitParam] = pageable.Size + 1
	} else {
		params[LimitParam] = pageable.Size
	}
	return formatBaseQuery(cypher) + skipLimit
}

// resolveParams binds value arguments. Persisted entities are replaced by
// their graph id.
func (q *GraphRepositoryQuery) resolveParams(args []any) map[string]any {
	params := make(map[string]any, len(args))
	for i, p := range q.method.Params {
		if p.Role != RoleValue {
			continue
		}
		value := args[i]
		if id, ok := q.session.ResolveGraphID(value); ok {
			value = id
		}
		if p.IsNamed() {
			params[p.Name] = value
		} else {
			params[strconv.Itoa(i)] = value
		}
	}
	return params
}

func (q *GraphRepositoryQuery) wrap(err error) error {
	return dataaccess.Translate("query method "+q.method.Name, err)
}

func formatBaseQuery(cypher string) string {
	cypher = strings.TrimSpace(cypher)
	return strings.TrimSuffix(cypher, ";")
}
