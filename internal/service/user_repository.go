package service

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/vanshika/graphrepo/internal/domain"
	"github.com/vanshika/graphrepo/internal/graph"
	"github.com/vanshika/graphrepo/internal/ogm"
	"github.com/vanshika/graphrepo/internal/paging"
	"github.com/vanshika/graphrepo/internal/query"
	"github.com/vanshika/graphrepo/internal/repository"
)

const (
	findByAnnotatedQueryCypher       = `MATCH (u:User) WHERE u.name = $name RETURN u`
	findOptionalByEmailAddressCypher = `MATCH (u:User) WHERE u.emailAddress = $email RETURN u`
	findUsersCypher                  = `MATCH (u:User) RETURN u`
	countUsersCypher                 = `MATCH (u:User) RETURN count(u)`
	renameUserCypher                 = `MATCH (u:User) WHERE u.name = $from SET u.name = $to`
	userRowsCypher                   = `
MATCH (u:User)
OPTIONAL MATCH (u)-[:INTERESTED]->(g:Genre)
RETURN u.name AS name, u.emailAddress AS email, count(g) AS interests
ORDER BY name`
	rawUsersCypher         = `MATCH (u:User) RETURN u.name AS name, elementId(u) AS id ORDER BY name`
	friendsOfCypher        = `MATCH (u:User)-[:FRIEND_OF]-(f:User) WHERE elementId(u) = $user RETURN DISTINCT f`
	deleteUsersNamedCypher = `MATCH (u:User) WHERE u.name = $name DETACH DELETE u`
)

// UserRepository bundles the CRUD repository of users with their query
// methods.
type UserRepository struct {
	*repository.Repository[domain.User]

	findByName                     *query.GraphRepositoryQuery
	findByEmailAddress             *query.GraphRepositoryQuery
	findByNameContainingIgnoreCase *query.GraphRepositoryQuery
	searchByName                   *query.GraphRepositoryQuery
	findByGenresName               *query.GraphRepositoryQuery
	countByName                    *query.GraphRepositoryQuery

	findByAnnotatedQuery       *query.GraphRepositoryQuery
	findOptionalByEmailAddress *query.GraphRepositoryQuery
	findUsersPage              *query.GraphRepositoryQuery
	findUsersSlice             *query.GraphRepositoryQuery
	renameUser                 *query.GraphRepositoryQuery
	userRows                   *query.GraphRepositoryQuery
	userReport                 *query.GraphRepositoryQuery
	rawUsers                   *query.GraphRepositoryQuery
	friendsOf                  *query.GraphRepositoryQuery
	deleteUsersNamed           *query.GraphRepositoryQuery
}

// NewUserRepository declares the user query methods against session.
func NewUserRepository(session *ogm.Session, logger *slog.Logger) (*UserRepository, error) {
	base, err := repository.New[domain.User](session, logger)
	if err != nil {
		return nil, err
	}
	r := &UserRepository{Repository: base}
	summary := reflect.TypeFor[domain.UserSummary]()

	derivedMethods := []struct {
		target **query.GraphRepositoryQuery
		method query.Method
	}{
		{&r.findByName, query.Method{Name: "findByName", Returns: query.ReturnCollection}},
		{&r.findByEmailAddress, query.Method{Name: "findByEmailAddress", Returns: query.ReturnEntity}},
		{&r.findByNameContainingIgnoreCase, query.Method{
			Name: "findByNameContainingIgnoreCase", Returns: query.ReturnPage,
			Params: []query.Param{query.PageableParam()}, Projection: summary,
		}},
		{&r.searchByName, query.Method{
			Name: "findByNameContainingIgnoreCase", Returns: query.ReturnSlice,
			Params: []query.Param{query.PageableParam()},
		}},
		{&r.findByGenresName, query.Method{Name: "findByGenresName", Returns: query.ReturnCollection}},
		{&r.countByName, query.Method{Name: "countByName", Returns: query.ReturnEntity}},
	}
	for _, d := range derivedMethods {
		if *d.target, err = base.DeriveMethod(d.method); err != nil {
			return nil, err
		}
	}

	annotated := []struct {
		target **query.GraphRepositoryQuery
		method query.Method
	}{
		{&r.findByAnnotatedQuery, query.Method{
			Name: "findByAnnotatedQuery", Returns: query.ReturnCollection,
			Query: findByAnnotatedQueryCypher, Params: []query.Param{query.Named("name")},
		}},
		{&r.findOptionalByEmailAddress, query.Method{
			Name: "findOptionalByEmailAddress", Returns: query.ReturnEntity,
			Query: findOptionalByEmailAddressCypher, Params: []query.Param{query.Named("email")},
		}},
		{&r.findUsersPage, query.Method{
			Name: "findUsersPage", Returns: query.ReturnPage,
			Query: findUsersCypher, CountQuery: countUsersCypher, Params: []query.Param{query.PageableParam()},
		}},
		{&r.findUsersSlice, query.Method{
			Name: "findUsersSlice", Returns: query.ReturnSlice,
			Query: findUsersCypher, Params: []query.Param{query.PageableParam()},
		}},
		{&r.renameUser, query.Method{
			Name: "renameUser", Returns: query.ReturnStatistics,
			Query: renameUserCypher, Params: []query.Param{query.Named("from"), query.Named("to")},
		}},
		{&r.userRows, query.Method{Name: "userRows", Returns: query.ReturnMaps, Query: userRowsCypher}},
		{&r.userReport, query.Method{
			Name: "userReport", Returns: query.ReturnCollection,
			Entity: reflect.TypeFor[domain.UserRow](), Query: userRowsCypher,
		}},
		{&r.rawUsers, query.Method{Name: "rawUsers", Returns: query.ReturnResult, Query: rawUsersCypher}},
		{&r.friendsOf, query.Method{
			Name: "friendsOf", Returns: query.ReturnCollection,
			Query: friendsOfCypher, Params: []query.Param{query.Named("user")},
		}},
		{&r.deleteUsersNamed, query.Method{
			Name: "deleteUsersNamed", Returns: query.ReturnNothing,
			Query: deleteUsersNamedCypher, Params: []query.Param{query.Named("name")},
		}},
	}
	for _, a := range annotated {
		if *a.target, err = base.Query(a.method, query.WithSortVariable("u")); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// FindByName returns the users called name.
func (r *UserRepository) FindByName(ctx context.Context, name string) ([]*domain.User, error) {
	return query.List[*domain.User](ctx, r.findByName, name)
}

// FindByEmailAddress returns the user registered with email.
func (r *UserRepository) FindByEmailAddress(ctx context.Context, email string) (*domain.User, bool, error) {
	return query.One[*domain.User](ctx, r.findByEmailAddress, email)
}

// FindByNameContainingIgnoreCase pages through the summaries of users whose
// name contains fragment.
func (r *UserRepository) FindByNameContainingIgnoreCase(ctx context.Context, fragment string, pageable paging.Pageable) (paging.Page[domain.UserSummary], error) {
	return query.PageOf[domain.UserSummary](ctx, r.findByNameContainingIgnoreCase, fragment, pageable)
}

// SearchByName is FindByNameContainingIgnoreCase without counting.
func (r *UserRepository) SearchByName(ctx context.Context, fragment string, pageable paging.Pageable) (paging.Slice[*domain.User], error) {
	return query.SliceOf[*domain.User](ctx, r.searchByName, fragment, pageable)
}

// FindByGenresName returns the users interested in the genre called name.
func (r *UserRepository) FindByGenresName(ctx context.Context, name string) ([]*domain.User, error) {
	return query.List[*domain.User](ctx, r.findByGenresName, name)
}

// CountByName counts the users called name.
func (r *UserRepository) CountByName(ctx context.Context, name string) (int64, error) {
	n, _, err := query.One[int64](ctx, r.countByName, name)
	return n, err
}

func (r *UserRepository) FindByAnnotatedQuery(ctx context.Context, name string) ([]*domain.User, error) {
	return query.List[*domain.User](ctx, r.findByAnnotatedQuery, name)
}

func (r *UserRepository) FindOptionalByEmailAddress(ctx context.Context, email string) (*domain.User, bool, error) {
	return query.One[*domain.User](ctx, r.findOptionalByEmailAddress, email)
}

// FindUsersPage pages through every user. Sort properties are relative to the
// user node, e.g. "name".
func (r *UserRepository) FindUsersPage(ctx context.Context, pageable paging.Pageable) (paging.Page[*domain.User], error) {
	return query.PageOf[*domain.User](ctx, r.findUsersPage, pageable)
}

func (r *UserRepository) FindUsersSlice(ctx context.Context, pageable paging.Pageable) (paging.Slice[*domain.User], error) {
	return query.SliceOf[*domain.User](ctx, r.findUsersSlice, pageable)
}

// RenameUser renames every user called from and reports the update counters.
func (r *UserRepository) RenameUser(ctx context.Context, from, to string) (graph.Stats, error) {
	return query.Stats(ctx, r.renameUser, from, to)
}

func (r *UserRepository) UserRows(ctx context.Context) ([]map[string]any, error) {
	return query.Maps(ctx, r.userRows)
}

// UserReport is UserRows mapped onto domain.UserRow.
func (r *UserRepository) UserReport(ctx context.Context) ([]domain.UserRow, error) {
	return query.List[domain.UserRow](ctx, r.userReport)
}

func (r *UserRepository) RawUsers(ctx context.Context) (graph.Result, error) {
	return query.Raw(ctx, r.rawUsers)
}

// FriendsOf returns the friends of a saved user.
func (r *UserRepository) FriendsOf(ctx context.Context, user *domain.User) ([]*domain.User, error) {
	return query.List[*domain.User](ctx, r.friendsOf, user)
}

func (r *UserRepository) DeleteUsersNamed(ctx context.Context, name string) error {
	return query.Exec(ctx, r.deleteUsersNamed, name)
}
