// Package postgrest translates structured query descriptions into PostgREST
// requests and normalizes the responses.
//
// # Overview
//
// The package has three parts. The encoder (BuildQueryParams, BuildHeaders)
// turns QueryOptions into a query string and a header set. The normalizer
// (ParseContentRange, Wrap, NormalizeError) turns responses into a
// QueryResult or an *Error. Client ties both to an injected Transport and
// exposes Select, Insert, Update, Delete, Upsert and RPC.
//
// The package never performs HTTP itself. A retrying transport built on
// go-retryablehttp lives in internal/http, and pkg/pgclient wires it together
// with authentication and interceptors.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/postgrestx/pkg/pgclient"
//	  "github.com/fivetwenty-io/postgrestx/pkg/postgrest"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := pgclient.New(&postgrest.Config{BaseURL: "https://db.example.com"})
//	  if err != nil { log.Fatal(err) }
//
//	  res, err := cli.Select(ctx, "users", postgrest.NewQueryOptions().
//	    WithSelect("id,name").
//	    WithFilter("status", postgrest.OpEqual, "active").
//	    WithOrder("created_at.desc").
//	    WithLimit(20))
//	  if err != nil { log.Fatal(err) }
//	  _ = res.Data
//	}
//
// # Filters
//
// A Filter encodes as "column=[not.]op[(any|all)][.value]". A nil Value
// produces a value-less clause; use Null for an explicit SQL null. Slices
// encode as "(a,b)" with string elements double-quoted:
//
//	postgrest.Filter{Column: "tags", Op: postgrest.OpContains,
//	  Modifier: postgrest.ModifierAny, Value: []string{"a", "b"}}
//	// tags=cs(any).("a","b")
//
// # Pagination
//
// Set Range to request a row window through the Range header and Count to
// ask for a total. The echoed Content-Range populates QueryResult.Range and
// QueryResult.Total:
//
//	res, _ := cli.Select(ctx, "users", postgrest.NewQueryOptions().
//	  WithRange(postgrest.Range(0, 24)).
//	  WithCount(postgrest.CountExact))
//	if res.HasMore() { ... }
//
// # Errors
//
// Responses with status >= 400 are returned as *Error. Use AsError or the
// IsNotFound, IsConflict and related helpers to inspect them. Transport
// failures are returned wrapped with the operation name.
//
// # Interceptors
//
// InterceptorChain wraps any Transport with request, response and error
// hooks. The package ships logging, header, bearer authentication, schema
// profile, request ID and metrics interceptors.
package postgrest
