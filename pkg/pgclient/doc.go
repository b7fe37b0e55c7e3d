// Package pgclient provides the primary entry point for constructing a
// PostgREST client backed by the default HTTP transport.
//
// It layers configuration, the retrying transport from internal/http, JWT
// handling and the request interceptors on top of the core in
// pkg/postgrest. Most applications should import pgclient to build a client
// and then call Select, Insert, Update, Delete, Upsert or RPC on the result.
//
// Quick start
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
//
//	  // Anonymous role.
//	  cli, err := pgclient.NewWithURL("db.example.com")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with a JWT and a non-default schema:
//	  cli, err = pgclient.New(&postgrest.Config{
//	    BaseURL: "https://db.example.com",
//	    Token:   "eyJhbGciOi...",
//	    Schema:  "api",
//	  })
//
//	  res, err := cli.Select(ctx, "todos", postgrest.NewQueryOptions().WithLimit(10))
//	  if err != nil { log.Fatal(err) }
//	  _ = res.Data
//	}
//
// Interceptors
//
// New installs, in order, a HeaderInterceptor for Config.Headers, a
// SchemaInterceptor for Config.Schema, a RequestIDInterceptor when
// Config.RequestIDs is set, the metrics interceptors when Config.Metrics is
// set and a LoggingErrorInterceptor when Config.Logger is set.
package pgclient
