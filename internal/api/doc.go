// Package api implements the HTTP inspection API and record change stream
// for an objrecord database.
//
// This package provides:
//   - Table endpoints: column descriptors and row listings, plus single-row
//     read, create, update and delete through a record.Repository whose
//     observer (normally a changefeed.Feed) sees every write
//   - POST /query for SELECT, WITH, VALUES and EXPLAIN statements, run in
//     a transaction that is always rolled back
//   - A WebSocket hub that relays record changes on "record.<table>" channels
//   - Prometheus exposition and a health endpoint
//   - Middleware stack (request ID, logging, recovery, body limit, bearer auth)
//
// # Security
//
// When api.auth.jwt_secret is set every route except /health and /metrics
// requires an HS256 bearer token, minted with `objrecord token`. WebSocket
// clients may pass the token as the token query parameter.
//
// # Concurrency
//
// Handlers run concurrently and share one database.Adapter, which must be
// safe for concurrent use. Wrap the adapter with database.Synchronized.
package api
