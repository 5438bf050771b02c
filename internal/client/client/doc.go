// Package client contains the client-side transport to the remote document
// store and the local SQLite bootstrap.
//
// # Overview
//
//  1. Client is the transport-agnostic contract of the remote store: Write,
//     Patch, Delete, DeleteBefore, a blocking Subscribe, and Ping.
//  2. GRPCClient implements it over the StationFeed gRPC service (JSON
//     codec), tags every call with a request id, checks liveness through the
//     standard gRPC health service, and maps status codes to sentinel errors.
//  3. InitDatabase and RunMigrations open the local SQLite store and apply
//     the embedded goose migrations.
//
// # Error Handling
//
// Match with errors.Is: ErrUnavailable (server down, deadline exceeded or
// stream closed), ErrRejected (request refused as invalid) and
// common.ErrorNotFound.
package client
