// Package client provides the `haywire` command-line client.
//
// Queue commands talk to the HTTP gateway; `health` uses the gRPC health
// service.
//
// # Address configuration
//
// The HTTP base URL comes from the embedding application through a
// BaseURLFunc; the standalone binary reads HAYWIRE_HTTP and defaults to
// http://127.0.0.1:8080. The gRPC address is read from HAYWIRE_GRPC
// (default 127.0.0.1:50051).
//
// Usage
//
//	haywire queue create --name orders
//	haywire queue send --queue orders --data '{"total":120}' --header type=created
//	haywire queue receive --queue orders --timeout 10s --count 5
//	haywire queue peek --queue orders
//	haywire queue browse --queue orders --filter 'json.total > 100'
//	haywire queue stats
//	haywire health
package client
