// Package server is the HTTP API over the stores.
//
// Routes:
//
//	GET /healthz
//	GET /v1/search?q=&kind=market&limit=10
//	GET /v1/stats
//	GET /v1/records/:kind/:source/:ticker
//	GET /v1/quote/:ticker?source=
package server
