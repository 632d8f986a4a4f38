// Package controller holds the HTTP middlewares and utility handlers the scan
// API server is assembled from.
//
// Middlewares:
//   - WithCORS: permissive CORS headers plus OPTIONS preflight handling.
//   - WithLogger: request ID propagation, request-scoped logger and access logs.
//
// Helpers:
//   - PprofMux: a ServeMux exposing the net/http/pprof handlers.
package controller
