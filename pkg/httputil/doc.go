// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// and the middleware every trainhub route runs behind.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, data)
//	httputil.WriteNoContent(w)
//
// Error responses are always {"error": "..."}:
//
//	httputil.WriteBadRequest(w, "invalid role")
//	httputil.WriteUnauthorized(w, "missing telegram authorization")
//	httputil.WriteForbidden(w, "user not registered")
//	httputil.WriteInternalError(w)
//
// # Request Parsing
//
//	var req RegisterRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(64*1024),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authorization gate and login throttling
//   - pkg/observability: Logger stored in the request context
package httputil
