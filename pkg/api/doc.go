// Package api provides the HTTP API of the trainhub authentication service.
//
// # Overview
//
// The API converts Telegram mini-app init data into a session cookie and serves the
// access-code flow used during registration. Every request passes through the same chain:
//
//	request id -> logging -> recovery -> body limit -> metrics -> login throttling -> gate -> router
//
// and the whole chain is wrapped with otelhttp for tracing.
//
// # Endpoints
//
//	POST /api/auth/login     Authorization: tma <init data>
//	POST /api/auth/register  {"initDataRaw", "accessCode", "role"}
//	POST /api/auth/validate  {"code"}
//	POST /api/auth/logout
//	GET  /api/me             protected, echoes the forwarded identity
//	GET  /health, /health/live, /health/ready
//
// # Usage
//
//	server, err := api.NewServer(api.Dependencies{
//		Verifier:  verifier,
//		Issuer:    issuer,
//		Directory: store,
//		Gate:      gate,
//		Metrics:   metrics,
//		Logger:    logger,
//	})
//	http.ListenAndServe(":8080", server)
//
// Application routes mounted on Router() sit behind the gate like every other route.
//
// # Error Responses
//
// Errors are JSON bodies of the form {"error": "..."}. Bodies stay generic; the cause is
// logged with the request id.
package api
