// Package admin serves the runtime's HTTP administration API.
//
// Routes, all JSON:
//
//	GET    /api/components                      component snapshots
//	GET    /api/components/{name}               one component
//	POST   /api/components/{name}/{action}      activate, deactivate or reset; ?ec=<handle> selects one context
//	GET    /api/contexts                        execution context profiles
//	POST   /api/contexts/{id}/tick              run one round of an external trigger context
//	PUT    /api/contexts/{id}/rate              {"rate": hz} for a periodic context
//	GET    /api/connectors                      connector profiles
//	POST   /api/connectors                      connect; body is a connector profile
//	DELETE /api/connectors/{id}                 disconnect
//	GET    /health                              aggregated health, 503 when unhealthy
//	GET    /metrics                             Prometheus exposition, when a registry is set
//
// Lifecycle return codes map to HTTP statuses: BAD_PARAMETER is 400,
// PRECONDITION_NOT_MET is 409, UNSUPPORTED is 501 and OUT_OF_RESOURCES is
// 503. Unknown names and routes are 404; a known route called with the wrong
// method is 405 with code UNSUPPORTED. Every error body is {"error", "code"}.
package admin
