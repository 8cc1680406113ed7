// Package deploy coordinates one deployment of a compiled model: it derives
// the serving configuration, checks it against the compiled artifact, picks a
// container image, provisions the endpoint, sends sample requests and tears
// everything down again. It is structured into small files by concern:
//
//   - deployer.go: Deployer type, Options and constructor.
//   - plan.go: Plan, the pure part of a deployment (no control-plane calls).
//   - ops.go: Deploy, Generate, Teardown and Run.
//   - events.go: lifecycle events and the in-memory publisher.
//   - metrics.go: Prometheus collectors.
//   - errors.go: error helpers.
//
// Control-plane failures are returned unmodified apart from added context;
// nothing here retries.
package deploy
