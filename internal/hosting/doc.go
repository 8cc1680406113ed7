// Package hosting is the boundary between llmhost and a remote model-hosting
// control plane. It turns a serving.Config into the container environment the
// hosted text-generation server reads, resolves container images, and talks
// to the control plane over HTTP:
//
//   - env.go: serving.Config <-> environment block (the only place limits become strings).
//   - images.go: ImageCatalog, backend/version/region to image reference.
//   - names.go: endpoint name generation and validation.
//   - client.go: Client, the REST implementation of Provisioner, Predictor and Teardowner.
//   - errors.go: APIError and helpers.
//
// Failures reported by the control plane are returned to callers as APIError
// values; this package never retries.
package hosting
