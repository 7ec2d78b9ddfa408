// Package server hosts the Fiber HTTP service: recover and request-id
// middleware, the ordered route pipeline (static assets, /api proxy, SPA
// fallback) and the shared outbound HTTP clients. Handlers live in their own
// packages and are handed in through AppOptions, so keep exports narrow and
// accept explicit dependencies.
package server
