// Package server hosts the Fiber HTTP service that fronts the cache engine.
// It turns inbound requests into fingerprints, hands them to the cache and
// writes the stored entry back, tagging each response with its query outcome.
// Diagnostics endpoints live under /-/ and are registered by the routes
// subpackage; keep exports narrow and accept explicit dependencies.
package server
