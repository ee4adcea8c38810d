// Package upstream performs the real network fetch behind a cache miss or a
// background refresh. A single http.Client is built at startup and shared by
// every request; redirects are returned to the caller instead of being
// followed, and only allow-listed response headers are kept.
package upstream
