package source

import "errors"

var (
	// ErrNotFound indicates that the requested version, branch, or path does
	// not exist at the source. It is never retried internally.
	ErrNotFound = errors.New("package source not found")

	// ErrTransport indicates that a registry download or repository
	// clone/update could not complete. Callers may retry the whole Fetch.
	ErrTransport = errors.New("package source transport failure")

	// ErrNotCached indicates that a copy was requested before a successful
	// Fetch, or that the cache entry is gone. Distinct from ErrNotFound so
	// callers can decide to re-fetch.
	ErrNotCached = errors.New("package source not cached")
)
