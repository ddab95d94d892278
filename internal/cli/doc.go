// Package cli implements the outings command line: one-off fetches of the
// published sheet, a category summary, and the HTTP server.
//
// Commands read the same environment configuration as the server (see
// package config); flags override it per invocation.
package cli
