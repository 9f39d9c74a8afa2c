// Package watch drives the live viewer: it watches document files for
// changes, debounces them into refresh signals, and serves the outcome of
// the latest pass over HTTP.
package watch
