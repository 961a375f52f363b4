// Package retry bounds the waiting done around the browser session: retrying
// an operation a fixed number of times with backoff, and polling for a
// condition until a per-wait timeout. Every loop here terminates.
package retry
