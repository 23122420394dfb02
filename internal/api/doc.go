// Package api exposes the REST surface of the vesting daemon: session
// management, the mint/vesting/whitelist workflow endpoints, the run audit
// trail, and the Prometheus metrics endpoint.
package api
