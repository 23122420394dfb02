// Package contracts is the gateway to the two external smart contracts. It
// validates the configured addresses once at startup and produces typed
// handles bound to a signer-capable backend on demand. The gateway is a pure
// factory; it performs no network calls of its own.
package contracts
