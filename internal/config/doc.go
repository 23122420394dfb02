// Package config loads the vestifyd daemon configuration: the JSON runtime
// config (server, logging, signer, storage and event drivers) and the YAML
// definitions file pinning the required network identity and the two contract
// addresses. Both are read once at startup and treated as immutable for the
// process lifetime.
package config
