// Package session owns the single wallet-connected signing session. It
// defines the Provider capability interface implemented by concrete signing
// providers, and a Manager that establishes and tears down the session,
// enforces the required network identity before every transacting operation,
// and exposes the active signer to higher layers. Only the Manager mutates
// session state.
package session
