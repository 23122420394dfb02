// Package form converts raw string form input into typed workflow requests.
// It mirrors the dapp's submission forms: every field arrives as text, gets
// checked locally, and only a fully valid set of fields produces a request.
package form
