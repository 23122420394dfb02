// Package workflow drives the transaction workflows of the vesting dapp:
// minting test tokens, the two-phase approve-then-create vesting schedule
// flow, and beneficiary whitelisting. A single orchestrator serializes
// workflows, records every run in a RunStore for auditing, and publishes
// state transitions on a Publisher so external consumers can follow
// progress without polling.
package workflow
