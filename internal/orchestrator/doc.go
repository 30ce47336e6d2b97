// ABOUTME: Decide/act orchestration loop driven by a reasoning oracle.
// ABOUTME: Owns conversation state, operation dispatch, and the validation/repair checks.

// Package orchestrator runs one inbound event through alternating decide
// and act phases: the oracle picks the next operations, the loop
// executes them against remote backends, and the results feed the next
// decision, until the oracle answers without requesting anything.
//
// Backend failures never abort a run. Unknown operations, transport
// errors, and protocol errors all become operation results the oracle
// can read and react to.
package orchestrator
