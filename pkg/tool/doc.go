// Package tool provides the tool registry and the execution wrapper that
// the agent loop dispatches model tool calls through.
//
// The registry is populated once at startup; its List order is the
// registration order, which keeps the tool section of model prompts
// deterministic. The executor turns every failure mode (unknown tool,
// schema-invalid arguments, handler error, panic, timeout) into a
// Result with Success=false rather than an error, so a misbehaving tool
// can never take down a turn.
package tool
