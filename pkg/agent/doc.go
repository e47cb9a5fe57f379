// Package agent implements the conversational execution loop with tool rounds
// and streaming progress events.
//
// Invariants:
// - Every turn's event channel carries exactly one terminal event, then closes.
// - Assistant and tool messages persist together at round boundaries.
// - Results of a cancelled round are discarded, never persisted.
// - Tool calls within a round run concurrently but surface in call order.
//
// Usage:
//
//	loop, _ := agent.New(agent.Options{...})
//	for ev := range loop.Run(ctx, agent.Turn{SessionID: "s1", Prompt: "hello"}) {
//		_ = ev
//	}
package agent
