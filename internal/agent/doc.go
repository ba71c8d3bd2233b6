// Package agent contains agentd's core (non-UI) logic.
//
// An Agent binds a resolved configuration, a system prompt, and an MCP tool
// registry, and turns a single prompt into a streaming completion. Execute
// never returns an error to the caller: every failure is folded into a Result
// with Success false, a human-readable message, and a coarse category.
package agent
