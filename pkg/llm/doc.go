// Package llm is the generation client for OpenAI-compatible chat backends.
//
// Invariants:
// - Generate never returns a Go error for transport failures; callers always
//   receive a result carrying accumulated usage and timing.
// - Continuation is a bounded loop, never recursion; no round starts after
//   the context is cancelled.
// - Prompt tokens are counted exactly once per generation, on the first
//   round that reports them.
// - Tool calls are surfaced, not executed; ExecuteTool is a separate,
//   explicit step.
package llm
