// Package engine orchestrates the ask pipeline: retrieval from both stores,
// guarded prompt assembly, generation with tool execution, and sanitized
// memory writeback.
package engine
