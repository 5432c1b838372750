package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
)

// Mock is a deterministic in-process provider for tests. Identical text
// always maps to the identical vector, and distinct texts map to nearly
// uncorrelated directions, so exact matches rank first.
type Mock struct {
	dimension int
	model     string

	mu          sync.Mutex
	calls       int
	unavailable bool
	failTexts   map[string]bool
	embedHook   func()
}

// NewMock creates a mock provider with the given dimensionality.
func NewMock(dimension int) *Mock {
	return &Mock{
		dimension: dimension,
		model:     "mock-embedder",
		failTexts: make(map[string]bool),
	}
}

// SetModelName overrides the reported model name, which lets tests simulate
// an embedding model change.
func (m *Mock) SetModelName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = name
}

// SetUnavailable toggles the unavailable sentinel on every call.
func (m *Mock) SetUnavailable(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = v
}

// FailOn makes embedding of the exact text fail with a transient error.
func (m *Mock) FailOn(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTexts[text] = true
}

// SetEmbedHook installs fn to run at the start of every batch, letting tests
// block or observe in-flight embed calls.
func (m *Mock) SetEmbedHook(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedHook = fn
}

// Calls reports how many embed invocations were served.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) ModelName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

func (m *Mock) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	hook := m.embedHook
	unavailable := m.unavailable
	var failed string
	for _, t := range texts {
		if m.failTexts[t] {
			failed = t
			break
		}
	}
	if !unavailable && failed == "" {
		m.calls++
	}
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if unavailable {
		return nil, ErrUnavailable
	}
	if failed != "" {
		return nil, fmt.Errorf("mock embed failure for %q", failed)
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectorFor(t)
	}
	return out, nil
}

func (m *Mock) vectorFor(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, m.dimension)
	for i := range vec {
		// Re-hash per component so each dimension is independent.
		var buf [36]byte
		copy(buf[:32], sum[:])
		binary.LittleEndian.PutUint32(buf[32:], uint32(i))
		h := sha256.Sum256(buf[:])
		v := binary.LittleEndian.Uint32(h[:4])
		vec[i] = float32(v%2000)/1000.0 - 1.0 // [-1, 1)
	}
	return vec
}
