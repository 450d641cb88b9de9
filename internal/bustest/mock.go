// Package bustest provides a testify mock of the I2C bus for driver tests.
package bustest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mklimuk/airmon"
)

var _ airmon.I2CBus = &MockI2CBus{}

// MockI2CBus records every transaction and tracks how many ran at once.
// ReadFromAddr and TxToAddr copy the []byte returned by the expectation
// into the caller's buffer.
type MockI2CBus struct {
	mock.Mock
	concurrentOps int64
	maxConcurrent int64
	mu            sync.Mutex
}

func (m *MockI2CBus) enter() {
	m.mu.Lock()
	concurrent := atomic.AddInt64(&m.concurrentOps, 1)
	if concurrent > atomic.LoadInt64(&m.maxConcurrent) {
		atomic.StoreInt64(&m.maxConcurrent, concurrent)
	}
	m.mu.Unlock()
}

func (m *MockI2CBus) leave() {
	atomic.AddInt64(&m.concurrentOps, -1)
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	m.enter()
	defer m.leave()
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	m.enter()
	defer m.leave()
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) TxToAddr(ctx context.Context, address byte, w, r []byte) error {
	m.enter()
	defer m.leave()
	args := m.Called(ctx, address, w, r)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(r) {
		copy(r, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MaxConcurrent is the highest number of transactions observed in flight.
func (m *MockI2CBus) MaxConcurrent() int64 {
	return atomic.LoadInt64(&m.maxConcurrent)
}

// Writes returns the payloads written to address, in order.
func (m *MockI2CBus) Writes(address byte) [][]byte {
	var out [][]byte
	for _, call := range m.Calls {
		if call.Method != "WriteToAddr" || call.Arguments.Get(1).(byte) != address {
			continue
		}
		out = append(out, call.Arguments.Get(2).([]byte))
	}
	return out
}

// Sleeps records the pauses requested by a driver instead of sleeping.
type Sleeps struct {
	mu     sync.Mutex
	Delays []time.Duration
}

func (s *Sleeps) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Delays = append(s.Delays, d)
}
