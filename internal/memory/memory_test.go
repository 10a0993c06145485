package memory

import (
	"errors"
	"testing"
	"time"
)

func newTestMonitor(alloc *uint64) *Monitor {
	m := NewMonitor(Config{
		MemoryLimitBytes:  1000,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
	})
	m.readAlloc = func() uint64 { return *alloc }
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("HighWaterMark %v should be below CriticalWaterMark %v", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("CheckInterval = %v", cfg.CheckInterval)
	}
}

func TestMonitorHysteresis(t *testing.T) {
	alloc := uint64(500)
	m := newTestMonitor(&alloc)

	m.Check()
	if m.IsPaused() {
		t.Fatal("paused at 50%")
	}

	alloc = 900
	m.Check()
	if !m.IsPaused() {
		t.Fatal("not paused at 90%")
	}
	if err := m.Admit(); !errors.Is(err, ErrMemoryPressure) {
		t.Errorf("Admit = %v, want ErrMemoryPressure", err)
	}

	// Between the marks the state holds.
	alloc = 800
	m.Check()
	if !m.IsPaused() {
		t.Error("resumed above the high water mark")
	}

	alloc = 600
	m.Check()
	if m.IsPaused() {
		t.Error("still paused below the high water mark")
	}
	if err := m.Admit(); err != nil {
		t.Errorf("Admit = %v, want nil", err)
	}
}

func TestMonitorGetStats(t *testing.T) {
	alloc := uint64(250)
	m := newTestMonitor(&alloc)
	m.Check()

	current, limit, usage := m.GetStats()
	if current != 250 || limit != 1000 || usage != 0.25 {
		t.Errorf("GetStats = %d, %d, %v", current, limit, usage)
	}
}

func TestNilMonitorAdmits(t *testing.T) {
	var m *Monitor
	if m.IsPaused() {
		t.Error("nil monitor reports paused")
	}
	if err := m.Admit(); err != nil {
		t.Errorf("Admit = %v", err)
	}
}

func TestMonitorStartStop(t *testing.T) {
	alloc := uint64(950)
	m := newTestMonitor(&alloc)
	m.Start()

	deadline := time.Now().Add(2 * time.Second)
	for !m.IsPaused() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()

	if !m.IsPaused() {
		t.Error("monitor loop never sampled")
	}
}
