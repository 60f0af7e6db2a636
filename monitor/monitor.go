// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package monitor walks the result ring produced by the DMA sampling
// pipeline and emits level-change transitions.
//
// It never touches the DMA engine's program, only the channel's live
// progress register and the result words the engine has already written;
// there is no synchronization beyond the watermark discipline described
// in the ring package.
package monitor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jsalces/gpio-dma-sampler/host/bcm283x"
)

// levelMask clears the reserved top nibble of GPLEV0; bits 28-31 are
// reserved on this SoC and must not be reported as part of the level.
const levelMask = 0x0FFFFFFF

// Ring is the subset of *bcm283x.Ring the monitor needs: the bus address
// the ring starts at and read access to the results the DMA engine has
// produced.
type Ring interface {
	CBBase() uint32
	Tick(slot int) uint32
	Level(idx int) uint32
}

// Channel is the subset of *bcm283x.DMAChannel the monitor needs: the bus
// address of the control block the channel is presently executing.
type Channel interface {
	CurrentCB() uint32
}

// Transition is one observed GPIO level change.
type Transition struct {
	// TimeUS is the absolute system-timer microsecond value the change
	// was computed to have occurred at.
	TimeUS uint32
	// Level is the masked GPLEV0 value after the change.
	Level uint32
}

// String renders a transition the way the sampling pipeline reports it on
// its sink: "Level change @<microseconds>: <8-hex-digits>".
func (t Transition) String() string {
	return fmt.Sprintf("Level change @%d: %08x", t.TimeUS, t.Level)
}

// InvariantError reports a runtime invariant violation: the DMA channel's
// live control block address, or the level index derived from it, fell
// outside the ring's bounds. Both are treated as fatal per the error
// handling design — the hardware either paces correctly or this surfaces.
type InvariantError struct {
	// CBBus is the offending control block bus address, as observed on
	// the channel.
	CBBus uint32
	// OldIdx is the monitor's last-known-good level index at the time
	// of the violation.
	OldIdx int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("monitor: control block address 0x%08x outside ring (old_idx=%d)", e.CBBus, e.OldIdx)
}

// Monitor walks newly produced samples and reports transitions.
//
// A Monitor is not safe for concurrent use; exactly one goroutine should
// call Scan.
type Monitor struct {
	ring Ring

	oldIdx   int
	curLevel uint32
	curTime  uint32
}

// New creates a Monitor positioned at the start of the ring, matching the
// state of a freshly started DMA channel: no samples observed, level 0.
func New(ring Ring) *Monitor {
	return &Monitor{ring: ring}
}

// Scan reads the channel's live control block address, walks every level
// index produced since the last Scan, and writes a line to w for every
// level change observed. It returns the transitions emitted, in order.
//
// A non-nil *InvariantError means the DMA engine has left the ring or
// produced a position outside the addressable sample space; the caller
// should treat this as fatal and tear down.
func (m *Monitor) Scan(ch Channel, w io.Writer) ([]Transition, error) {
	bus := ch.CurrentCB()
	i := int((bus - m.ring.CBBase()) / bcm283x.CBBytes)
	if i < 0 || i >= bcm283x.CBCnt {
		return nil, &InvariantError{CBBus: bus, OldIdx: m.oldIdx}
	}
	curIdx := bcm283x.LevelFromCB(i)
	if curIdx < 0 || curIdx >= bcm283x.LevelCnt {
		return nil, &InvariantError{CBBus: bus, OldIdx: m.oldIdx}
	}

	var out []Transition
	for m.oldIdx != curIdx {
		if m.oldIdx%bcm283x.LevelsPerTick == 0 {
			m.curTime = m.ring.Tick(m.oldIdx / bcm283x.LevelsPerTick)
		}
		level := m.ring.Level(m.oldIdx) & levelMask
		if level != m.curLevel {
			t := Transition{TimeUS: m.curTime, Level: level}
			out = append(out, t)
			if w != nil {
				fmt.Fprintln(w, t.String())
			}
			m.curLevel = level
		}
		m.curTime += bcm283x.ClkPeriodUS
		m.oldIdx = (m.oldIdx + 1) % bcm283x.LevelCnt
	}
	return out, nil
}

// Run scans on a fixed interval until ctx is cancelled or Scan reports an
// invariant violation. Every emitted Transition is written to sink as one
// line; sink may be nil to discard them. A terminal error is returned to
// the caller, not written to sink.
func Run(ctx context.Context, ring Ring, ch Channel, sink io.Writer, pollInterval time.Duration) error {
	m := New(ring)
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := m.Scan(ch, sink); err != nil {
				return err
			}
		}
	}
}
