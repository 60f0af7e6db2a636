// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcm283x

import (
	"fmt"

	"github.com/jsalces/gpio-dma-sampler/host/videocore"
)

const (
	// clkPeriodUS is the sample period, in microseconds.
	clkPeriodUS = 5
	// bufferMS is how long the ring covers before wrapping.
	bufferMS = 100

	ticksPerPage    = 20
	levelsPerPage   = 1000
	paddingsPerPage = 4

	levelsPerTick = levelsPerPage / ticksPerPage
	levelCnt      = bufferMS * 1000 / clkPeriodUS
	resultPageCnt = levelCnt / levelsPerPage
	tickCnt       = resultPageCnt * ticksPerPage
	cbPerSlot     = 1 + 2*levelsPerTick
	cbCnt         = tickCnt * cbPerSlot

	pageSize = 4096
	cbBytes  = 32
)

// Exported mirrors of the ring's data-model constants, for consumers (the
// monitor) that need to derive indices without duplicating the layout.
const (
	ClkPeriodUS   = clkPeriodUS
	LevelsPerTick = levelsPerTick
	LevelCnt      = levelCnt
	CBCnt         = cbCnt
	CBBytes       = cbBytes
)

// resultPage mirrors one page of the result arena: a run of tick
// timestamps followed by a run of level snapshots, padded to pageSize.
type resultPage struct {
	ticks  [ticksPerPage]uint32
	levels [levelsPerPage]uint32
	_      [paddingsPerPage]uint32
}

// Ring is the self-referential control-block program plus the result
// arena it writes into. It is written exactly once by BuildRing and never
// mutated again once the channel has started; only the DMA engine writes
// to it thereafter.
type Ring struct {
	cbArena     *videocore.Mem
	resultArena *videocore.Mem
	cb          []controlBlock
	results     []resultPage
}

// roundPage rounds n bytes up to a whole number of pages.
func roundPage(n int) int {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// BuildRing allocates the control block and result arenas and populates
// the control block ring with the repeating {tick, (level, pace) ×
// levelsPerTick} pattern, slot by slot, closing the ring so the last
// control block's next_cb wraps to control block 0.
func BuildRing() (*Ring, error) {
	cbArena, err := videocore.Alloc(roundPage(cbCnt * cbBytes))
	if err != nil {
		return nil, fmt.Errorf("bcm283x: allocating control block arena: %w", err)
	}
	var cbp *[cbCnt]controlBlock
	if err := cbArena.AsPOD(&cbp); err != nil {
		cbArena.Close()
		return nil, err
	}

	resultArena, err := videocore.Alloc(resultPageCnt * pageSize)
	if err != nil {
		cbArena.Close()
		return nil, fmt.Errorf("bcm283x: allocating result arena: %w", err)
	}
	var resultsp *[resultPageCnt]resultPage
	if err := resultArena.AsPOD(&resultsp); err != nil {
		cbArena.Close()
		resultArena.Close()
		return nil, err
	}

	r := &Ring{
		cbArena:     cbArena,
		resultArena: resultArena,
		cb:          cbp[:],
		results:     resultsp[:],
	}
	r.populate()
	return r, nil
}

// Close releases the result arena then the control block arena, in that
// order, so the DMA engine never chases a freed control block.
func (r *Ring) Close() error {
	err1 := r.resultArena.Close()
	err2 := r.cbArena.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// CBBase is the bus address of control block 0, the start of the ring.
func (r *Ring) CBBase() uint32 {
	return r.cbArena.BusAddr()
}

// CBBus returns the bus address of control block i, taken modulo cbCnt.
func (r *Ring) CBBus(i int) uint32 {
	return r.CBBase() + uint32(i%cbCnt)*cbBytes
}

// TickBus returns the bus address of ticks[s].
func (r *Ring) TickBus(s int) uint32 {
	page, idx := s/ticksPerPage, s%ticksPerPage
	return r.resultArena.BusAddr() + uint32(page)*pageSize + uint32(idx)*4
}

// LevelBus returns the bus address of levels[l].
func (r *Ring) LevelBus(l int) uint32 {
	page, idx := l/levelsPerPage, l%levelsPerPage
	off := pageSize*page + ticksPerPage*4 + idx*4
	return r.resultArena.BusAddr() + uint32(off)
}

// Tick returns the timestamp most recently written into ticks[s].
func (r *Ring) Tick(s int) uint32 {
	return r.results[s/ticksPerPage].ticks[s%ticksPerPage]
}

// Level returns the GPIO snapshot most recently written into levels[l],
// with the reserved top nibble of GPLEV0 masked off.
func (r *Ring) Level(l int) uint32 {
	return r.results[l/levelsPerPage].levels[l%levelsPerPage] & 0x0FFFFFFF
}

// SlotOf returns the slot a ring position belongs to.
func SlotOf(i int) int { return i / cbPerSlot }

// WithinOf returns a ring position's offset within its slot.
func WithinOf(i int) int { return i % cbPerSlot }

// TickCBOf returns the ring position of slot s's tick control block.
func TickCBOf(s int) int { return s * cbPerSlot }

// LevelCBOf returns the ring position of the k-th level control block in
// slot s.
func LevelCBOf(s, k int) int { return s*cbPerSlot + 2*k + 1 }

// PaceCBOf returns the ring position of the k-th pace control block in
// slot s.
func PaceCBOf(s, k int) int { return s*cbPerSlot + 2*k + 2 }

// LevelFromCB maps a ring position to the logical level index most
// recently completed when the DMA channel is observed there.
//
// A position at the start of a slot (within == 0) means the channel is at
// the tick CB; the most recently completed level is the slot's first.
// Both halves of a (level, pace) pair map to the same level index —
// WAIT_RESP guarantees the level write is durable before the pace CB is
// reached, so it is safe to treat the level as produced in either case.
func LevelFromCB(i int) int {
	s, w := SlotOf(i), WithinOf(i)
	if w == 0 {
		return s * levelsPerTick
	}
	return s*levelsPerTick + (w-1)/2
}

// populate writes every control block in the ring exactly once.
func (r *Ring) populate() {
	for s := 0; s < tickCnt; s++ {
		r.cb[TickCBOf(s)] = controlBlock{
			transferInfo: noWideBursts | waitResp,
			srcAddr:      systimerCLOBusAddr(),
			dstAddr:      r.TickBus(s),
			txLen:        4,
		}
		for k := 0; k < levelsPerTick; k++ {
			r.cb[LevelCBOf(s, k)] = controlBlock{
				transferInfo: noWideBursts | waitResp,
				srcAddr:      gpioLevel0BusAddr(),
				dstAddr:      r.LevelBus(s*levelsPerTick + k),
				txLen:        4,
			}
			// The pace CB's source is arbitrary — only the destination
			// (the PWM FIFO) and the DREQ pacing matter. CB 0's bus
			// address is reused since it is always valid memory.
			r.cb[PaceCBOf(s, k)] = controlBlock{
				transferInfo: noWideBursts | waitResp | dstDReq | pwm,
				srcAddr:      r.CBBase(),
				dstAddr:      pwmFIFOBusAddr(),
				txLen:        4,
			}
		}
	}
	for i := 0; i < cbCnt; i++ {
		r.cb[i].nextCB = r.CBBus(i + 1)
	}
}
