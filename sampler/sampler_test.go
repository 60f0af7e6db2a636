// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sampler

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRing is a minimal ring satisfying this package's ring interface,
// recording how many times Close is called so teardown order and
// idempotency can be asserted without touching videocore or mmap.
type fakeRing struct {
	closeCalls int
	closeErr   error
}

func (r *fakeRing) CBBase() uint32       { return 0x1000 }
func (r *fakeRing) Tick(int) uint32      { return 0 }
func (r *fakeRing) Level(int) uint32     { return 0 }
func (r *fakeRing) Close() error {
	r.closeCalls++
	return r.closeErr
}

// fakeChannel is a minimal dmaChannel, recording Start/Stop calls.
type fakeChannel struct {
	startedAt uint32
	starts    int
	stops     int
}

func (c *fakeChannel) Start(firstCBBus uint32) {
	c.startedAt = firstCBBus
	c.starts++
}
func (c *fakeChannel) Stop()              { c.stops++ }
func (c *fakeChannel) CurrentCB() uint32 { return 0x1000 }

func newFixture() (*Sampler, *fakeRing, *fakeChannel) {
	r := &fakeRing{}
	ch := &fakeChannel{}
	s := &Sampler{ring: r, channel: ch}
	return s, r, ch
}

// TestStartArmsChannelAtRingBase checks Start drives the DMA channel with
// the ring's own base address, never a hardcoded or stale one.
func TestStartArmsChannelAtRingBase(t *testing.T) {
	s, r, ch := newFixture()
	s.Start()
	assert.Equal(t, 1, ch.starts)
	assert.Equal(t, r.CBBase(), ch.startedAt)
}

// TestCloseIsIdempotent covers P5: calling Close more than once only tears
// down resources the first time.
func TestCloseIsIdempotent(t *testing.T) {
	s, r, ch := newFixture()

	err1 := s.Close()
	require.NoError(t, err1)
	assert.Equal(t, 1, r.closeCalls)
	assert.Equal(t, 1, ch.stops)

	err2 := s.Close()
	require.NoError(t, err2)
	assert.Equal(t, 1, r.closeCalls, "second Close must not free the ring again")
	assert.Equal(t, 1, ch.stops, "second Close must not stop the channel again")
}

// TestCloseSurfacesRingError checks Close reports a failure to free the
// ring's arenas, while still stopping the channel.
func TestCloseSurfacesRingError(t *testing.T) {
	s, r, ch := newFixture()
	wantErr := assert.AnError
	r.closeErr = wantErr

	err := s.Close()
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, ch.stops)
}

// TestRunStopsOnContextCancel checks Run returns without error once its
// context is cancelled, with a sink configured.
func TestRunStopsOnContextCancel(t *testing.T) {
	var buf bytes.Buffer
	s, _, _ := newFixture()
	s.sink = &buf

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx, time.Millisecond)
	assert.NoError(t, err)
}
