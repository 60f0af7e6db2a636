// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sampler owns the process-wide lifecycle of the GPIO DMA
// sampling pipeline: building the ring, configuring the pacer, arming the
// DMA channel, and tearing everything down on exit.
package sampler

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/jsalces/gpio-dma-sampler/host/bcm283x"
	"github.com/jsalces/gpio-dma-sampler/monitor"
)

// DefaultChannel is the DMA channel used when Config.Channel is 0. Channel
// 6 is an arbitrary but commonly-free full-bandwidth channel; a portable
// deployment should parameterize or probe instead of relying on this.
const DefaultChannel = 6

// DefaultPollInterval is how often Run scans the ring for newly produced
// samples, matching the "sleep ~5ms" cadence of the monitor design — slow
// enough to leave the CPU idle, far shorter than BUFFER_MS.
const DefaultPollInterval = 5 * time.Millisecond

// Config controls the resources a Sampler is built against.
type Config struct {
	// Channel is the DMA channel number to drive; 0 selects DefaultChannel.
	Channel int
	// Sink receives rendered transition lines; nil discards them.
	Sink io.Writer
}

// ring is the subset of *bcm283x.Ring a Sampler drives: the monitor's view
// of it plus the ability to release its arenas on teardown.
type ring interface {
	monitor.Ring
	Close() error
}

// dmaChannel is the subset of *bcm283x.DMAChannel a Sampler drives.
type dmaChannel interface {
	monitor.Channel
	Start(firstCBBus uint32)
	Stop()
}

// Sampler owns every process-wide resource the sampling pipeline needs:
// the coherent arenas (via a ring) and the mapped DMA channel. It is built
// once, started once, and closed exactly once — Close is idempotent so a
// signal handler and a normal exit path can both call it.
type Sampler struct {
	ring    ring
	channel dmaChannel
	sink    io.Writer

	closeOnce sync.Once
	closeErr  error
}

// New builds the control-block ring, configures the PWM pacer, and maps
// the DMA channel. It does not arm the channel; call Start for that.
func New(cfg Config) (*Sampler, error) {
	channel := cfg.Channel
	if channel == 0 {
		channel = DefaultChannel
	}
	r, err := bcm283x.BuildRing()
	if err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}
	if err := bcm283x.ConfigurePacer(bcm283x.ClkPeriodUS); err != nil {
		r.Close()
		return nil, fmt.Errorf("sampler: configuring pacer: %w", err)
	}
	ch, err := bcm283x.NewDMAChannel(channel)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("sampler: mapping dma channel %d: %w", channel, err)
	}
	return &Sampler{ring: r, channel: ch, sink: cfg.Sink}, nil
}

// Start arms the DMA channel against the built ring's first control
// block. Sampling begins immediately and runs without further CPU
// involvement; Run only observes its progress.
func (s *Sampler) Start() {
	s.channel.Start(s.ring.CBBase())
}

// Run scans the ring on pollInterval, reporting transitions to the sink
// given at New, until ctx is cancelled or an invariant violation is
// detected, in which case it returns a *monitor.InvariantError.
func (s *Sampler) Run(ctx context.Context, pollInterval time.Duration) error {
	return monitor.Run(ctx, s.ring, s.channel, s.sink, pollInterval)
}

// Close tears the sampler down: result pages are freed, then control
// block pages, then the channel is aborted and reset — in that order, so
// the DMA engine is never left chasing a freed control block. It is safe
// to call more than once; only the first call has any effect.
func (s *Sampler) Close() error {
	s.closeOnce.Do(func() {
		time.Sleep(10 * time.Millisecond)
		s.closeErr = s.ring.Close()
		s.channel.Stop()
	})
	return s.closeErr
}

// InstallSignalTeardown registers a handler that closes s and exits on
// SIGINT, satisfying the requirement that a teardown hook registered at
// startup runs on every exit path.
func InstallSignalTeardown(s *Sampler) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		s.Close()
		os.Exit(0)
	}()
}
