// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcm283x

import "testing"

func TestConfigurePacerProgramsFIFOMode(t *testing.T) {
	clk := &clockRegisters{}
	pwmRegs := &pwmRegisters{}
	if err := configurePacer(clk, pwmRegs, clkPeriodUS); err != nil {
		t.Fatalf("configurePacer: %v", err)
	}
	if pwmRegs.rng1 != 100*clkPeriodUS {
		t.Fatalf("rng1 = %d, want %d", pwmRegs.rng1, 100*clkPeriodUS)
	}
	if clockCtl(clk.ctl)&srcMask != srcPLLD {
		t.Fatalf("clock source = %d, want srcPLLD", clockCtl(clk.ctl)&srcMask)
	}
	if pwmControl(pwmRegs.ctl)&usef1 == 0 {
		t.Fatal("USEF1 not set")
	}
	if pwmControl(pwmRegs.ctl)&mode1 == 0 {
		t.Fatal("MODE1 not set")
	}
	if pwmControl(pwmRegs.ctl)&pwen1 == 0 {
		t.Fatal("PWEN1 not set")
	}
	if pwmDMACfg(pwmRegs.dmac)&enab == 0 {
		t.Fatal("DMAC ENAB not set")
	}
	if got := (pwmDMACfg(pwmRegs.dmac) & panicMask) >> 8; got != panicDreqThreshold {
		t.Fatalf("DMAC PANIC field = %d, want %d", got, panicDreqThreshold)
	}
	if got := pwmDMACfg(pwmRegs.dmac) & dreqMask; got != panicDreqThreshold {
		t.Fatalf("DMAC DREQ field = %d, want %d", got, panicDreqThreshold)
	}
}

// TestConfigurePacerBitClockIsPeriodIndependent locks in the algebraic
// property that the PLLD divisor stays 5 regardless of the sample period:
// RNG1 always resolves to a 100MHz bit clock.
func TestConfigurePacerBitClockIsPeriodIndependent(t *testing.T) {
	for _, period := range []uint32{1, 5, 10, 50} {
		clk := &clockRegisters{}
		pwmRegs := &pwmRegisters{}
		if err := configurePacer(clk, pwmRegs, period); err != nil {
			t.Fatalf("configurePacer(%d): %v", period, err)
		}
		if got := clockDiv(clk.div) & diviMask >> diviShift; got != 5 {
			t.Fatalf("period %d: divisor = %d, want 5", period, got)
		}
	}
}

// TestConfigurePacerClearsStaleStatus covers the bug where reconfiguring
// the pacer never cleared latched error/gap bits left over from a prior
// run. It checks STA only: the CLRF1 write to CTL is overwritten by the
// final enable and cannot be observed here.
func TestConfigurePacerClearsStaleStatus(t *testing.T) {
	clk := &clockRegisters{}
	pwmRegs := &pwmRegisters{sta: uint32(busErr | gapo1 | rerr1 | werr1)}
	if err := configurePacer(clk, pwmRegs, clkPeriodUS); err != nil {
		t.Fatalf("configurePacer: %v", err)
	}
	if pwmRegs.sta != 0xFFFFFFFF {
		t.Fatalf("sta = 0x%x, want 0xFFFFFFFF written to clear latched bits", pwmRegs.sta)
	}
}

func TestPWMFIFOBusAddrIsPeripheralMapped(t *testing.T) {
	addr := pwmFIFOBusAddr()
	if addr&busAddrPeripheralPrefix == 0 {
		t.Fatalf("pwmFIFOBusAddr() = 0x%x, missing peripheral bus prefix", addr)
	}
}
