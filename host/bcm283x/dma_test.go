// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcm283x

import "testing"

// newTestChannel builds a DMAChannel over a plain heap-allocated
// dmaRegisters, exercising the register sequencing logic without mmap'ing
// real hardware.
func newTestChannel() *DMAChannel {
	return &DMAChannel{regs: &dmaRegisters{}}
}

func TestDMAStartSequence(t *testing.T) {
	d := newTestChannel()
	const firstCB = 0xDEAD0000
	d.Start(firstCB)

	if d.regs.cbAddr != firstCB {
		t.Fatalf("cbAddr = 0x%x, want 0x%x", d.regs.cbAddr, firstCB)
	}
	if d.regs.cs&active == 0 {
		t.Fatal("ACTIVE not set after Start")
	}
	if d.regs.cs&waitForOutstandingWrites == 0 {
		t.Fatal("WAIT_FOR_OUTSTANDING_WRITES not set after Start")
	}
	if d.regs.cs&disDebug == 0 {
		t.Fatal("DISDEBUG not set after Start")
	}
	if got := (d.regs.cs >> panicPriorityShift) & 0xF; got != 8 {
		t.Fatalf("panic priority = %d, want 8", got)
	}
	if got := (d.regs.cs >> priorityShift) & 0xF; got != 8 {
		t.Fatalf("priority = %d, want 8", got)
	}
	if d.regs.cs&reset != 0 {
		t.Fatal("RESET still set after Start")
	}
}

func TestDMAStop(t *testing.T) {
	d := newTestChannel()
	d.Start(0x1000)
	d.Stop()

	if d.regs.cs&active != 0 {
		t.Fatal("ACTIVE still set after Stop")
	}
	if d.regs.cs&reset == 0 {
		t.Fatal("RESET not set after Stop")
	}
	if d.regs.cs&abort == 0 {
		t.Fatal("ABORT not set after Stop")
	}
}

func TestDMAReset(t *testing.T) {
	d := newTestChannel()
	d.Start(0x2000)
	d.Reset()

	if d.regs.cs != reset {
		t.Fatalf("cs = 0x%x, want only RESET set", d.regs.cs)
	}
	if d.regs.cbAddr != 0 {
		t.Fatalf("cbAddr = 0x%x, want 0", d.regs.cbAddr)
	}
}

func TestDMACheckErrorsNone(t *testing.T) {
	d := newTestChannel()
	if err := d.CheckErrors(); err != nil {
		t.Fatalf("CheckErrors() = %v, want nil", err)
	}
}

func TestDMACheckErrorsReadError(t *testing.T) {
	d := newTestChannel()
	d.regs.debug = readError
	if err := d.CheckErrors(); err != errDMAReadError {
		t.Fatalf("CheckErrors() = %v, want errDMAReadError", err)
	}
	if d.regs.debug&readError != 0 {
		t.Fatal("readError bit not cleared after CheckErrors")
	}
}

func TestDMACheckErrorsFIFOError(t *testing.T) {
	d := newTestChannel()
	d.regs.debug = fifoError
	if err := d.CheckErrors(); err != errDMAFIFOError {
		t.Fatalf("CheckErrors() = %v, want errDMAFIFOError", err)
	}
}

func TestDMACheckErrorsReadLastNotSet(t *testing.T) {
	d := newTestChannel()
	d.regs.debug = readLastNotSetError
	if err := d.CheckErrors(); err != errDMAReadLastNotSetError {
		t.Fatalf("CheckErrors() = %v, want errDMAReadLastNotSetError", err)
	}
}

func TestDMACurrentCB(t *testing.T) {
	d := newTestChannel()
	d.regs.cbAddr = 0x5678
	if got := d.CurrentCB(); got != 0x5678 {
		t.Fatalf("CurrentCB() = 0x%x, want 0x5678", got)
	}
}
