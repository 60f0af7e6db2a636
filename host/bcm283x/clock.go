// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcm283x

import (
	"errors"
	"time"
)

const (
	// 31:24 password
	passwdCtl clockCtl = 0x5A << 24 // PASSWD
	// 23:11 reserved
	mashMask clockCtl = 3 << 9 // MASH
	mash0    clockCtl = 0 << 9 // src_freq / divI  (ignores divF)
	mash1    clockCtl = 1 << 9
	mash2    clockCtl = 2 << 9
	mash3    clockCtl = 3 << 9 // will cause higher spread
	flip     clockCtl = 1 << 8 // FLIP
	busy     clockCtl = 1 << 7 // BUSY
	// 6 reserved
	kill          clockCtl = 1 << 5   // KILL
	enabClk       clockCtl = 1 << 4   // ENAB
	srcMask       clockCtl = 0xF << 0 //SRC
	srcGND        clockCtl = 0        // 0Hz
	srcOscillator clockCtl = 1        // 19.2MHz
	srcTestDebug0 clockCtl = 2        // 0Hz
	srcTestDebug1 clockCtl = 3        // 0Hz
	srcPLLA       clockCtl = 4        // 0Hz
	srcPLLC       clockCtl = 5        // 1000MHz (changes with overclock settings)
	srcPLLD       clockCtl = 6        // 500MHz
	srcHDMI       clockCtl = 7        // 216MHz
	// 8-15 == GND.
)

// clockCtl controls the clock properties.
//
// It must not be changed while busy is set or a glitch may occur.
//
// Page 107
type clockCtl uint32

const (
	// 31:24 password
	passwdDiv clockDiv = 0x5A << 24 // PASSWD
	// Integer part of the divisor
	diviShift          = 12
	diviMax   clockDiv = (1 << 12) - 1
	diviMask  clockDiv = diviMax << diviShift // DIVI
	// Fractional part of the divisor
	divfMask clockDiv = (1 << 12) - 1 // DIVF
)

// clockDiv is a 12.12 fixed point value.
//
// Page 108
type clockDiv uint32

// clockRegisters overlays the two words of the clock manager that control
// the PWM clock generator (control word 40, divisor word 41 per the BCM283x
// peripheral memory map).
type clockRegisters struct {
	_   [40]uint32 // gp0/gp1/gp2/pcm clocks and reserved words precede pwm
	ctl uint32     // PWMCTL, word offset 40
	div uint32     // PWMDIV, word offset 41
}

// errClockBusyTimeout is returned by setRaw if the clock's busy bit never
// clears after a kill request.
var errClockBusyTimeout = errors.New("bcm283x: clock manager did not go idle")

// set kills the clock, then reprograms it to source / divi if divi != 0.
//
// Mirrors the BCM283x clock manager's password-gated write sequence: the
// divisor must be written before the new source is latched, and the clock
// is confirmed idle (busy clear) before the switch to avoid a glitch on the
// downstream PWM. BUSY is not checked again after the switch.
func (c *clockRegisters) set(source clockCtl, divi uint32) error {
	// Kill whatever is currently running and wait for it to go idle.
	for i := 0; i < 1000; i++ {
		if clockCtl(c.ctl)&busy == 0 {
			break
		}
		c.ctl = uint32(passwdCtl | kill)
		time.Sleep(time.Microsecond)
	}
	if clockCtl(c.ctl)&busy != 0 {
		return errClockBusyTimeout
	}
	if divi == 0 {
		return nil
	}
	return c.setRaw(source, divi)
}

// setRaw programs the clock's source and integer divisor, then enables it.
//
// The clock must already be idle (see set) before calling this.
func (c *clockRegisters) setRaw(source clockCtl, divi uint32) error {
	if divi == 0 || clockDiv(divi) > diviMax {
		return errors.New("bcm283x: invalid clock divisor")
	}
	if source&^clockCtl(srcMask) != 0 {
		return errors.New("bcm283x: invalid clock source")
	}
	c.div = uint32(passwdDiv | clockDiv(divi)<<diviShift)
	time.Sleep(10 * time.Nanosecond)
	c.ctl = uint32(passwdCtl | mash0 | source)
	time.Sleep(10 * time.Nanosecond)
	c.ctl = uint32(passwdCtl | mash0 | source | enabClk)
	if clockDiv(c.div)&diviMask != clockDiv(divi)<<diviShift {
		return errors.New("bcm283x: clock divisor write did not stick")
	}
	return nil
}
