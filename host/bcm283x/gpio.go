// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcm283x

// gpioRegisters overlays the GPIO peripheral block.
//
// Only the fields this driver touches are named; everything before GPLEV0
// is reserved padding to reach the correct word offset.
//
// Page 90-91.
type gpioRegisters struct {
	_      [13]uint32 // function select, output set/clear (word offsets 0-12)
	level0 uint32      // GPLEV0, word offset 13
	level1 uint32      // GPLEV1, word offset 14; pins 32-53, unused by this driver
}

// gpioLevel0Offset is the byte offset of GPLEV0 within the GPIO block.
const gpioLevel0Offset = 13 * 4

// gpioLevel0BusAddr is the DMA source address for a single 4-byte copy of
// GPLEV0, the register this system samples every CLK_PERIOD_US.
func gpioLevel0BusAddr() uint32 {
	return busAddr(peripheralBase() + gpioBase + gpioLevel0Offset)
}
