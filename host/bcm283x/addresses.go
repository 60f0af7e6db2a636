// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcm283x

import (
	"fmt"
	"io/ioutil"

	"github.com/jsalces/gpio-dma-sampler/host/pmem"
)

// Peripheral base offsets, relative to the SoC's peripheral base address.
//
// Page 6 for the bcm2835/6/7 and the BCM2711 ARM peripherals addendum for
// the bcm2711.
const (
	gpioBase     = 0x200000
	clockBase    = 0x101000
	systimerBase = 0x3000
	pwmBase      = 0x20C000
	dmaBase      = 0x7000

	// dmaChannelSpan is the byte span of one channel's register header.
	dmaChannelSpan = 0x100

	// busAddrPeripheralPrefix is ORed onto a physical peripheral address to
	// obtain the bus address the DMA engine must use to reach it; it selects
	// the alias that bypasses the L1/L2 caches. Page 7.
	busAddrPeripheralPrefix = 0x7E000000

	// busToPhysMask strips the bus-address aliasing bits off a bus address
	// returned by the VideoCore mailbox so it can be mmap'd by the CPU.
	busToPhysMask = 0xC0000000
)

// peripheralBase returns the physical base address of the SoC's peripheral
// block, read from the device tree the same way the kernel's own
// pinctrl-bcm2835 driver locates it, falling back to the bcm2835 address.
func peripheralBase() uint64 {
	for _, p := range []string{
		"/proc/device-tree/soc/ranges",
		"/sys/firmware/devicetree/base/soc/ranges",
	} {
		if b, err := ioutil.ReadFile(p); err == nil && len(b) >= 8 {
			// The second 32-bit big-endian word is the peripheral physical base.
			return uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
		}
	}
	return 0x20000000
}

// mapPeripheral mmaps size bytes at peripheralBase()+offset via /dev/mem and
// overlays `pp`, a pointer to a pointer to the register struct, onto it.
func mapPeripheral(offset uint64, size int, pp interface{}) (*pmem.View, error) {
	v, err := pmem.Map(peripheralBase()+offset, size)
	if err != nil {
		return nil, fmt.Errorf("bcm283x: failed to map peripheral at offset 0x%x: %w", offset, err)
	}
	if err := v.AsPOD(pp); err != nil {
		return nil, err
	}
	return v, nil
}

// busAddr converts a physical peripheral address into the bus address the
// DMA engine uses to read or write it without going through the cache.
//
// Only the low 24 bits of phys (the offset within the peripheral block)
// carry through; the peripheral base itself varies by SoC (0x20000000 on
// the bcm2835, 0x3F000000 on the bcm2837, 0xFE000000 on the bcm2711) and
// must be replaced, not OR'd into, the 0x7E alias.
func busAddr(phys uint64) uint32 {
	return uint32(phys)&0x00FFFFFF | busAddrPeripheralPrefix
}
