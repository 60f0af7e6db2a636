// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bcm283x

const (
	// 31:4 reserved
	timerM3 = 1 << 3 // M3
	timerM2 = 1 << 2 // M2
	timerM1 = 1 << 1 // M1
	timerM0 = 1 << 0 // M0
)

// Page 173
type timerCtl uint32

// The system timer is never mapped by the CPU in this driver: only its bus
// address is needed, as the source of the tick CB's DMA copy. CLO (word
// offset 1) is the low 32 bits of the free-running microsecond counter;
// using only the low word matches the hardware timer's natural 32-bit wrap.
// Page 172.

// systimerCLOOffset is the byte offset of CLO within the system timer block.
const systimerCLOOffset = 1 * 4

// systimerCLOBusAddr is the DMA source address for a single 4-byte copy of
// the system timer's low word, used to capture the tick CB's timestamp.
func systimerCLOBusAddr() uint32 {
	return busAddr(peripheralBase() + systimerBase + systimerCLOOffset)
}
