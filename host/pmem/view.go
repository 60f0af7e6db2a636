// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pmem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mem represents a section of memory that is usable by the DMA controller.
//
// Since this is physically allocated memory, that could potentially have
// been allocated in spite of OS consent, it is important to call Close()
// before process exit.
type Mem interface {
	io.Closer
	// Bytes returns the user space memory mapped buffer address as a slice of
	// bytes.
	Bytes() []byte
	// AsPOD initializes a pointer to a POD (plain old data) to point to the
	// memory mapped region.
	AsPOD(pp interface{}) error
	// PhysAddr is the CPU physical address of this memory, the address used
	// to mmap it; it may differ from the bus address the DMA engine uses.
	PhysAddr() uint64
}

// Slice can be transparently viewed as []byte, []uint32 or a struct.
type Slice []byte

// Bytes returns the view as a plain []byte.
func (s *Slice) Bytes() []byte {
	return *s
}

// Uint32 returns the view reinterpreted as a []uint32.
func (s *Slice) Uint32() []uint32 {
	header := *(*reflect.SliceHeader)(unsafe.Pointer(s))
	header.Len /= 4
	header.Cap /= 4
	return *(*[]uint32)(unsafe.Pointer(&header))
}

// AsPOD initializes a pointer to a POD (plain old data) to point to the
// memory mapped region.
//
// pp must be a pointer to a pointer to a struct or an array, and the
// pointed-to pointer must be nil.
func (s *Slice) AsPOD(pp interface{}) error {
	v := reflect.ValueOf(pp)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.New("pmem: require a non-nil pointer")
	}
	return s.Struct(v)
}

// Struct initializes a pointer to a struct or array to point to the memory
// mapped region.
//
// pp must be a pointer to a pointer to a struct or array and the pointed-to
// pointer must be nil. Returns an error otherwise.
func (s *Slice) Struct(pp reflect.Value) error {
	if k := pp.Kind(); k != reflect.Ptr {
		return fmt.Errorf("pmem: require Ptr, got %s", k)
	}
	if pp.IsNil() {
		return errors.New("pmem: require Ptr to be valid")
	}
	p := pp.Elem()
	if k := p.Kind(); k != reflect.Ptr {
		return fmt.Errorf("pmem: require Ptr to Ptr, got %s", k)
	}
	if !p.IsNil() {
		return errors.New("pmem: require Ptr to Ptr to be nil")
	}
	t := p.Type().Elem()
	if k := t.Kind(); k != reflect.Struct && k != reflect.Array {
		return fmt.Errorf("pmem: require Ptr to Ptr to a struct or array, got Ptr to Ptr to %s", k)
	}
	if size := int(t.Size()); size > len(*s) {
		return fmt.Errorf("pmem: can't map struct %s (size %d) on [%d]byte", t, size, len(*s))
	}
	dest := unsafe.Pointer(((*reflect.SliceHeader)(unsafe.Pointer(s))).Data)
	p.Set(reflect.NewAt(t, dest))
	return nil
}

// View represents a view of physical memory mapped into user space.
//
// It is usually used to map CPU registers into user space, usually I/O
// registers and the likes.
//
// It is not required to call Close(), the kernel will clean up on process
// shutdown.
type View struct {
	Slice
	phys uint64
	orig []uint8 // Reference rounded to the lowest 4Kb page containing Slice.
}

// PhysAddr is the physical (or bus-translatable) address this view starts at.
func (v *View) PhysAddr() uint64 {
	return v.phys
}

// Close unmaps the memory from the user address space.
//
// This is done naturally by the OS on process teardown (when the process
// exits) so this is not a hard requirement to call this function.
func (v *View) Close() error {
	return unix.Munmap(v.orig)
}

// Map returns a memory mapped view of an arbitrary physical memory range.
//
// Maps size bytes, rounded on a 4Kb window. This function is dangerous and
// should be used wisely. It normally requires super privileges (root); on
// Linux, it leverages /dev/mem.
func Map(base uint64, size int) (*View, error) {
	return mapLinux(base, size)
}

//

var (
	mu        sync.Mutex
	devMem    *os.File
	devMemErr error
)

// mapLinux leverages /dev/mem to map a view of physical memory.
func mapLinux(base uint64, size int) (*View, error) {
	f, err := openDevMemLinux()
	if err != nil {
		return nil, err
	}
	// Align base and size at 4Kb.
	offset := int(base & 0xFFF)
	mapSize := (size + offset + 0xFFF) &^ 0xFFF
	i, err := unix.Mmap(int(f.Fd()), int64(base&^0xFFF), mapSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("pmem: mapping at 0x%x failed: %w", base, err)
	}
	return &View{Slice: i[offset : offset+size], phys: base, orig: i}, nil
}

func openDevMemLinux() (*os.File, error) {
	mu.Lock()
	defer mu.Unlock()
	if devMem == nil && devMemErr == nil {
		devMem, devMemErr = os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	}
	return devMem, devMemErr
}
