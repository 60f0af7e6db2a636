// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pmem

import "testing"

type podStruct struct {
	a uint32
	b uint32
}

func TestSliceAsPODStruct(t *testing.T) {
	s := Slice(make([]byte, 16))
	var p *podStruct
	if err := s.AsPOD(&p); err != nil {
		t.Fatalf("AsPOD: %v", err)
	}
	p.a = 0x11111111
	p.b = 0x22222222
	if got := s.Uint32()[0]; got != 0x11111111 {
		t.Fatalf("s.Uint32()[0] = 0x%x, want 0x11111111", got)
	}
	if got := s.Uint32()[1]; got != 0x22222222 {
		t.Fatalf("s.Uint32()[1] = 0x%x, want 0x22222222", got)
	}
}

func TestSliceAsPODArray(t *testing.T) {
	s := Slice(make([]byte, 32))
	var p *[4]podStruct
	if err := s.AsPOD(&p); err != nil {
		t.Fatalf("AsPOD array: %v", err)
	}
	p[2].a = 0xCAFEBABE
	if got := s.Uint32()[4]; got != 0xCAFEBABE {
		t.Fatalf("s.Uint32()[4] = 0x%x, want 0xCAFEBABE", got)
	}
}

func TestSliceAsPODRejectsNonPointer(t *testing.T) {
	s := Slice(make([]byte, 16))
	var notAPointer int
	if err := s.AsPOD(notAPointer); err == nil {
		t.Fatal("AsPOD with a non-pointer should fail")
	}
}

func TestSliceAsPODRejectsNonNilTarget(t *testing.T) {
	s := Slice(make([]byte, 16))
	existing := &podStruct{}
	p := &existing
	if err := s.AsPOD(p); err == nil {
		t.Fatal("AsPOD with an already-set pointer should fail")
	}
}

func TestSliceAsPODRejectsOversizedStruct(t *testing.T) {
	s := Slice(make([]byte, 4))
	var p *podStruct
	if err := s.AsPOD(&p); err == nil {
		t.Fatal("AsPOD with too little backing memory should fail")
	}
}

func TestSliceAsPODRejectsNonStructNonArray(t *testing.T) {
	s := Slice(make([]byte, 16))
	var p *uint32
	if err := s.AsPOD(&p); err == nil {
		t.Fatal("AsPOD to a bare scalar pointer should fail")
	}
}
