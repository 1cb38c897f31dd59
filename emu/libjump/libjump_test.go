/*
 * HUNKVM - Library jump table test cases.
 *
 * Copyright 2025, Thomas Krause
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package libjump

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/tkrause/hunkvm/emu/codegen"
)

func TestParseArgRegs(t *testing.T) {
	cases := []struct {
		desc string
		args []uint8
		ret  uint8
	}{
		{"00", nil, 0},
		{"101", []uint8{1}, 0},
		{"0902", []uint8{9, 0}, 0},
		{"2102", []uint8{1, 2}, 0},
		{"32103", []uint8{1, 2, 3}, 0},
		{"A9803", []uint8{8, 9, 10}, 0},
	}
	for _, tc := range cases {
		args, ret, err := parseArgRegs(tc.desc)
		if err != nil {
			t.Errorf("descriptor %q failed: %v", tc.desc, err)
			continue
		}
		if ret != tc.ret {
			t.Errorf("descriptor %q return register not correct got: %d expected: %d",
				tc.desc, ret, tc.ret)
		}
		if len(args) != len(tc.args) {
			t.Errorf("descriptor %q argument count not correct got: %d expected: %d",
				tc.desc, len(args), len(tc.args))
			continue
		}
		for i := range args {
			if args[i] != tc.args[i] {
				t.Errorf("descriptor %q argument %d not correct got: %d expected: %d",
					tc.desc, i+1, args[i], tc.args[i])
			}
		}
	}

	for _, desc := range []string{"", "1", "x01", "765432107"} {
		if _, _, err := parseArgRegs(desc); err == nil {
			t.Errorf("descriptor %q did not fail", desc)
		}
	}
}

func TestBuildTables(t *testing.T) {
	region := make([]byte, TableSize)
	impl := uintptr(0x1122334455667788)
	funcs := []FuncInfo{
		{Offset: 0x10, Name: "Foo", ArgRegs: "101", Impl: impl},
		{Offset: 0x20, Name: "Bar", ArgRegs: "00"},
	}
	base, err := Build(region, funcs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if base != uintptr(unsafe.Pointer(&region[0]))+TableSize {
		t.Errorf("pseudo base not at region end got: %x", base)
	}

	// unimplemented function: a single trap instruction
	if region[TableSize-0x20] != codegen.OpInt3 {
		t.Errorf("Bar entry not INT3 got: %02x", region[TableSize-0x20])
	}

	// implemented function: a relative jump into the thunk table
	entry := TableSize - 0x10
	if region[entry] != codegen.OpJmpRel32 {
		t.Errorf("Foo entry not a relative jump got: %02x", region[entry])
	}
	rel := int32(binary.LittleEndian.Uint32(region[entry+1:]))
	if target := entry + 5 + int(rel); target != 0 {
		t.Errorf("Foo entry jump target not thunk start got: %d", target)
	}

	// the thunk: save, marshal D1 into the first argument register,
	// call, move the result into D0, restore, return
	want := []byte{
		0x41, 0x52, 0x41, 0x53, 0x52, 0x57, 0x56, // save preserved registers
		0x44, 0x89, 0xcf, // mov edi, r9d
		0x55,                   // push rbp
		0x48, 0x89, 0xe5,       // mov rbp, rsp
		0x48, 0x83, 0xe4, 0xf0, // and rsp, -16
		0x48, 0xb8, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, // mov rax, impl
		0xff, 0xd0,             // call rax
		0x48, 0x89, 0xec,       // mov rsp, rbp
		0x5d,             // pop rbp
		0x41, 0x89, 0xc0, // mov r8d, eax
		0x5e, 0x5f, 0x5a, 0x41, 0x5b, 0x41, 0x5a, // restore preserved registers
		0xc3,
	}
	if !bytes.Equal(region[:len(want)], want) {
		t.Errorf("thunk not correct got: % x expected: % x", region[:len(want)], want)
	}
}

func TestBuildInvalidOffset(t *testing.T) {
	region := make([]byte, TableSize)
	if _, err := Build(region, []FuncInfo{{Offset: 0, Name: "Nil", ArgRegs: "00"}}); err == nil {
		t.Errorf("zero offset did not fail")
	}
	if _, err := Build(region, []FuncInfo{{Offset: TableSize, Name: "Huge", ArgRegs: "00"}}); err == nil {
		t.Errorf("offset at table size did not fail")
	}
}

func TestBuildBadDescriptor(t *testing.T) {
	region := make([]byte, TableSize)
	funcs := []FuncInfo{{Offset: 0x10, Name: "Foo", ArgRegs: "x", Impl: 1}}
	if _, err := Build(region, funcs); err == nil {
		t.Errorf("invalid descriptor did not fail")
	}
}
