/*
 * HUNKVM - x86-64 code emitter test cases.
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

package codegen

import (
	"bytes"
	"testing"
)

func newTestBuf() *Buf {
	return NewBuf(make([]byte, 256))
}

func TestPushPopReg(t *testing.T) {
	cases := []struct {
		reg  uint8
		want []byte
	}{
		{X86Reg[D2], []byte{0x41, 0x52}}, // push r10
		{X86Reg[D0], []byte{0x41, 0x50}}, // push r8
		{X86Reg[A6], []byte{0x56}},       // push rsi
		{EBP, []byte{0x55}},              // push rbp
	}
	for _, tc := range cases {
		b := newTestBuf()
		b.PushReg(tc.reg)
		if !bytes.Equal(b.Bytes(), tc.want) {
			t.Errorf("PushReg %d not correct got: %x expected: %x", tc.reg, b.Bytes(), tc.want)
		}
	}

	b := newTestBuf()
	b.PopReg(X86Reg[D2])
	b.PopReg(X86Reg[A6])
	want := []byte{0x41, 0x5a, 0x5e} // pop r10; pop rsi
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("PopReg not correct got: %x expected: %x", b.Bytes(), want)
	}
}

func TestMoveImmToReg(t *testing.T) {
	cases := []struct {
		value uint64
		reg   uint8
		mode  int
		want  []byte
	}{
		{0xdeadbeef, R9D, Mode32, []byte{0x41, 0xb9, 0xef, 0xbe, 0xad, 0xde}},
		{0x12345678, EDI, Mode32, []byte{0xbf, 0x78, 0x56, 0x34, 0x12}},
		{0x1122334455667788, EAX, Mode64,
			[]byte{0x48, 0xb8, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}},
		{0x00300000, R8D, Mode64,
			[]byte{0x49, 0xb8, 0x00, 0x00, 0x30, 0x00, 0x00, 0x00, 0x00, 0x00}},
	}
	for _, tc := range cases {
		b := newTestBuf()
		b.MoveImmToReg(tc.value, tc.reg, tc.mode)
		if !bytes.Equal(b.Bytes(), tc.want) {
			t.Errorf("MoveImmToReg %x not correct got: %x expected: %x", tc.value, b.Bytes(), tc.want)
		}
	}
}

func TestMoveRegToReg(t *testing.T) {
	cases := []struct {
		src, dst uint8
		mode     int
		want     []byte
	}{
		{X86Reg[D2], X86Reg[D3], Mode32, []byte{0x45, 0x89, 0xd3}}, // mov r11d, r10d
		{ESP, EBP, Mode64, []byte{0x48, 0x89, 0xe5}},               // mov rbp, rsp
		{EBP, ESP, Mode64, []byte{0x48, 0x89, 0xec}},               // mov rsp, rbp
		{EAX, X86Reg[D0], Mode32, []byte{0x41, 0x89, 0xc0}},        // mov r8d, eax
		{X86Reg[D1], ESI, Mode32, []byte{0x44, 0x89, 0xce}},        // mov esi, r9d
	}
	for _, tc := range cases {
		b := newTestBuf()
		b.MoveRegToReg(tc.src, tc.dst, tc.mode)
		if !bytes.Equal(b.Bytes(), tc.want) {
			t.Errorf("MoveRegToReg %d -> %d not correct got: %x expected: %x",
				tc.src, tc.dst, b.Bytes(), tc.want)
		}
	}
}

func TestAbsCallToFunc(t *testing.T) {
	b := newTestBuf()
	b.AbsCallToFunc(0x1122334455667788)
	want := []byte{
		0x55,                   // push rbp
		0x48, 0x89, 0xe5,       // mov rbp, rsp
		0x48, 0x83, 0xe4, 0xf0, // and rsp, -16
		0x48, 0xb8, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, // mov rax, target
		0xff, 0xd0,             // call rax
		0x48, 0x89, 0xec,       // mov rsp, rbp
		0x5d,                   // pop rbp
	}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("AbsCallToFunc not correct got: %x expected: %x", b.Bytes(), want)
	}
}

func TestSaveRestorePreservedRegs(t *testing.T) {
	b := newTestBuf()
	b.SavePreservedRegs()
	// push r10; push r11; push rdx; push rdi; push rsi
	want := []byte{0x41, 0x52, 0x41, 0x53, 0x52, 0x57, 0x56}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("SavePreservedRegs not correct got: %x expected: %x", b.Bytes(), want)
	}

	b = newTestBuf()
	b.RestorePreservedRegs()
	// mirror image of the save order
	want = []byte{0x5e, 0x5f, 0x5a, 0x41, 0x5b, 0x41, 0x5a}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("RestorePreservedRegs not correct got: %x expected: %x", b.Bytes(), want)
	}
}

func TestSaveRestoreProgramState(t *testing.T) {
	b := newTestBuf()
	b.SaveProgramState()
	want := []byte{
		0x41, 0x52, 0x41, 0x53, 0x52, 0x57, 0x56, // preserved registers
		0x41, 0x50, 0x41, 0x51, 0x50, 0x51, // push r8; push r9; push rax; push rcx
		0x9c, // pushfq
	}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("SaveProgramState not correct got: %x expected: %x", b.Bytes(), want)
	}

	b = newTestBuf()
	b.RestoreProgramState()
	want = []byte{
		0x9d,
		0x59, 0x58, 0x41, 0x59, 0x41, 0x58,
		0x5e, 0x5f, 0x5a, 0x41, 0x5b, 0x41, 0x5a,
	}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("RestoreProgramState not correct got: %x expected: %x", b.Bytes(), want)
	}
}

func TestRegisterMapping(t *testing.T) {
	// A7 has to be the host stack pointer, A4 takes the slot that ESP
	// would otherwise occupy.
	if X86Reg[A7] != ESP {
		t.Errorf("A7 not mapped to ESP got: %d", X86Reg[A7])
	}
	if X86Reg[A4] != EDI {
		t.Errorf("A4 not mapped to EDI got: %d", X86Reg[A4])
	}
	if X86Reg[A3] != EBX {
		t.Errorf("A3 not mapped to EBX got: %d", X86Reg[A3])
	}
	for i := D0; i <= D7; i++ {
		if X86Reg[i] != uint8(i) {
			t.Errorf("D%d not mapped to extended register got: %d", i, X86Reg[i])
		}
	}
}
