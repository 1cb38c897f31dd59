/*
 * HUNKVM - x86-64 code emitter.
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

import "encoding/binary"

// Operand size selector for the emitters.
const (
	Mode32 = 0
	Mode64 = 1
)

// Instruction encoding constants.
const (
	OpInt3      = 0xcc
	OpJmpRel8   = 0xeb
	OpJmpRel32  = 0xe9
	OpCallAbs64 = 0xff
	OpMovRegReg = 0x89
	OpMovImmReg = 0xb8
	OpRet       = 0xc3
	OpAndImm8   = 0x83
	OpPushReg   = 0x50
	OpPopReg    = 0x58
	OpPushfq    = 0x9c
	OpPopfq     = 0x9d
	OpNop       = 0x90
	PrefixRexB  = 0x41
	PrefixRexR  = 0x44
	PrefixRexW  = 0x48
)

// Register numbers of the 680x0, D0..D7 and A0..A7 consecutive.
const (
	D0 = iota
	D1
	D2
	D3
	D4
	D5
	D6
	D7
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
)

// Register numbers of the x86 as used in this package. The extended
// registers R8..R15 come first (0..7), so that a number below 8 means
// "needs a REX prefix" and a number at or above 8 encodes as number-8
// without a prefix. The same numbering is used for the 32-bit and the
// 64-bit names.
const (
	R8D = iota
	R9D
	R10D
	R11D
	R12D
	R13D
	R14D
	R15D
	EAX
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI
)

// Mapping of 680x0 to x86 registers. The mapping is fixed for the
// lifetime of a program; every emitter has to honor it. A7 has to live
// in ESP so that the guest stack is the host stack, which forces the
// swap of the positions of A4 and A7.
var X86Reg = [16]uint8{
	R8D,  // D0
	R9D,  // D1
	R10D, // D2
	R11D, // D3
	R12D, // D4
	R13D, // D5
	R14D, // D6
	R15D, // D7
	EAX,  // A0
	ECX,  // A1
	EDX,  // A2
	EBX,  // A3
	EDI,  // A4, swapped with ESP
	EBP,  // A5
	ESI,  // A6
	ESP,  // A7, swapped with EDI
}

// Registers used for passing arguments to functions as specified by the
// x86-64 ABI.
var ArgRegs = [6]uint8{EDI, ESI, EDX, ECX, R8D, R9D}

// Registers that need to be preserved across function calls in the
// AmigaOS. The frame (A5) and stack (A7) pointers are handled by the
// prolog and epilog of the called function, D4-D7 (R12D-R15D) and A3
// (EBX) are callee-saved in the x86-64 ABI anyway.
var preservedRegs = [...]uint8{D2, D3, A2, A4, A6}

// Buf is a cursor into a block of code being generated. All emitters
// write at the current position and advance it.
type Buf struct {
	code []byte
	pos  int
}

func NewBuf(code []byte) *Buf {
	return &Buf{code: code}
}

func (b *Buf) Pos() int {
	return b.pos
}

func (b *Buf) SetPos(pos int) {
	b.pos = pos
}

// Code written so far.
func (b *Buf) Bytes() []byte {
	return b.code[:b.pos]
}

func (b *Buf) Byte(val uint8) {
	b.code[b.pos] = val
	b.pos++
}

func (b *Buf) Long(val uint32) {
	binary.LittleEndian.PutUint32(b.code[b.pos:], val)
	b.pos += 4
}

func (b *Buf) Quad(val uint64) {
	binary.LittleEndian.PutUint64(b.code[b.pos:], val)
	b.pos += 8
}

// MOV reg, reg. The source register goes into the REG part of the
// MOD-REG-R/M byte, the destination register into the R/M part.
func (b *Buf) MoveRegToReg(src, dst uint8, mode int) {
	prefix := uint8(0)
	if mode == Mode64 {
		prefix |= PrefixRexW
	}
	if src < 8 {
		prefix |= PrefixRexR
	} else {
		src -= 8
	}
	if dst < 8 {
		prefix |= PrefixRexB
	} else {
		dst -= 8
	}
	if prefix != 0 {
		b.Byte(prefix)
	}
	b.Byte(OpMovRegReg)
	b.Byte(0xc0 | (src << 3) | dst)
}

// MOV reg, imm32/imm64. The register number is part of the opcode byte,
// so an extended register is selected with REX.B.
func (b *Buf) MoveImmToReg(value uint64, reg uint8, mode int) {
	prefix := uint8(0)
	if mode == Mode64 {
		prefix |= PrefixRexW
	}
	if reg < 8 {
		prefix |= PrefixRexB
	} else {
		reg -= 8
	}
	if prefix != 0 {
		b.Byte(prefix)
	}
	b.Byte(OpMovImmReg + reg)
	if mode == Mode64 {
		b.Quad(value)
	} else {
		b.Long(uint32(value))
	}
}

func (b *Buf) PushReg(reg uint8) {
	if reg < 8 {
		b.Byte(PrefixRexB)
	} else {
		reg -= 8
	}
	b.Byte(OpPushReg + reg)
}

func (b *Buf) PopReg(reg uint8) {
	if reg < 8 {
		b.Byte(PrefixRexB)
	} else {
		reg -= 8
	}
	b.Byte(OpPopReg + reg)
}

// Call an arbitrary 64-bit address. RBP (= A5) has to survive the call,
// so it is used to hold the unaligned stack pointer while the stack is
// aligned on a 16-byte boundary as required by the x86-64 ABI, and is
// itself saved on the stack first.
func (b *Buf) AbsCallToFunc(target uintptr) {
	b.PushReg(EBP)
	b.MoveRegToReg(ESP, EBP, Mode64)
	// and rsp, 0xfffffffffffffff0
	b.Byte(PrefixRexW)
	b.Byte(OpAndImm8)
	b.Byte(0xe4)
	b.Byte(0xf0)
	// mov rax, target; call rax
	b.MoveImmToReg(uint64(target), EAX, Mode64)
	b.Byte(OpCallAbs64)
	b.Byte(0xd0)
	b.MoveRegToReg(EBP, ESP, Mode64)
	b.PopReg(EBP)
}

// Save and restore the registers that have to be preserved across a
// function call in the AmigaOS. Restore pops in mirror-image order.
func (b *Buf) SavePreservedRegs() {
	for i := 0; i < len(preservedRegs); i++ {
		b.PushReg(X86Reg[preservedRegs[i]])
	}
}

func (b *Buf) RestorePreservedRegs() {
	for i := len(preservedRegs) - 1; i >= 0; i-- {
		b.PopReg(X86Reg[preservedRegs[i]])
	}
}

// Save and restore the complete program state visible to the guest:
// the preserved registers plus D0/D1, A0/A1 and RFLAGS. This makes a
// host call transparent at a point where the guest does not expect any
// call to happen, which is the case when a translation stub fires.
func (b *Buf) SaveProgramState() {
	b.SavePreservedRegs()
	b.PushReg(X86Reg[D0])
	b.PushReg(X86Reg[D1])
	b.PushReg(X86Reg[A0])
	b.PushReg(X86Reg[A1])
	b.Byte(OpPushfq)
}

func (b *Buf) RestoreProgramState() {
	b.Byte(OpPopfq)
	b.PopReg(X86Reg[A1])
	b.PopReg(X86Reg[A0])
	b.PopReg(X86Reg[D1])
	b.PopReg(X86Reg[D0])
	b.RestorePreservedRegs()
}
