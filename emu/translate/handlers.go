/*
 * HUNKVM - Opcode handlers and opcode info table.
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

package translate

import (
	"errors"
	"fmt"

	"github.com/tkrause/hunkvm/emu/codegen"
	"github.com/tkrause/hunkvm/emu/loader"
)

type handlerFunc func(t *Translator, opcode uint16, in *stream, out *codegen.Buf) error

type opcodeInfo struct {
	name     string
	handler  handlerFunc
	mask     uint16 // mask on opcode
	match    uint16 // what to match after masking
	eaMask   uint16 // allowed effective address modes
	terminal bool   // terminal instruction in a translation unit
}

// Rows are ordered by the number of set bits in the mask in descending
// order so that the most specific row wins for any opcode word.
var opcodeTable = []opcodeInfo{
	{"rts", (*Translator).rts, 0xffff, 0x4e75, 0x000, true},
	{"tst", (*Translator).tst, 0xffc0, 0x4a80, 0xbf8, false},
	{"jsr", (*Translator).jsr, 0xffc0, 0x4e80, 0x27b, false},
	{"subq", (*Translator).subq, 0xf1c0, 0x5180, 0xff8, false},
	{"movea", (*Translator).movea, 0xf1c0, 0x2040, 0xfff, false},
	{"moveq", (*Translator).moveq, 0xf100, 0x7000, 0x000, false},
	{"bcc", (*Translator).bcc, 0xf000, 0x6000, 0x000, true},
	{"move", (*Translator).move, 0xf000, 0x1000, 0xbff, false},
	{"move", (*Translator).move, 0xf000, 0x3000, 0xfff, false},
	{"move", (*Translator).move, 0xf000, 0x2000, 0xfff, false},
}

var errOnlyLong = errors.New("only long operation supported")

// MOVE between two operands.
func (t *Translator) move(opcode uint16, in *stream, out *codegen.Buf) error {
	if opcode&0x3000 != 0x2000 {
		return errOnlyLong
	}
	srcMR := uint8(opcode & 0x003f)
	// destination operand has mode and register parts swapped
	dstMR := uint8((opcode & 0x0fc0) >> 6)
	dstMR = ((dstMR & 0x07) << 3) | ((dstMR & 0x38) >> 3)

	src, err := extractOperand(srcMR, in)
	if err != nil {
		return err
	}
	dst, err := extractOperand(dstMR, in)
	if err != nil {
		return err
	}
	switch {
	case src.Kind == OpdMem && dst.Kind == OpdDReg:
		encodeMoveMemToDReg(src.Value, dst.Value, out)
	case src.Kind == OpdImm && dst.Kind == OpdDReg:
		out.MoveImmToReg(uint64(src.Value), codegen.X86Reg[dst.Value], codegen.Mode32)
	case src.Kind == OpdDReg && dst.Kind == OpdMem:
		encodeMoveDRegToMem(src.Value, dst.Value, out)
	case src.Kind == OpdDReg && dst.Kind == OpdDReg:
		out.MoveRegToReg(codegen.X86Reg[src.Value], codegen.X86Reg[dst.Value], codegen.Mode32)
	default:
		return fmt.Errorf("combination of source / destination operand kinds %d / %d not supported",
			src.Kind, dst.Kind)
	}
	return nil
}

// MOVEA into an address register. A load from the absolute address 4,
// the AmigaOS location of the Exec library base, is rewritten to the
// address where the supervisor placed that pointer.
func (t *Translator) movea(opcode uint16, in *stream, out *codegen.Buf) error {
	if opcode&0x3000 != 0x2000 {
		return errOnlyLong
	}
	reg := uint32((opcode & 0x0e00) >> 9)
	op, err := extractOperand(uint8(opcode&0x003f), in)
	if err != nil {
		return err
	}
	switch op.Kind {
	case OpdMem:
		if op.Value == 4 {
			op.Value = loader.AbsExecBase
		}
		encodeMoveMemToAReg(op.Value, reg, out)
	case OpdImm:
		encodeMoveImmToAReg(op.Value, reg, out)
	default:
		return fmt.Errorf("operand kind %d not supported for MOVEA", op.Kind)
	}
	return nil
}

// MOVEQ, an 8-bit immediate sign-extended into a data register.
func (t *Translator) moveq(opcode uint16, _ *stream, out *codegen.Buf) error {
	value := int32(int8(opcode & 0x00ff))
	reg := (opcode & 0x0e00) >> 9
	out.MoveImmToReg(uint64(uint32(value)), codegen.X86Reg[reg], codegen.Mode32)
	return nil
}

// SUBQ from a data register.
func (t *Translator) subq(opcode uint16, in *stream, out *codegen.Buf) error {
	if opcode&0x00c0 != 0x0080 {
		return errOnlyLong
	}
	value := uint8((opcode & 0x0e00) >> 9)
	op, err := extractOperand(uint8(opcode&0x003f), in)
	if err != nil {
		return err
	}
	if op.Kind != OpdDReg {
		return errors.New("only data register supported as destination operand")
	}
	out.Byte(codegen.PrefixRexB)
	out.Byte(0x83)
	out.Byte(0xe8 + uint8(op.Value))
	out.Byte(value)
	return nil
}

// TST of a data register. The Motorola instruction implicitly tests
// against 0, which the Intel TEST of a register against itself does
// with the shortest encoding.
func (t *Translator) tst(opcode uint16, in *stream, out *codegen.Buf) error {
	if opcode&0x00c0 != 0x0080 {
		return errOnlyLong
	}
	op, err := extractOperand(uint8(opcode&0x003f), in)
	if err != nil {
		return err
	}
	if op.Kind != OpdDReg {
		return errors.New("only data register supported as destination operand")
	}
	reg := uint8(op.Value)
	out.Byte(0x45)
	out.Byte(0x85)
	out.Byte(0xc0 | reg<<3 | reg)
	return nil
}

// JSR through an address register with displacement, the AmigaOS
// library call convention. The register is adjusted in place for the
// indirect call and restored afterwards, so the library base in A6
// survives the call.
func (t *Translator) jsr(opcode uint16, in *stream, out *codegen.Buf) error {
	op, err := extractOperand(uint8(opcode&0x003f), in)
	if err != nil {
		return err
	}
	if op.Kind != OpdARegDisp {
		return errors.New("only address register indirect with displacement supported")
	}
	host := codegen.X86Reg[8+op.Value]
	enc := host - 8
	out.PushReg(host)
	// add reg, imm32
	out.Byte(0x81)
	out.Byte(0xc0 | enc)
	out.Long(uint32(op.Disp))
	// call reg
	out.Byte(codegen.OpCallAbs64)
	out.Byte(0xd0 | enc)
	out.PopReg(host)
	return nil
}

// RTS ends the translation unit with a plain near return.
func (t *Translator) rts(_ uint16, _ *stream, out *codegen.Buf) error {
	out.Byte(codegen.OpRet)
	return nil
}

// Bcc with an 8, 16 or 32-bit signed displacement. The handler sets up
// stubs for the taken and the fall-through unit and emits a long-form
// conditional jump to the former followed by an unconditional jump to
// the latter. The stubs translate their units lazily on first
// execution; this is how control flow expands into the cache.
func (t *Translator) bcc(opcode uint16, in *stream, out *codegen.Buf) error {
	var offset, next int32
	switch opcode & 0x00ff {
	case 0x0000:
		offset = int32(int16(in.word()))
		next = 2
	case 0x00ff:
		offset = int32(in.long())
		next = 4
	default:
		offset = int32(int8(opcode & 0x00ff))
	}
	// the displacement is relative to the position right after the
	// opcode word
	target := uint32(int64(in.addr()) - int64(next) + int64(offset))

	var cond uint8
	switch opcode & 0x0f00 {
	case 0x0600:
		cond = 0x85 // BNE -> JNE
	case 0x0700:
		cond = 0x84 // BEQ -> JE
	default:
		return fmt.Errorf("condition 0x%x not supported", (opcode&0x0f00)>>8)
	}

	taken, err := t.SetupTU(target)
	if err != nil {
		return fmt.Errorf("could not set up TU of branch taken: %w", err)
	}
	fall, err := t.SetupTU(in.addr())
	if err != nil {
		return fmt.Errorf("could not set up TU of branch not taken: %w", err)
	}

	out.Byte(0x0f)
	out.Byte(cond)
	rel := int32(int64(taken) - int64(t.curBase+uintptr(out.Pos())+4))
	out.Long(uint32(rel))
	out.Byte(codegen.OpJmpRel32)
	rel = int32(int64(fall) - int64(t.curBase+uintptr(out.Pos())+4))
	out.Long(uint32(rel))
	return nil
}

// validEAMode checks an effective address mode field against the
// allowed-modes mask of an opcode info row.
func validEAMode(opcode uint16, mask uint16) bool {
	if mask == 0 {
		return true
	}
	switch opcode & 0x3f {
	case 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07:
		return mask&0x800 != 0
	case 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f:
		return mask&0x400 != 0
	case 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17:
		return mask&0x200 != 0
	case 0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f:
		return mask&0x100 != 0
	case 0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27:
		return mask&0x080 != 0
	case 0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f:
		return mask&0x040 != 0
	case 0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37:
		return mask&0x020 != 0
	case 0x38:
		return mask&0x010 != 0
	case 0x39:
		return mask&0x008 != 0
	case 0x3a:
		return mask&0x002 != 0
	case 0x3b:
		return mask&0x001 != 0
	case 0x3c:
		return mask&0x004 != 0
	}
	return false
}
