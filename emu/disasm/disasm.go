/*
 * HUNKVM - Disassembler for the translated 680x0 subset.
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

package disasm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrUndefined = errors.New("undefined opcode")

// Disassemble decodes the instruction at the start of code, which lives
// at the given guest address, and returns its text and size in bytes.
// The instructions the translator supports are decoded, plus NOP and
// BRA; anything else yields ErrUndefined.
func Disassemble(code []byte, addr uint32) (string, int, error) {
	if len(code) < 2 {
		return "", 0, ErrUndefined
	}
	opcode := binary.BigEndian.Uint16(code)

	switch {
	case opcode == 0x4e75:
		return "rts", 2, nil

	case opcode == 0x4e71:
		return "nop", 2, nil

	case opcode&0xffc0 == 0x4a80:
		if opcode&0x38 != 0 {
			return "", 0, ErrUndefined
		}
		return fmt.Sprintf("tst.l d%d", opcode&7), 2, nil

	case opcode&0xffc0 == 0x4e80:
		if opcode&0x38 != 0x28 || len(code) < 4 {
			return "", 0, ErrUndefined
		}
		disp := int16(binary.BigEndian.Uint16(code[2:]))
		return fmt.Sprintf("jsr %d(a%d)", disp, opcode&7), 4, nil

	case opcode&0xf1c0 == 0x5180:
		if opcode&0x38 != 0 {
			return "", 0, ErrUndefined
		}
		return fmt.Sprintf("subq.l #%d,d%d", (opcode&0x0e00)>>9, opcode&7), 2, nil

	case opcode&0xf1c0 == 0x2040:
		return disasmMovea(opcode, code)

	case opcode&0xf100 == 0x7000:
		return fmt.Sprintf("moveq #%d,d%d", int8(opcode&0xff), (opcode&0x0e00)>>9), 2, nil

	case opcode&0xf000 == 0x6000:
		return disasmBcc(opcode, code, addr)

	case opcode&0xf000 == 0x2000:
		return disasmMove(opcode, code)
	}
	return "", 0, ErrUndefined
}

// operand text of a mode/register field, plus extension size in bytes
func operand(modeReg uint16, ext []byte) (string, int, error) {
	switch {
	case modeReg&0x38 == 0x00:
		return fmt.Sprintf("d%d", modeReg&7), 0, nil
	case modeReg&0x38 == 0x08:
		return fmt.Sprintf("a%d", modeReg&7), 0, nil
	case modeReg == 0x38:
		if len(ext) < 2 {
			return "", 0, ErrUndefined
		}
		return fmt.Sprintf("$%04x.w", binary.BigEndian.Uint16(ext)), 2, nil
	case modeReg == 0x39:
		if len(ext) < 4 {
			return "", 0, ErrUndefined
		}
		return fmt.Sprintf("$%08x.l", binary.BigEndian.Uint32(ext)), 4, nil
	case modeReg == 0x3c:
		if len(ext) < 4 {
			return "", 0, ErrUndefined
		}
		return fmt.Sprintf("#$%08x", binary.BigEndian.Uint32(ext)), 4, nil
	}
	return "", 0, ErrUndefined
}

func disasmMove(opcode uint16, code []byte) (string, int, error) {
	src, n, err := operand(opcode&0x3f, code[2:])
	if err != nil {
		return "", 0, err
	}
	dstMR := (opcode & 0x0fc0) >> 6
	dstMR = ((dstMR & 0x07) << 3) | ((dstMR & 0x38) >> 3)
	dst, m, err := operand(dstMR, code[2+n:])
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("move.l %s,%s", src, dst), 2 + n + m, nil
}

func disasmMovea(opcode uint16, code []byte) (string, int, error) {
	src, n, err := operand(opcode&0x3f, code[2:])
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("movea.l %s,a%d", src, (opcode&0x0e00)>>9), 2 + n, nil
}

func disasmBcc(opcode uint16, code []byte, addr uint32) (string, int, error) {
	var cond string
	switch opcode & 0x0f00 {
	case 0x0000:
		cond = "bra"
	case 0x0600:
		cond = "bne"
	case 0x0700:
		cond = "beq"
	default:
		return "", 0, ErrUndefined
	}
	var offset int32
	var size int
	var suffix string
	switch opcode & 0x00ff {
	case 0x0000:
		if len(code) < 4 {
			return "", 0, ErrUndefined
		}
		offset = int32(int16(binary.BigEndian.Uint16(code[2:])))
		size = 4
		suffix = ".w"
	case 0x00ff:
		if len(code) < 6 {
			return "", 0, ErrUndefined
		}
		offset = int32(binary.BigEndian.Uint32(code[2:]))
		size = 6
		suffix = ".l"
	default:
		offset = int32(int8(opcode & 0x00ff))
		size = 2
		suffix = ".s"
	}
	target := uint32(int64(addr) + 2 + int64(offset))
	return fmt.Sprintf("%s%s $%08x", cond, suffix, target), size, nil
}
