/*
 * HUNKVM - Operand decoding.
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

import "fmt"

// Operand kinds.
const (
	OpdAReg = iota
	OpdDReg
	OpdMem
	OpdImm
	OpdARegDisp
)

// Operand as decoded from a 6-bit mode/register subfield plus any
// extension words. Value holds the register number for the register
// kinds, the address for OpdMem and the literal for OpdImm. Disp is
// used by OpdARegDisp only.
type Operand struct {
	Kind   uint8
	Length uint8
	Value  uint32
	Disp   int32
}

// extractOperand decodes the operand selected by a mode/register field,
// consuming extension words from the instruction stream as needed.
func extractOperand(modeReg uint8, in *stream) (Operand, error) {
	switch {
	case modeReg&0x38 == 0x00:
		return Operand{Kind: OpdDReg, Length: 4, Value: uint32(modeReg & 0x07)}, nil
	case modeReg&0x38 == 0x08:
		return Operand{Kind: OpdAReg, Length: 4, Value: uint32(modeReg & 0x07)}, nil
	case modeReg&0x38 == 0x28:
		disp := int32(int16(in.word()))
		return Operand{Kind: OpdARegDisp, Length: 4, Value: uint32(modeReg & 0x07), Disp: disp}, nil
	case modeReg == 0x38:
		return Operand{Kind: OpdMem, Length: 2, Value: uint32(in.word())}, nil
	case modeReg == 0x39:
		return Operand{Kind: OpdMem, Length: 4, Value: in.long()}, nil
	case modeReg == 0x3c:
		return Operand{Kind: OpdImm, Length: 4, Value: in.long()}, nil
	default:
		return Operand{}, fmt.Errorf("addressing mode 0x%02x not supported", modeReg)
	}
}
