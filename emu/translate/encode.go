/*
 * HUNKVM - x86 encodings for specific opcode / operand combinations.
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

import "github.com/tkrause/hunkvm/emu/codegen"

// Encoding number of an address register in the classic register set.
// The A4/A7 swap of the register mapping is taken from the pinning
// table, so the encoders below do not repeat it.
func aregEnc(reg uint32) uint8 {
	return codegen.X86Reg[8+reg] - 8
}

// mov areg, [addr]
func encodeMoveMemToAReg(addr uint32, reg uint32, out *codegen.Buf) {
	out.Byte(0x8b)
	// MOD-REG-R/M with the register, then a SIB byte selecting
	// displacement-only addressing
	out.Byte(0x04 | (aregEnc(reg) << 3))
	out.Byte(0x25)
	out.Long(addr)
}

// mov dreg, [addr]
func encodeMoveMemToDReg(addr uint32, reg uint32, out *codegen.Buf) {
	out.Byte(codegen.PrefixRexR)
	out.Byte(0x8b)
	out.Byte(0x04 | (uint8(reg) << 3))
	out.Byte(0x25)
	out.Long(addr)
}

// mov areg, imm32
func encodeMoveImmToAReg(value uint32, reg uint32, out *codegen.Buf) {
	out.Byte(codegen.OpMovImmReg + aregEnc(reg))
	out.Long(value)
}

// mov [addr], dreg
func encodeMoveDRegToMem(reg uint32, addr uint32, out *codegen.Buf) {
	out.Byte(codegen.PrefixRexR)
	out.Byte(codegen.OpMovRegReg)
	out.Byte(0x04 | (uint8(reg) << 3))
	out.Byte(0x25)
	out.Long(addr)
}
