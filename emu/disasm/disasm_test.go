/*
 * HUNKVM - Disassembler test cases.
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
	"errors"
	"testing"
)

func TestDisassemble(t *testing.T) {
	cases := []struct {
		code []byte
		addr uint32
		text string
		size int
	}{
		{[]byte{0x4e, 0x75}, 0, "rts", 2},
		{[]byte{0x4e, 0x71}, 0, "nop", 2},
		{[]byte{0x70, 0x80}, 0, "moveq #-128,d0", 2},
		{[]byte{0x72, 0x7f}, 0, "moveq #127,d1", 2},
		{[]byte{0x4a, 0x80}, 0, "tst.l d0", 2},
		{[]byte{0x53, 0x82}, 0, "subq.l #1,d2", 2},
		{[]byte{0x26, 0x02}, 0, "move.l d2,d3", 2},
		{[]byte{0x20, 0x39, 0x55, 0x55, 0xaa, 0xaa}, 0, "move.l $5555aaaa.l,d0", 6},
		{[]byte{0x22, 0x3c, 0x55, 0x55, 0xaa, 0xaa}, 0, "move.l #$5555aaaa,d1", 6},
		{[]byte{0x2c, 0x78, 0x00, 0x04}, 0, "movea.l $0004.w,a6", 4},
		{[]byte{0x28, 0x7c, 0xde, 0xad, 0xbe, 0xef}, 0, "movea.l #$deadbeef,a4", 6},
		{[]byte{0x4e, 0xae, 0xfc, 0x4c}, 0, "jsr -948(a6)", 4},
		{[]byte{0x67, 0xfe}, 0x100000, "beq.s $00100000", 2},
		{[]byte{0x66, 0x00, 0x00, 0x10}, 0x100000, "bne.w $00100012", 4},
		{[]byte{0x60, 0xfe}, 0x100000, "bra.s $00100000", 2},
	}
	for _, tc := range cases {
		text, size, err := Disassemble(tc.code, tc.addr)
		if err != nil {
			t.Errorf("disassembling % x failed: %v", tc.code, err)
			continue
		}
		if text != tc.text {
			t.Errorf("text not correct got: %q expected: %q", text, tc.text)
		}
		if size != tc.size {
			t.Errorf("size of %q not correct got: %d expected: %d", tc.text, size, tc.size)
		}
	}
}

func TestDisassembleUndefined(t *testing.T) {
	for _, code := range [][]byte{{0x4e, 0x40}, {0xff, 0xff}, {0x4e}} {
		if _, _, err := Disassemble(code, 0); !errors.Is(err, ErrUndefined) {
			t.Errorf("opcode % x did not fail got: %v", code, err)
		}
	}
}
