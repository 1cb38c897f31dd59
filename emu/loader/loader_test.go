/*
 * HUNKVM - Hunk loader test cases.
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

package loader

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func long(img []byte, val uint32) []byte {
	return binary.BigEndian.AppendUint32(img, val)
}

// image of a single code hunk holding the given code
func codeImage(code []byte) []byte {
	var img []byte
	img = long(img, hunkHeader)
	img = long(img, 0) // no resident libraries
	img = long(img, 1) // total number of hunks
	img = long(img, 0) // first hunk
	img = long(img, 0) // last hunk
	img = long(img, uint32(len(code)/4))
	img = long(img, hunkCode)
	img = long(img, uint32(len(code)/4))
	img = append(img, code...)
	img = long(img, hunkEnd)
	return img
}

func newArena() []byte {
	return make([]byte, MaxHunks*MaxHunkSize)
}

func TestLoadCodeHunk(t *testing.T) {
	code := []byte{0x70, 0x01, 0x4e, 0x75}
	prog, err := loadImage(codeImage(code), newArena(), SegmentBase)
	if err != nil {
		t.Fatalf("loading failed: %v", err)
	}
	if prog.Entry != SegmentBase {
		t.Errorf("entry not correct got: %x expected: %x", prog.Entry, SegmentBase)
	}
	if prog.CodeSize != 4 {
		t.Errorf("code size not correct got: %d expected: %d", prog.CodeSize, 4)
	}
	if !bytes.Equal(prog.Code(), code) {
		t.Errorf("code not correct got: % x expected: % x", prog.Code(), code)
	}
}

func TestLoadReloc(t *testing.T) {
	// a code hunk referencing the data hunk, plus the data hunk
	code := []byte{
		0x20, 0x39, 0x00, 0x00, 0x00, 0x08, // move.l $8,d0 before relocation
		0x4e, 0x75,
	}
	data := []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x00, 0x00, 0x00, 0x11, 0x22, 0x33, 0x44}

	var img []byte
	img = long(img, hunkHeader)
	img = long(img, 0)
	img = long(img, 2)
	img = long(img, 0)
	img = long(img, 1)
	img = long(img, uint32(len(code)/4))
	img = long(img, uint32(len(data)/4))
	img = long(img, hunkCode)
	img = long(img, uint32(len(code)/4))
	img = append(img, code...)
	img = long(img, hunkReloc32)
	img = long(img, 1) // one position
	img = long(img, 1) // referencing hunk #1
	img = long(img, 2) // at offset 2 within the code hunk
	img = long(img, 0) // end of relocations
	img = long(img, hunkEnd)
	img = long(img, hunkData)
	img = long(img, uint32(len(data)/4))
	img = append(img, data...)
	img = long(img, hunkEnd)

	prog, err := loadImage(img, newArena(), SegmentBase)
	if err != nil {
		t.Fatalf("loading failed: %v", err)
	}
	got := binary.BigEndian.Uint32(prog.Code()[2:])
	want := uint32(SegmentBase + MaxHunkSize + 8)
	if got != want {
		t.Errorf("relocated address not correct got: %08x expected: %08x", got, want)
	}

	// the data hunk content must be in its slot
	mem, base := prog.Mem()
	off := SegmentBase + MaxHunkSize - base
	if !bytes.Equal(mem[off:off+uint32(len(data))], data) {
		t.Errorf("data hunk not loaded correctly")
	}
}

func TestLoadBSS(t *testing.T) {
	var img []byte
	img = long(img, hunkHeader)
	img = long(img, 0)
	img = long(img, 2)
	img = long(img, 0)
	img = long(img, 1)
	img = long(img, 1) // code hunk size
	img = long(img, 2) // bss hunk size
	img = long(img, hunkCode)
	img = long(img, 1)
	img = append(img, 0x4e, 0x75, 0x4e, 0x71)
	img = long(img, hunkEnd)
	img = long(img, hunkBSS)
	img = long(img, 2)
	img = long(img, hunkEnd)

	arena := newArena()
	// dirty the bss slot to prove it gets cleared
	for i := MaxHunkSize; i < MaxHunkSize+8; i++ {
		arena[i] = 0xff
	}
	_, err := loadImage(img, arena, SegmentBase)
	if err != nil {
		t.Fatalf("loading failed: %v", err)
	}
	for i := MaxHunkSize; i < MaxHunkSize+8; i++ {
		if arena[i] != 0 {
			t.Errorf("bss byte %d not cleared got: %02x", i, arena[i])
			break
		}
	}
}

func TestLoadErrors(t *testing.T) {
	// resident libraries in the header
	var img []byte
	img = long(img, hunkHeader)
	img = long(img, 1)
	if _, err := loadImage(img, newArena(), SegmentBase); err == nil {
		t.Errorf("resident libraries did not fail")
	}

	// too many hunks
	img = nil
	img = long(img, hunkHeader)
	img = long(img, 0)
	img = long(img, MaxHunks+1)
	img = long(img, 0)
	img = long(img, MaxHunks)
	if _, err := loadImage(img, newArena(), SegmentBase); err == nil {
		t.Errorf("too many hunks did not fail")
	}

	// unknown block type
	img = nil
	img = long(img, 0x123)
	if _, err := loadImage(img, newArena(), SegmentBase); err == nil {
		t.Errorf("unknown block type did not fail")
	}

	// truncated image
	img = codeImage([]byte{0x4e, 0x75, 0x4e, 0x71})
	if _, err := loadImage(img[:len(img)-6], newArena(), SegmentBase); err == nil {
		t.Errorf("truncated image did not fail")
	}

	// no code hunk at all
	img = nil
	img = long(img, hunkHeader)
	img = long(img, 0)
	img = long(img, 1)
	img = long(img, 0)
	img = long(img, 0)
	img = long(img, 1)
	img = long(img, hunkBSS)
	img = long(img, 1)
	img = long(img, hunkEnd)
	if _, err := loadImage(img, newArena(), SegmentBase); err == nil {
		t.Errorf("image without code hunk did not fail")
	}
}

func TestLoadSymbolAndDebugSkipped(t *testing.T) {
	code := []byte{0x4e, 0x75, 0x4e, 0x71}
	var img []byte
	img = long(img, hunkHeader)
	img = long(img, 0)
	img = long(img, 1)
	img = long(img, 0)
	img = long(img, 0)
	img = long(img, 1)
	img = long(img, hunkCode)
	img = long(img, 1)
	img = append(img, code...)
	img = long(img, hunkSymbol)
	img = long(img, 1) // one longword of name
	img = append(img, '_', 'm', 'a', 'i') // name
	img = long(img, 0x10)                 // value
	img = long(img, 0)                    // end of symbols
	img = long(img, hunkDebug)
	img = long(img, 1)
	img = long(img, 0xdeadbeef)
	img = long(img, hunkEnd)

	prog, err := loadImage(img, newArena(), SegmentBase)
	if err != nil {
		t.Fatalf("loading failed: %v", err)
	}
	if !bytes.Equal(prog.Code(), code) {
		t.Errorf("code not correct got: % x expected: % x", prog.Code(), code)
	}
}
