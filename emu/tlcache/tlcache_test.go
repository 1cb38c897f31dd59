/*
 * HUNKVM - Translation cache test cases.
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

package tlcache

import (
	"errors"
	"testing"

	"github.com/tkrause/hunkvm/emu/codegen"
)

// A small trie keeps the tests readable, like the loader keeps all
// guest addresses small in real use.
func newTestCache(slots int) *Cache {
	return newCache(make([]byte, slots*SlotSize), 3)
}

func TestInsertLookup(t *testing.T) {
	c := newTestCache(2)
	if err := c.Insert(0x5, 0xdeadbeef); err != nil {
		t.Errorf("storing address 0x5 failed: %v", err)
	}
	if err := c.Insert(0x6, 0xcafebabe); err != nil {
		t.Errorf("storing address 0x6 failed: %v", err)
	}
	if dst := c.Lookup(0x5); dst != 0xdeadbeef {
		t.Errorf("looking up address 0x5 not correct got: %x expected: %x", dst, 0xdeadbeef)
	}
	if dst := c.Lookup(0x6); dst != 0xcafebabe {
		t.Errorf("looking up address 0x6 not correct got: %x expected: %x", dst, 0xcafebabe)
	}
	if dst := c.Lookup(0x7); dst != 0 {
		t.Errorf("looking up address 0x7 succeeded got: %x", dst)
	}
}

func TestInsertOutOfRange(t *testing.T) {
	c := newTestCache(1)
	err := c.Insert(0x8, 0x1000)
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("insert above address range did not fail got: %v", err)
	}
}

func TestAllocSlot(t *testing.T) {
	c := newTestCache(2)
	slot, dst, err := c.AllocSlot(0x2)
	if err != nil {
		t.Errorf("AllocSlot failed: %v", err)
	}
	if len(slot) != SlotSize {
		t.Errorf("slot size not correct got: %d expected: %d", len(slot), SlotSize)
	}
	if dst != c.Base() {
		t.Errorf("first slot not at region start got: %x expected: %x", dst, c.Base())
	}
	for i, by := range slot {
		if by != codegen.OpNop {
			t.Errorf("slot byte %d not NOP got: %02x", i, by)
			break
		}
	}
	if got := c.Lookup(0x2); got != dst {
		t.Errorf("mapping not inserted got: %x expected: %x", got, dst)
	}
}

func TestAllocSlotIdempotent(t *testing.T) {
	c := newTestCache(2)
	_, dst1, err := c.AllocSlot(0x3)
	if err != nil {
		t.Errorf("AllocSlot failed: %v", err)
	}
	slot2, dst2, err := c.AllocSlot(0x3)
	if err != nil {
		t.Errorf("second AllocSlot failed: %v", err)
	}
	if dst1 != dst2 {
		t.Errorf("AllocSlot not idempotent got: %x expected: %x", dst2, dst1)
	}
	// the second slot must still be free
	slot2[0] = 0xeb
	_, dst3, err := c.AllocSlot(0x4)
	if err != nil {
		t.Errorf("AllocSlot for second address failed: %v", err)
	}
	if dst3 != c.Base()+SlotSize {
		t.Errorf("second slot not at expected offset got: %x expected: %x",
			dst3, c.Base()+SlotSize)
	}
}

func TestAllocSlotNoSpace(t *testing.T) {
	c := newTestCache(1)
	if _, _, err := c.AllocSlot(0x1); err != nil {
		t.Errorf("AllocSlot failed: %v", err)
	}
	_, _, err := c.AllocSlot(0x2)
	if !errors.Is(err, ErrNoSpace) {
		t.Errorf("exhausted cache did not fail got: %v", err)
	}
}

func TestWalk(t *testing.T) {
	c := newTestCache(4)
	for _, src := range []uint32{0x6, 0x1, 0x4} {
		if _, _, err := c.AllocSlot(src); err != nil {
			t.Errorf("AllocSlot %x failed: %v", src, err)
		}
	}
	var seen []uint32
	c.Walk(func(src uint32, dst uintptr) {
		seen = append(seen, src)
		if dst != c.Lookup(src) {
			t.Errorf("walk address %x not correct got: %x expected: %x", src, dst, c.Lookup(src))
		}
		// every allocated slot starts with a NOP or a jump, never a
		// partial write
		slot := c.Slot(src)
		if slot[0] != codegen.OpNop && slot[0] != codegen.OpJmpRel8 {
			t.Errorf("slot %x first byte not NOP or jump got: %02x", src, slot[0])
		}
	})
	want := []uint32{0x1, 0x4, 0x6}
	if len(seen) != len(want) {
		t.Errorf("walk count not correct got: %d expected: %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("walk order not correct got: %v expected: %v", seen, want)
			break
		}
	}
}
