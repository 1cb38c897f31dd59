/*
 * HUNKVM - Translation cache.
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
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tkrause/hunkvm/emu/codegen"
)

const (
	// Default size of the executable code region.
	MaxCodeSize = 65536

	// Size of one code slot and the offset of the translated body
	// within it. The prefix below BodyOffset holds the translation
	// stub until the slot is translated.
	SlotSize   = 256
	BodyOffset = 128

	// Number of guest address bits encoded in the trie. The loader
	// places all guest segments below this boundary.
	AddrBits = 21
)

var (
	ErrNoSpace    = errors.New("no more free code slots available in translation cache")
	ErrOutOfRange = errors.New("guest address outside supported range")
)

// The cache maps guest code addresses to host code addresses. The bits
// of the guest address are encoded as a path through a binary trie,
// from the MSB at the root down to bit 1. The last node stores the host
// address in the child slot selected by the LSB.
type node struct {
	left, right *node
	// destination addresses, used in the last level only
	leftDst, rightDst uintptr
}

type Cache struct {
	root  *node
	nbits uint
	code  []byte // shared read/write/execute region holding the slots
	next  int    // offset of the next free slot
}

// New allocates a cache with a code region of the given size (0 selects
// the default). The region is mapped shared so that the guest process
// sees slot writes made by the supervisor and vice versa.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = MaxCodeSize
	}
	code, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("could not create memory mapping for translated code: %w", err)
	}
	return newCache(code, AddrBits), nil
}

func newCache(code []byte, nbits uint) *Cache {
	return &Cache{root: &node{}, nbits: nbits, code: code}
}

// Base returns the host address of the code region.
func (c *Cache) Base() uintptr {
	return uintptr(unsafe.Pointer(&c.code[0]))
}

// Insert stores a guest to host address mapping, overwriting any
// existing one.
func (c *Cache) Insert(src uint32, dst uintptr) error {
	if src >= 1<<c.nbits {
		return fmt.Errorf("%w: %08x", ErrOutOfRange, src)
	}
	cur := c.root
	for bit := uint32(1) << (c.nbits - 1); bit > 1; bit >>= 1 {
		if src&bit != 0 {
			if cur.left == nil {
				cur.left = &node{}
			}
			cur = cur.left
		} else {
			if cur.right == nil {
				cur.right = &node{}
			}
			cur = cur.right
		}
	}
	if src&1 != 0 {
		cur.leftDst = dst
	} else {
		cur.rightDst = dst
	}
	return nil
}

// Lookup returns the host address for a guest address, or 0 if the
// address is not in the cache.
func (c *Cache) Lookup(src uint32) uintptr {
	if src >= 1<<c.nbits {
		return 0
	}
	cur := c.root
	for bit := uint32(1) << (c.nbits - 1); bit > 1; bit >>= 1 {
		if src&bit != 0 {
			cur = cur.left
		} else {
			cur = cur.right
		}
		if cur == nil {
			return 0
		}
	}
	if src&1 != 0 {
		return cur.leftDst
	}
	return cur.rightDst
}

// AllocSlot reserves the code slot for a guest address and returns its
// bytes together with its host address. The call is idempotent: a
// second call with the same address returns the existing slot. A fresh
// slot is filled with NOPs so that it is safely executable in any
// state.
func (c *Cache) AllocSlot(src uint32) ([]byte, uintptr, error) {
	if dst := c.Lookup(src); dst != 0 {
		off := int(dst - c.Base())
		return c.code[off : off+SlotSize], dst, nil
	}
	if c.next+SlotSize > len(c.code) {
		return nil, 0, ErrNoSpace
	}
	slot := c.code[c.next : c.next+SlotSize]
	for i := range slot {
		slot[i] = codegen.OpNop
	}
	dst := c.Base() + uintptr(c.next)
	c.next += SlotSize
	if err := c.Insert(src, dst); err != nil {
		return nil, 0, err
	}
	return slot, dst, nil
}

// Slot returns the bytes of an allocated slot, or nil.
func (c *Cache) Slot(src uint32) []byte {
	dst := c.Lookup(src)
	if dst == 0 {
		return nil
	}
	off := int(dst - c.Base())
	return c.code[off : off+SlotSize]
}

// Walk visits all cached mappings in ascending guest address order.
func (c *Cache) Walk(visit func(src uint32, dst uintptr)) {
	c.walk(c.root, 0, c.nbits, visit)
}

func (c *Cache) walk(n *node, prefix uint32, bitsLeft uint, visit func(uint32, uintptr)) {
	if n == nil {
		return
	}
	if bitsLeft == 1 {
		if n.rightDst != 0 {
			visit(prefix, n.rightDst)
		}
		if n.leftDst != 0 {
			visit(prefix|1, n.leftDst)
		}
		return
	}
	c.walk(n.right, prefix, bitsLeft-1, visit)
	c.walk(n.left, prefix|1<<(bitsLeft-1), bitsLeft-1, visit)
}
