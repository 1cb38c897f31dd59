/*
 * HUNKVM - Loader for executables in Amiga Hunk format.
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
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Fixed guest memory layout. All regions live below 4GB so that guest
// pointers stay 32 bits wide, and on page boundaries above the minimum
// mapping address the kernel allows. Code addresses additionally stay
// below the bit budget of the translation cache.
const (
	// Base address of the hunk segments.
	SegmentBase = 0x00100000

	// One executable holds at most this many hunks, each capped in size.
	MaxHunks    = 4
	MaxHunkSize = 65536

	// Where the 32-bit base pointer of the Exec library is stored. The
	// AmigaOS keeps this pointer at address 4, which cannot be mapped
	// on a Linux host, so guest reads of address 4 are redirected here
	// by the translator.
	AbsExecBase = 0x00300000
)

// Hunk block types.
const (
	hunkCode    = 0x3e9
	hunkData    = 0x3ea
	hunkBSS     = 0x3eb
	hunkReloc32 = 0x3ec
	hunkSymbol  = 0x3f0
	hunkDebug   = 0x3f1
	hunkEnd     = 0x3f2
	hunkHeader  = 0x3f3
)

// Program is a loaded guest executable.
type Program struct {
	Entry    uint32 // guest address of the first code hunk
	CodeSize uint32
	mem      []byte // arena holding all hunk slots
	base     uint32 // guest address of mem[0]
}

// Code returns the code segment of the program.
func (p *Program) Code() []byte {
	off := p.Entry - p.base
	return p.mem[off : off+p.CodeSize]
}

// Mem returns the whole segment arena together with its guest base
// address.
func (p *Program) Mem() ([]byte, uint32) {
	return p.mem, p.base
}

// Load maps the segment arena at the fixed guest base and loads the
// program image into it.
func Load(fname string) (*Program, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("could not read program image: %w", err)
	}
	ptr, err := unix.MmapPtr(-1, 0, unsafe.Pointer(uintptr(SegmentBase)),
		uintptr(MaxHunks*MaxHunkSize),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_FIXED)
	if err != nil {
		return nil, fmt.Errorf("could not create memory mapping for hunks: %w", err)
	}
	mem := unsafe.Slice((*byte)(ptr), MaxHunks*MaxHunkSize)
	return loadImage(data, mem, SegmentBase)
}

// imgReader is a cursor over the program image with a sticky error.
// All fields of the Hunk format are big-endian.
type imgReader struct {
	data []byte
	pos  int
	err  error
}

func (r *imgReader) long() uint32 {
	if r.err != nil {
		return 0
	}
	if r.pos+4 > len(r.data) {
		r.err = fmt.Errorf("program image truncated at offset %d", r.pos)
		return 0
	}
	val := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return val
}

func (r *imgReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("program image truncated at offset %d", r.pos)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *imgReader) more() bool {
	return r.err == nil && r.pos < len(r.data)
}

// loadImage reads the image block by block into the arena, which
// represents guest memory starting at base. Each hunk occupies one
// fixed-size slot of the arena so that the relocations can be applied
// with plain 32-bit arithmetic.
func loadImage(data []byte, mem []byte, base uint32) (*Program, error) {
	prog := &Program{mem: mem, base: base}
	r := &imgReader{data: data}

	var hunkAddr [MaxHunks]uint32 // guest addresses of the hunks
	var firstHunk, lastHunk uint32
	hunkNum := uint32(0)
	seenHeader := false

	for r.more() {
		blockType := r.long()
		if r.err != nil {
			break
		}
		switch blockType {
		case hunkHeader:
			if r.long() != 0 {
				return nil, fmt.Errorf("executables that specify resident libraries are not supported")
			}
			r.long() // total number of hunks, including overlay hunks
			firstHunk = r.long()
			lastHunk = r.long()
			if lastHunk-firstHunk+1 > MaxHunks {
				return nil, fmt.Errorf("executables with more than %d hunks are not supported", MaxHunks)
			}
			addr := base
			for i := firstHunk; i <= lastHunk; i++ {
				size := r.long() * 4
				if size > MaxHunkSize {
					return nil, fmt.Errorf("hunk #%d too large: %d bytes", i, size)
				}
				slog.Debug(fmt.Sprintf("hunk #%d, %d bytes, will be loaded at 0x%08x", i, size, addr))
				hunkAddr[i-firstHunk] = addr
				addr += MaxHunkSize
			}
			seenHeader = true
			hunkNum = 0

		case hunkCode, hunkData:
			if !seenHeader || hunkNum > lastHunk-firstHunk {
				return nil, fmt.Errorf("hunk #%d has no slot", hunkNum)
			}
			size := r.long() * 4
			if size > MaxHunkSize {
				return nil, fmt.Errorf("hunk #%d too large: %d bytes", hunkNum, size)
			}
			block := r.bytes(int(size))
			if r.err != nil {
				return nil, r.err
			}
			off := hunkAddr[hunkNum] - base
			copy(mem[off:], block)
			if blockType == hunkCode && prog.Entry == 0 {
				prog.Entry = hunkAddr[hunkNum]
				prog.CodeSize = size
			}

		case hunkBSS:
			if !seenHeader || hunkNum > lastHunk-firstHunk {
				return nil, fmt.Errorf("hunk #%d has no slot", hunkNum)
			}
			size := r.long() * 4
			if size > MaxHunkSize {
				return nil, fmt.Errorf("hunk #%d too large: %d bytes", hunkNum, size)
			}
			off := hunkAddr[hunkNum] - base
			for i := uint32(0); i < size; i++ {
				mem[off+i] = 0
			}

		case hunkReloc32:
			for {
				count := r.long()
				if r.err != nil {
					return nil, r.err
				}
				if count == 0 {
					break
				}
				refHunk := r.long()
				if refHunk < firstHunk || refHunk > lastHunk {
					return nil, fmt.Errorf("relocation references hunk #%d, last hunk is %d",
						refHunk, lastHunk)
				}
				for i := uint32(0); i < count; i++ {
					pos := r.long()
					if r.err != nil {
						return nil, r.err
					}
					off := hunkAddr[hunkNum] - base + pos
					if int(off)+4 > len(mem) {
						return nil, fmt.Errorf("relocation position %d outside hunk", pos)
					}
					value := binary.BigEndian.Uint32(mem[off:])
					if value > 0xffffffff-base {
						return nil, fmt.Errorf("offset at position %d too large for relocation", pos)
					}
					binary.BigEndian.PutUint32(mem[off:], value+hunkAddr[refHunk-firstHunk])
				}
			}

		case hunkSymbol:
			// skip the name/value pairs
			for {
				n := r.long()
				if r.err != nil {
					return nil, r.err
				}
				if n == 0 {
					break
				}
				r.bytes(int((n + 1) * 4))
			}

		case hunkDebug:
			n := r.long()
			r.bytes(int(n * 4))

		case hunkEnd:
			hunkNum++

		default:
			return nil, fmt.Errorf("unknown block type 0x%x", blockType)
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if !seenHeader || prog.Entry == 0 {
		return nil, fmt.Errorf("program image contains no code hunk")
	}
	return prog, nil
}
