/*
 * HUNKVM - Library jump table synthesizer.
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

package libjump

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/tkrause/hunkvm/emu/codegen"
)

// Size of the memory region reserved for the jump tables of one
// library.
const TableSize = 8192

// FuncInfo describes one library function. Offset is the positive
// distance of its dispatch entry below the library base, as published
// in the AmigaOS FD files. Impl is a C-callable host entry point, or 0
// for a function that is not implemented.
type FuncInfo struct {
	Offset  uint16
	Name    string
	ArgRegs string
	Impl    uintptr
}

// Build synthesizes the two jump tables of a library into region.
//
// AmigaOS programs call a library function by subtracting the function
// offset from the library base and calling through the result, so the
// dispatch table has to sit at the end of the region, and the returned
// pseudo base pointer is the region end. The dispatch entries of the
// original machine were 6 bytes apart, too small for an absolute jump
// to a 64-bit address. Each implemented entry therefore holds a
// 5-byte relative jump into a second table of thunks that grows from
// the start of the region. Unimplemented entries hold a single INT3;
// executing one stops the guest under its supervisor.
func Build(region []byte, funcs []FuncInfo) (uintptr, error) {
	if len(region) < TableSize {
		return 0, fmt.Errorf("region too small for jump tables: %d bytes", len(region))
	}
	base := uintptr(unsafe.Pointer(&region[0]))
	thunks := codegen.NewBuf(region)
	lowestEntry := TableSize

	for i := range funcs {
		fi := &funcs[i]
		if fi.Offset == 0 || int(fi.Offset) >= TableSize {
			return 0, fmt.Errorf("function %s has invalid offset %d", fi.Name, fi.Offset)
		}
		entry := TableSize - int(fi.Offset)
		if entry < lowestEntry {
			lowestEntry = entry
		}
		if fi.Impl == 0 {
			region[entry] = codegen.OpInt3
			continue
		}
		slog.Debug(fmt.Sprintf("creating jump table entry and thunk for %s()", fi.Name))
		region[entry] = codegen.OpJmpRel32
		binary.LittleEndian.PutUint32(region[entry+1:],
			uint32(int32(thunks.Pos()-(entry+5))))
		if err := emitThunk(thunks, fi); err != nil {
			return 0, err
		}
		if thunks.Pos() > lowestEntry {
			return 0, fmt.Errorf("thunk table overruns dispatch table after %s()", fi.Name)
		}
	}
	return base + TableSize, nil
}

// emitThunk writes the host code adapting the AmigaOS register calling
// convention of one function to the x86-64 ABI.
//
// Arguments are moved into the ABI argument registers in order. The
// argument registers overlap the pinned guest registers, so a
// descriptor must not name a guest register whose host register was
// already written for an earlier argument; the AmigaOS register
// conventions in practice stay clear of this.
func emitThunk(b *codegen.Buf, fi *FuncInfo) error {
	args, ret, err := parseArgRegs(fi.ArgRegs)
	if err != nil {
		return fmt.Errorf("function %s: %w", fi.Name, err)
	}
	b.SavePreservedRegs()
	for i, reg := range args {
		b.MoveRegToReg(codegen.X86Reg[reg], codegen.ArgRegs[i], codegen.Mode32)
	}
	b.AbsCallToFunc(fi.Impl)
	b.MoveRegToReg(codegen.EAX, codegen.X86Reg[ret], codegen.Mode32)
	b.RestorePreservedRegs()
	b.Byte(codegen.OpRet)
	return nil
}

// parseArgRegs decodes an argument register descriptor. The rightmost
// digit is the argument count N, the digit before it the guest
// register receiving the return value, and the N digits before that,
// scanned rightmost-first, the guest registers holding arguments 1..N.
// Digits 0..7 denote D0..D7, 8..15 (hex) denote A0..A7.
func parseArgRegs(desc string) ([]uint8, uint8, error) {
	if len(desc) < 2 {
		return nil, 0, fmt.Errorf("argument descriptor %q too short", desc)
	}
	digit := func(i int) (uint8, error) {
		c := desc[i]
		switch {
		case c >= '0' && c <= '9':
			return c - '0', nil
		case c >= 'A' && c <= 'F':
			return c - 'A' + 10, nil
		}
		return 0, fmt.Errorf("argument descriptor %q has invalid digit %q", desc, c)
	}
	argc, err := digit(len(desc) - 1)
	if err != nil {
		return nil, 0, err
	}
	if int(argc) > len(codegen.ArgRegs) {
		return nil, 0, fmt.Errorf("argument descriptor %q has too many arguments", desc)
	}
	if len(desc) < int(argc)+2 {
		return nil, 0, fmt.Errorf("argument descriptor %q too short for %d arguments", desc, argc)
	}
	ret, err := digit(len(desc) - 2)
	if err != nil {
		return nil, 0, err
	}
	args := make([]uint8, argc)
	for i := range args {
		args[i], err = digit(len(desc) - 3 - i)
		if err != nil {
			return nil, 0, err
		}
	}
	return args, ret, nil
}
