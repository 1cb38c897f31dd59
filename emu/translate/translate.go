/*
 * HUNKVM - Binary translation from Motorola 680x0 to Intel x86-64 code.
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
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/ebitengine/purego"

	"github.com/tkrause/hunkvm/emu/codegen"
	"github.com/tkrause/hunkvm/emu/disasm"
	"github.com/tkrause/hunkvm/emu/tlcache"
)

// Translator turns 680x0 translation units into x86-64 code slots. A
// translation unit is a straight-line sequence of instructions up to
// and including the first terminal instruction (branch or return) and
// is identified by its start address.
type Translator struct {
	cache    *tlcache.Cache
	code     []byte // code segment of the guest program
	codeBase uint32 // guest address of code[0]
	lookup   []*opcodeInfo
	callback uintptr // C-callable entry used by the translation stubs

	// host address the output cursor of the unit currently being
	// translated writes to; Bcc handlers need it for displacements
	curBase uintptr
}

func New(cache *tlcache.Cache, code []byte, codeBase uint32) *Translator {
	t := &Translator{cache: cache, code: code, codeBase: codeBase}
	t.callback = purego.NewCallback(func(addr uintptr) uintptr {
		dst, err := t.TranslateTU(uint32(addr))
		if err != nil {
			slog.Error("translate: " + err.Error())
			os.Exit(1)
		}
		return dst
	})
	return t
}

// SetupTU reserves the code slot for a guest address and writes a
// translation stub into its prefix. The stub saves the program state,
// calls back into TranslateTU with the guest address and restores the
// state; control then falls through the NOP sled into the body that
// TranslateTU has written in the meantime. The call is idempotent.
func (t *Translator) SetupTU(addr uint32) (uintptr, error) {
	if dst := t.cache.Lookup(addr); dst != 0 {
		return dst, nil
	}
	slot, dst, err := t.cache.AllocSlot(addr)
	if err != nil {
		return 0, err
	}
	b := codegen.NewBuf(slot)
	b.SaveProgramState()
	b.MoveImmToReg(uint64(addr), codegen.EDI, codegen.Mode64)
	b.AbsCallToFunc(t.callback)
	b.RestoreProgramState()
	if b.Pos() > tlcache.BodyOffset {
		return 0, fmt.Errorf("translation stub overruns slot prefix (%d bytes)", b.Pos())
	}
	slog.Debug(fmt.Sprintf("set up stub for TU at 0x%08x in slot %#x", addr, dst))
	return dst, nil
}

// TranslateTU translates the unit starting at the given guest address
// into the body of its code slot and finalizes the slot with a short
// jump over the stub. Returns the host address of the slot.
func (t *Translator) TranslateTU(addr uint32) (uintptr, error) {
	if addr < t.codeBase || addr >= t.codeBase+uint32(len(t.code)) {
		return 0, fmt.Errorf("address 0x%08x outside code segment", addr)
	}
	slot, dst, err := t.cache.AllocSlot(addr)
	if err != nil {
		return 0, err
	}
	t.ensureTable()

	in := &stream{code: t.code, base: t.codeBase, pos: int(addr - t.codeBase)}
	out := codegen.NewBuf(slot[tlcache.BodyOffset:])

	savedBase := t.curBase
	t.curBase = dst + tlcache.BodyOffset
	defer func() {
		t.curBase = savedBase
	}()

	slog.Debug(fmt.Sprintf("translating TU at 0x%08x into slot %#x", addr, dst))
	for {
		terminal, err := t.translateOne(in, out)
		if err != nil {
			return 0, err
		}
		if terminal {
			break
		}
		if out.Pos() > tlcache.SlotSize-tlcache.BodyOffset-maxHostInstrSize {
			return 0, fmt.Errorf("translation unit at 0x%08x too large for code slot", addr)
		}
	}

	// Now that the body is complete, let subsequent entries skip the
	// stub. The slot stays executable at every point of this write.
	slot[0] = codegen.OpJmpRel8
	slot[1] = tlcache.BodyOffset - 2
	return dst, nil
}

// Upper bound on the size of the host code emitted for one guest
// instruction. The largest, a conditional branch with its trailing
// unconditional jump, takes 11 bytes.
const maxHostInstrSize = 16

// translateOne decodes one instruction and emits its host equivalent.
// Reports whether the instruction was the terminal one of the unit.
func (t *Translator) translateOne(in *stream, out *codegen.Buf) (bool, error) {
	if in.pos+2 > len(in.code) {
		return false, fmt.Errorf("ran off end of code segment at 0x%08x", in.addr())
	}
	start := in.addr()
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		if text, _, err := disasm.Disassemble(in.code[in.pos:], start); err == nil {
			slog.Debug(fmt.Sprintf("0x%08x: %s", start, text))
		}
	}
	opcode := in.word()
	info := t.lookup[opcode]
	if info == nil {
		return false, fmt.Errorf("no handler found for opcode 0x%04x", opcode)
	}
	if err := info.handler(t, opcode, in, out); err != nil {
		return false, fmt.Errorf("could not translate %s at 0x%08x: %w", info.name, start, err)
	}
	return info.terminal, nil
}

// ensureTable expands the opcode info rows into a lookup over all
// 65536 possible opcode words. Done once, on the first translate.
func (t *Translator) ensureTable() {
	if t.lookup != nil {
		return
	}
	t.lookup = make([]*opcodeInfo, 0x10000)
	for op := 0; op < 0x10000; op++ {
		opcode := uint16(op)
		for i := range opcodeTable {
			info := &opcodeTable[i]
			if opcode&info.mask != info.match {
				continue
			}
			// the destination of a MOVE is an effective address of its
			// own, with mode and register fields swapped
			if info.name == "move" &&
				!validEAMode(((opcode>>9)&7)|((opcode>>3)&0x38), 0xbf8) {
				continue
			}
			if validEAMode(opcode, info.eaMask) {
				t.lookup[opcode] = info
				break
			}
		}
	}
}

// stream is a cursor over the guest instruction stream. All reads are
// big-endian.
type stream struct {
	code []byte
	pos  int
	base uint32
}

// Guest address of the current position.
func (s *stream) addr() uint32 {
	return s.base + uint32(s.pos)
}

func (s *stream) word() uint16 {
	val := binary.BigEndian.Uint16(s.code[s.pos:])
	s.pos += 2
	return val
}

func (s *stream) long() uint32 {
	val := binary.BigEndian.Uint32(s.code[s.pos:])
	s.pos += 4
	return val
}
