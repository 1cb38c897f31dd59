/*
 * HUNKVM - Interactive debug monitor.
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

// Package monitor implements the interactive debug console that drives
// a stopped guest via ptrace.
package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/sys/unix"

	"github.com/tkrause/hunkvm/emu/codegen"
	"github.com/tkrause/hunkvm/emu/tlcache"
	"github.com/tkrause/hunkvm/util/hex"
)

// Result of a monitor session.
const (
	Cont = iota // resume the guest
	Quit        // kill the guest
	Exited      // the guest terminated while being stepped
)

var commands = []string{"regs", "step", "cont", "slots", "dump", "quit", "help"}

// Run reads and executes monitor commands until the user resumes or
// kills the guest. The guest has to be stopped when Run is called.
func Run(pid int, cache *tlcache.Cache) (int, error) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(l string) []string {
		var matches []string
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, strings.ToLower(l)) {
				matches = append(matches, cmd)
			}
		}
		return matches
	})

	for {
		input, err := line.Prompt("hunkvm> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return Quit, nil
			}
			return Quit, err
		}
		line.AppendHistory(input)

		fields := strings.Fields(input)
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "regs":
			if err := printRegs(pid); err != nil {
				fmt.Println("Error: " + err.Error())
			}

		case "step":
			n := 1
			if len(fields) > 1 {
				if n, err = strconv.Atoi(fields[1]); err != nil || n < 1 {
					fmt.Println("Error: invalid step count")
					continue
				}
			}
			exited, err := step(pid, n)
			if err != nil {
				fmt.Println("Error: " + err.Error())
				continue
			}
			if exited {
				return Exited, nil
			}

		case "cont":
			return Cont, nil

		case "slots":
			printSlots(cache)

		case "dump":
			if len(fields) != 3 {
				fmt.Println("usage: dump <addr> <len>")
				continue
			}
			if err := dump(pid, fields[1], fields[2]); err != nil {
				fmt.Println("Error: " + err.Error())
			}

		case "quit":
			return Quit, nil

		case "help":
			fmt.Println("commands: regs, step [n], cont, slots, dump <addr> <len>, quit")

		default:
			fmt.Println("unknown command: " + fields[0])
		}
	}
}

// FormatRegs renders the guest view of a host register set.
func FormatRegs(regs *unix.PtraceRegs) string {
	var str strings.Builder
	str.WriteString(fmt.Sprintf("D0=%08x D1=%08x D2=%08x D3=%08x D4=%08x D5=%08x D6=%08x D7=%08x\n",
		uint32(regs.R8), uint32(regs.R9), uint32(regs.R10), uint32(regs.R11),
		uint32(regs.R12), uint32(regs.R13), uint32(regs.R14), uint32(regs.R15)))
	str.WriteString(fmt.Sprintf("A0=%08x A1=%08x A2=%08x A3=%08x A4=%08x A5=%08x A6=%08x A7=%08x\n",
		uint32(regs.Rax), uint32(regs.Rcx), uint32(regs.Rdx), uint32(regs.Rbx),
		uint32(regs.Rdi), uint32(regs.Rbp), uint32(regs.Rsi), uint32(regs.Rsp)))
	str.WriteString(fmt.Sprintf("PC=%016x FLAGS=%08x", regs.Rip, uint32(regs.Eflags)))
	return str.String()
}

func printRegs(pid int) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return fmt.Errorf("reading registers failed: %w", err)
	}
	fmt.Println(FormatRegs(&regs))
	return nil
}

func step(pid int, n int) (bool, error) {
	var ws unix.WaitStatus
	for range n {
		if err := unix.PtraceSingleStep(pid); err != nil {
			return false, fmt.Errorf("single step failed: %w", err)
		}
		if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
			return false, fmt.Errorf("wait failed: %w", err)
		}
		if ws.Exited() {
			fmt.Printf("guest has exited with status %d\n", ws.ExitStatus())
			return true, nil
		}
	}
	return false, printRegs(pid)
}

// printSlots lists all cache slots with their translation state. Every
// slot has to start with either the translation stub (not yet
// translated), a NOP (allocated without a stub) or the short jump over
// the stub region (translated).
func printSlots(cache *tlcache.Cache) {
	count := 0
	cache.Walk(func(src uint32, dst uintptr) {
		state := "???"
		switch cache.Slot(src)[0] {
		case codegen.PrefixRexB:
			// the stub opens with push r10
			state = "stub"
		case codegen.OpNop:
			state = "empty"
		case codegen.OpJmpRel8:
			state = "translated"
		}
		fmt.Printf("%08x -> %#x  %s\n", src, dst, state)
		count++
	})
	fmt.Printf("%d slot(s)\n", count)
}

func dump(pid int, addrStr, lenStr string) error {
	addr, err := strconv.ParseUint(strings.TrimPrefix(addrStr, "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("invalid address %q", addrStr)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil || length < 1 {
		return fmt.Errorf("invalid length %q", lenStr)
	}
	data := make([]byte, length)
	if _, err := unix.PtracePeekData(pid, uintptr(addr), data); err != nil {
		return fmt.Errorf("reading guest memory failed: %w", err)
	}
	for off := 0; off < length; off += 16 {
		end := off + 16
		if end > length {
			end = length
		}
		var str strings.Builder
		hex.FormatDump(&str, uint32(addr)+uint32(off), data[off:end])
		fmt.Println(str.String())
	}
	return nil
}
