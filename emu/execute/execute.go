/*
 * HUNKVM - Supervisor and launcher for the translated program.
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

// Package execute maps the guest address space, launches the guest as
// a traced child process and supervises it.
package execute

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"

	"github.com/tkrause/hunkvm/emu/libload"
	"github.com/tkrause/hunkvm/emu/loader"
	"github.com/tkrause/hunkvm/emu/monitor"
	"github.com/tkrause/hunkvm/emu/tlcache"
	"github.com/tkrause/hunkvm/emu/translate"
)

type Options struct {
	CacheSize int  // translation cache size, 0 selects the default
	Trace     bool // single-step the guest and log register dumps
	Monitor   bool // hand control to the debug monitor before starting
}

// Run executes a loaded program. It returns once the guest has
// terminated one way or the other.
func Run(prog *loader.Program, opts Options) error {
	cache, err := tlcache.New(opts.CacheSize)
	if err != nil {
		return err
	}
	trans := translate.New(cache, prog.Code(), prog.Entry)

	// reserve the slot for the first translation unit; its stub
	// translates the unit when the child first runs it
	entry, err := trans.SetupTU(prog.Entry)
	if err != nil {
		return err
	}

	if err := setupExecBase(); err != nil {
		return err
	}

	pid, err := forkChild()
	if err != nil {
		return fmt.Errorf("fork failed: %w", err)
	}
	if pid == 0 {
		runChild(entry, opts)
		// not reached
	}
	return supervise(pid, cache, opts)
}

// setupExecBase loads the Exec library and stores its base pointer at
// the well-known address where guest code looks for it.
func setupExecBase() error {
	execBase, err := libload.Open("exec.library")
	if err != nil {
		return fmt.Errorf("could not load Exec library: %w", err)
	}
	ptr, err := unix.MmapPtr(-1, 0, unsafe.Pointer(uintptr(loader.AbsExecBase)),
		uintptr(os.Getpagesize()),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_FIXED)
	if err != nil {
		return fmt.Errorf("could not create memory mapping for the Exec base: %w", err)
	}
	*(*uint32)(ptr) = execBase
	return nil
}

func forkChild() (int, error) {
	pid, _, errno := unix.RawSyscall(unix.SYS_FORK, 0, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(pid), nil
}

// runChild enters the translated code. The child must not return into
// the Go runtime state shared with the parent; it only runs slot code,
// thunks and the translator callback, and leaves through exit.
func runChild(entry uintptr, opts Options) {
	if _, _, errno := unix.RawSyscall6(unix.SYS_PTRACE, unix.PTRACE_TRACEME, 0, 0, 0, 0, 0); errno != 0 {
		os.Exit(1)
	}
	if opts.Trace || opts.Monitor {
		// stop so that the supervisor can take over before the first
		// instruction runs
		_ = unix.Kill(unix.Getpid(), unix.SIGSTOP)
	}
	slog.Debug("child is starting")
	var start func()
	purego.RegisterFunc(&start, entry)
	start()
	slog.Debug("child is terminating")
	os.Exit(0)
}

// supervise waits on the child and sorts its stops: a SIGSTOP at
// startup hands control to trace or monitor mode, a SIGTRAP can only
// come from the dispatch table entry of an unimplemented library
// function, anything else is fatal.
func supervise(pid int, cache *tlcache.Cache, opts Options) error {
	var ws unix.WaitStatus
	firstStop := opts.Trace || opts.Monitor
	for {
		if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
			return fmt.Errorf("wait failed: %w", err)
		}
		switch {
		case ws.Exited():
			slog.Info(fmt.Sprintf("guest has exited with status %d", ws.ExitStatus()))
			return nil

		case ws.Stopped():
			sig := ws.StopSignal()
			if sig == unix.SIGSTOP && firstStop {
				firstStop = false
				if opts.Monitor {
					action, err := monitor.Run(pid, cache)
					if err != nil {
						return err
					}
					switch action {
					case monitor.Cont:
						if err := unix.PtraceCont(pid, 0); err != nil {
							return fmt.Errorf("continue failed: %w", err)
						}
						continue
					case monitor.Exited:
						return nil
					default:
						_ = unix.Kill(pid, unix.SIGKILL)
						slog.Info("guest killed by monitor")
						return nil
					}
				}
				return traceGuest(pid)
			}
			if sig == unix.SIGTRAP {
				logGuestRegs(pid)
				_ = unix.Kill(pid, unix.SIGKILL)
				return errors.New("guest called unimplemented library function")
			}
			_ = unix.Kill(pid, unix.SIGKILL)
			return fmt.Errorf("guest stopped by unexpected signal %s", unix.SignalName(sig))

		case ws.Signaled():
			return fmt.Errorf("guest terminated by signal %s", unix.SignalName(ws.Signal()))

		default:
			return fmt.Errorf("unknown status of guest: %#x", uint32(ws))
		}
	}
}

// traceGuest single-steps the child until it terminates, logging the
// guest register view after every host instruction. A trap raised by a
// dispatch table entry shows up as one more step here; the register
// dump pinpoints it.
func traceGuest(pid int) error {
	var ws unix.WaitStatus
	for {
		if err := unix.PtraceSingleStep(pid); err != nil {
			return fmt.Errorf("single step failed: %w", err)
		}
		if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
			return fmt.Errorf("wait failed: %w", err)
		}
		switch {
		case ws.Exited():
			slog.Info(fmt.Sprintf("guest has exited with status %d", ws.ExitStatus()))
			return nil
		case ws.Stopped() && ws.StopSignal() == unix.SIGTRAP:
			logGuestRegs(pid)
		case ws.Stopped():
			return fmt.Errorf("guest stopped by unexpected signal %s", unix.SignalName(ws.StopSignal()))
		case ws.Signaled():
			return fmt.Errorf("guest terminated by signal %s", unix.SignalName(ws.Signal()))
		}
	}
}

func logGuestRegs(pid int) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		slog.Error("reading registers failed: " + err.Error())
		return
	}
	slog.Debug("\n" + monitor.FormatRegs(&regs))
}
