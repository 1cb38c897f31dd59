/*
 * HUNKVM - Library loading and registry.
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

package libload

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"

	"github.com/tkrause/hunkvm/emu/libjump"
)

// Base address of the synthesized library regions. Each opened library
// gets one region of libjump.TableSize bytes, allocated upwards.
const LibBase = 0x00200000

// Symbol a host shared library has to export: a null-terminated array
// of function table rows in the layout read by readFuncTable.
const tableSymbol = "hunkvm_func_table"

var (
	registry   = map[string][]libjump.FuncInfo{}
	opened     = map[string]uintptr{}
	nextRegion = uintptr(LibBase)
	libDir     = "libs"
)

// SetLibDir sets the directory searched for host library files.
func SetLibDir(dir string) {
	libDir = dir
}

// Register adds a built-in library. Called from the init functions of
// the libs packages.
func Register(name string, funcs []libjump.FuncInfo) {
	registry[name] = funcs
}

// Open resolves a library by its AmigaOS name and returns the pseudo
// base pointer of its synthesized jump tables. Built-in libraries take
// precedence over host shared libraries; opening the same library
// twice returns the same base.
func Open(name string) (uint32, error) {
	if base, ok := opened[name]; ok {
		return uint32(base), nil
	}
	funcs, ok := registry[name]
	if !ok {
		var err error
		funcs, err = loadHostLibrary(name)
		if err != nil {
			return 0, err
		}
	}
	region, err := mapRegion()
	if err != nil {
		return 0, err
	}
	base, err := libjump.Build(region, funcs)
	if err != nil {
		return 0, err
	}
	slog.Debug(fmt.Sprintf("library %s opened, base = %#x", name, base))
	opened[name] = base
	return uint32(base), nil
}

func mapRegion() ([]byte, error) {
	ptr, err := unix.MmapPtr(-1, 0, unsafe.Pointer(nextRegion),
		uintptr(libjump.TableSize),
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_FIXED)
	if err != nil {
		return nil, fmt.Errorf("could not create memory mapping for library jump tables: %w", err)
	}
	nextRegion += libjump.TableSize
	return unsafe.Slice((*byte)(ptr), libjump.TableSize), nil
}

// loadHostLibrary opens the host shared library behind an AmigaOS
// library name ("foo.library" becomes "<libdir>/libfoo.so") and reads
// its exported function table.
func loadHostLibrary(name string) ([]libjump.FuncInfo, error) {
	stem := strings.TrimSuffix(name, ".library")
	path := filepath.Join(libDir, "lib"+stem+".so")
	slog.Debug("dlopening library " + path)
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("could not open library %s: %w", path, err)
	}
	table, err := purego.Dlsym(handle, tableSymbol)
	if err != nil {
		return nil, fmt.Errorf("library %s does not contain a function table: %w", path, err)
	}
	return readFuncTable(table), nil
}

// Row layout of the exported table: a 16-bit offset, a name pointer, a
// descriptor pointer and a function pointer, with natural alignment.
type funcRow struct {
	offset  uint16
	name    *byte
	argRegs *byte
	impl    uintptr
}

// readFuncTable walks the null-terminated row array at addr. The
// terminating row has a zero offset.
func readFuncTable(addr uintptr) []libjump.FuncInfo {
	var funcs []libjump.FuncInfo
	for {
		row := (*funcRow)(unsafe.Pointer(addr))
		if row.offset == 0 {
			return funcs
		}
		funcs = append(funcs, libjump.FuncInfo{
			Offset:  row.offset,
			Name:    cString(unsafe.Pointer(row.name)),
			ArgRegs: cString(unsafe.Pointer(row.argRegs)),
			Impl:    row.impl,
		})
		addr += unsafe.Sizeof(funcRow{})
	}
}

// CString reads a NUL-terminated string at a raw address, such as a
// string pointer handed over by guest code.
func CString(addr uintptr) string {
	return cString(unsafe.Pointer(addr))
}

func cString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}
