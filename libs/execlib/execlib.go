/*
 * HUNKVM - Built-in Exec library.
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

// Package execlib provides the implemented routines of the Exec
// library. The function table lists the complete library interface;
// entries without an implementation become traps in the dispatch
// table.
package execlib

import (
	"log/slog"

	"github.com/ebitengine/purego"

	"github.com/tkrause/hunkvm/emu/libjump"
	"github.com/tkrause/hunkvm/emu/libload"
)

// OpenLibrary resolves a library by name and hands its base back to
// the guest.
func openLibrary(name uintptr, _ uintptr) uintptr {
	libName := libload.CString(name)
	base, err := libload.Open(libName)
	if err != nil {
		slog.Error("OpenLibrary: " + err.Error())
		return 0
	}
	return uintptr(base)
}

func closeLibrary(_ uintptr) uintptr {
	// the synthesized jump tables stay mapped for the lifetime of the
	// guest
	return 0
}

func init() {
	openImpl := purego.NewCallback(openLibrary)
	closeImpl := purego.NewCallback(closeLibrary)

	libload.Register("exec.library", []libjump.FuncInfo{
		{Offset: 0x1e, Name: "Supervisor", ArgRegs: "D01"},
		{Offset: 0x48, Name: "InitCode", ArgRegs: "1002"},
		{Offset: 0x4e, Name: "InitStruct", ArgRegs: "0A903"},
		{Offset: 0x54, Name: "MakeLibrary", ArgRegs: "10A9805"},
		{Offset: 0x5a, Name: "MakeFunctions", ArgRegs: "A9803"},
		{Offset: 0x60, Name: "FindResident", ArgRegs: "901"},
		{Offset: 0x66, Name: "InitResident", ArgRegs: "1902"},
		{Offset: 0x6c, Name: "Alert", ArgRegs: "701"},
		{Offset: 0x72, Name: "Debug", ArgRegs: "001"},
		{Offset: 0x78, Name: "Disable", ArgRegs: "00"},
		{Offset: 0x7e, Name: "Enable", ArgRegs: "00"},
		{Offset: 0x84, Name: "Forbid", ArgRegs: "00"},
		{Offset: 0x8a, Name: "Permit", ArgRegs: "00"},
		{Offset: 0x90, Name: "SetSR", ArgRegs: "1002"},
		{Offset: 0x96, Name: "SuperState", ArgRegs: "00"},
		{Offset: 0x9c, Name: "UserState", ArgRegs: "001"},
		{Offset: 0xa2, Name: "SetIntVector", ArgRegs: "9002"},
		{Offset: 0xa8, Name: "AddIntServer", ArgRegs: "9002"},
		{Offset: 0xae, Name: "RemIntServer", ArgRegs: "9002"},
		{Offset: 0xb4, Name: "Cause", ArgRegs: "901"},
		{Offset: 0xba, Name: "Allocate", ArgRegs: "0802"},
		{Offset: 0xc0, Name: "Deallocate", ArgRegs: "09803"},
		{Offset: 0xc6, Name: "AllocMem", ArgRegs: "1002"},
		{Offset: 0xcc, Name: "AllocAbs", ArgRegs: "9002"},
		{Offset: 0xd2, Name: "FreeMem", ArgRegs: "0902"},
		{Offset: 0xd8, Name: "AvailMem", ArgRegs: "101"},
		{Offset: 0xde, Name: "AllocEntry", ArgRegs: "801"},
		{Offset: 0xe4, Name: "FreeEntry", ArgRegs: "801"},
		{Offset: 0xea, Name: "Insert", ArgRegs: "A9803"},
		{Offset: 0xf0, Name: "AddHead", ArgRegs: "9802"},
		{Offset: 0xf6, Name: "AddTail", ArgRegs: "9802"},
		{Offset: 0xfc, Name: "Remove", ArgRegs: "901"},
		{Offset: 0x102, Name: "RemHead", ArgRegs: "801"},
		{Offset: 0x108, Name: "RemTail", ArgRegs: "801"},
		{Offset: 0x10e, Name: "Enqueue", ArgRegs: "9802"},
		{Offset: 0x114, Name: "FindName", ArgRegs: "9802"},
		{Offset: 0x11a, Name: "AddTask", ArgRegs: "BA903"},
		{Offset: 0x120, Name: "RemTask", ArgRegs: "901"},
		{Offset: 0x126, Name: "FindTask", ArgRegs: "901"},
		{Offset: 0x12c, Name: "SetTaskPri", ArgRegs: "0902"},
		{Offset: 0x132, Name: "SetSignal", ArgRegs: "1002"},
		{Offset: 0x138, Name: "SetExcept", ArgRegs: "1002"},
		{Offset: 0x13e, Name: "Wait", ArgRegs: "001"},
		{Offset: 0x144, Name: "Signal", ArgRegs: "0902"},
		{Offset: 0x14a, Name: "AllocSignal", ArgRegs: "001"},
		{Offset: 0x150, Name: "FreeSignal", ArgRegs: "001"},
		{Offset: 0x156, Name: "AllocTrap", ArgRegs: "001"},
		{Offset: 0x15c, Name: "FreeTrap", ArgRegs: "001"},
		{Offset: 0x162, Name: "AddPort", ArgRegs: "901"},
		{Offset: 0x168, Name: "RemPort", ArgRegs: "901"},
		{Offset: 0x16e, Name: "PutMsg", ArgRegs: "9802"},
		{Offset: 0x174, Name: "GetMsg", ArgRegs: "801"},
		{Offset: 0x17a, Name: "ReplyMsg", ArgRegs: "901"},
		{Offset: 0x180, Name: "WaitPort", ArgRegs: "801"},
		{Offset: 0x186, Name: "FindPort", ArgRegs: "901"},
		{Offset: 0x18c, Name: "AddLibrary", ArgRegs: "901"},
		{Offset: 0x192, Name: "RemLibrary", ArgRegs: "901"},
		{Offset: 0x198, Name: "OldOpenLibrary", ArgRegs: "901"},
		{Offset: 0x19e, Name: "CloseLibrary", ArgRegs: "901", Impl: closeImpl},
		{Offset: 0x1a4, Name: "SetFunction", ArgRegs: "08903"},
		{Offset: 0x1aa, Name: "SumLibrary", ArgRegs: "901"},
		{Offset: 0x1b0, Name: "AddDevice", ArgRegs: "901"},
		{Offset: 0x1b6, Name: "RemDevice", ArgRegs: "901"},
		{Offset: 0x1bc, Name: "OpenDevice", ArgRegs: "190804"},
		{Offset: 0x1c2, Name: "CloseDevice", ArgRegs: "901"},
		{Offset: 0x1c8, Name: "DoIO", ArgRegs: "901"},
		{Offset: 0x1ce, Name: "SendIO", ArgRegs: "901"},
		{Offset: 0x1d4, Name: "CheckIO", ArgRegs: "901"},
		{Offset: 0x1da, Name: "WaitIO", ArgRegs: "901"},
		{Offset: 0x1e0, Name: "AbortIO", ArgRegs: "901"},
		{Offset: 0x1e6, Name: "AddResource", ArgRegs: "901"},
		{Offset: 0x1ec, Name: "RemResource", ArgRegs: "901"},
		{Offset: 0x1f2, Name: "OpenResource", ArgRegs: "901"},
		{Offset: 0x20a, Name: "RawDoFmt", ArgRegs: "BA9804"},
		{Offset: 0x210, Name: "GetCC", ArgRegs: "00"},
		{Offset: 0x216, Name: "TypeOfMem", ArgRegs: "901"},
		{Offset: 0x21c, Name: "Procure", ArgRegs: "9802"},
		{Offset: 0x222, Name: "Vacate", ArgRegs: "9802"},
		{Offset: 0x228, Name: "OpenLibrary", ArgRegs: "0902", Impl: openImpl},
		{Offset: 0x22e, Name: "InitSemaphore", ArgRegs: "801"},
		{Offset: 0x234, Name: "ObtainSemaphore", ArgRegs: "801"},
		{Offset: 0x23a, Name: "ReleaseSemaphore", ArgRegs: "801"},
		{Offset: 0x240, Name: "AttemptSemaphore", ArgRegs: "801"},
		{Offset: 0x246, Name: "ObtainSemaphoreList", ArgRegs: "801"},
		{Offset: 0x24c, Name: "ReleaseSemaphoreList", ArgRegs: "801"},
		{Offset: 0x252, Name: "FindSemaphore", ArgRegs: "901"},
		{Offset: 0x258, Name: "AddSemaphore", ArgRegs: "901"},
		{Offset: 0x25e, Name: "RemSemaphore", ArgRegs: "901"},
		{Offset: 0x264, Name: "SumKickData", ArgRegs: "00"},
		{Offset: 0x26a, Name: "AddMemList", ArgRegs: "9821005"},
		{Offset: 0x270, Name: "CopyMem", ArgRegs: "09803"},
		{Offset: 0x276, Name: "CopyMemQuick", ArgRegs: "09803"},
		{Offset: 0x27c, Name: "CacheClearU", ArgRegs: "00"},
		{Offset: 0x282, Name: "CacheClearE", ArgRegs: "10803"},
		{Offset: 0x288, Name: "CacheControl", ArgRegs: "1002"},
		{Offset: 0x28e, Name: "CreateIORequest", ArgRegs: "0802"},
		{Offset: 0x294, Name: "DeleteIORequest", ArgRegs: "801"},
		{Offset: 0x29a, Name: "CreateMsgPort", ArgRegs: "00"},
		{Offset: 0x2a0, Name: "DeleteMsgPort", ArgRegs: "801"},
		{Offset: 0x2a6, Name: "ObtainSemaphoreShared", ArgRegs: "801"},
		{Offset: 0x2ac, Name: "AllocVec", ArgRegs: "1002"},
		{Offset: 0x2b2, Name: "FreeVec", ArgRegs: "901"},
		{Offset: 0x2b8, Name: "CreatePool", ArgRegs: "21003"},
		{Offset: 0x2be, Name: "DeletePool", ArgRegs: "801"},
		{Offset: 0x2c4, Name: "AllocPooled", ArgRegs: "0802"},
		{Offset: 0x2ca, Name: "FreePooled", ArgRegs: "09803"},
		{Offset: 0x2d0, Name: "AttemptSemaphoreShared", ArgRegs: "801"},
		{Offset: 0x2d6, Name: "ColdReboot", ArgRegs: "00"},
		{Offset: 0x2dc, Name: "StackSwap", ArgRegs: "801"},
		{Offset: 0x2fa, Name: "CachePreDMA", ArgRegs: "09803"},
		{Offset: 0x300, Name: "CachePostDMA", ArgRegs: "09803"},
		{Offset: 0x306, Name: "AddMemHandler", ArgRegs: "901"},
		{Offset: 0x30c, Name: "RemMemHandler", ArgRegs: "901"},
		{Offset: 0x312, Name: "ObtainQuickVector", ArgRegs: "801"},
		{Offset: 0x33c, Name: "NewMinList", ArgRegs: "801"},
		{Offset: 0x354, Name: "AVL_AddNode", ArgRegs: "A9803"},
		{Offset: 0x35a, Name: "AVL_RemNodeByAddress", ArgRegs: "9802"},
		{Offset: 0x360, Name: "AVL_RemNodeByKey", ArgRegs: "A9803"},
		{Offset: 0x366, Name: "AVL_FindNode", ArgRegs: "A9803"},
		{Offset: 0x36c, Name: "AVL_FindPrevNodeByAddress", ArgRegs: "801"},
		{Offset: 0x372, Name: "AVL_FindPrevNodeByKey", ArgRegs: "A9803"},
		{Offset: 0x378, Name: "AVL_FindNextNodeByAddress", ArgRegs: "801"},
		{Offset: 0x37e, Name: "AVL_FindNextNodeByKey", ArgRegs: "A9803"},
		{Offset: 0x384, Name: "AVL_FindFirstNode", ArgRegs: "801"},
		{Offset: 0x38a, Name: "AVL_FindLastNode", ArgRegs: "801"},
	})
}
