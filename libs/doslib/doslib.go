/*
 * HUNKVM - Built-in DOS library.
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

// Package doslib provides the implemented routines of the DOS library.
package doslib

import (
	"os"

	"github.com/ebitengine/purego"

	"github.com/tkrause/hunkvm/emu/libjump"
	"github.com/tkrause/hunkvm/emu/libload"
)

// PutStr writes a NUL-terminated string to standard output. Returns 0
// on success, like the AmigaOS routine.
func putStr(str uintptr) uintptr {
	s := libload.CString(str)
	if _, err := os.Stdout.WriteString(s); err != nil {
		return ^uintptr(0)
	}
	return 0
}

func init() {
	putStrImpl := purego.NewCallback(putStr)

	libload.Register("dos.library", []libjump.FuncInfo{
		{Offset: 0x1e, Name: "Open", ArgRegs: "2102"},
		{Offset: 0x24, Name: "Close", ArgRegs: "101"},
		{Offset: 0x2a, Name: "Read", ArgRegs: "32103"},
		{Offset: 0x30, Name: "Write", ArgRegs: "32103"},
		{Offset: 0x36, Name: "Input", ArgRegs: "00"},
		{Offset: 0x3c, Name: "Output", ArgRegs: "00"},
		{Offset: 0x42, Name: "Seek", ArgRegs: "32103"},
		{Offset: 0x48, Name: "DeleteFile", ArgRegs: "101"},
		{Offset: 0x4e, Name: "Rename", ArgRegs: "2102"},
		{Offset: 0x54, Name: "Lock", ArgRegs: "2102"},
		{Offset: 0x5a, Name: "UnLock", ArgRegs: "101"},
		{Offset: 0x60, Name: "DupLock", ArgRegs: "101"},
		{Offset: 0x66, Name: "Examine", ArgRegs: "2102"},
		{Offset: 0x6c, Name: "ExNext", ArgRegs: "2102"},
		{Offset: 0x72, Name: "Info", ArgRegs: "2102"},
		{Offset: 0x78, Name: "CreateDir", ArgRegs: "101"},
		{Offset: 0x7e, Name: "CurrentDir", ArgRegs: "101"},
		{Offset: 0x84, Name: "IoErr", ArgRegs: "00"},
		{Offset: 0x8a, Name: "CreateProc", ArgRegs: "432104"},
		{Offset: 0x90, Name: "Exit", ArgRegs: "101"},
		{Offset: 0x96, Name: "LoadSeg", ArgRegs: "101"},
		{Offset: 0x9c, Name: "UnLoadSeg", ArgRegs: "101"},
		{Offset: 0xae, Name: "DeviceProc", ArgRegs: "101"},
		{Offset: 0xb4, Name: "SetComment", ArgRegs: "2102"},
		{Offset: 0xba, Name: "SetProtection", ArgRegs: "2102"},
		{Offset: 0xc0, Name: "DateStamp", ArgRegs: "101"},
		{Offset: 0xc6, Name: "Delay", ArgRegs: "101"},
		{Offset: 0xcc, Name: "WaitForChar", ArgRegs: "2102"},
		{Offset: 0xd2, Name: "ParentDir", ArgRegs: "101"},
		{Offset: 0xd8, Name: "IsInteractive", ArgRegs: "101"},
		{Offset: 0xde, Name: "Execute", ArgRegs: "32103"},
		{Offset: 0xe4, Name: "AllocDosObject", ArgRegs: "2102"},
		{Offset: 0xea, Name: "FreeDosObject", ArgRegs: "2102"},
		{Offset: 0xf0, Name: "DoPkt", ArgRegs: "765432107"},
		{Offset: 0xf6, Name: "SendPkt", ArgRegs: "32103"},
		{Offset: 0xfc, Name: "WaitPkt", ArgRegs: "00"},
		{Offset: 0x102, Name: "ReplyPkt", ArgRegs: "32103"},
		{Offset: 0x108, Name: "AbortPkt", ArgRegs: "2102"},
		{Offset: 0x10e, Name: "LockRecord", ArgRegs: "5432105"},
		{Offset: 0x114, Name: "LockRecords", ArgRegs: "2102"},
		{Offset: 0x11a, Name: "UnLockRecord", ArgRegs: "32103"},
		{Offset: 0x120, Name: "UnLockRecords", ArgRegs: "101"},
		{Offset: 0x126, Name: "SelectInput", ArgRegs: "101"},
		{Offset: 0x12c, Name: "SelectOutput", ArgRegs: "101"},
		{Offset: 0x132, Name: "FGetC", ArgRegs: "101"},
		{Offset: 0x138, Name: "FPutC", ArgRegs: "2102"},
		{Offset: 0x13e, Name: "UnGetC", ArgRegs: "2102"},
		{Offset: 0x144, Name: "FRead", ArgRegs: "432104"},
		{Offset: 0x14a, Name: "FWrite", ArgRegs: "432104"},
		{Offset: 0x150, Name: "FGets", ArgRegs: "32103"},
		{Offset: 0x156, Name: "FPuts", ArgRegs: "2102"},
		{Offset: 0x15c, Name: "VFWritef", ArgRegs: "32103"},
		{Offset: 0x162, Name: "VFPrintf", ArgRegs: "32103"},
		{Offset: 0x168, Name: "Flush", ArgRegs: "101"},
		{Offset: 0x16e, Name: "SetVBuf", ArgRegs: "432104"},
		{Offset: 0x174, Name: "DupLockFromFH", ArgRegs: "101"},
		{Offset: 0x17a, Name: "OpenFromLock", ArgRegs: "101"},
		{Offset: 0x180, Name: "ParentOfFH", ArgRegs: "101"},
		{Offset: 0x186, Name: "ExamineFH", ArgRegs: "2102"},
		{Offset: 0x18c, Name: "SetFileDate", ArgRegs: "2102"},
		{Offset: 0x192, Name: "NameFromLock", ArgRegs: "32103"},
		{Offset: 0x198, Name: "NameFromFH", ArgRegs: "32103"},
		{Offset: 0x19e, Name: "SplitName", ArgRegs: "5432105"},
		{Offset: 0x1a4, Name: "SameLock", ArgRegs: "2102"},
		{Offset: 0x1aa, Name: "SetMode", ArgRegs: "2102"},
		{Offset: 0x1b0, Name: "ExAll", ArgRegs: "5432105"},
		{Offset: 0x1b6, Name: "ReadLink", ArgRegs: "5432105"},
		{Offset: 0x1bc, Name: "MakeLink", ArgRegs: "32103"},
		{Offset: 0x1c2, Name: "ChangeMode", ArgRegs: "32103"},
		{Offset: 0x1c8, Name: "SetFileSize", ArgRegs: "32103"},
		{Offset: 0x1ce, Name: "SetIoErr", ArgRegs: "101"},
		{Offset: 0x1d4, Name: "Fault", ArgRegs: "432104"},
		{Offset: 0x1da, Name: "PrintFault", ArgRegs: "2102"},
		{Offset: 0x1e0, Name: "ErrorReport", ArgRegs: "432104"},
		{Offset: 0x1ec, Name: "Cli", ArgRegs: "00"},
		{Offset: 0x1f2, Name: "CreateNewProc", ArgRegs: "101"},
		{Offset: 0x1f8, Name: "RunCommand", ArgRegs: "432104"},
		{Offset: 0x1fe, Name: "GetConsoleTask", ArgRegs: "00"},
		{Offset: 0x204, Name: "SetConsoleTask", ArgRegs: "101"},
		{Offset: 0x20a, Name: "GetFileSysTask", ArgRegs: "00"},
		{Offset: 0x210, Name: "SetFileSysTask", ArgRegs: "101"},
		{Offset: 0x216, Name: "GetArgStr", ArgRegs: "00"},
		{Offset: 0x21c, Name: "SetArgStr", ArgRegs: "101"},
		{Offset: 0x222, Name: "FindCliProc", ArgRegs: "101"},
		{Offset: 0x228, Name: "MaxCli", ArgRegs: "00"},
		{Offset: 0x22e, Name: "SetCurrentDirName", ArgRegs: "101"},
		{Offset: 0x234, Name: "GetCurrentDirName", ArgRegs: "2102"},
		{Offset: 0x23a, Name: "SetProgramName", ArgRegs: "101"},
		{Offset: 0x240, Name: "GetProgramName", ArgRegs: "2102"},
		{Offset: 0x246, Name: "SetPrompt", ArgRegs: "101"},
		{Offset: 0x24c, Name: "GetPrompt", ArgRegs: "2102"},
		{Offset: 0x252, Name: "SetProgramDir", ArgRegs: "101"},
		{Offset: 0x258, Name: "GetProgramDir", ArgRegs: "00"},
		{Offset: 0x25e, Name: "SystemTagList", ArgRegs: "2102"},
		{Offset: 0x264, Name: "AssignLock", ArgRegs: "2102"},
		{Offset: 0x26a, Name: "AssignLate", ArgRegs: "2102"},
		{Offset: 0x270, Name: "AssignPath", ArgRegs: "2102"},
		{Offset: 0x276, Name: "AssignAdd", ArgRegs: "2102"},
		{Offset: 0x27c, Name: "RemAssignList", ArgRegs: "2102"},
		{Offset: 0x282, Name: "GetDeviceProc", ArgRegs: "2102"},
		{Offset: 0x288, Name: "FreeDeviceProc", ArgRegs: "101"},
		{Offset: 0x28e, Name: "LockDosList", ArgRegs: "101"},
		{Offset: 0x294, Name: "UnLockDosList", ArgRegs: "101"},
		{Offset: 0x29a, Name: "AttemptLockDosList", ArgRegs: "101"},
		{Offset: 0x2a0, Name: "RemDosEntry", ArgRegs: "101"},
		{Offset: 0x2a6, Name: "AddDosEntry", ArgRegs: "101"},
		{Offset: 0x2ac, Name: "FindDosEntry", ArgRegs: "32103"},
		{Offset: 0x2b2, Name: "NextDosEntry", ArgRegs: "2102"},
		{Offset: 0x2b8, Name: "MakeDosEntry", ArgRegs: "2102"},
		{Offset: 0x2be, Name: "FreeDosEntry", ArgRegs: "101"},
		{Offset: 0x2c4, Name: "IsFileSystem", ArgRegs: "101"},
		{Offset: 0x2ca, Name: "Format", ArgRegs: "32103"},
		{Offset: 0x2d0, Name: "Relabel", ArgRegs: "2102"},
		{Offset: 0x2d6, Name: "Inhibit", ArgRegs: "2102"},
		{Offset: 0x2dc, Name: "AddBuffers", ArgRegs: "2102"},
		{Offset: 0x2e2, Name: "CompareDates", ArgRegs: "2102"},
		{Offset: 0x2e8, Name: "DateToStr", ArgRegs: "101"},
		{Offset: 0x2ee, Name: "StrToDate", ArgRegs: "101"},
		{Offset: 0x2f4, Name: "InternalLoadSeg", ArgRegs: "A98004"},
		{Offset: 0x2fa, Name: "InternalUnLoadSeg", ArgRegs: "9102"},
		{Offset: 0x300, Name: "NewLoadSeg", ArgRegs: "2102"},
		{Offset: 0x306, Name: "AddSegment", ArgRegs: "32103"},
		{Offset: 0x30c, Name: "FindSegment", ArgRegs: "32103"},
		{Offset: 0x312, Name: "RemSegment", ArgRegs: "101"},
		{Offset: 0x318, Name: "CheckSignal", ArgRegs: "101"},
		{Offset: 0x31e, Name: "ReadArgs", ArgRegs: "32103"},
		{Offset: 0x324, Name: "FindArg", ArgRegs: "2102"},
		{Offset: 0x32a, Name: "ReadItem", ArgRegs: "32103"},
		{Offset: 0x330, Name: "StrToLong", ArgRegs: "2102"},
		{Offset: 0x336, Name: "MatchFirst", ArgRegs: "2102"},
		{Offset: 0x33c, Name: "MatchNext", ArgRegs: "101"},
		{Offset: 0x342, Name: "MatchEnd", ArgRegs: "101"},
		{Offset: 0x348, Name: "ParsePattern", ArgRegs: "32103"},
		{Offset: 0x34e, Name: "MatchPattern", ArgRegs: "2102"},
		{Offset: 0x35a, Name: "FreeArgs", ArgRegs: "101"},
		{Offset: 0x366, Name: "FilePart", ArgRegs: "101"},
		{Offset: 0x36c, Name: "PathPart", ArgRegs: "101"},
		{Offset: 0x372, Name: "AddPart", ArgRegs: "32103"},
		{Offset: 0x378, Name: "StartNotify", ArgRegs: "101"},
		{Offset: 0x37e, Name: "EndNotify", ArgRegs: "101"},
		{Offset: 0x384, Name: "SetVar", ArgRegs: "432104"},
		{Offset: 0x38a, Name: "GetVar", ArgRegs: "432104"},
		{Offset: 0x390, Name: "DeleteVar", ArgRegs: "2102"},
		{Offset: 0x396, Name: "FindVar", ArgRegs: "2102"},
		{Offset: 0x3a2, Name: "CliInitNewcli", ArgRegs: "801"},
		{Offset: 0x3a8, Name: "CliInitRun", ArgRegs: "801"},
		{Offset: 0x3ae, Name: "WriteChars", ArgRegs: "2102"},
		{Offset: 0x3b4, Name: "PutStr", ArgRegs: "101", Impl: putStrImpl},
		{Offset: 0x3ba, Name: "VPrintf", ArgRegs: "2102"},
		{Offset: 0x3c6, Name: "ParsePatternNoCase", ArgRegs: "32103"},
		{Offset: 0x3cc, Name: "MatchPatternNoCase", ArgRegs: "2102"},
		{Offset: 0x3d8, Name: "SameDevice", ArgRegs: "2102"},
		{Offset: 0x3de, Name: "ExAllEnd", ArgRegs: "5432105"},
		{Offset: 0x3e4, Name: "SetOwner", ArgRegs: "2102"},
	})
}
