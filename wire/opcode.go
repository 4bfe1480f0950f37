package wire

import "fmt"

// Opcode identifies a file-transfer command or reply.
type Opcode uint8

// Request and reply opcodes.
const (
	CmdNone             Opcode = 0
	CmdTerminateSession Opcode = 1
	CmdResetSessions    Opcode = 2
	CmdListDirectory    Opcode = 3
	CmdOpenFileRO       Opcode = 4
	CmdReadFile         Opcode = 5
	CmdCreateFile       Opcode = 6
	CmdWriteFile        Opcode = 7
	CmdRemoveFile       Opcode = 8
	CmdCreateDirectory  Opcode = 9
	CmdRemoveDirectory  Opcode = 10
	CmdOpenFileWO       Opcode = 11
	CmdTruncateFile     Opcode = 12
	CmdRename           Opcode = 13
	CmdCalcFileCRC32    Opcode = 14
	CmdBurstReadFile    Opcode = 15

	RspAck Opcode = 128
	RspNak Opcode = 129
)

var opcodeNames = map[Opcode]string{
	CmdNone:             "none",
	CmdTerminateSession: "terminate_session",
	CmdResetSessions:    "reset_sessions",
	CmdListDirectory:    "list_directory",
	CmdOpenFileRO:       "open_file_ro",
	CmdReadFile:         "read_file",
	CmdCreateFile:       "create_file",
	CmdWriteFile:        "write_file",
	CmdRemoveFile:       "remove_file",
	CmdCreateDirectory:  "create_directory",
	CmdRemoveDirectory:  "remove_directory",
	CmdOpenFileWO:       "open_file_wo",
	CmdTruncateFile:     "truncate_file",
	CmdRename:           "rename",
	CmdCalcFileCRC32:    "calc_file_crc32",
	CmdBurstReadFile:    "burst_read_file",
	RspAck:              "ack",
	RspNak:              "nak",
}

// String returns the snake_case opcode name, or "opcode(N)" for unknown values.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

// IsKnown reports whether o is a defined request or reply opcode.
func (o Opcode) IsKnown() bool {
	_, ok := opcodeNames[o]
	return ok
}
