// Package smb1 implements the SMB1 (CIFS, NT LM 0.12 dialect) client used to
// talk to a New Nintendo 3DS's microSD Management applet: header framing,
// NetBIOS-wrapped transport, and the file operations the applet supports.
package smb1

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed length of an SMB1 message header.
const HeaderSize = 32

// protocolID is the 4-byte magic ("\xffSMB") every SMB1 message starts with.
var protocolID = [4]byte{0xFF, 'S', 'M', 'B'}

// Flags and Flags2 values this client always sends. Flags selects
// case-insensitive pathnames and canonicalized pathnames; Flags2 advertises
// long names, extended security, NT error codes, and Unicode
// strings — matching what a modern SMB1 client sends on NT LM 0.12.
const (
	flagsDefault  byte   = 0x18
	flags2Default uint16 = 0xC841
)

// SMB1 command codes used by this client.
const (
	CmdDeleteDirectory  byte = 0x01
	CmdClose            byte = 0x04
	CmdDelete           byte = 0x06
	CmdRename           byte = 0x07
	CmdReadAndX         byte = 0x2E
	CmdWriteAndX        byte = 0x2F
	CmdTrans2           byte = 0x32
	CmdEcho             byte = 0x2B
	CmdNegotiate        byte = 0x72
	CmdSessionSetupAndX byte = 0x73
	CmdTreeConnectAndX  byte = 0x75
	CmdNTCreateAndX     byte = 0xA2
)

// ErrInvalidHeader is returned when a message does not start with the SMB1
// protocol magic or is shorter than HeaderSize.
var ErrInvalidHeader = errors.New("smb1: invalid header")

// Header is the 32-byte fixed portion of every SMB1 message.
type Header struct {
	Command     byte
	Status      uint32
	Flags       byte
	Flags2      uint16
	TreeID      uint16
	ProcessID   uint16
	UserID      uint16
	MultiplexID uint16
}

// BuildHeader serializes a 32-byte SMB1 header for an outgoing request.
func BuildHeader(cmd byte, tid, uid, mid uint16, pid uint16) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], protocolID[:])
	buf[4] = cmd
	// bytes 5:9 Status, 9 Flags, 10:12 Flags2, 12:24 PIDHigh/SecurityFeatures/Reserved — zero.
	buf[9] = flagsDefault
	binary.LittleEndian.PutUint16(buf[10:12], flags2Default)
	binary.LittleEndian.PutUint16(buf[24:26], tid)
	binary.LittleEndian.PutUint16(buf[26:28], pid)
	binary.LittleEndian.PutUint16(buf[28:30], uid)
	binary.LittleEndian.PutUint16(buf[30:32], mid)
	return buf
}

// ParseHeader parses the 32-byte header of an SMB1 response.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: message too short (%d bytes)", ErrInvalidHeader, len(data))
	}
	if data[0] != protocolID[0] || data[1] != protocolID[1] || data[2] != protocolID[2] || data[3] != protocolID[3] {
		return nil, fmt.Errorf("%w: bad protocol magic", ErrInvalidHeader)
	}
	return &Header{
		Command:     data[4],
		Status:      binary.LittleEndian.Uint32(data[5:9]),
		Flags:       data[9],
		Flags2:      binary.LittleEndian.Uint16(data[10:12]),
		TreeID:      binary.LittleEndian.Uint16(data[24:26]),
		ProcessID:   binary.LittleEndian.Uint16(data[26:28]),
		UserID:      binary.LittleEndian.Uint16(data[28:30]),
		MultiplexID: binary.LittleEndian.Uint16(data[30:32]),
	}, nil
}
