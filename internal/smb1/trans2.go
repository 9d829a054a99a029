package smb1

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/JohnDeved/n3ds-smb/internal/smb1enc"
)

// TRANS2 subcommands used by this client.
const (
	trans2FindFirst2         uint16 = 0x0001
	trans2QueryFSInformation uint16 = 0x0003
)

const (
	findFirst2InfoLevel  = 0x0104 // SMB_FIND_FILE_BOTH_DIRECTORY_INFO
	findFirst2MaxCount   = 1024
	findFirst2Flags      = 0x0006 // close on end-of-search, resume keys
	findFirst2SearchAttr = 0x0016 // directory + hidden + system

	queryFSInfoLevel = 0x0103 // SMB_QUERY_FS_SIZE_INFO

	trans2MaxParamCount = 10
	trans2MaxDataCount  = 16644
)

// trans2 issues an SMB_COM_TRANSACTION2 request with the given sub-command,
// parameter block and data block, and returns the response's parameter and
// data blocks. Framing follows the fixed SMB1 TRANS2 word layout: parameter
// and data blocks are each padded to a 4-byte boundary from the start of the
// message.
func (c *Client) trans2(subCommand uint16, params, data []byte) ([]byte, []byte, error) {
	const wordsLen = 28 // 14 words before the 1-word setup array

	fixed := HeaderSize + 1 + wordsLen + 2 + 2 // header + wc + words + bc + setup(1 word)
	padParam := (4 - fixed%4) % 4
	paramOffset := fixed + padParam
	padData := (4 - (paramOffset+len(params))%4) % 4
	dataOffset := paramOffset + len(params) + padData

	words := smb1enc.NewWriter(wordsLen + 2)
	words.WriteUint16(uint16(len(params))) // TotalParameterCount
	words.WriteUint16(uint16(len(data)))   // TotalDataCount
	words.WriteUint16(trans2MaxParamCount) // MaxParameterCount
	words.WriteUint16(trans2MaxDataCount)  // MaxDataCount
	words.WriteUint8(0)                    // MaxSetupCount
	words.WriteUint8(0)                    // Reserved
	words.WriteUint16(0)                   // Flags
	words.WriteUint32(0)                   // Timeout
	words.WriteUint16(0)                   // Reserved2
	words.WriteUint16(uint16(len(params))) // ParameterCount
	words.WriteUint16(uint16(paramOffset)) // ParameterOffset
	words.WriteUint16(uint16(len(data)))   // DataCount
	words.WriteUint16(uint16(dataOffset))  // DataOffset
	words.WriteUint8(1)                    // SetupCount
	words.WriteUint8(0)                    // Reserved3
	words.WriteUint16(subCommand)          // Setup[0]
	if err := words.Err(); err != nil {
		return nil, nil, newTransportError("build trans2 words", err)
	}

	body := make([]byte, 0, padParam+len(params)+padData+len(data))
	body = append(body, make([]byte, padParam)...)
	body = append(body, params...)
	body = append(body, make([]byte, padData)...)
	body = append(body, data...)

	hdr, resp, err := c.transport.Cmd(CmdTrans2, words.Bytes(), body, c.tid, c.uid)
	if err != nil {
		return nil, nil, err
	}
	if hdr.Status != StatusSuccess {
		return nil, nil, &OperationError{Op: "trans2", Command: CmdTrans2, Status: hdr.Status}
	}
	if len(resp) < HeaderSize+1 || resp[HeaderSize] < 10 {
		return nil, nil, newTransportError("trans2", fmt.Errorf("short trans2 response"))
	}

	words2Off := HeaderSize + 1
	_ = binary.LittleEndian.Uint16(resp[words2Off : words2Off+2])   // TotalParameterCount
	_ = binary.LittleEndian.Uint16(resp[words2Off+2 : words2Off+4]) // TotalDataCount
	// resp[words2Off+4:words2Off+6] Reserved
	paramCount := binary.LittleEndian.Uint16(resp[words2Off+6 : words2Off+8])
	paramOff := binary.LittleEndian.Uint16(resp[words2Off+8 : words2Off+10])
	// resp[words2Off+10:words2Off+12] ParameterDisplacement
	dataCount := binary.LittleEndian.Uint16(resp[words2Off+12 : words2Off+14])
	dataOff := binary.LittleEndian.Uint16(resp[words2Off+14 : words2Off+16])

	if int(paramOff)+int(paramCount) > len(resp) || int(dataOff)+int(dataCount) > len(resp) {
		return nil, nil, newTransportError("trans2", fmt.Errorf("response block out of bounds"))
	}
	return resp[paramOff : paramOff+paramCount], resp[dataOff : dataOff+dataCount], nil
}

// Listdir lists the contents of dir via FIND_FIRST2. The console does not
// reliably support FIND_NEXT2 continuation, so a single FIND_FIRST2 call is
// issued and truncated result sets are accepted rather than chased with
// continuation requests.
func (c *Client) Listdir(dir string) ([]DirEntry, error) {
	pattern := strings.TrimRight(dir, `\`) + `\*`

	params := smb1enc.NewWriter(12 + len(pattern)*2)
	params.WriteUint16(findFirst2SearchAttr)
	params.WriteUint16(findFirst2MaxCount)
	params.WriteUint16(findFirst2Flags)
	params.WriteUint16(findFirst2InfoLevel)
	params.WriteUint32(0) // SearchStorageType
	params.WriteBytes(encodeUTF16LEWithNUL(pattern))
	if err := params.Err(); err != nil {
		return nil, newTransportError("build find_first2 params", err)
	}

	respParams, respData, err := c.trans2(trans2FindFirst2, params.Bytes(), nil)
	if err != nil {
		return nil, err
	}
	if len(respParams) < 10 {
		return nil, newTransportError("find_first2", fmt.Errorf("short find_first2 response parameters"))
	}
	entryCount := binary.LittleEndian.Uint16(respParams[2:4])

	return parseFindFirst2Entries(respData, int(entryCount)), nil
}

func parseFindFirst2Entries(data []byte, count int) []DirEntry {
	entries := make([]DirEntry, 0, count)
	off := 0
	for i := 0; i < count; i++ {
		if off+94 > len(data) {
			break
		}
		nextOffset := binary.LittleEndian.Uint32(data[off : off+4])
		size := binary.LittleEndian.Uint64(data[off+40 : off+48])
		attr := binary.LittleEndian.Uint32(data[off+56 : off+60])
		nameLen := binary.LittleEndian.Uint32(data[off+60 : off+64])

		nameStart := off + 94
		nameEnd := nameStart + int(nameLen)
		if nameEnd > len(data) {
			break
		}
		raw := data[nameStart:nameEnd]
		if len(raw) >= 2 && raw[len(raw)-1] == 0 && raw[len(raw)-2] == 0 {
			raw = raw[:len(raw)-2]
		}
		entries = append(entries, DirEntry{
			Name:  decodeUTF16LE(raw),
			Size:  size,
			Attr:  attr,
			IsDir: attr&0x10 != 0,
		})

		if nextOffset == 0 {
			break
		}
		off += int(nextOffset)
	}
	return entries
}

// DiskInfo reports filesystem capacity as seen by the console.
type DiskInfo struct {
	TotalBytes uint64
	FreeBytes  uint64
}

// DiskInfo queries SMB_QUERY_FS_SIZE_INFO via TRANS2.
func (c *Client) DiskInfo() (DiskInfo, error) {
	params := smb1enc.NewWriter(2)
	params.WriteUint16(queryFSInfoLevel)

	_, respData, err := c.trans2(trans2QueryFSInformation, params.Bytes(), nil)
	if err != nil {
		return DiskInfo{}, err
	}
	if len(respData) < 24 {
		return DiskInfo{}, newTransportError("query_fs_information", fmt.Errorf("short response"))
	}

	totalAllocUnits := binary.LittleEndian.Uint64(respData[0:8])
	availAllocUnits := binary.LittleEndian.Uint64(respData[8:16])
	sectorsPerUnit := binary.LittleEndian.Uint32(respData[16:20])
	bytesPerSector := binary.LittleEndian.Uint32(respData[20:24])

	unitBytes := uint64(sectorsPerUnit) * uint64(bytesPerSector)
	return DiskInfo{
		TotalBytes: totalAllocUnits * unitBytes,
		FreeBytes:  availAllocUnits * unitBytes,
	}, nil
}

// decodeUTF16LE decodes a UTF-16LE byte string the way the Python original's
// name.decode("utf-16le") does: on a malformed surrogate pair, it falls back
// to a hex-escaped rendering of the raw bytes rather than silently
// substituting U+FFFD the way utf16.Decode does.
func decodeUTF16LE(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	if !validSurrogates(units) {
		return hexEscape(b)
	}
	return string(utf16.Decode(units))
}

// validSurrogates reports whether every high surrogate in units is
// immediately followed by a low surrogate and no low surrogate appears
// unpaired, i.e. whether utf16.Decode would not need to substitute U+FFFD.
func validSurrogates(units []uint16) bool {
	const (
		highStart, highEnd = 0xD800, 0xDBFF
		lowStart, lowEnd   = 0xDC00, 0xDFFF
	)
	for i := 0; i < len(units); i++ {
		switch {
		case units[i] >= highStart && units[i] <= highEnd:
			if i+1 >= len(units) || units[i+1] < lowStart || units[i+1] > lowEnd {
				return false
			}
			i++
		case units[i] >= lowStart && units[i] <= lowEnd:
			return false
		}
	}
	return true
}

func hexEscape(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 4)
	for _, c := range b {
		fmt.Fprintf(&sb, "\\x%02x", c)
	}
	return sb.String()
}
