package smb1

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"

	"github.com/JohnDeved/n3ds-smb/internal/logger"
	"github.com/JohnDeved/n3ds-smb/internal/netbios"
	"github.com/JohnDeved/n3ds-smb/internal/smb1enc"
)

// Access mask and create-disposition values used by this client, taken from
// the 3DS microSD Management applet's accepted parameter profile.
const (
	AccessReadOpen  uint32 = 0x00020089 // read + read-attributes + synchronize
	AccessWriteOpen uint32 = 0x001F01BF // generic write + read

	DispositionOpen           uint32 = 1 // open existing, fail if missing
	DispositionOverwriteOrNew uint32 = 5 // overwrite existing or create

	ShareExclusive uint32 = 0
	ShareAll       uint32 = 1

	CreateOptionsFile uint32 = 0x00000040
	CreateOptionsDir  uint32 = 0x00000001

	impersonationLevel uint32 = 2 // SecurityImpersonation

	capabilities uint32 = 0x80000004 // NT status codes + extended security
	maxMpxCount  uint16 = 2
	vcNumber     uint16 = 1

	maxNegotiatedBuffer uint16 = 4356

	maxReadChunk  = 32768
	maxWriteChunk = 16384
)

// DirEntry describes one entry returned by Listdir.
type DirEntry struct {
	Name  string
	Size  uint64
	Attr  uint32
	IsDir bool
}

// Target identifies the console to connect to. Immutable after construction.
type Target struct {
	IP             string
	Name           string // NetBIOS name, as shown on the console's screen
	Share          string // default "microSD"
	Port           int    // default 139
	ClientName     string // default "3DSCLIENT"
	ConnectTimeout int    // seconds, default 10
}

// DefaultTarget returns a Target for ip and name with every other field set
// to its default.
func DefaultTarget(ip, name string) Target {
	return Target{
		IP:             ip,
		Name:           name,
		Share:          "microSD",
		Port:           netbios.DefaultServicePort,
		ClientName:     "3DSCLIENT",
		ConnectTimeout: 10,
	}
}

// Client is a connected (or disconnected) SMB1 session against one Target.
// The lifecycle is strictly construct -> Connect -> operate -> Close;
// reconnecting means calling Close then Connect again.
type Client struct {
	target Target

	transport *Transport
	uid       uint16
	tid       uint16

	maxBufferSize uint32
	sessionKey    uint32
}

// NewClient creates an unconnected client for target.
func NewClient(target Target) *Client {
	return &Client{target: target}
}

// Connected reports whether the client currently owns a live transport.
func (c *Client) Connected() bool {
	return c.transport != nil
}

// Connect performs the full lifecycle: NetBIOS session, negotiate, auth,
// tree-connect.
func (c *Client) Connect(ctx context.Context) error {
	logger.DebugCtx(ctx, "smb1 connecting", "ip", c.target.IP, "name", c.target.Name, "port", c.target.Port)

	t, err := Dial(ctx, c.target.IP, DialOptions{
		DeviceName: c.target.Name,
		ClientName: c.target.ClientName,
		Port:       c.target.Port,
	})
	if err != nil {
		logger.WarnCtx(ctx, "smb1 dial failed", "error", err)
		return err
	}
	c.transport = t

	if err := c.negotiate(); err != nil {
		c.teardown()
		logger.WarnCtx(ctx, "smb1 negotiate failed", "error", err)
		return err
	}
	if err := c.auth(); err != nil {
		c.teardown()
		logger.WarnCtx(ctx, "smb1 session-setup failed", "error", err)
		return err
	}
	if err := c.treeConnect(); err != nil {
		c.teardown()
		logger.WarnCtx(ctx, "smb1 tree-connect failed", "error", err)
		return err
	}
	logger.InfoCtx(ctx, "smb1 connected", "uid", c.uid, "tid", c.tid, "max_buffer", c.maxBufferSize)
	return nil
}

// Close tears down the transport. Safe to call multiple times.
func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}
	err := c.transport.Close()
	c.teardown()
	return err
}

func (c *Client) teardown() {
	c.transport = nil
	c.uid = 0
	c.tid = 0
}

func (c *Client) negotiate() error {
	body := smb1enc.NewWriter(16)
	body.WriteUint8(0x02)
	body.WriteCString("NT LM 0.12")

	w := smb1enc.NewWriter(HeaderSize + 1 + 2 + 14)
	w.WriteBytes(BuildHeader(CmdNegotiate, 0, 0, c.transport.NextMID(), DefaultProcessID))
	w.WriteUint8(0) // WordCount
	w.WriteUint16(14)
	w.WriteBytes(body.Bytes())
	if err := w.Err(); err != nil {
		return newTransportError("build negotiate", err)
	}

	hdr, data, err := c.transport.Exchange(w.Bytes())
	if err != nil {
		return err
	}
	if hdr.Status != StatusSuccess {
		return &ProtocolError{Op: "negotiate", Status: hdr.Status}
	}
	if len(data) < 52 {
		return newTransportError("negotiate", fmt.Errorf("short negotiate response (%d bytes)", len(data)))
	}
	c.maxBufferSize = binary.LittleEndian.Uint32(data[40:44])
	c.sessionKey = binary.LittleEndian.Uint32(data[48:52])
	return nil
}

func (c *Client) auth() error {
	offer, err := NewNTLMSSPOffer()
	if err != nil {
		return newTransportError("build auth offer", err)
	}

	maxBuf := uint16(c.maxBufferSize)
	if maxBuf > maxNegotiatedBuffer || c.maxBufferSize > uint32(maxNegotiatedBuffer) {
		maxBuf = maxNegotiatedBuffer
	}

	words := smb1enc.NewWriter(24)
	words.WriteUint8(0xFF) // AndXCommand: none
	words.WriteUint8(0)    // AndXReserved
	words.WriteUint16(0)   // AndXOffset
	words.WriteUint16(maxBuf)
	words.WriteUint16(maxMpxCount)
	words.WriteUint16(vcNumber)
	words.WriteUint32(c.sessionKey)
	words.WriteUint16(uint16(offer.Len()))
	words.WriteUint32(0) // Reserved
	words.WriteUint32(capabilities)
	if err := words.Err(); err != nil {
		return newTransportError("build session-setup words", err)
	}

	body := smb1enc.NewWriter(offer.Len() + 16)
	body.WriteBytes(offer.Bytes())
	body.WriteCString("Unix")
	body.WriteCString("Samba")

	hdr, _, err := c.transport.Cmd(CmdSessionSetupAndX, words.Bytes(), body.Bytes(), 0, 0)
	if err != nil {
		return err
	}
	if hdr.Status != StatusSuccess {
		return &ProtocolError{Op: "session-setup", Status: hdr.Status}
	}
	c.uid = hdr.UserID
	return nil
}

func (c *Client) treeConnect() error {
	unc := fmt.Sprintf(`\\%s\%s`, upperASCII(c.target.Name), c.target.Share)

	words := smb1enc.NewWriter(8)
	words.WriteUint8(0xFF) // AndXCommand: none
	words.WriteUint8(0)    // AndXReserved
	words.WriteUint16(0)   // AndXOffset
	words.WriteUint16(0x000C)
	words.WriteUint16(1) // PasswordLength

	body := smb1enc.NewWriter(len(unc)*2 + 16)
	body.WriteUint8(0) // 1-byte password, also aligns the UTF-16 path that follows
	body.WriteBytes(encodeUTF16LEWithNUL(unc))
	body.WriteCString("?????")

	hdr, _, err := c.transport.Cmd(CmdTreeConnectAndX, words.Bytes(), body.Bytes(), 0, c.uid)
	if err != nil {
		return err
	}
	if hdr.Status != StatusSuccess {
		return &ProtocolError{Op: "tree-connect", Status: hdr.Status}
	}
	c.tid = hdr.TreeID
	return nil
}

// OpenOptions configures Open.
type OpenOptions struct {
	Access        uint32
	Disposition   uint32
	Share         uint32
	CreateOptions uint32
	Attributes    uint32
}

// DefaultReadOpen returns the access profile for opening an existing file
// for reading.
func DefaultReadOpen() OpenOptions {
	return OpenOptions{
		Access:        AccessReadOpen,
		Disposition:   DispositionOpen,
		Share:         ShareAll,
		CreateOptions: CreateOptionsFile,
	}
}

// DefaultWriteOpen returns the access profile for creating/overwriting a file.
func DefaultWriteOpen() OpenOptions {
	return OpenOptions{
		Access:        AccessWriteOpen,
		Disposition:   DispositionOverwriteOrNew,
		Share:         ShareExclusive,
		CreateOptions: CreateOptionsFile,
	}
}

// DefaultMkdirOpen returns the access profile used to create a directory.
func DefaultMkdirOpen() OpenOptions {
	return OpenOptions{
		Access:        0x001F01FF,
		Disposition:   2, // FILE_CREATE
		Share:         ShareAll,
		CreateOptions: CreateOptionsDir,
	}
}

// Open issues SMB_COM_NT_CREATE_ANDX and returns the resulting file id.
func (c *Client) Open(path string, opts OpenOptions) (uint16, error) {
	name := encodeUTF16LEWithNUL(path)

	words := smb1enc.NewWriter(48)
	words.WriteUint8(0xFF) // AndXCommand
	words.WriteUint8(0)    // AndXReserved
	words.WriteUint16(0)   // AndXOffset
	words.WriteUint8(0)    // Reserved
	words.WriteUint16(uint16(len(name)))
	words.WriteUint32(0x16) // Flags: request extended response + oplock
	words.WriteUint32(0)    // RootDirectoryFID
	words.WriteUint32(opts.Access)
	words.WriteUint64(0) // AllocationSize
	words.WriteUint32(opts.Attributes)
	words.WriteUint32(opts.Share)
	words.WriteUint32(opts.Disposition)
	words.WriteUint32(opts.CreateOptions)
	words.WriteUint32(impersonationLevel)
	words.WriteUint8(0) // SecurityFlags
	if err := words.Err(); err != nil {
		return 0, newTransportError("build nt-create words", err)
	}

	preNameLen := HeaderSize + 1 + words.Len() + 2
	body := smb1enc.NewWriter(len(name) + 1)
	if preNameLen%2 != 0 {
		body.WriteUint8(0)
	}
	body.WriteBytes(name)

	hdr, resp, err := c.transport.Cmd(CmdNTCreateAndX, words.Bytes(), body.Bytes(), c.tid, c.uid)
	if err != nil {
		return 0, err
	}
	if hdr.Status != StatusSuccess {
		return 0, &OperationError{Op: fmt.Sprintf("open %q", path), Command: CmdNTCreateAndX, Status: hdr.Status}
	}
	if len(resp) < 40 {
		return 0, newTransportError("open", fmt.Errorf("short nt-create response"))
	}
	return binary.LittleEndian.Uint16(resp[38:40]), nil
}

// Read reads up to count bytes from fid at offset. A zero-length result
// with a nil error means EOF (matching the console's behavior of reporting
// both end-of-file and certain failures as an empty read).
func (c *Client) Read(fid uint16, offset uint64, count uint32) ([]byte, error) {
	words := smb1enc.NewWriter(24)
	words.WriteUint8(0xFF)
	words.WriteUint8(0)
	words.WriteUint16(0)
	words.WriteUint16(fid)
	words.WriteUint32(uint32(offset))
	words.WriteUint16(uint16(count))
	words.WriteUint16(0)          // MinCount
	words.WriteUint32(0xFFFFFFFF) // Timeout
	words.WriteUint16(0)          // Remaining
	words.WriteUint32(0)          // OffsetHigh
	if err := words.Err(); err != nil {
		return nil, newTransportError("build read words", err)
	}

	hdr, resp, err := c.transport.Cmd(CmdReadAndX, words.Bytes(), nil, c.tid, c.uid)
	if err != nil {
		return nil, err
	}
	if hdr.Status != StatusSuccess {
		return nil, nil
	}
	if len(resp) < 47 {
		return nil, nil
	}
	dataLen := binary.LittleEndian.Uint16(resp[43:45])
	dataOff := binary.LittleEndian.Uint16(resp[45:47])
	if int(dataOff)+int(dataLen) > len(resp) {
		return nil, newTransportError("read", fmt.Errorf("data region out of bounds"))
	}
	return resp[dataOff : dataOff+dataLen], nil
}

// Write writes data to fid at offset and returns the number of bytes
// actually written according to the response.
func (c *Client) Write(fid uint16, data []byte, offset uint64) (uint16, error) {
	const dataOffset = 64

	words := smb1enc.NewWriter(28)
	words.WriteUint8(0xFF)
	words.WriteUint8(0)
	words.WriteUint16(0)
	words.WriteUint16(fid)
	words.WriteUint32(uint32(offset))
	words.WriteUint32(0) // Reserved
	words.WriteUint16(0) // WriteMode
	words.WriteUint16(0) // Remaining
	words.WriteUint16(0) // DataLengthHigh
	words.WriteUint16(uint16(len(data)))
	words.WriteUint16(dataOffset)
	words.WriteUint32(0) // OffsetHigh
	if err := words.Err(); err != nil {
		return 0, newTransportError("build write words", err)
	}

	body := smb1enc.NewWriter(len(data) + 1)
	body.WriteUint8(0) // pad byte so data lands at the declared dataOffset
	body.WriteBytes(data)

	hdr, resp, err := c.transport.Cmd(CmdWriteAndX, words.Bytes(), body.Bytes(), c.tid, c.uid)
	if err != nil {
		return 0, err
	}
	if hdr.Status != StatusSuccess {
		return 0, &OperationError{Op: "write", Command: CmdWriteAndX, Status: hdr.Status}
	}
	if len(resp) < 39 {
		return 0, newTransportError("write", fmt.Errorf("short write response"))
	}
	return binary.LittleEndian.Uint16(resp[37:39]), nil
}

// CloseFile closes fid. Failures are ignored, matching the console's
// best-effort close semantics.
func (c *Client) CloseFile(fid uint16) {
	words := smb1enc.NewWriter(6)
	words.WriteUint16(fid)
	words.WriteUint32(0xFFFFFFFF)
	_, _, _ = c.transport.Cmd(CmdClose, words.Bytes(), nil, c.tid, c.uid)
}

// Delete removes a file.
func (c *Client) Delete(path string) error {
	words := smb1enc.NewWriter(2)
	words.WriteUint16(0x0006) // SearchAttributes: hidden + system

	body := smb1enc.NewWriter(len(path)*2 + 4)
	body.WriteUint8(0x04)
	body.WriteBytes(encodeUTF16LEWithDoubleNUL(path))

	hdr, _, err := c.transport.Cmd(CmdDelete, words.Bytes(), body.Bytes(), c.tid, c.uid)
	if err != nil {
		return err
	}
	if hdr.Status != StatusSuccess {
		return &OperationError{Op: fmt.Sprintf("delete %q", path), Command: CmdDelete, Status: hdr.Status}
	}
	return nil
}

// Rename moves a file or directory server-side.
func (c *Client) Rename(oldPath, newPath string) error {
	words := smb1enc.NewWriter(2)
	words.WriteUint16(0x0006)

	part1 := smb1enc.NewWriter(len(oldPath)*2 + 4)
	part1.WriteUint8(0x04)
	part1.WriteBytes(encodeUTF16LEWithDoubleNUL(oldPath))

	// Position of the second path's UTF-16 data, one byte past its
	// buffer-format byte, from the start of the SMB message: header(32) +
	// wordcount(1) + words(2) + bytecount(2) + part1 + format byte(1).
	pos := HeaderSize + 1 + words.Len() + 2 + part1.Len() + 1

	part2 := smb1enc.NewWriter(len(newPath)*2 + 5)
	part2.WriteUint8(0x04)
	if pos%2 != 0 {
		part2.WriteUint8(0)
	}
	part2.WriteBytes(encodeUTF16LEWithDoubleNUL(newPath))

	body := make([]byte, 0, part1.Len()+part2.Len())
	body = append(body, part1.Bytes()...)
	body = append(body, part2.Bytes()...)

	hdr, _, err := c.transport.Cmd(CmdRename, words.Bytes(), body, c.tid, c.uid)
	if err != nil {
		return err
	}
	if hdr.Status != StatusSuccess {
		return &OperationError{Op: fmt.Sprintf("rename %q -> %q", oldPath, newPath), Command: CmdRename, Status: hdr.Status}
	}
	return nil
}

// Rmdir removes an empty directory.
func (c *Client) Rmdir(path string) error {
	body := smb1enc.NewWriter(len(path)*2 + 4)
	body.WriteUint8(0x04)
	body.WriteBytes(encodeUTF16LEWithDoubleNUL(path))

	hdr, _, err := c.transport.Cmd(CmdDeleteDirectory, nil, body.Bytes(), c.tid, c.uid)
	if err != nil {
		return err
	}
	if hdr.Status != StatusSuccess {
		return &OperationError{Op: fmt.Sprintf("rmdir %q", path), Command: CmdDeleteDirectory, Status: hdr.Status}
	}
	return nil
}

// Mkdir creates a directory via NT-create with directory create options.
func (c *Client) Mkdir(path string) error {
	fid, err := c.Open(path, DefaultMkdirOpen())
	if err != nil {
		return err
	}
	c.CloseFile(fid)
	return nil
}

// Echo pings the session via SMB_COM_ECHO and reports whether it is alive.
func (c *Client) Echo() bool {
	if c.transport == nil {
		return false
	}
	words := smb1enc.NewWriter(2)
	words.WriteUint16(1) // EchoCount
	hdr, _, err := c.transport.Cmd(CmdEcho, words.Bytes(), []byte("PING"), c.tid, c.uid)
	return err == nil && hdr.Status == StatusSuccess
}

// MaxReadChunk returns the largest single read this client will request.
func (c *Client) MaxReadChunk() int {
	n := int(c.maxBufferSize) - 64
	if n > maxReadChunk || n <= 0 {
		n = maxReadChunk
	}
	return n
}

// MaxWriteChunk returns the largest single write payload this client will send.
func (c *Client) MaxWriteChunk() int {
	n := int(c.maxBufferSize) - 128
	if n > maxWriteChunk || n <= 0 {
		n = maxWriteChunk
	}
	return n
}

// GetFile downloads remote into w, chunked at MaxReadChunk, and returns the
// total bytes transferred.
func (c *Client) GetFile(remote string, w io.Writer) (int64, error) {
	fid, err := c.Open(remote, DefaultReadOpen())
	if err != nil {
		return 0, err
	}
	defer c.CloseFile(fid)

	var total int64
	chunk := uint32(c.MaxReadChunk())
	for {
		data, err := c.Read(fid, uint64(total), chunk)
		if err != nil {
			return total, err
		}
		if len(data) == 0 {
			return total, nil
		}
		n, err := w.Write(data)
		total += int64(n)
		if err != nil {
			return total, newTransportError("write local stream", err)
		}
	}
}

// PutFile uploads r to remote, chunked at MaxWriteChunk, and returns the
// total bytes transferred.
func (c *Client) PutFile(remote string, r io.Reader) (int64, error) {
	fid, err := c.Open(remote, DefaultWriteOpen())
	if err != nil {
		return 0, err
	}
	defer c.CloseFile(fid)

	var total int64
	buf := make([]byte, c.MaxWriteChunk())
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := c.Write(fid, buf[:n], uint64(total)); err != nil {
				return total, err
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, newTransportError("read local stream", readErr)
		}
	}
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func encodeUTF16LEWithNUL(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*2+2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	return buf
}

func encodeUTF16LEWithDoubleNUL(s string) []byte {
	return encodeUTF16LEWithNUL(s)
}
