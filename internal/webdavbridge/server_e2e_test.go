package webdavbridge

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"

	"github.com/JohnDeved/n3ds-smb/internal/netbios"
	"github.com/JohnDeved/n3ds-smb/internal/smb1"
)

// fakeConsoleFS is the minimal in-memory filesystem a fakeConsole serves:
// just enough of NT_CREATE_ANDX/READ_ANDX/WRITE_ANDX/CLOSE/DELETE/
// FIND_FIRST2 to drive a webdav.Handler end-to-end against a real,
// connected smb1.Client.
type fakeConsoleFS struct {
	dirs  map[string]bool
	files map[string][]byte
	fids  map[uint16]string
	nextF uint16
}

func newFakeConsoleFS() *fakeConsoleFS {
	return &fakeConsoleFS{
		dirs:  map[string]bool{`\`: true},
		files: map[string][]byte{},
		fids:  map[uint16]string{},
	}
}

// fakeConsole plays the console's role on one accepted connection: NetBIOS
// session + negotiate/auth/tree-connect handshake, then dispatches whatever
// SMB1 commands the protocol client sends against fs.
type fakeConsole struct {
	conn net.Conn
	t    *testing.T
	fs   *fakeConsoleFS
}

func startFakeConsole(t *testing.T) (ip string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	addr := ln.Addr().(*net.TCPAddr)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		c := &fakeConsole{conn: conn, t: t, fs: newFakeConsoleFS()}
		c.run()
	}()

	return addr.IP.String(), addr.Port
}

func (c *fakeConsole) run() {
	if !c.acceptSession() {
		return
	}
	if !c.handleConnectSequence() {
		return
	}
	for {
		hdr, data, err := c.recvRequest()
		if err != nil {
			return
		}
		c.dispatch(hdr, data)
	}
}

func (c *fakeConsole) acceptSession() bool {
	pt, length, err := netbios.ReadHeader(c.conn)
	if err != nil || pt != netbios.TypeSessionRequest {
		return false
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return false
	}
	return netbios.WriteHeader(c.conn, netbios.TypePositiveResp, 0) == nil
}

func (c *fakeConsole) recvRequest() (*smb1.Header, []byte, error) {
	data, err := netbios.ReadMessage(c.conn)
	if err != nil {
		return nil, nil, err
	}
	hdr, err := smb1.ParseHeader(data)
	if err != nil {
		return nil, nil, err
	}
	return hdr, data, nil
}

func (c *fakeConsole) reply(cmd byte, status uint32, tid, uid, mid uint16, words, body []byte) {
	buf := make([]byte, smb1.HeaderSize)
	copy(buf, smb1.BuildHeader(cmd, tid, uid, mid, smb1.DefaultProcessID))
	binary.LittleEndian.PutUint32(buf[5:9], status)
	buf = append(buf, byte(len(words)/2))
	buf = append(buf, words...)
	bc := make([]byte, 2)
	binary.LittleEndian.PutUint16(bc, uint16(len(body)))
	buf = append(buf, bc...)
	buf = append(buf, body...)
	_ = netbios.WriteMessage(c.conn, buf)
}

func (c *fakeConsole) handleConnectSequence() bool {
	hdr, _, err := c.recvRequest()
	if err != nil {
		return false
	}
	negWords := make([]byte, 34)
	binary.LittleEndian.PutUint32(negWords[40-33:44-33], 4356)
	c.reply(smb1.CmdNegotiate, smb1.StatusSuccess, hdr.TreeID, hdr.UserID, hdr.MultiplexID, negWords, nil)

	hdr, _, err = c.recvRequest()
	if err != nil {
		return false
	}
	c.reply(smb1.CmdSessionSetupAndX, smb1.StatusSuccess, 0, 7, hdr.MultiplexID, []byte{0xFF, 0, 0, 0}, nil)

	hdr, _, err = c.recvRequest()
	if err != nil {
		return false
	}
	c.reply(smb1.CmdTreeConnectAndX, smb1.StatusSuccess, 9, 7, hdr.MultiplexID, nil, nil)
	return true
}

func (c *fakeConsole) dispatch(hdr *smb1.Header, data []byte) {
	switch hdr.Command {
	case smb1.CmdEcho:
		c.reply(hdr.Command, smb1.StatusSuccess, hdr.TreeID, hdr.UserID, hdr.MultiplexID, nil, nil)
	case smb1.CmdTrans2:
		c.handleTrans2(hdr, data)
	case smb1.CmdNTCreateAndX:
		c.handleOpen(hdr, data)
	case smb1.CmdReadAndX:
		c.handleRead(hdr, data)
	case smb1.CmdWriteAndX:
		c.handleWrite(hdr, data)
	case smb1.CmdClose:
		c.reply(hdr.Command, smb1.StatusSuccess, hdr.TreeID, hdr.UserID, hdr.MultiplexID, nil, nil)
	case smb1.CmdDelete:
		c.handleDelete(hdr, data)
	case smb1.CmdDeleteDirectory:
		c.handleRmdir(hdr, data)
	default:
		c.reply(hdr.Command, smb1.StatusSuccess, hdr.TreeID, hdr.UserID, hdr.MultiplexID, nil, nil)
	}
}

func decodeNullTerminatedUTF16(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	if n := len(units); n > 0 && units[n-1] == 0 {
		units = units[:n-1]
	}
	return string(utf16.Decode(units))
}

const wordsStart = smb1.HeaderSize + 1

func (c *fakeConsole) handleOpen(hdr *smb1.Header, data []byte) {
	const wordsLen = 48
	words := data[wordsStart : wordsStart+wordsLen]
	createOptions := binary.LittleEndian.Uint32(words[39:43])
	isDir := createOptions&smb1.CreateOptionsDir != 0

	bcOff := wordsStart + wordsLen
	bc := binary.LittleEndian.Uint16(data[bcOff : bcOff+2])
	body := data[bcOff+2 : bcOff+2+int(bc)]
	name := decodeNullTerminatedUTF16(body[1:]) // leading pad byte

	if isDir {
		c.fs.dirs[name] = true
	} else if _, ok := c.fs.files[name]; !ok {
		c.fs.files[name] = []byte{}
	}
	c.fs.nextF++
	fid := c.fs.nextF
	c.fs.fids[fid] = name

	respWords := make([]byte, 40)
	binary.LittleEndian.PutUint16(respWords[5:7], fid)
	c.reply(hdr.Command, smb1.StatusSuccess, hdr.TreeID, hdr.UserID, hdr.MultiplexID, respWords, nil)
}

func (c *fakeConsole) handleRead(hdr *smb1.Header, data []byte) {
	const wordsLen = 24
	words := data[wordsStart : wordsStart+wordsLen]
	fid := binary.LittleEndian.Uint16(words[4:6])
	offset := binary.LittleEndian.Uint32(words[6:10])
	maxCount := binary.LittleEndian.Uint16(words[10:12])

	content := c.fs.files[c.fs.fids[fid]]
	var chunk []byte
	if int(offset) < len(content) {
		end := int(offset) + int(maxCount)
		if end > len(content) {
			end = len(content)
		}
		chunk = content[offset:end]
	}

	respWords := make([]byte, 24)
	dataOffset := smb1.HeaderSize + 1 + len(respWords) + 2
	binary.LittleEndian.PutUint16(respWords[10:12], uint16(len(chunk)))
	binary.LittleEndian.PutUint16(respWords[12:14], uint16(dataOffset))
	c.reply(hdr.Command, smb1.StatusSuccess, hdr.TreeID, hdr.UserID, hdr.MultiplexID, respWords, chunk)
}

func (c *fakeConsole) handleWrite(hdr *smb1.Header, data []byte) {
	const wordsLen = 28
	words := data[wordsStart : wordsStart+wordsLen]
	fid := binary.LittleEndian.Uint16(words[4:6])
	offset := binary.LittleEndian.Uint32(words[6:10])
	dataLength := binary.LittleEndian.Uint16(words[20:22])

	const chunkStart = 64
	chunk := data[chunkStart : chunkStart+int(dataLength)]

	path := c.fs.fids[fid]
	content := c.fs.files[path]
	end := int(offset) + len(chunk)
	if end > len(content) {
		grown := make([]byte, end)
		copy(grown, content)
		content = grown
	}
	copy(content[offset:end], chunk)
	c.fs.files[path] = content

	respWords := make([]byte, 12)
	binary.LittleEndian.PutUint16(respWords[4:6], dataLength)
	c.reply(hdr.Command, smb1.StatusSuccess, hdr.TreeID, hdr.UserID, hdr.MultiplexID, respWords, nil)
}

func (c *fakeConsole) pathFromDeleteBody(data []byte, wordsLen int) string {
	bcOff := wordsStart + wordsLen
	bc := binary.LittleEndian.Uint16(data[bcOff : bcOff+2])
	body := data[bcOff+2 : bcOff+2+int(bc)]
	return decodeNullTerminatedUTF16(body[1:]) // leading 0x04 format byte
}

func (c *fakeConsole) handleDelete(hdr *smb1.Header, data []byte) {
	path := c.pathFromDeleteBody(data, 2)
	delete(c.fs.files, path)
	c.reply(hdr.Command, smb1.StatusSuccess, hdr.TreeID, hdr.UserID, hdr.MultiplexID, nil, nil)
}

func (c *fakeConsole) handleRmdir(hdr *smb1.Header, data []byte) {
	path := c.pathFromDeleteBody(data, 0)
	delete(c.fs.dirs, path)
	c.reply(hdr.Command, smb1.StatusSuccess, hdr.TreeID, hdr.UserID, hdr.MultiplexID, nil, nil)
}

func (c *fakeConsole) handleTrans2(hdr *smb1.Header, data []byte) {
	const wordsLen = 30
	words := data[wordsStart : wordsStart+wordsLen]
	subCommand := binary.LittleEndian.Uint16(words[28:30])
	if subCommand != 0x0001 { // FIND_FIRST2
		c.reply(hdr.Command, smb1.StatusSuccess, hdr.TreeID, hdr.UserID, hdr.MultiplexID, make([]byte, 20), nil)
		return
	}

	paramCount := binary.LittleEndian.Uint16(words[18:20])
	paramOffset := binary.LittleEndian.Uint16(words[20:22])
	params := data[paramOffset : paramOffset+paramCount]
	pattern := decodeNullTerminatedUTF16(params[12:])
	dirPrefix := strings.TrimSuffix(pattern, "*")

	var names []string
	var sizes []uint64
	var isDirs []bool
	for p, content := range c.fs.files {
		if isDirectChild(p, dirPrefix) {
			names = append(names, strings.TrimPrefix(p, dirPrefix))
			sizes = append(sizes, uint64(len(content)))
			isDirs = append(isDirs, false)
		}
	}
	for p := range c.fs.dirs {
		if p != `\` && isDirectChild(p, dirPrefix) {
			names = append(names, strings.TrimPrefix(p, dirPrefix))
			sizes = append(sizes, 0)
			isDirs = append(isDirs, true)
		}
	}

	var respData []byte
	for i, name := range names {
		nameBytes := encodeUTF16LEWithNULTest(name)
		entry := make([]byte, 94+len(nameBytes))
		if i < len(names)-1 {
			binary.LittleEndian.PutUint32(entry[0:4], uint32(len(entry)))
		}
		binary.LittleEndian.PutUint64(entry[40:48], sizes[i])
		attr := uint32(0)
		if isDirs[i] {
			attr = 0x10
		}
		binary.LittleEndian.PutUint32(entry[56:60], attr)
		binary.LittleEndian.PutUint32(entry[60:64], uint32(len(nameBytes)))
		copy(entry[94:], nameBytes)
		respData = append(respData, entry...)
	}

	respParams := make([]byte, 10)
	binary.LittleEndian.PutUint16(respParams[2:4], uint16(len(names)))

	c.replyTrans2(hdr, respParams, respData)
}

func isDirectChild(path, dirPrefix string) bool {
	if !strings.HasPrefix(path, dirPrefix) || path == dirPrefix {
		return false
	}
	rest := strings.TrimPrefix(path, dirPrefix)
	return !strings.Contains(rest, `\`)
}

func encodeUTF16LEWithNULTest(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*2+2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	return buf
}

func (c *fakeConsole) replyTrans2(hdr *smb1.Header, params, respData []byte) {
	const wordsLen = 20
	paramOffset := smb1.HeaderSize + 1 + wordsLen + 2
	dataOffset := paramOffset + len(params)

	words := make([]byte, wordsLen)
	binary.LittleEndian.PutUint16(words[0:2], uint16(len(params)))
	binary.LittleEndian.PutUint16(words[2:4], uint16(len(respData)))
	binary.LittleEndian.PutUint16(words[6:8], uint16(len(params)))
	binary.LittleEndian.PutUint16(words[8:10], uint16(paramOffset))
	binary.LittleEndian.PutUint16(words[12:14], uint16(len(respData)))
	binary.LittleEndian.PutUint16(words[14:16], uint16(dataOffset))

	body := make([]byte, 0, len(params)+len(respData))
	body = append(body, params...)
	body = append(body, respData...)
	c.reply(hdr.Command, smb1.StatusSuccess, hdr.TreeID, hdr.UserID, hdr.MultiplexID, words, body)
}

// TestWebDAVHandlerRoundTrip drives golang.org/x/net/webdav's Handler
// through a real PUT/PROPFIND/GET/DELETE sequence against a Provider backed
// by an smb1.Client connected to a fakeConsole over a real TCP loopback
// connection, exercising the full HTTP-to-SMB1 translation path.
func TestWebDAVHandlerRoundTrip(t *testing.T) {
	ip, port := startFakeConsole(t)

	target := smb1.DefaultTarget(ip, "TESTCONSOLE")
	target.Port = port
	target.ConnectTimeout = 5

	client := smb1.NewClient(target)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	provider := NewProvider(client, false, nil)
	handler := &webdav.Handler{
		Prefix:     "/",
		FileSystem: provider,
		LockSystem: webdav.NewMemLS(),
	}

	const body = "hello from a New Nintendo 3DS"

	put := httptest.NewRequest(http.MethodPut, "/greeting.txt", strings.NewReader(body))
	putRec := httptest.NewRecorder()
	handler.ServeHTTP(putRec, put)
	require.Equal(t, http.StatusCreated, putRec.Code)

	propfind := httptest.NewRequest("PROPFIND", "/", nil)
	propfind.Header.Set("Depth", "1")
	propfindRec := httptest.NewRecorder()
	handler.ServeHTTP(propfindRec, propfind)
	require.Equal(t, http.StatusMultiStatus, propfindRec.Code)
	require.Contains(t, propfindRec.Body.String(), "greeting.txt")

	get := httptest.NewRequest(http.MethodGet, "/greeting.txt", nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, get)
	require.Equal(t, http.StatusOK, getRec.Code)
	require.Equal(t, body, getRec.Body.String())

	del := httptest.NewRequest(http.MethodDelete, "/greeting.txt", nil)
	delRec := httptest.NewRecorder()
	handler.ServeHTTP(delRec, del)
	require.Equal(t, http.StatusNoContent, delRec.Code)
}
