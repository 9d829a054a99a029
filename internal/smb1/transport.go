package smb1

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/JohnDeved/n3ds-smb/internal/netbios"
	"github.com/JohnDeved/n3ds-smb/internal/smb1enc"
)

// DefaultProcessID is the PID this client advertises in every SMB1 header.
// The 3DS does not use it for anything beyond echoing it back.
const DefaultProcessID uint16 = 0xBEEF

// Transport frames SMB1 messages inside NetBIOS Session Service packets over
// one TCP connection and hands out monotonically increasing multiplex IDs.
type Transport struct {
	conn net.Conn

	mu  sync.Mutex
	mid uint16
}

// NewTransport wraps an already NetBIOS-session-established connection.
func NewTransport(conn net.Conn) *Transport {
	return &Transport{conn: conn}
}

// Close closes the underlying connection.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// NextMID returns the next multiplex id, wrapping from 0xFFFF back to 1 so
// the value is never zero (mirroring the 3DS's own expectations for request
// correlation).
func (t *Transport) NextMID() uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mid = t.mid%0xFFFF + 1
	return t.mid
}

// Send wraps payload in a NetBIOS Session Message and writes it.
func (t *Transport) Send(payload []byte) error {
	if err := netbios.WriteMessage(t.conn, payload); err != nil {
		return newTransportError("send", err)
	}
	return nil
}

// Recv reads one NetBIOS-framed SMB1 message.
func (t *Transport) Recv() ([]byte, error) {
	data, err := netbios.ReadMessage(t.conn)
	if err != nil {
		return nil, newTransportError("recv", err)
	}
	return data, nil
}

// Exchange sends payload and waits for the response, parsing its SMB1
// header. It does not match multiplex ids against the request since this
// client only ever has one request in flight at a time on a given
// Transport.
func (t *Transport) Exchange(payload []byte) (*Header, []byte, error) {
	if err := t.Send(payload); err != nil {
		return nil, nil, err
	}
	data, err := t.Recv()
	if err != nil {
		return nil, nil, err
	}
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, nil, newTransportError("parse response", err)
	}
	return hdr, data, nil
}

// Cmd builds an SMB1 request with the given command, fixed "words" section,
// and variable-length body, then exchanges it. words must already be an
// even number of bytes (the SMB1 WordCount field is words/2).
func (t *Transport) Cmd(cmd byte, words, body []byte, tid, uid uint16) (*Header, []byte, error) {
	if len(words)%2 != 0 {
		return nil, nil, fmt.Errorf("smb1: odd-length words section for command 0x%02X", cmd)
	}
	w := smb1enc.NewWriter(HeaderSize + 1 + len(words) + 2 + len(body))
	w.WriteBytes(BuildHeader(cmd, tid, uid, t.NextMID(), DefaultProcessID))
	w.WriteUint8(uint8(len(words) / 2))
	w.WriteBytes(words)
	w.WriteUint16(uint16(len(body)))
	w.WriteBytes(body)
	if err := w.Err(); err != nil {
		return nil, nil, fmt.Errorf("smb1: build command 0x%02X: %w", cmd, err)
	}
	return t.Exchange(w.Bytes())
}

// DialOptions configures Dial.
type DialOptions struct {
	// DeviceName is the target's NetBIOS name (the 3DS's microSD Management
	// share name shown on-device), used as the NetBIOS "called name".
	DeviceName string
	// ClientName is this client's NetBIOS "calling name".
	ClientName string
	// Port is the TCP port to connect to, normally netbios.DefaultServicePort.
	Port int
}

// Dial connects to addr, performs the NetBIOS Session Request handshake
// using opts, and returns a ready-to-use Transport.
func Dial(ctx context.Context, addr string, opts DialOptions) (*Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", addr, opts.Port))
	if err != nil {
		return nil, newTransportError("dial", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := netbios.RequestSession(conn, opts.DeviceName, opts.ClientName); err != nil {
		conn.Close()
		return nil, newTransportError("netbios session request", err)
	}
	return NewTransport(conn), nil
}
