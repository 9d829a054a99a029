package netbios

import (
	"errors"
	"fmt"
	"io"
)

// Session packet types, RFC 1002 §4.3.
const (
	TypeSessionMessage byte = 0x00
	TypeSessionRequest byte = 0x81
	TypePositiveResp   byte = 0x82
	TypeNegativeResp   byte = 0x83
	TypeRetargetResp   byte = 0x84
	TypeKeepAlive      byte = 0x85
	DefaultServicePort      = 139
	nameServiceSuffix  byte = 0x20
)

// ErrSessionRejected is returned when the remote host refuses the NetBIOS session.
var ErrSessionRejected = errors.New("netbios: session request rejected")

// WriteHeader writes a 4-byte NetBIOS Session Service header: a 1-byte
// packet type and a 17-bit big-endian length (the top 7 bits of the length
// byte are reserved and always zero for NBT payload sizes in this client).
func WriteHeader(w io.Writer, packetType byte, length int) error {
	hdr := [4]byte{
		packetType,
		byte((length >> 16) & 0xFF),
		byte((length >> 8) & 0xFF),
		byte(length & 0xFF),
	}
	_, err := w.Write(hdr[:])
	return err
}

// ReadHeader reads a 4-byte NetBIOS Session Service header and returns the
// packet type and payload length.
func ReadHeader(r io.Reader) (packetType byte, length int, err error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, fmt.Errorf("netbios: read session header: %w", err)
	}
	length = int(hdr[1])<<16 | int(hdr[2])<<8 | int(hdr[3])
	return hdr[0], length, nil
}

// BuildSessionRequest builds the payload of a Session Request packet: the
// called name (the target's NetBIOS name) followed by the calling name
// (this client's own name), each first-level-encoded and wrapped with a
// leading length byte and trailing NUL as RFC 1002 §4.3.1 requires.
func BuildSessionRequest(calledName, callingName string) []byte {
	called := encodedName(calledName)
	calling := encodedName(callingName)
	payload := make([]byte, 0, len(called)+len(calling))
	payload = append(payload, called...)
	payload = append(payload, calling...)
	return payload
}

func encodedName(name string) []byte {
	encoded := EncodeName(name, nameServiceSuffix)
	out := make([]byte, 0, 1+len(encoded)+1)
	out = append(out, 0x20) // NAME_TYPE: NetBIOS name, no scope
	out = append(out, encoded...)
	out = append(out, 0x00)
	return out
}

// RequestSession performs a NetBIOS Session Request/Response exchange over
// an already-connected stream, using calledName as the server's NetBIOS
// name and callingName as this client's own name. It returns
// ErrSessionRejected if the server responds with a negative response
// (0x83), draining the rejection's error-code payload first.
func RequestSession(rw io.ReadWriter, calledName, callingName string) error {
	payload := BuildSessionRequest(calledName, callingName)
	if err := WriteHeader(rw, TypeSessionRequest, len(payload)); err != nil {
		return fmt.Errorf("netbios: write session request: %w", err)
	}
	if _, err := rw.Write(payload); err != nil {
		return fmt.Errorf("netbios: write session request payload: %w", err)
	}

	packetType, length, err := ReadHeader(rw)
	if err != nil {
		return err
	}
	switch packetType {
	case TypePositiveResp:
		return nil
	case TypeNegativeResp:
		if length > 0 {
			errCode := make([]byte, length)
			_, _ = io.ReadFull(rw, errCode)
		}
		return ErrSessionRejected
	default:
		return fmt.Errorf("netbios: unexpected session response type 0x%02X", packetType)
	}
}

// WriteMessage wraps payload in a Session Message packet and writes it.
func WriteMessage(w io.Writer, payload []byte) error {
	if err := WriteHeader(w, TypeSessionMessage, len(payload)); err != nil {
		return fmt.Errorf("netbios: write message header: %w", err)
	}
	_, err := w.Write(payload)
	if err != nil {
		err = fmt.Errorf("netbios: write message payload: %w", err)
	}
	return err
}

// ReadMessage reads one Session Message packet's payload.
func ReadMessage(r io.Reader) ([]byte, error) {
	packetType, length, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if packetType != TypeSessionMessage {
		return nil, fmt.Errorf("netbios: expected session message (0x00), got 0x%02X", packetType)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("netbios: read message payload: %w", err)
	}
	return buf, nil
}
