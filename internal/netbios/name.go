// Package netbios implements NetBIOS-over-TCP name encoding and session
// service framing (RFC 1001/1002), the transport NetBIOS-era SMB1 rides on.
package netbios

import "strings"

// NameLength is the fixed length of a raw NetBIOS name before suffix and padding.
const NameLength = 15

// EncodedNameLength is the length of a first-level-encoded NetBIOS name: 32
// nibble-encoded bytes for the 16-byte padded name.
const EncodedNameLength = 32

// EncodeName applies NetBIOS first-level encoding to name: uppercase, pad or
// truncate to 15 characters, append the service suffix, then split each byte
// into two nibbles and map each nibble to a letter in 'A'..'P' by adding 0x41.
//
// This is the same scheme a 3DS expects for both the "called name" (the
// device's own NetBIOS name) and the "calling name" (this client's name) in
// the NetBIOS Session Request packet.
func EncodeName(name string, suffix byte) []byte {
	padded := make([]byte, NameLength+1)
	upper := strings.ToUpper(name)
	if len(upper) > NameLength {
		upper = upper[:NameLength]
	}
	copy(padded, upper)
	for i := len(upper); i < NameLength; i++ {
		padded[i] = ' '
	}
	padded[NameLength] = suffix

	encoded := make([]byte, 0, EncodedNameLength)
	for _, c := range padded {
		encoded = append(encoded, 'A'+(c>>4), 'A'+(c&0x0F))
	}
	return encoded
}
