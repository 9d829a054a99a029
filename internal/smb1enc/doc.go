// Package smb1enc provides binary encoding and decoding utilities for the
// SMB1 (CIFS, NT LM 0.12 dialect) wire protocol.
//
// The package uses an error-accumulation pattern inspired by bufio.Scanner:
// callers perform multiple read/write operations and check for errors once at
// the end, rather than after every individual operation.
//
// Reader wraps a byte slice with a position cursor and accumulates the first
// error. Once an error occurs, all subsequent reads become no-ops returning
// zero values. This eliminates repetitive error checking:
//
//	r := smb1enc.NewReader(data)
//	wordCount := r.ReadUint8()
//	andXCommand := r.ReadUint8()
//	fid := r.ReadUint16()
//	if r.Err() != nil {
//	    return r.Err()  // handles any short read in the sequence
//	}
//
// Writer appends to a byte buffer with pre-allocated capacity. It provides
// padding and backpatching support needed for SMB1's ANDX chains and TRANS2
// parameter/data blocks, whose byte offsets are only known once the
// preceding sections have been written:
//
//	w := smb1enc.NewWriter(256)
//	w.WriteUint8(wordCount)
//	w.WriteUint16(fid)
//	w.Pad(2) // UTF-16 filenames must start on an even offset
//	return w.Bytes()
//
// All integer operations use little-endian byte order as required by the
// SMB1/CIFS wire format.
package smb1enc
