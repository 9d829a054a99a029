package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the SMB1 client, the
// discovery engine, and the WebDAV bridge. Use these keys consistently so
// log lines can be grepped/aggregated regardless of which layer emitted them.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Protocol & operation
	KeyProtocol  = "protocol"  // smb1, netbios, webdav, wsd
	KeyProcedure = "procedure" // NEGOTIATE, READ, MKCOL, ...
	KeyStatus    = "status"    // NT status or HTTP status
	KeyStatusMsg = "status_msg"

	// Paths
	KeyPath       = "path"
	KeyParentPath = "parent_path"
	KeyOldPath    = "old_path"
	KeyNewPath    = "new_path"
	KeySize       = "size"

	// I/O
	KeyOffset       = "offset"
	KeyCount        = "count"
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"
	KeyEOF          = "eof"

	// Client / connection identification
	KeyClientIP     = "client_ip"
	KeySessionID    = "session_id"
	KeyConnectionID = "connection_id"
	KeyRequestID    = "request_id"
	KeyMID          = "mid"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"

	// Directory listing
	KeyEntries    = "entries"
	KeyPattern    = "pattern"
	KeyMaxEntries = "max_entries"
)

// TraceID returns a slog.Attr for an OpenTelemetry trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for an OpenTelemetry span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Protocol returns a slog.Attr for the protocol layer emitting the log line.
func Protocol(proto string) slog.Attr { return slog.String(KeyProtocol, proto) }

// Procedure returns a slog.Attr for the operation/command name.
func Procedure(name string) slog.Attr { return slog.String(KeyProcedure, name) }

// Status returns a slog.Attr for a numeric status code (NT status or HTTP status).
func Status(code int) slog.Attr { return slog.Int(KeyStatus, code) }

// StatusHex returns a slog.Attr for a status code rendered in hex, matching
// how NT status codes are surfaced in operation errors.
func StatusHex(code uint32) slog.Attr { return slog.String(KeyStatusMsg, fmt.Sprintf("0x%08X", code)) }

// Path returns a slog.Attr for a file or directory path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// ParentPath returns a slog.Attr for a parent directory path.
func ParentPath(p string) slog.Attr { return slog.String(KeyParentPath, p) }

// OldPath returns a slog.Attr for a rename/move source path.
func OldPath(p string) slog.Attr { return slog.String(KeyOldPath, p) }

// NewPath returns a slog.Attr for a rename/move destination path.
func NewPath(p string) slog.Attr { return slog.String(KeyNewPath, p) }

// Size returns a slog.Attr for a file size in bytes.
func Size(s uint64) slog.Attr { return slog.Uint64(KeySize, s) }

// Offset returns a slog.Attr for a read/write byte offset.
func Offset(off uint64) slog.Attr { return slog.Uint64(KeyOffset, off) }

// Count returns a slog.Attr for a requested byte count.
func Count(c uint32) slog.Attr { return slog.Any(KeyCount, c) }

// BytesRead returns a slog.Attr for bytes actually read.
func BytesRead(n int) slog.Attr { return slog.Int(KeyBytesRead, n) }

// BytesWritten returns a slog.Attr for bytes actually written.
func BytesWritten(n int) slog.Attr { return slog.Int(KeyBytesWritten, n) }

// EOF returns a slog.Attr for an end-of-file indicator.
func EOF(eof bool) slog.Attr { return slog.Bool(KeyEOF, eof) }

// ClientIP returns a slog.Attr for a WebDAV client's remote address.
func ClientIP(addr string) slog.Attr { return slog.String(KeyClientIP, addr) }

// SessionID returns a slog.Attr for the SMB1 uid/tid pairing, rendered as a string.
func SessionID(id string) slog.Attr { return slog.String(KeySessionID, id) }

// ConnectionID returns a slog.Attr identifying a TCP connection.
func ConnectionID(id string) slog.Attr { return slog.String(KeyConnectionID, id) }

// MID returns a slog.Attr for an SMB1 multiplex id.
func MID(mid uint16) slog.Attr { return slog.Any(KeyMID, mid) }

// RequestID returns a slog.Attr for a protocol-specific request id (e.g. a
// WS-Discovery MessageID).
func RequestID(id string) slog.Attr { return slog.String(KeyRequestID, id) }

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Entries returns a slog.Attr for a directory entry count.
func Entries(n int) slog.Attr { return slog.Int(KeyEntries, n) }

// Pattern returns a slog.Attr for a TRANS2 search pattern.
func Pattern(p string) slog.Attr { return slog.String(KeyPattern, p) }

// MaxEntries returns a slog.Attr for the maximum entries requested from FIND_FIRST2.
func MaxEntries(n int) slog.Attr { return slog.Int(KeyMaxEntries, n) }
