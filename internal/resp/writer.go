package resp

import (
	"strconv"
)

// Reply formatters. Handlers build replies as raw frame bytes; byte
// replies concatenate directly, which is what EXEC relies on when it
// splices queued replies into a single array frame.

// Simple formats +<s>.
func Simple(s string) []byte {
	b := make([]byte, 0, len(s)+3)
	b = append(b, '+')
	b = append(b, s...)
	return append(b, '\r', '\n')
}

// Error formats -<msg>. The message carries its own prefix ("ERR ...",
// "WRONGTYPE ...").
func Error(msg string) []byte {
	b := make([]byte, 0, len(msg)+3)
	b = append(b, '-')
	b = append(b, msg...)
	return append(b, '\r', '\n')
}

// Integer formats :<n>.
func Integer(n int64) []byte {
	b := make([]byte, 0, 16)
	b = append(b, ':')
	b = strconv.AppendInt(b, n, 10)
	return append(b, '\r', '\n')
}

// Bulk formats $<len>CRLF<s>CRLF.
func Bulk(s string) []byte {
	b := make([]byte, 0, len(s)+16)
	b = append(b, '$')
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, '\r', '\n')
	b = append(b, s...)
	return append(b, '\r', '\n')
}

// NullBulk formats the null bulk string $-1.
func NullBulk() []byte { return []byte("$-1\r\n") }

// NullArray formats the null array *-1.
func NullArray() []byte { return []byte("*-1\r\n") }

// ArrayHeader formats *<n> without elements; callers append element
// frames after it.
func ArrayHeader(n int) []byte {
	b := make([]byte, 0, 16)
	b = append(b, '*')
	b = strconv.AppendInt(b, int64(n), 10)
	return append(b, '\r', '\n')
}

// BulkArray formats an array of bulk strings.
func BulkArray(elems ...string) []byte {
	b := ArrayHeader(len(elems))
	for _, e := range elems {
		b = append(b, Bulk(e)...)
	}
	return b
}

// Command encodes a command as an array of bulk strings, the frame
// shape clients and the replication handshake send.
func Command(args ...string) []byte {
	return BulkArray(args...)
}

// RDB frames a snapshot blob: bulk-string header, payload, no trailing
// CRLF.
func RDB(payload []byte) []byte {
	b := make([]byte, 0, len(payload)+16)
	b = append(b, '$')
	b = strconv.AppendInt(b, int64(len(payload)), 10)
	b = append(b, '\r', '\n')
	return append(b, payload...)
}
