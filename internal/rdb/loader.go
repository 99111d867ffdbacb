// Package rdb reads on-disk snapshots into the store at startup and
// supplies the canonical empty snapshot the primary serves during a
// full resync.
package rdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/zkv-server/internal/store"
)

// Snapshot opcodes.
const (
	opMeta     = 0xFA
	opSelectDB = 0xFE
	opResizeDB = 0xFB
	opExpireS  = 0xFD
	opExpireMS = 0xFC
	opEOF      = 0xFF

	typeString = 0x00
)

var errBadMagic = errors.New("rdb: bad magic, not a snapshot file")

// LoadFile reads the snapshot at path into st. A missing file is not
// an error; the server just starts empty.
func LoadFile(log *zap.Logger, path string, st *store.Store) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no snapshot file, starting empty", zap.String("path", path))
			return nil
		}
		return err
	}
	defer f.Close()
	return Load(log, bufio.NewReader(f), st)
}

// LoadBytes decodes an in-memory snapshot, as received over a full
// resync.
func LoadBytes(log *zap.Logger, data []byte, st *store.Store) error {
	return Load(log, bufio.NewReader(bytes.NewReader(data)), st)
}

// Load decodes a snapshot stream into st. Entries whose expiry already
// passed are skipped.
func Load(log *zap.Logger, r *bufio.Reader, st *store.Store) error {
	log = log.Named("rdb")

	header := make([]byte, 9)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("rdb: read header: %w", err)
	}
	if !bytes.Equal(header[:5], []byte("REDIS")) {
		return errBadMagic
	}
	log.Debug("snapshot header", zap.String("version", string(header[5:])))

	d := &decoder{r: r}
	now := time.Now().UnixMilli()
	loaded, skipped := 0, 0

	// Expiry opcodes annotate the record that follows them.
	var expiresAt int64

	for {
		op, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("rdb: read opcode: %w", err)
		}

		switch op {
		case opEOF:
			log.Info("snapshot loaded", zap.Int("keys", loaded), zap.Int("expired", skipped))
			return nil

		case opMeta:
			if _, err := d.readString(); err != nil {
				return err
			}
			if _, err := d.readString(); err != nil {
				return err
			}

		case opSelectDB:
			if _, err := d.readLength(); err != nil {
				return err
			}

		case opResizeDB:
			if _, err := d.readLength(); err != nil {
				return err
			}
			if _, err := d.readLength(); err != nil {
				return err
			}

		case opExpireS:
			var secs uint32
			if err := binary.Read(r, binary.LittleEndian, &secs); err != nil {
				return fmt.Errorf("rdb: read expiry seconds: %w", err)
			}
			expiresAt = int64(secs) * 1000

		case opExpireMS:
			var ms uint64
			if err := binary.Read(r, binary.LittleEndian, &ms); err != nil {
				return fmt.Errorf("rdb: read expiry ms: %w", err)
			}
			expiresAt = int64(ms)

		case typeString:
			key, err := d.readString()
			if err != nil {
				return err
			}
			value, err := d.readString()
			if err != nil {
				return err
			}
			if expiresAt > 0 && expiresAt <= now {
				skipped++
			} else {
				st.Restore(key, value, expiresAt)
				loaded++
			}
			expiresAt = 0

		default:
			return fmt.Errorf("rdb: unsupported value type 0x%02X", op)
		}
	}
}

type decoder struct {
	r *bufio.Reader
}

// readLength decodes the standard two-bit-prefixed length form. The
// special (11) integer encodings never appear where a plain length is
// expected.
func (d *decoder) readLength() (uint64, error) {
	first, err := d.r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("rdb: read length: %w", err)
	}
	switch first >> 6 {
	case 0:
		return uint64(first & 0x3F), nil
	case 1:
		next, err := d.r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("rdb: read length: %w", err)
		}
		return uint64(first&0x3F)<<8 | uint64(next), nil
	case 2:
		var n uint32
		if err := binary.Read(d.r, binary.BigEndian, &n); err != nil {
			return 0, fmt.Errorf("rdb: read length: %w", err)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("rdb: special length encoding 0x%02X where plain length expected", first)
	}
}

// readString decodes a length-prefixed string, including the special
// integer forms (8/16/32-bit little-endian, stringified).
func (d *decoder) readString() (string, error) {
	first, err := d.r.ReadByte()
	if err != nil {
		return "", fmt.Errorf("rdb: read string: %w", err)
	}

	if first>>6 == 3 {
		switch first & 0x3F {
		case 0:
			b, err := d.r.ReadByte()
			if err != nil {
				return "", fmt.Errorf("rdb: read int8 string: %w", err)
			}
			return strconv.FormatInt(int64(int8(b)), 10), nil
		case 1:
			var n int16
			if err := binary.Read(d.r, binary.LittleEndian, &n); err != nil {
				return "", fmt.Errorf("rdb: read int16 string: %w", err)
			}
			return strconv.FormatInt(int64(n), 10), nil
		case 2:
			var n int32
			if err := binary.Read(d.r, binary.LittleEndian, &n); err != nil {
				return "", fmt.Errorf("rdb: read int32 string: %w", err)
			}
			return strconv.FormatInt(int64(n), 10), nil
		default:
			return "", fmt.Errorf("rdb: unsupported string encoding 0x%02X", first)
		}
	}

	if err := d.r.UnreadByte(); err != nil {
		return "", err
	}
	n, err := d.readLength()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", fmt.Errorf("rdb: read string payload: %w", err)
	}
	return string(buf), nil
}
