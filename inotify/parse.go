package inotify

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Each record read from an inotify descriptor is a fixed-size header
// (struct inotify_event without its flexible name member)
// followed by nameLen bytes holding a NUL-terminated name,
// padded with further NULs to an alignment boundary.
const headerSize = unix.SizeofInotifyEvent

type record struct {
	wd     int32
	mask   Mask
	cookie uint32
	name   string
}

// ErrTruncated means a buffer ended in the middle of a record.
// The kernel never splits records across reads,
// so this indicates corruption.
var ErrTruncated = errors.New("truncated inotify record")

func parseRecords(buf []byte) ([]record, error) {
	var records []record
	for pos := 0; pos < len(buf); {
		if len(buf)-pos < headerSize {
			return records, errors.Wrapf(ErrTruncated, "header at offset %d", pos)
		}
		hdr := buf[pos : pos+headerSize]
		r := record{
			wd:     int32(binary.NativeEndian.Uint32(hdr[0:4])),
			mask:   Mask(binary.NativeEndian.Uint32(hdr[4:8])),
			cookie: binary.NativeEndian.Uint32(hdr[8:12]),
		}
		nameLen := int(binary.NativeEndian.Uint32(hdr[12:16]))
		pos += headerSize

		if len(buf)-pos < nameLen {
			return records, errors.Wrapf(ErrTruncated, "name of %d bytes at offset %d", nameLen, pos)
		}
		raw := buf[pos : pos+nameLen]
		pos += nameLen

		// Padding NULs are not part of the name.
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
		r.name = string(raw)

		records = append(records, r)
	}
	return records, nil
}
