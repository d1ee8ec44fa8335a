package wire

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/vclock"
)

// Manifest field numbers for the per-entry protobuf-wire-format message.
// There is no .proto source: these are hand-assigned tags encoded and
// decoded directly through protowire's low-level append/consume
// primitives, since the message shape is small, fixed, and internal to
// this module.
const (
	fieldPath           = 1
	fieldType           = 2
	fieldLength         = 3
	fieldMtimeMS        = 4
	fieldSHA1           = 5
	fieldStatus         = 6
	fieldUSN            = 7
	fieldClockJSON      = 8
	fieldWinAttr        = 9
	fieldUnixAttr       = 10
	fieldAndroidAttr    = 11
	fieldAlias          = 12
	fieldModifierDevice = 13
	fieldTimestamp      = 14
)

// ManifestPath is the well-known in-archive path reserved for the
// manifest record that precedes the data entries it describes.
const ManifestPath = "/.zisync.meta"

// EncodeManifest writes localTreeUUID/remoteTreeUUID followed by one
// length-delimited record per entry to w. Each record's length is a
// protobuf varint; each record's payload is itself a protobuf-wire-format
// message built from entry's fields.
func EncodeManifest(w io.Writer, localTreeUUID, remoteTreeUUID string, entries []*metastore.FileMeta) error {
	header := appendManifestHeader(nil, localTreeUUID, remoteTreeUUID, int64(len(entries)))
	if err := writeDelimited(w, header); err != nil {
		return fmt.Errorf("wire: write manifest header: %w", err)
	}

	for _, e := range entries {
		payload, err := encodeManifestEntry(e)
		if err != nil {
			return fmt.Errorf("wire: encode entry %s: %w", e.Path, err)
		}
		if err := writeDelimited(w, payload); err != nil {
			return fmt.Errorf("wire: write entry %s: %w", e.Path, err)
		}
	}
	return nil
}

// DecodeManifest reads a manifest previously written by EncodeManifest.
func DecodeManifest(r io.Reader) (localTreeUUID, remoteTreeUUID string, entries []*metastore.FileMeta, err error) {
	br := bufio.NewReader(r)

	header, err := readDelimited(br)
	if err != nil {
		return "", "", nil, fmt.Errorf("wire: read manifest header: %w", err)
	}
	localTreeUUID, remoteTreeUUID, count, err := decodeManifestHeader(header)
	if err != nil {
		return "", "", nil, fmt.Errorf("wire: decode manifest header: %w", err)
	}

	entries = make([]*metastore.FileMeta, 0, count)
	for i := int64(0); i < count; i++ {
		payload, readErr := readDelimited(br)
		if readErr != nil {
			return "", "", nil, fmt.Errorf("wire: read entry %d: %w", i, readErr)
		}
		entry, decodeErr := decodeManifestEntry(payload)
		if decodeErr != nil {
			return "", "", nil, fmt.Errorf("wire: decode entry %d: %w", i, decodeErr)
		}
		entries = append(entries, entry)
	}
	return localTreeUUID, remoteTreeUUID, entries, nil
}

func appendManifestHeader(b []byte, localTreeUUID, remoteTreeUUID string, count int64) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, localTreeUUID)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, remoteTreeUUID)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(count))
	return b
}

func decodeManifestHeader(b []byte) (localTreeUUID, remoteTreeUUID string, count int64, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", "", 0, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return "", "", 0, protowire.ParseError(m)
			}
			localTreeUUID = v
			b = b[m:]
		case 2:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return "", "", 0, protowire.ParseError(m)
			}
			remoteTreeUUID = v
			b = b[m:]
		case 3:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return "", "", 0, protowire.ParseError(m)
			}
			count = int64(v)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return "", "", 0, protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return localTreeUUID, remoteTreeUUID, count, nil
}

func encodeManifestEntry(m *metastore.FileMeta) ([]byte, error) {
	clockJSON, err := json.Marshal(m.Clock)
	if err != nil {
		return nil, fmt.Errorf("encode clock: %w", err)
	}

	entryType := uint64(0)
	if m.Type == metastore.FileTypeDirectory {
		entryType = 1
	}
	status := uint64(0)
	if m.Status == metastore.StatusRemoved {
		status = 1
	}

	var b []byte
	b = protowire.AppendTag(b, fieldPath, protowire.BytesType)
	b = protowire.AppendString(b, m.Path)
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, entryType)
	b = protowire.AppendTag(b, fieldLength, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Length))
	b = protowire.AppendTag(b, fieldMtimeMS, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.MtimeMS))
	b = protowire.AppendTag(b, fieldSHA1, protowire.BytesType)
	b = protowire.AppendString(b, m.SHA1)
	b = protowire.AppendTag(b, fieldStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, status)
	b = protowire.AppendTag(b, fieldUSN, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.USN))
	b = protowire.AppendTag(b, fieldClockJSON, protowire.BytesType)
	b = protowire.AppendBytes(b, clockJSON)
	b = protowire.AppendTag(b, fieldWinAttr, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.WinAttr))
	b = protowire.AppendTag(b, fieldUnixAttr, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.UnixAttr))
	b = protowire.AppendTag(b, fieldAndroidAttr, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.AndroidAttr))
	b = protowire.AppendTag(b, fieldAlias, protowire.BytesType)
	b = protowire.AppendString(b, m.Alias)
	b = protowire.AppendTag(b, fieldModifierDevice, protowire.BytesType)
	b = protowire.AppendString(b, m.ModifierDevice)
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Timestamp))
	return b, nil
}

func decodeManifestEntry(b []byte) (*metastore.FileMeta, error) {
	m := &metastore.FileMeta{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fieldPath:
			v, m2 := protowire.ConsumeString(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			m.Path = v
			b = b[m2:]
		case fieldType:
			v, m2 := protowire.ConsumeVarint(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			if v == 1 {
				m.Type = metastore.FileTypeDirectory
			} else {
				m.Type = metastore.FileTypeRegular
			}
			b = b[m2:]
		case fieldLength:
			v, m2 := protowire.ConsumeVarint(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			m.Length = int64(v)
			b = b[m2:]
		case fieldMtimeMS:
			v, m2 := protowire.ConsumeVarint(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			m.MtimeMS = int64(v)
			b = b[m2:]
		case fieldSHA1:
			v, m2 := protowire.ConsumeString(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			m.SHA1 = v
			b = b[m2:]
		case fieldStatus:
			v, m2 := protowire.ConsumeVarint(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			if v == 1 {
				m.Status = metastore.StatusRemoved
			} else {
				m.Status = metastore.StatusNormal
			}
			b = b[m2:]
		case fieldUSN:
			v, m2 := protowire.ConsumeVarint(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			m.USN = int64(v)
			b = b[m2:]
		case fieldClockJSON:
			v, m2 := protowire.ConsumeBytes(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			var clock vclock.Clock
			if err := json.Unmarshal(v, &clock); err != nil {
				return nil, fmt.Errorf("decode clock: %w", err)
			}
			m.Clock = clock
			b = b[m2:]
		case fieldWinAttr:
			v, m2 := protowire.ConsumeVarint(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			m.WinAttr = metastore.WinAttr(v)
			b = b[m2:]
		case fieldUnixAttr:
			v, m2 := protowire.ConsumeVarint(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			m.UnixAttr = metastore.UnixAttr(v)
			b = b[m2:]
		case fieldAndroidAttr:
			v, m2 := protowire.ConsumeVarint(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			m.AndroidAttr = metastore.AndroidAttr(v)
			b = b[m2:]
		case fieldAlias:
			v, m2 := protowire.ConsumeString(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			m.Alias = v
			b = b[m2:]
		case fieldModifierDevice:
			v, m2 := protowire.ConsumeString(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			m.ModifierDevice = v
			b = b[m2:]
		case fieldTimestamp:
			v, m2 := protowire.ConsumeVarint(b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			m.Timestamp = int64(v)
			b = b[m2:]
		default:
			m2 := protowire.ConsumeFieldValue(num, typ, b)
			if m2 < 0 {
				return nil, protowire.ParseError(m2)
			}
			b = b[m2:]
		}
	}
	return m, nil
}

func writeDelimited(w io.Writer, payload []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(payload)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readDelimited(r *bufio.Reader) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
