package docstore

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// The persisted document is protobuf wire format for:
//
//	message Document {
//	  map<string, string> entries = 1;
//	  int64 version = 2;
//	  string commit_id = 3;
//	}
//
// Field 1 matches the encrypted_data map of files written by the Android
// CryptoVault library, so those files decode here (with version 0).
const (
	fieldEntries  protowire.Number = 1
	fieldVersion  protowire.Number = 2
	fieldCommitID protowire.Number = 3

	entryKey   protowire.Number = 1
	entryValue protowire.Number = 2
)

// MarshalDocument encodes a snapshot. Entries are written in key order so the
// same snapshot always produces the same bytes.
func MarshalDocument(s Snapshot) []byte {
	var b []byte
	for _, k := range s.Entries.Keys() {
		var e []byte
		e = protowire.AppendTag(e, entryKey, protowire.BytesType)
		e = protowire.AppendString(e, k)
		e = protowire.AppendTag(e, entryValue, protowire.BytesType)
		e = protowire.AppendString(e, s.Entries[k])

		b = protowire.AppendTag(b, fieldEntries, protowire.BytesType)
		b = protowire.AppendBytes(b, e)
	}
	if s.Version != 0 {
		b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(s.Version))
	}
	if s.CommitID != "" {
		b = protowire.AppendTag(b, fieldCommitID, protowire.BytesType)
		b = protowire.AppendString(b, s.CommitID)
	}
	return b
}

// UnmarshalDocument decodes a snapshot written by MarshalDocument.
// Unknown fields are skipped. An empty input is the empty document.
func UnmarshalDocument(b []byte) (Snapshot, error) {
	s := Snapshot{Entries: Entries{}}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Snapshot{}, fmt.Errorf("unmarshal document: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldEntries && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Snapshot{}, fmt.Errorf("unmarshal document: entry: %w", protowire.ParseError(n))
			}
			k, val, err := unmarshalEntry(v)
			if err != nil {
				return Snapshot{}, err
			}
			s.Entries[k] = val
			b = b[n:]

		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Snapshot{}, fmt.Errorf("unmarshal document: version: %w", protowire.ParseError(n))
			}
			s.Version = int64(v)
			b = b[n:]

		case num == fieldCommitID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Snapshot{}, fmt.Errorf("unmarshal document: commit id: %w", protowire.ParseError(n))
			}
			s.CommitID = v
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Snapshot{}, fmt.Errorf("unmarshal document: field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return s, nil
}

// unmarshalEntry decodes one map entry message. Missing fields default to "".
func unmarshalEntry(b []byte) (key, value string, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", "", fmt.Errorf("unmarshal entry: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if (num == entryKey || num == entryValue) && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return "", "", fmt.Errorf("unmarshal entry: %w", protowire.ParseError(n))
			}
			if num == entryKey {
				key = v
			} else {
				value = v
			}
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return "", "", fmt.Errorf("unmarshal entry: field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return key, value, nil
}
