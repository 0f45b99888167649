package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestMarshalDocument_RoundTrip(t *testing.T) {
	snap := Snapshot{
		Version:  42,
		CommitID: "0192f0c1-7d4e-7a3b-9c1d-2e3f4a5b6c7d",
		Entries: Entries{
			"token":   "c2VhbGVk",
			"":        "ZW1wdHkga2V5",
			"café":    "",
			"api/key": "YmxvYg==",
		},
	}

	got, err := UnmarshalDocument(MarshalDocument(snap))
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestMarshalDocument_Deterministic(t *testing.T) {
	a := Entries{}
	b := Entries{}
	for _, k := range []string{"z", "a", "m", "b"} {
		a[k] = k + "-value"
	}
	for _, k := range []string{"b", "m", "a", "z"} {
		b[k] = k + "-value"
	}

	assert.Equal(t, MarshalDocument(Snapshot{Entries: a}), MarshalDocument(Snapshot{Entries: b}))
}

func TestUnmarshalDocument_Empty(t *testing.T) {
	snap, err := UnmarshalDocument(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Version)
	assert.NotNil(t, snap.Entries)
	assert.Empty(t, snap.Entries)
}

// A document holding only the entries map, as written by the Android
// DataStore serializer.
func TestUnmarshalDocument_MapOnly(t *testing.T) {
	var entry []byte
	entry = protowire.AppendTag(entry, 1, protowire.BytesType)
	entry = protowire.AppendString(entry, "token")
	entry = protowire.AppendTag(entry, 2, protowire.BytesType)
	entry = protowire.AppendString(entry, "YWJjMTIz\n")

	var doc []byte
	doc = protowire.AppendTag(doc, 1, protowire.BytesType)
	doc = protowire.AppendBytes(doc, entry)

	snap, err := UnmarshalDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Version)
	assert.Equal(t, Entries{"token": "YWJjMTIz\n"}, snap.Entries)
}

func TestUnmarshalDocument_SkipsUnknownFields(t *testing.T) {
	doc := MarshalDocument(Snapshot{Version: 3, Entries: Entries{"k": "v"}})
	doc = protowire.AppendTag(doc, 99, protowire.VarintType)
	doc = protowire.AppendVarint(doc, 7)
	doc = protowire.AppendTag(doc, 100, protowire.BytesType)
	doc = protowire.AppendString(doc, "future field")

	snap, err := UnmarshalDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Version)
	assert.Equal(t, Entries{"k": "v"}, snap.Entries)
}

func TestUnmarshalDocument_MissingEntryFieldsDefault(t *testing.T) {
	var entry []byte
	entry = protowire.AppendTag(entry, 2, protowire.BytesType)
	entry = protowire.AppendString(entry, "only-value")

	var doc []byte
	doc = protowire.AppendTag(doc, 1, protowire.BytesType)
	doc = protowire.AppendBytes(doc, entry)

	snap, err := UnmarshalDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, Entries{"": "only-value"}, snap.Entries)
}

func TestUnmarshalDocument_Truncated(t *testing.T) {
	doc := MarshalDocument(Snapshot{Version: 1, Entries: Entries{"token": "c2VhbGVkLWJsb2I="}})

	// Drop the version varint, leaving a dangling tag.
	_, err := UnmarshalDocument(doc[:len(doc)-1])
	assert.Error(t, err)

	// Cut inside the entry message.
	_, err = UnmarshalDocument(doc[:5])
	assert.Error(t, err)

	// Length prefix larger than the remaining input.
	_, err = UnmarshalDocument([]byte{0x0a, 0x10, 0x0a})
	assert.Error(t, err)
}
