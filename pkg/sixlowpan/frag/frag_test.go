package frag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/buffer"
)

func TestFrag1RoundTrip(t *testing.T) {
	f := Frag1{DatagramSize: 240, DatagramTag: 0x1234}
	w := buffer.NewWriter(f.SerializedSize())
	require.NoError(t, f.Serialize(w))
	assert.Equal(t, []byte{0xC0, 0xF0, 0x12, 0x34}, w.Bytes())

	r := buffer.New(w.Bytes())
	got, err := DeserializeFrag1(r)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestFragNRoundTrip(t *testing.T) {
	f := FragN{DatagramSize: 240, DatagramTag: 0x1234, DatagramOffset: 12}
	w := buffer.NewWriter(f.SerializedSize())
	require.NoError(t, f.Serialize(w))
	assert.Equal(t, []byte{0xE0, 0xF0, 0x12, 0x34, 12}, w.Bytes())

	r := buffer.New(w.Bytes())
	got, err := DeserializeFragN(r)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestDatagramSizeMaskedTo11Bits(t *testing.T) {
	// top 5 bits beyond the 11-bit size field must be masked away on read.
	r := buffer.New([]byte{0xCF, 0xFF, 0x00, 0x01})
	got, err := DeserializeFrag1(r)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x07FF), got.DatagramSize)
}

func TestSerializeRejectsOversizeDatagram(t *testing.T) {
	f := Frag1{DatagramSize: 0x0800, DatagramTag: 1}
	w := buffer.NewWriter(f.SerializedSize())
	assert.Error(t, f.Serialize(w))
}
