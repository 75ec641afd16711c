package fragmenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/buffer"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/dispatch"
	"github.com/therealutkarshpriyadarshi/network/pkg/sixlowpan/frag"
)

func fixedTag(tag uint16) TagSource {
	return TagSourceFunc(func() uint16 { return tag })
}

func TestNoFragmentationWhenUnderMTU(t *testing.T) {
	frames, err := Fragment([]byte{0x42, 0xFB, 0x40}, []byte{1, 2, 3}, 6, 102, fixedTag(0))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, dispatch.HC1, frames[0].Variant)
	assert.Equal(t, []byte{0x42, 0xFB, 0x40, 1, 2, 3}, frames[0].Bytes)
}

// TestS2FragmentationLayout reproduces the shape of scenario S2: a 240
// octet datagram, an 11-byte compressed-header prefix, MTU 102, tag 0x1234.
func TestS2FragmentationLayout(t *testing.T) {
	compressedHeaders := make([]byte, 11)
	body := make([]byte, 240-11)
	for i := range body {
		body[i] = byte(i)
	}

	frames, err := Fragment(compressedHeaders, body, 240, 102, fixedTag(0x1234))
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, dispatch.FRAG1, frames[0].Variant)
	assert.Equal(t, []byte{0xC0, 0xF0, 0x12, 0x34}, frames[0].Bytes[:frag.Frag1Size])
	firstPayload := frames[0].Bytes[frag.Frag1Size+len(compressedHeaders):]
	assert.Equal(t, 80, len(firstPayload), "(102 - 4 - 11) &^ 7")

	assert.Equal(t, dispatch.FRAGN, frames[1].Variant)
	f2, err := frag.DeserializeFragN(buffer.New(frames[1].Bytes))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), f2.DatagramTag)
	assert.Equal(t, uint8(11), f2.DatagramOffset, "(80 + 11) >> 3")
	assert.Equal(t, 96, len(frames[1].Bytes)-frag.FragNSize)

	assert.Equal(t, dispatch.FRAGN, frames[2].Variant)
	f3, err := frag.DeserializeFragN(buffer.New(frames[2].Bytes))
	require.NoError(t, err)
	assert.Equal(t, uint8(23), f3.DatagramOffset, "11 + (96 >> 3)")
	assert.Equal(t, 53, len(frames[2].Bytes)-frag.FragNSize)

	reconstructed := append(append([]byte{}, firstPayload...), frames[1].Bytes[frag.FragNSize:]...)
	reconstructed = append(reconstructed, frames[2].Bytes[frag.FragNSize:]...)
	assert.Equal(t, body, reconstructed)
}

func TestHeadersExceedMTUError(t *testing.T) {
	compressedHeaders := make([]byte, 100)
	_, err := Fragment(compressedHeaders, make([]byte, 50), 150, 102, fixedTag(0))
	assert.ErrorIs(t, err, ErrHeadersExceedMTU)
}
