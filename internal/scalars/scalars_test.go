package scalars

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	word := Encode(7, 3, 2)
	assert.Equal(t, uint32(7), Method(word))
	assert.Equal(t, uint8(3), Inbufs(word))
	assert.Equal(t, uint8(2), Outbufs(word))
}

func TestDescriptorEffectiveCounts(t *testing.T) {
	// no scalars and no buffers declared: neither synthesized first buffer is
	// needed, so both effective counts are zero.
	d := Descriptor{MethodID: 2}
	assert.False(t, d.NeedsFirstInbuf())
	assert.False(t, d.NeedsFirstOutbuf())
	assert.Equal(t, uint8(0), d.EffectiveInbufs())
	assert.Equal(t, uint8(0), d.EffectiveOutbufs())

	stat := Descriptor{MethodID: 31, InBuffers: 1, OutScalars: 13}
	assert.True(t, stat.NeedsFirstInbuf())
	assert.True(t, stat.NeedsFirstOutbuf())
	assert.Equal(t, uint8(2), stat.EffectiveInbufs())
	assert.Equal(t, uint8(1), stat.EffectiveOutbufs())
}

func TestScalarsWordMatchesBitLayout(t *testing.T) {
	// REMOTE_SCALARS_MAKEX(0, 31, 2, 1, 0, 0) == (31<<24)|(2<<16)|(1<<8)
	word := Encode(31, 2, 1)
	assert.Equal(t, uint32(31<<24|2<<16|1<<8), word)
}
