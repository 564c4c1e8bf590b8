package voice

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrameRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.25, -1.0}

	chunk := EncodeFrame(in)
	assert.Equal(t, InputMIMEType, chunk.MIMEType)

	out, err := DecodePCM(chunk.Data)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.InDelta(t, in[i], out[i], 0.001, "sample %d", i)
	}
}

func TestEncodeFrameClampsOverdrive(t *testing.T) {
	chunk := EncodeFrame([]float32{2.0, -2.0})

	out, err := DecodePCM(chunk.Data)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 1.0, out[0], 0.001)
	assert.InDelta(t, -1.0, out[1], 0.001)
}

func TestDecodePCMRejectsOddPayload(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03})

	_, err := DecodePCM(data)
	assert.Error(t, err)
}

func TestDecodePCMRejectsBadBase64(t *testing.T) {
	_, err := DecodePCM("not base64 at all!!!")
	assert.Error(t, err)
}
