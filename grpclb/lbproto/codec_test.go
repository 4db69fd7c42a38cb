package lbproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestRawCodecRoundTrip(t *testing.T) {
	c := rawCodec{}
	assert.Equal(t, codecName, c.Name())

	want := &RawFrame{B: []byte("some wire bytes")}
	data, err := c.Marshal(want)
	require.NoError(t, err)
	assert.Equal(t, want.B, data)

	var got RawFrame
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, want.B, got.B)
}

func TestRawCodecWrongType(t *testing.T) {
	c := rawCodec{}
	_, err := c.Marshal("not a frame")
	assert.Error(t, err)

	err = c.Unmarshal([]byte("x"), &struct{}{})
	assert.Error(t, err)
}

func TestRawCodecRegistered(t *testing.T) {
	assert.NotNil(t, encoding.GetCodec(codecName))
}
