package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderPairs_ValueScanRoundTrip(t *testing.T) {
	original := HeaderPairs{
		{Name: "Set-Cookie", Value: []byte("session=1")},
		{Name: "Set-Cookie", Value: []byte("flash=2")},
		{Name: "X-Raw", Value: []byte{0x00, 0x9c, 0xff}},
	}

	raw, err := original.Value()
	require.NoError(t, err)

	var decoded HeaderPairs
	require.NoError(t, decoded.Scan(raw))
	assert.Equal(t, original, decoded)
}

func TestHeaderPairs_ScanString(t *testing.T) {
	var decoded HeaderPairs
	require.NoError(t, decoded.Scan(`[{"name":"X-Msg","value":"U2VudA=="}]`))
	require.Len(t, decoded, 1)
	assert.Equal(t, "X-Msg", decoded[0].Name)
	assert.Equal(t, []byte("Sent"), decoded[0].Value)
}

func TestHeaderPairs_ScanNil(t *testing.T) {
	var decoded HeaderPairs
	require.NoError(t, decoded.Scan(nil))
	assert.Empty(t, decoded)
}

func TestHeaderPairs_ScanUnsupportedType(t *testing.T) {
	var decoded HeaderPairs
	require.Error(t, decoded.Scan(42))
}

func TestHeaderPairs_NilValueEncodesEmptyArray(t *testing.T) {
	var h HeaderPairs
	raw, err := h.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw.([]byte)))
}

func TestIdempotencyRecord_Complete(t *testing.T) {
	rec := IdempotencyRecord{UserID: "u1", IdempotencyKey: "k1"}
	assert.False(t, rec.Complete())

	status := int16(200)
	rec.ResponseStatusCode = &status
	assert.True(t, rec.Complete())
}
