package memory

import (
	"testing"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuffer(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
		wantErr   error
	}{
		{name: "valid payload", plaintext: []byte("correct horse battery staple")},
		{name: "single byte", plaintext: []byte{0x42}},
		{name: "empty payload rejected", plaintext: []byte{}, wantErr: wardenerr.ErrZeroSizedNotAllowed},
		{name: "nil payload rejected", plaintext: nil, wantErr: wardenerr.ErrZeroSizedNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := NewBuffer(tt.plaintext)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer buf.Zeroize()

			assert.Equal(t, len(tt.plaintext), buf.Size())

			var seen []byte
			require.NoError(t, buf.View(func(b []byte) error {
				seen = append(seen, b...)
				return nil
			}))
			assert.Equal(t, tt.plaintext, seen)
		})
	}
}

func TestBufferUpdate(t *testing.T) {
	buf, err := NewBuffer([]byte("first"))
	require.NoError(t, err)
	defer buf.Zeroize()

	require.NoError(t, buf.Update([]byte("a much longer second payload")))
	assert.Equal(t, len("a much longer second payload"), buf.Size())

	var seen []byte
	require.NoError(t, buf.View(func(b []byte) error {
		seen = append(seen, b...)
		return nil
	}))
	assert.Equal(t, []byte("a much longer second payload"), seen)
}

func TestBufferZeroizeIdempotent(t *testing.T) {
	buf, err := NewBuffer([]byte("secret"))
	require.NoError(t, err)

	require.NoError(t, buf.Zeroize())
	require.NoError(t, buf.Zeroize())

	err = buf.View(func([]byte) error { return nil })
	assert.ErrorIs(t, err, wardenerr.ErrFileSystemError)
}
