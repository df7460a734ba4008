package blob

import (
	"testing"
	"time"

	"validation-service/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	payload := []byte(`{"event":"block_place","x":10}`)
	ref, err := s.Put(payload)
	require.NoError(t, err)
	assert.Equal(t, Ref(payload), ref)

	got, err := s.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestPutIsIdempotent(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ref1, err := s.Put([]byte("proof"))
	require.NoError(t, err)
	ref2, err := s.Put([]byte("proof"))
	require.NoError(t, err)
	assert.Equal(t, ref1, ref2)
}

func TestGetUnknownRef(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get("deadbeef")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPinUnknownRef(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	err = s.Pin("deadbeef")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSweepKeepsPinned(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	pinned, err := s.Put([]byte("keep me"))
	require.NoError(t, err)
	require.NoError(t, s.Pin(pinned))

	loose, err := s.Put([]byte("drop me"))
	require.NoError(t, err)

	// maxAge of zero makes every unpinned blob eligible.
	removed, err := s.Sweep(0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.Get(pinned)
	assert.NoError(t, err)
	_, err = s.Get(loose)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSweepSparesRecent(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ref, err := s.Put([]byte("fresh"))
	require.NoError(t, err)

	removed, err := s.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = s.Get(ref)
	assert.NoError(t, err)
}
