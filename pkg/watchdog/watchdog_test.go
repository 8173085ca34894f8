package watchdog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	bytes.Buffer
	closed bool
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func TestDevice(t *testing.T) {
	rec := &recorder{}
	d := NewDevice(rec)

	require.NoError(t, d.Kick())
	require.NoError(t, d.Kick())
	require.NoError(t, d.Close())

	assert.Equal(t, []byte{0, 0, 'V'}, rec.Bytes())
	assert.True(t, rec.closed)

	assert.ErrorIs(t, d.Kick(), ErrClosed)
	assert.NoError(t, d.Close())
	assert.Equal(t, 3, rec.Len())
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchdog")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	d, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d.Kick())
	require.NoError(t, d.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 'V'}, data)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestFake(t *testing.T) {
	f := &Fake{}
	require.NoError(t, f.Kick())
	require.NoError(t, f.Kick())
	assert.Equal(t, int64(2), f.Kicks())

	require.NoError(t, f.Close())
	assert.True(t, f.Closed())
	assert.ErrorIs(t, f.Kick(), ErrClosed)
	assert.Equal(t, int64(2), f.Kicks())
}
