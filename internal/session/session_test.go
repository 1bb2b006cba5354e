package session

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaloky/Fast-chat-app/internal/domain"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := OpenWith("session", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadClear(t *testing.T) {
	s := openMem(t)

	_, err := s.Load()
	require.ErrorIs(t, err, ErrNoSession)

	u := &domain.User{ID: "u1", Username: "ann", UserCode: "0000000001", PasswordHash: "secret-hash"}
	require.NoError(t, s.Save(Saved{User: u, Token: "tok"}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, "ann", got.User.Username)
	assert.Empty(t, got.User.PasswordHash, "password hashes never reach disk")

	require.NoError(t, s.Clear())
	_, err = s.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestOpenOnDisk(t *testing.T) {
	s, err := Open(t.TempDir() + "/session")
	require.NoError(t, err)
	require.NoError(t, s.Save(Saved{User: &domain.User{ID: "u1"}, Token: "tok"}))
	require.NoError(t, s.Close())
}
