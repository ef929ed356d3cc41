package app

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testToken(access string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTokenStoreMissingFile(t *testing.T) {
	store := &TokenStore{Path: filepath.Join(t.TempDir(), "token.json")}
	assert.False(t, store.Exists())

	_, err := store.Load()
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestTokenStorePlain(t *testing.T) {
	store := &TokenStore{Path: filepath.Join(t.TempDir(), "token.json")}

	require.NoError(t, store.Save(testToken("access-1")))
	assert.True(t, store.Exists())

	info, err := os.Stat(store.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(TokenFilePermission), info.Mode().Perm())

	data, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "access-1")

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.True(t, tok.Expiry.Equal(testToken("").Expiry))
}

func TestTokenStoreKeepsBackup(t *testing.T) {
	store := &TokenStore{Path: filepath.Join(t.TempDir(), "token.json")}

	require.NoError(t, store.Save(testToken("access-1")))
	_, err := os.Stat(store.Path + BackupSuffix)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "first save has nothing to back up")

	require.NoError(t, store.Save(testToken("access-2")))

	backup := &TokenStore{Path: store.Path + BackupSuffix}
	old, err := backup.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-1", old.AccessToken)

	current, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-2", current.AccessToken)

	_, err = os.Stat(store.Path + TmpSuffix)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "temp file left behind")
}

func TestTokenStoreSealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := &TokenStore{Path: path, Passphrase: "hunter2"}

	require.NoError(t, store.Save(testToken("access-1")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, IsSealed(data))
	assert.NotContains(t, string(data), "access-1")

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)

	_, err = (&TokenStore{Path: path}).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvTokenPassphrase)
	assert.False(t, errors.Is(err, fs.ErrNotExist))

	_, err = (&TokenStore{Path: path, Passphrase: "wrong"}).Load()
	assert.Error(t, err)
}

func TestTokenStorePlainFileWithPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, (&TokenStore{Path: path}).Save(testToken("access-1")))

	// readable now, sealed on the next save
	store := &TokenStore{Path: path, Passphrase: "hunter2"}
	tok, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, store.Save(tok))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, IsSealed(data))
}

func TestTokenStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := (&TokenStore{Path: path}).Load()
	require.Error(t, err)
	assert.False(t, errors.Is(err, fs.ErrNotExist))
}
