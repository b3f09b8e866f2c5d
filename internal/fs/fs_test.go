package fs

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecureFolder(t *testing.T) {
	tmpPath := path.Join(t.TempDir(), "config")

	fpath, err := CreateSecureFolder(tmpPath)
	require.NoError(t, err)
	require.Equal(t, tmpPath, fpath)

	npath, err := CreateSecureFolder(tmpPath)
	require.NoError(t, err)
	require.Equal(t, fpath, npath)

	b, err := Exists(npath)
	require.True(t, b)
	require.NoError(t, err)

	b, err = Exists(path.Join(tmpPath, "blou"))
	require.False(t, b)
	require.NoError(t, err)
}

func TestSecureFolderWrongPermission(t *testing.T) {
	tmpPath := path.Join(t.TempDir(), "open")
	require.NoError(t, os.Mkdir(tmpPath, 0755))
	require.NoError(t, os.Chmod(tmpPath, 0755))

	fpath, err := CreateSecureFolder(tmpPath)
	require.Error(t, err)
	require.Equal(t, tmpPath, fpath)

	file := path.Join(tmpPath, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))
	_, err = CreateSecureFolder(file)
	require.Error(t, err)
}

func TestSecureFile(t *testing.T) {
	tmpPath := t.TempDir()
	file := path.Join(tmpPath, "secured")

	require.NoError(t, WriteSecureFile(file, []byte("first")))
	require.NoError(t, WriteSecureFile(file, []byte("2nd")))

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Equal(t, "2nd", string(content))

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(secureFilePermission), info.Mode().Perm())

	files, err := Files(tmpPath)
	require.NoError(t, err)
	require.Equal(t, []string{file}, files)
}

func TestSecureFolderStricterPermission(t *testing.T) {
	tmpPath := path.Join(t.TempDir(), "closed")
	require.NoError(t, os.Mkdir(tmpPath, 0700))
	require.NoError(t, os.Chmod(tmpPath, 0700))

	fpath, err := CreateSecureFolder(tmpPath)
	require.NoError(t, err)
	require.Equal(t, tmpPath, fpath)
}
