package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceReadsFilesUnderRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "media", "posts", "201905"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "media", "posts", "201905", "a.PNG"), []byte("png-bytes"), 0o644))

	data, mimeType, err := NewSource(root).Read("media/posts/201905/a.PNG")
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), data)
	require.Equal(t, "image/png", mimeType)
}

func TestSourceRejectsMissingDirectoryAndEscapingPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir"), 0o755))
	source := NewSource(root)

	_, _, err := source.Read("missing.jpg")
	require.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = source.Read("dir")
	require.Error(t, err)
	require.Contains(t, err.Error(), "directory")

	_, _, err = source.Read("../outside.jpg")
	require.ErrorIs(t, err, ErrOutsideRoot)

	_, _, err = source.Read(" ")
	require.ErrorIs(t, err, ErrValidation)
}

func TestMimeTypeForDefaultsToJPEG(t *testing.T) {
	require.Equal(t, "image/jpeg", MimeTypeFor("photo.jpg"))
	require.Equal(t, "image/jpeg", MimeTypeFor("photo"))
	require.Equal(t, "image/jpeg", MimeTypeFor("photo.tiff"))
	require.Equal(t, "video/mp4", MimeTypeFor("clip.MP4"))
	require.Equal(t, "image/gif", MimeTypeFor("loop.gif"))
}

func TestLocalStoragePutAndDelete(t *testing.T) {
	root := t.TempDir()
	storage := NewLocalStorage(root)
	ctx := context.Background()

	require.NoError(t, storage.Put(ctx, "media/1/abc.jpg", []byte("jpg"), "image/jpeg"))
	stored, err := os.ReadFile(filepath.Join(root, "media", "1", "abc.jpg"))
	require.NoError(t, err)
	require.Equal(t, []byte("jpg"), stored)

	require.NoError(t, storage.Delete(ctx, "media/1/abc.jpg"))
	_, err = os.Stat(filepath.Join(root, "media", "1", "abc.jpg"))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, storage.Delete(ctx, "media/1/abc.jpg"))
	require.ErrorIs(t, storage.Put(ctx, "", []byte("x"), "image/jpeg"), ErrValidation)
	require.ErrorIs(t, storage.Put(ctx, "../escape.jpg", []byte("x"), "image/jpeg"), ErrOutsideRoot)
}

func TestS3StorageRequiresClient(t *testing.T) {
	storage := NewS3Storage(nil, "bucket")
	require.Error(t, storage.Put(context.Background(), "k", []byte("x"), "image/jpeg"))
	require.NoError(t, storage.Delete(context.Background(), "k"))

	_, err := NewS3Client(S3Config{})
	require.Error(t, err)
}
