package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_ListFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "raccoon")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested.png"), 0o755))
	for _, name := range []string{"b.JPG", "a.png", "notes.txt", "c.webp", "d.jpeg", "e.gif", "README"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}

	store, err := NewLocal(root)
	require.NoError(t, err)

	names, err := store.List(context.Background(), "raccoon")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.JPG", "c.webp", "d.jpeg", "e.gif"}, names)

	data, err := store.Read(context.Background(), "raccoon", "a.png")
	require.NoError(t, err)
	assert.Equal(t, "a.png", string(data))
}

func TestLocal_MissingDirectoryIsEmpty(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	names, err := store.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestNewLocal_RejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))

	_, err := NewLocal(f)
	assert.Error(t, err)

	_, err = NewLocal("")
	assert.Error(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "ftp"})
	assert.Error(t, err)
}

func TestIsImage(t *testing.T) {
	tests := map[string]bool{
		"a.png":      true,
		"a.PNG":      true,
		"a.jpeg":     true,
		"a.tar.gz":   false,
		"noext":      false,
		"photo.webp": true,
	}
	for name, want := range tests {
		if got := IsImage(name); got != want {
			t.Errorf("IsImage(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestS3DirKey(t *testing.T) {
	tests := []struct {
		prefix, dir, want string
	}{
		{"", "raccoon", "raccoon/"},
		{"images", "raccoon", "images/raccoon/"},
		{"images", "www.example.com", "images/www.example.com/"},
	}
	for _, tt := range tests {
		s := &S3{prefix: tt.prefix}
		if got := s.dirKey(tt.dir); got != tt.want {
			t.Errorf("dirKey(%q, %q) = %q, want %q", tt.prefix, tt.dir, got, tt.want)
		}
	}
}
