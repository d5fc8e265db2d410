package storage

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDisk(t *testing.T, minFree uint64) *DiskStorage {
	dir := filepath.Join(t.TempDir(), "uploads")
	return NewDiskStorage(&Bucket{StorageType: StorageTypeFile, Path: dir}, minFree)
}

func TestNewName(t *testing.T) {
	tests := []struct {
		kind, original, ext string
		prefix              string
	}{
		{KindSource, "My Photo.JPG", "jpg", "source_my-photo_"},
		{KindSwap, "../../etc/passwd", ".png", "swap_passwd_"},
		{KindMorph, "Holiday_2020 (1).png", "PNG", "morph_holiday-2020-1_"},
		{KindLabels, "", "png", "labels__"},
	}
	for _, tt := range tests {
		t.Run(tt.original, func(t *testing.T) {
			name := NewName(tt.kind, tt.original, tt.ext)
			assert.True(t, strings.HasPrefix(name, tt.prefix), name)
			assert.True(t, ValidName(name), name)
			assert.Equal(t, strings.ToLower("."+strings.TrimPrefix(tt.ext, ".")), filepath.Ext(name))
		})
	}

	long := NewName(KindImage, strings.Repeat("a", 200)+".jpg", "jpg")
	assert.True(t, ValidName(long))
	assert.NotEqual(t, NewName(KindImage, "x.jpg", "jpg"), NewName(KindImage, "x.jpg", "jpg"))
}

func TestValidName(t *testing.T) {
	for _, name := range []string{
		"",
		"../source_x_0b0e6a4c-9a3e-4a47-b2f4-8b2d5c0f4d11.jpg",
		"source_x_0b0e6a4c-9a3e-4a47-b2f4-8b2d5c0f4d11",
		"source_x_not-a-uuid.jpg",
		"notes.txt",
	} {
		assert.False(t, ValidName(name), name)
	}
	assert.True(t, ValidName("source_x_0b0e6a4c-9a3e-4a47-b2f4-8b2d5c0f4d11.jpg"))
}

func TestDiskStorage(t *testing.T) {
	s := newTestDisk(t, 0)
	name := NewName(KindSource, "face.jpg", "jpg")

	n, err := s.Save(name, strings.NewReader("hello"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	buf := bytes.Buffer{}
	_, err = s.Load(name, &buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())

	// foreign files are not listed
	require.NoError(t, os.WriteFile(filepath.Join(s.BasePath, "README"), []byte("x"), 0644))
	files, err := s.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, name, files[0].Name)
	assert.Equal(t, int64(5), files[0].Size)
	assert.False(t, files[0].ModTime.IsZero())

	rec := httptest.NewRecorder()
	s.Serve(name, httptest.NewRequest(http.MethodGet, "/static/uploads/"+name, nil), rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())

	require.NoError(t, s.Delete(name))
	files, err = s.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	rec = httptest.NewRecorder()
	s.Serve("../../etc/passwd", httptest.NewRequest(http.MethodGet, "/", nil), rec)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiskStorageRefusesSave(t *testing.T) {
	s := newTestDisk(t, 0)
	_, err := s.Save("../escape.jpg", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, ErrInvalidName)

	full := newTestDisk(t, math.MaxUint64)
	_, err = full.Save(NewName(KindSwap, "a.jpg", "jpg"), strings.NewReader("x"), "")
	assert.ErrorIs(t, err, ErrNotEnoughSpace)
	files, err := full.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiskStorageMissingDir(t *testing.T) {
	s := newTestDisk(t, 0)
	files, err := s.List()
	assert.NoError(t, err)
	assert.Empty(t, files)
	assert.Zero(t, s.GetFreeSpace())

	require.NoError(t, s.createDir())
	assert.NotZero(t, s.GetFreeSpace())
}

func TestPins(t *testing.T) {
	p := NewPins()
	assert.False(t, p.Pinned("a"))

	p.Pin("a", "b")
	p.Pin("a")
	assert.True(t, p.Pinned("a"))
	assert.True(t, p.Pinned("b"))

	p.Unpin("a", "b")
	assert.True(t, p.Pinned("a"))
	assert.False(t, p.Pinned("b"))

	p.Unpin("a")
	assert.False(t, p.Pinned("a"))

	// unpinning an unknown name is harmless
	p.Unpin("c")
	assert.False(t, p.Pinned("c"))
}

func TestBucket(t *testing.T) {
	tests := []struct {
		path, name, want string
	}{
		{"uploads/", "a.jpg", "uploads/a.jpg"},
		{"uploads", "a.jpg", "uploads/a.jpg"},
		{"/uploads/", "a.jpg", "uploads/a.jpg"},
		{"", "a.jpg", "a.jpg"},
	}
	for _, tt := range tests {
		b := Bucket{StorageType: StorageTypeS3, Path: tt.path}
		assert.Equal(t, tt.want, b.GetRemotePath(tt.name))
	}
	assert.Equal(t, "s3", StorageTypeS3.String())
	assert.Equal(t, "disk", StorageTypeFile.String())
}

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	s, err := New(&Bucket{StorageType: StorageTypeFile, Path: dir}, 0)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, StorageTypeFile, s.GetBucket().StorageType)

	_, err = New(&Bucket{StorageType: 7}, 0)
	assert.Error(t, err)
}
