package storage

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

type DiskStorage struct {
	Storage
	// BasePath is a directory (usually mount point of a disk) that is writable by the current process
	BasePath string
	dirMutex sync.Mutex
	dirReady bool
}

func NewDiskStorage(bucket *Bucket, minFreeSpace uint64) *DiskStorage {
	return &DiskStorage{
		BasePath: bucket.Path,
		Storage: Storage{
			Bucket:       *bucket,
			MinFreeSpace: minFreeSpace,
		},
	}
}

func (s *DiskStorage) createDir() error {
	s.dirMutex.Lock()
	defer s.dirMutex.Unlock()

	if s.dirReady {
		return nil
	}
	if err := os.MkdirAll(s.BasePath, 0777); err != nil {
		return err
	}
	s.dirReady = true
	return nil
}

func (s *DiskStorage) getFullPath(name string) string {
	return filepath.Join(s.BasePath, name)
}

func (s *DiskStorage) Save(name string, reader io.Reader, _ string) (int64, error) {
	if err := s.createDir(); err != nil {
		return 0, err
	}
	if err := s.checkSave(name, s.GetFreeSpace()); err != nil {
		return 0, err
	}
	fileName := s.getFullPath(name)
	file, err := os.Create(fileName)
	if err != nil {
		return 0, err
	}
	result, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(fileName)
	}
	return result, err
}

func (s *DiskStorage) Load(name string, writer io.Writer) (int64, error) {
	if !ValidName(name) {
		return 0, ErrInvalidName
	}
	file, err := os.Open(s.getFullPath(name))
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return io.Copy(writer, file)
}

func (s *DiskStorage) Serve(name string, request *http.Request, writer http.ResponseWriter) {
	if !ValidName(name) {
		http.NotFound(writer, request)
		return
	}
	http.ServeFile(writer, request, s.getFullPath(name))
}

func (s *DiskStorage) Delete(name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	return os.Remove(s.getFullPath(name))
}

// List returns the stored files, anything not named by NewName is ignored
func (s *DiskStorage) List() ([]File, error) {
	entries, err := os.ReadDir(s.BasePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result []File
	for _, entry := range entries {
		if entry.IsDir() || !ValidName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// deleted in the meantime
			continue
		}
		result = append(result, File{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return result, nil
}

// GetFreeSpace returns the bytes available to unprivileged users, 0 on error
func (s *DiskStorage) GetFreeSpace() uint64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(s.BasePath, &stat); err != nil {
		log.Warnf("storage: statfs %s: %s", s.BasePath, err)
		return 0
	}
	return stat.Bavail * uint64(stat.Bsize)
}
