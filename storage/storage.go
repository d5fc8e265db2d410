package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"facemorph/event"
)

var log = event.Log

var (
	ErrNotEnoughSpace = errors.New("not enough disk space")
	ErrInvalidName    = errors.New("invalid file name")
)

// File is one stored object
type File struct {
	Name    string
	Size    int64
	ModTime time.Time
}

type StorageAPI interface {
	Save(name string, reader io.Reader, mimeType string) (int64, error)
	Load(name string, writer io.Writer) (int64, error)
	Serve(name string, request *http.Request, writer http.ResponseWriter)
	Delete(name string) error
	List() ([]File, error)
	GetFreeSpace() uint64
	GetBucket() *Bucket
}

// Storage holds what both backends share
type Storage struct {
	Bucket       Bucket
	MinFreeSpace uint64
}

func (s *Storage) GetBucket() *Bucket {
	return &s.Bucket
}

// checkSave validates the name and that there is room for one more file
func (s *Storage) checkSave(name string, free uint64) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if free < s.MinFreeSpace {
		return ErrNotEnoughSpace
	}
	return nil
}

// New creates the storage for a bucket
func New(bucket *Bucket, minFreeSpace uint64) (StorageAPI, error) {
	switch bucket.StorageType {
	case StorageTypeFile:
		if err := bucket.Create(); err != nil {
			return nil, err
		}
		return NewDiskStorage(bucket, minFreeSpace), nil
	case StorageTypeS3:
		return NewS3Storage(bucket)
	}
	return nil, fmt.Errorf("storage type unavailable: %d", bucket.StorageType)
}
