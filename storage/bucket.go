package storage

import (
	"fmt"
	"os"
	"strings"

	"facemorph/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

type StorageType uint8

const (
	StorageTypeFile StorageType = 0
	StorageTypeS3   StorageType = 1
)

func (t StorageType) String() string {
	if t == StorageTypeS3 {
		return "s3"
	}
	return "disk"
}

// Bucket describes where uploaded and generated files live
type Bucket struct {
	Name        string // S3 bucket name
	StorageType StorageType
	Path        string // Path on a drive or a prefix in a S3 bucket
	Region      string
	Endpoint    string // S3 compatible services only
	AuthDetails string // Authentication details. In case of S3 bucket - "key:secret"
}

// BucketFromConfig builds the bucket described by the STORAGE settings
func BucketFromConfig() (*Bucket, error) {
	switch config.STORAGE {
	case "disk", "":
		return &Bucket{StorageType: StorageTypeFile, Path: config.UPLOAD_DIR}, nil
	case "s3":
		if config.S3_BUCKET == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for s3 storage")
		}
		b := &Bucket{
			Name:        config.S3_BUCKET,
			StorageType: StorageTypeS3,
			Path:        config.S3_PREFIX,
			Region:      config.S3_REGION,
			Endpoint:    config.S3_ENDPOINT,
		}
		if config.S3_KEY != "" {
			b.AuthDetails = config.S3_KEY + ":" + config.S3_SECRET
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown storage type %q", config.STORAGE)
}

// Create pre-creates the directory of a disk bucket
func (b *Bucket) Create() error {
	if b.StorageType != StorageTypeFile {
		return nil
	}
	return os.MkdirAll(b.Path, 0777)
}

// GetRemotePath returns the object key for a file name
func (b *Bucket) GetRemotePath(name string) string {
	prefix := strings.TrimPrefix(b.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + name
}

// CreateSVC creates the S3 client, static credentials are used when AuthDetails are set
func (b *Bucket) CreateSVC() (*s3.S3, error) {
	cfg := aws.NewConfig().WithRegion(b.Region)
	if b.Endpoint != "" {
		cfg = cfg.WithEndpoint(b.Endpoint).WithS3ForcePathStyle(true)
	}
	if b.AuthDetails != "" {
		key, secret, _ := strings.Cut(b.AuthDetails, ":")
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(key, secret, ""))
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return s3.New(sess), nil
}
