package storage

import (
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const presignExpiry = 15 * time.Minute

type S3Storage struct {
	Storage
	s3Client *s3.S3
	uploader *s3manager.Uploader
}

func NewS3Storage(bucket *Bucket) (*S3Storage, error) {
	client, err := bucket.CreateSVC()
	if err != nil {
		return nil, err
	}
	return &S3Storage{
		Storage: Storage{
			Bucket: *bucket,
		},
		s3Client: client,
		uploader: s3manager.NewUploaderWithClient(client),
	}, nil
}

type countingReader struct {
	io.Reader
	count int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.count += int64(n)
	return n, err
}

func (s *S3Storage) Save(name string, reader io.Reader, mimeType string) (int64, error) {
	if err := s.checkSave(name, s.GetFreeSpace()); err != nil {
		return 0, err
	}
	body := &countingReader{Reader: reader}
	input := s3manager.UploadInput{
		Bucket: &s.Bucket.Name,
		Key:    aws.String(s.Bucket.GetRemotePath(name)),
		Body:   body,
	}
	if mimeType != "" {
		input.ContentType = &mimeType
	}
	_, err := s.uploader.Upload(&input)
	return body.count, err
}

func (s *S3Storage) Load(name string, writer io.Writer) (int64, error) {
	if !ValidName(name) {
		return 0, ErrInvalidName
	}
	resp, err := s.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    aws.String(s.Bucket.GetRemotePath(name)),
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(writer, resp.Body)
}

// Serve redirects to a short lived presigned URL
func (s *S3Storage) Serve(name string, request *http.Request, writer http.ResponseWriter) {
	if !ValidName(name) {
		http.NotFound(writer, request)
		return
	}
	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    aws.String(s.Bucket.GetRemotePath(name)),
	})
	url, err := req.Presign(presignExpiry)
	if err != nil {
		log.Errorf("storage: presign %s: %s", name, err)
		http.Error(writer, "storage error", http.StatusInternalServerError)
		return
	}
	http.Redirect(writer, request, url, http.StatusFound)
}

func (s *S3Storage) Delete(name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: &s.Bucket.Name,
		Key:    aws.String(s.Bucket.GetRemotePath(name)),
	})
	return err
}

func (s *S3Storage) List() ([]File, error) {
	prefix := s.Bucket.GetRemotePath("")
	var result []File
	err := s.s3Client.ListObjectsV2Pages(&s3.ListObjectsV2Input{
		Bucket: &s.Bucket.Name,
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(obj.Key), prefix)
			if !ValidName(name) {
				continue
			}
			result = append(result, File{
				Name:    name,
				Size:    aws.Int64Value(obj.Size),
				ModTime: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	return result, err
}

// GetFreeSpace is unlimited for object storage
func (s *S3Storage) GetFreeSpace() uint64 {
	return math.MaxUint64
}
