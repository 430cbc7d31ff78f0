package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// MaxFileSize bounds a single uploaded document.
const MaxFileSize = 10 << 20

var (
	ErrEmptyFile    = errors.New("file is empty")
	ErrFileTooLarge = errors.New("file is too large")
	ErrFileType     = errors.New("file type not accepted")
)

var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"text/csv":        true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// UploadedFile is the reference returned to clients after phase one of a
// document upload.
type UploadedFile struct {
	FileURL      string `json:"file_url"`
	FileID       string `json:"file_id"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
}

type MinIOClient struct {
	client     *minio.Client
	bucketName string
	baseURL    string
}

// NewMinIOClient connects to MinIO and creates the bucket when missing.
func NewMinIOClient(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logrus.Infof("Bucket %s created successfully", bucketName)
	}

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	return &MinIOClient{
		client:     client,
		bucketName: bucketName,
		baseURL:    fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucketName),
	}, nil
}

// DetectContentType checks size and type of an upload before it is stored.
func DetectContentType(data []byte, originalName string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if len(data) > MaxFileSize {
		return "", ErrFileTooLarge
	}

	mt := mimetype.Detect(data)
	contentType := mt.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if contentType == "text/plain" && strings.EqualFold(filepath.Ext(originalName), ".csv") {
		contentType = "text/csv"
	}
	if !allowedTypes[contentType] {
		return "", fmt.Errorf("%w: %s", ErrFileType, contentType)
	}
	return contentType, nil
}

// ObjectKey builds "<category>/<uuid><ext>".
func ObjectKey(category, originalName string) string {
	category = strings.Trim(strings.ReplaceAll(category, "..", ""), "/")
	if category == "" {
		category = "misc"
	}
	return fmt.Sprintf("%s/%s%s", category, uuid.NewString(), strings.ToLower(filepath.Ext(originalName)))
}

// Upload stores data under the category prefix. It does not touch any
// submission.
func (m *MinIOClient) Upload(ctx context.Context, data []byte, originalName, category string) (UploadedFile, error) {
	contentType, err := DetectContentType(data, originalName)
	if err != nil {
		return UploadedFile{}, err
	}

	key := ObjectKey(category, originalName)
	_, err = m.client.PutObject(ctx, m.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-name": filepath.Base(originalName),
		},
	})
	if err != nil {
		return UploadedFile{}, fmt.Errorf("failed to upload file: %w", err)
	}

	logrus.Infof("File %s uploaded successfully", key)
	return UploadedFile{
		FileURL:      m.baseURL + "/" + key,
		FileID:       key,
		OriginalName: filepath.Base(originalName),
		ContentType:  contentType,
		Size:         int64(len(data)),
	}, nil
}

// PresignedURL returns a temporary download URL for support staff.
func (m *MinIOClient) PresignedURL(ctx context.Context, fileID string, ttl time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucketName, fileID, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// Exists reports whether an object was stored under fileID.
func (m *MinIOClient) Exists(ctx context.Context, fileID string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucketName, fileID, minio.StatObjectOptions{})
	if err != nil {
		errResponse := minio.ToErrorResponse(err)
		if errResponse.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file: %w", err)
	}

	return true, nil
}
