package aws

import (
	"bytes"
	"canvas-editor/core"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store. Values live at "<namespace>/<key>".
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

// objectKey sanitizes both parts to prevent path traversal.
func objectKey(namespace, key string) (string, error) {
	for _, part := range []string{namespace, key} {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: must not be empty or a dot directory", core.ErrInvalidKey)
		}
		if path.Base(part) != part {
			return "", fmt.Errorf("%w: must not be a path", core.ErrInvalidKey)
		}
	}
	return path.Join(namespace, key), nil
}

func (s *s3Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	objKey, err := objectKey(namespace, key)
	if err != nil {
		return nil, err
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("key %s: %w", objKey, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", objKey, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", objKey, err)
	}
	return data, nil
}

func (s *s3Store) Put(ctx context.Context, namespace, key string, value []byte) error {
	objKey, err := objectKey(namespace, key)
	if err != nil {
		return err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objKey),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", objKey, err)
	}
	logrus.WithFields(logrus.Fields{"key": objKey, "data_length": len(value)}).Debug("Object stored")
	return nil
}

// Delete is idempotent: S3 reports success for missing keys.
func (s *s3Store) Delete(ctx context.Context, namespace, key string) error {
	objKey, err := objectKey(namespace, key)
	if err != nil {
		return err
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objKey, err)
	}
	return nil
}
