// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package metrics

import (
	"bytes"
	"context"
	"io"

	"github.com/edgebench/sigbench/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type (
	// ObjectConfig locates an S3-compatible bucket.
	ObjectConfig struct {
		Endpoint  string
		Bucket    string
		AccessKey string
		SecretKey string
		Region    string
		Secure    bool
	}

	// ObjectAPI is the subset of *minio.Client used by the object sink.
	ObjectAPI interface {
		BucketExists(ctx context.Context, bucket string) (bool, error)
		MakeBucket(
			ctx context.Context,
			bucket string,
			opts minio.MakeBucketOptions,
		) error
		PutObject(
			ctx context.Context,
			bucket, object string,
			reader io.Reader,
			size int64,
			opts minio.PutObjectOptions,
		) (minio.UploadInfo, error)
	}

	// ObjectSink writes each record as its own object, keyed
	// metrics/YYYY-MM-DD/<id>.json.
	ObjectSink struct {
		api    ObjectAPI
		bucket string
		region string
	}
)

// NewObjectSink connects to an S3-compatible endpoint.
func NewObjectSink(cfg ObjectConfig) (*ObjectSink, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &errors.Error{
			Message:       "cannot create object storage client",
			Kind:          errors.ConfigurationInvalid,
			NestedError:   err,
			PropertyName:  "metrics.object.endpoint",
			PropertyValue: cfg.Endpoint,
		}
	}
	return NewObjectSinkWithAPI(mc, cfg.Bucket, cfg.Region), nil
}

// NewObjectSinkWithAPI creates an object sink over an existing client.
func NewObjectSinkWithAPI(api ObjectAPI, bucket, region string) *ObjectSink {
	return &ObjectSink{api: api, bucket: bucket, region: region}
}

// EnsureBucket creates the bucket if it does not exist.
func (s *ObjectSink) EnsureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return recordError("cannot check metrics bucket", err)
	}
	if exists {
		return nil
	}
	region := s.region
	if region == "" {
		region = "us-east-1"
	}
	err = s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region})
	if err != nil {
		return recordError("cannot create metrics bucket", err)
	}
	return nil
}

// Put stores the record as a JSON object.
func (s *ObjectSink) Put(ctx context.Context, key Key, record []byte) error {
	_, err := s.api.PutObject(
		ctx,
		s.bucket,
		key.Object(),
		bytes.NewReader(record),
		int64(len(record)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return recordError("cannot put metrics object", err)
	}
	return nil
}
