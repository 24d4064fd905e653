/*
Copyright 2026 The qsfs Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package s3client is the objectclient.ObjectClient implementation
// backed by AWS S3. Construction runs a one-time endpoint/region
// preflight; request errors fold into the core's error taxonomy.
package s3client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/qsfs-go/qsfs/objectclient"
)

// Client is an objectclient.ObjectClient backed by one S3 bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

type settings struct {
	region   string
	endpoint string
}

// Option configures New.
type Option func(*settings)

// WithRegion sets the bucket's region; without it the region defaults
// to us-east-1.
func WithRegion(region string) Option {
	return func(s *settings) { s.region = region }
}

// WithEndpoint overrides the S3 endpoint host (no URI scheme).
func WithEndpoint(endpoint string) Option {
	return func(s *settings) { s.endpoint = endpoint }
}

// New constructs a Client for bucket, running the endpoint/region
// preflight once rather than on every request.
func New(ctx context.Context, bucket string, opts ...Option) (*Client, error) {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	endpoint, region, err := normalizeEndpoint(s.endpoint, s.region)
	if err != nil {
		return nil, fmt.Errorf("s3client: endpoint preflight: %w", err)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("s3client: loading aws config: %w", err)
	}

	svc := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.EndpointResolver = s3.EndpointResolverFromURL("https://" + endpoint)
		}
	})
	return &Client{s3: svc, bucket: bucket}, nil
}

// normalizeEndpoint resolves the endpoint/region pair once at
// construction: reject a scheme-qualified endpoint, default the rest.
func normalizeEndpoint(endpoint, region string) (string, string, error) {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return "", "", errors.New("endpoint must not include a URI scheme")
	}
	if region == "" {
		region = "us-east-1"
	}
	if endpoint == "" {
		endpoint = "s3." + region + ".amazonaws.com"
	}
	return endpoint, region, nil
}

func (c *Client) DownloadRange(ctx context.Context, key string, out io.Writer, r objectclient.ByteRange) (string, error) {
	resp, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", r.Begin, r.Begin+r.Length-1)),
	})
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("s3client: reading range body for %s: %w", key, err)
	}
	return aws.ToString(resp.ETag), nil
}

func (c *Client) UploadWhole(ctx context.Context, key string, size int64, in io.Reader) (string, error) {
	resp, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          in,
		ContentLength: size,
	})
	if err != nil {
		return "", classifyError(err)
	}
	return aws.ToString(resp.ETag), nil
}

func (c *Client) InitiateMultipart(ctx context.Context, key string) (string, error) {
	resp, err := c.s3.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", classifyError(err)
	}
	return aws.ToString(resp.UploadId), nil
}

func (c *Client) UploadPart(ctx context.Context, key, multipartID string, partID int, size int64, in io.Reader) (string, error) {
	resp, err := c.s3.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(multipartID),
		PartNumber:    int32(partID),
		Body:          in,
		ContentLength: size,
	})
	if err != nil {
		return "", classifyError(err)
	}
	return aws.ToString(resp.ETag), nil
}

func (c *Client) CompleteMultipart(ctx context.Context, key, multipartID string, parts []objectclient.CompletedPart) error {
	sorted := append([]objectclient.CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	completed := make([]types.CompletedPart, len(sorted))
	for i, p := range sorted {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: int32(p.ID),
		}
	}

	_, err := c.s3.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(c.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(multipartID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return classifyError(err)
	}
	return nil
}

func (c *Client) AbortMultipart(ctx context.Context, key, multipartID string) error {
	_, err := c.s3.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(multipartID),
	})
	if err != nil {
		return classifyError(err)
	}
	return nil
}

// classifyError folds an AWS SDK error into the core's error
// taxonomy: a known-absent object or multipart upload becomes a
// sentinel, everything else becomes an ObjectClientError whose Kind is
// mapped from the API's error code and whose Message is the API's
// error message.
func classifyError(err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return objectclient.ErrNoSuchMultipartDownload
	}
	var nsu *types.NoSuchUpload
	if errors.As(err, &nsu) {
		return objectclient.ErrNoSuchMultipartUpload
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &objectclient.ObjectClientError{
			Kind:      kindFromCode(apiErr.ErrorCode()),
			Message:   apiErr.ErrorMessage(),
			Retryable: isRetryableCode(apiErr.ErrorCode()),
		}
	}
	return &objectclient.ObjectClientError{Kind: objectclient.KindOther, Message: err.Error()}
}

func kindFromCode(code string) objectclient.Kind {
	switch code {
	case "NoSuchKey", "NotFound":
		return objectclient.KindNotFound
	case "SlowDown", "RequestLimitExceeded", "Throttling":
		return objectclient.KindThrottled
	case "AccessDenied":
		return objectclient.KindAccessDenied
	case "InvalidRange":
		return objectclient.KindInvalidRange
	default:
		return objectclient.KindOther
	}
}

func isRetryableCode(code string) bool {
	switch code {
	case "SlowDown", "RequestLimitExceeded", "Throttling", "InternalError", "RequestTimeout":
		return true
	default:
		return false
	}
}
