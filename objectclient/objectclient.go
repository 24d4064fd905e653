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

// Package objectclient declares the object-store boundary the
// transfer engine drives: range GET, whole-object PUT, and the
// multipart upload trio. This package holds the contract and its
// error taxonomy; s3client holds the concrete AWS implementation, and
// transfer keeps an in-package fake for engine tests.
package objectclient

import (
	"context"
	"errors"
	"io"
)

// ByteRange is a half-open byte range [Begin, Begin+Length) within an
// object.
type ByteRange struct {
	Begin  int64
	Length int64
}

// Kind enumerates the structured error kinds the core distinguishes.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindThrottled
	KindAccessDenied
	KindInvalidRange
	KindOther
)

// ObjectClientError is the passthrough error shape for failures the
// core does not otherwise have a sentinel for: a structured kind,
// a human-readable message, and whether the engine should consider
// retrying.
type ObjectClientError struct {
	Kind      Kind
	Message   string
	Retryable bool
}

func (e *ObjectClientError) Error() string { return e.Message }

// Sentinel errors for the three conditions the core itself names.
var (
	ErrNoSuchUpload            = errors.New("objectclient: no such upload")
	ErrNoSuchMultipartUpload   = errors.New("objectclient: no such multipart upload")
	ErrNoSuchMultipartDownload = errors.New("objectclient: no such multipart download")
)

// CompletedPart identifies one successfully uploaded part for
// CompleteMultipart, in the id-plus-etag shape every object store's
// complete-multipart-upload call requires on the wire.
type CompletedPart struct {
	ID   int
	ETag string
}

// ObjectClient is the abstract object-store boundary consumed by the
// transfer engine. Every method is context-aware; cancellation is the
// caller's responsibility to wire through the handle's ShouldContinue
// check, not this interface's.
type ObjectClient interface {
	// DownloadRange GETs the byte range r of key, copying its body into
	// out, and returns the object's ETag.
	DownloadRange(ctx context.Context, key string, out io.Writer, r ByteRange) (etag string, err error)

	// UploadWhole PUTs the entirety of in, which must yield exactly
	// size bytes, as key.
	UploadWhole(ctx context.Context, key string, size int64, in io.Reader) (etag string, err error)

	// InitiateMultipart starts a multipart upload for key and returns
	// its multipart id.
	InitiateMultipart(ctx context.Context, key string) (multipartID string, err error)

	// UploadPart uploads one numbered part of a multipart upload and
	// returns its ETag.
	UploadPart(ctx context.Context, key, multipartID string, partID int, size int64, in io.Reader) (etag string, err error)

	// CompleteMultipart finalizes a multipart upload given its
	// successfully uploaded parts, sorted by ID.
	CompleteMultipart(ctx context.Context, key, multipartID string, parts []CompletedPart) error

	// AbortMultipart discards an in-progress multipart upload.
	AbortMultipart(ctx context.Context, key, multipartID string) error
}
