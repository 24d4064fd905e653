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

package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/qsfs-go/qsfs/objectclient"
)

// fakeObjectClient is an in-memory objectclient.ObjectClient: a map
// standing in for the remote bucket, plus knobs to inject a failure
// at a chosen call site without a real network.
type fakeObjectClient struct {
	mu sync.Mutex

	objects map[string][]byte

	failDownload    bool
	failUploadWhole bool
	failInitiate    bool
	failUploadPart  map[int]bool
	failComplete    bool
	failAbort       bool

	// failDownloadOnce fails the next DownloadRange call whose range
	// begins at the given offset, then clears itself, so a test can
	// make exactly one part's first attempt fail and its retry succeed.
	failDownloadOnce map[int64]bool

	// blockDownload, when non-nil, parks every DownloadRange call
	// until the channel is closed, so a test can change handle state
	// while transfers are verifiably in flight.
	blockDownload chan struct{}

	nextUploadID int
	multiparts   map[string]map[int][]byte // multipartID -> partID -> body

	completeCalls int
	abortCalls    int
}

func newFakeObjectClient() *fakeObjectClient {
	return &fakeObjectClient{
		objects:          make(map[string][]byte),
		failUploadPart:   make(map[int]bool),
		failDownloadOnce: make(map[int64]bool),
		multiparts:       make(map[string]map[int][]byte),
	}
}

func (f *fakeObjectClient) putObject(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
}

func (f *fakeObjectClient) uploaded(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key]
}

func (f *fakeObjectClient) DownloadRange(ctx context.Context, key string, out io.Writer, r objectclient.ByteRange) (string, error) {
	f.mu.Lock()
	fail := f.failDownload
	if f.failDownloadOnce[r.Begin] {
		delete(f.failDownloadOnce, r.Begin)
		fail = true
	}
	gate := f.blockDownload
	data, ok := f.objects[key]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if fail {
		return "", errors.New("fake: download failed")
	}
	if !ok {
		return "", objectclient.ErrNoSuchMultipartDownload
	}
	end := r.Begin + r.Length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	if _, err := out.Write(data[r.Begin:end]); err != nil {
		return "", err
	}
	return "etag-download", nil
}

func (f *fakeObjectClient) UploadWhole(ctx context.Context, key string, size int64, in io.Reader) (string, error) {
	f.mu.Lock()
	fail := f.failUploadWhole
	f.mu.Unlock()
	if fail {
		return "", errors.New("fake: upload whole failed")
	}
	body, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	f.putObject(key, body)
	return "etag-whole", nil
}

func (f *fakeObjectClient) InitiateMultipart(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInitiate {
		return "", errors.New("fake: initiate failed")
	}
	f.nextUploadID++
	id := fmt.Sprintf("upload-%d", f.nextUploadID)
	f.multiparts[id] = make(map[int][]byte)
	return id, nil
}

func (f *fakeObjectClient) UploadPart(ctx context.Context, key, multipartID string, partID int, size int64, in io.Reader) (string, error) {
	f.mu.Lock()
	fail := f.failUploadPart[partID]
	f.mu.Unlock()
	if fail {
		return "", errors.New("fake: upload part failed")
	}
	body, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.multiparts[multipartID][partID] = body
	f.mu.Unlock()
	return fmt.Sprintf("etag-part-%d", partID), nil
}

func (f *fakeObjectClient) CompleteMultipart(ctx context.Context, key, multipartID string, parts []objectclient.CompletedPart) error {
	f.mu.Lock()
	f.completeCalls++
	fail := f.failComplete
	staged := f.multiparts[multipartID]
	f.mu.Unlock()
	if fail {
		return errors.New("fake: complete failed")
	}
	ordered := append([]objectclient.CompletedPart(nil), parts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	var whole []byte
	for _, p := range ordered {
		whole = append(whole, staged[p.ID]...)
	}
	f.putObject(key, whole)
	return nil
}

func (f *fakeObjectClient) AbortMultipart(ctx context.Context, key, multipartID string) error {
	f.mu.Lock()
	f.abortCalls++
	fail := f.failAbort
	f.mu.Unlock()
	if fail {
		return errors.New("fake: abort failed")
	}
	return nil
}
