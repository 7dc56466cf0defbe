package r2_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/gnitoahc/go-dotenv"

	"datasync/pkg/object"
	"datasync/pkg/r2"
)

func TestR2(t *testing.T) {
	ctx := context.Background()
	dotenv.Load("../../.env")

	accountID := os.Getenv("DATASYNC_BUCKET_ACCOUNT_ID")
	endpoint := os.Getenv("DATASYNC_BUCKET_ENDPOINT")
	accessKey := os.Getenv("DATASYNC_BUCKET_ACCESS_KEY")
	secretKey := os.Getenv("DATASYNC_BUCKET_SECRET_ACCESS_KEY")
	bucket := os.Getenv("DATASYNC_BUCKET")

	if (accountID == "" && endpoint == "") || accessKey == "" || secretKey == "" || bucket == "" {
		t.Skip("DATASYNC_BUCKET_* environment variables not set; skipping bucket integration test")
	}

	storage := r2.Storage{}
	if err := storage.Init(ctx, r2.Config{
		AccountID:        accountID,
		EndpointOverride: endpoint,
		AccessKey:        accessKey,
		SecretAccessKey:  secretKey,
		Bucket:           bucket,
	}); err != nil {
		t.Fatalf("init storage: %v", err)
	}

	ObjectImplements(t, ctx, &storage)
}

func ObjectImplements(t *testing.T, ctx context.Context, obj object.ObjectStorage) {
	t.Helper()
	t.Cleanup(func() { _ = obj.Close(ctx) })

	key := fmt.Sprintf("datasync-test-%d.tar.gz", time.Now().UnixNano())
	content := []byte("not really a tarball, but close enough for a bucket")
	meta := map[string]string{"dataset": "300w", "purpose": "integration"}

	putObj, err := obj.Put(ctx, key, bytes.NewReader(content), "application/gzip", meta)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if putObj.Size != int64(len(content)) {
		t.Fatalf("Put: expected size %d got %d", len(content), putObj.Size)
	}

	exists, err := object.Exists(ctx, obj, key)
	if err != nil || !exists {
		t.Fatalf("Exists: expected true, got %v (err %v)", exists, err)
	}

	_, rc, err := obj.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Get read: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Fatalf("Get: content mismatch, got %q want %q", data, content)
	}

	if err := obj.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := obj.Stat(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Stat after delete: expected ErrNotFound, got %v", err)
	}
}

func TestInitValidation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		param any
	}{
		{"WrongType", "bucket"},
		{"NilPointer", (*r2.Config)(nil)},
		{"NoEndpoint", r2.Config{AccessKey: "a", SecretAccessKey: "s", Bucket: "b"}},
		{"NoBucket", r2.Config{AccountID: "acct", AccessKey: "a", SecretAccessKey: "s"}},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var s r2.Storage
			if err := s.Init(ctx, test.param); err == nil {
				t.Fatalf("Init: expected error for %v", test.param)
			}
		})
	}
}

func TestUninitialized(t *testing.T) {
	var s r2.Storage
	if _, err := s.Stat(context.Background(), "k"); err == nil {
		t.Fatal("Stat: expected error from uninitialized storage")
	}
}
