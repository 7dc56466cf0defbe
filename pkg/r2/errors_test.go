package r2

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"datasync/pkg/object"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"NoSuchKey", &types.NoSuchKey{}, true},
		{"NotFound", fmt.Errorf("operation error S3: HeadObject: %w", &types.NotFound{}), true},
		{"APICode", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"AccessDenied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"Other", errors.New("connection reset"), false},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			got := mapError(test.err)
			if errors.Is(got, object.ErrNotFound) != test.notFound {
				t.Fatalf("mapError(%v) = %v, want not-found=%v", test.err, got, test.notFound)
			}
			if !test.notFound && !errors.Is(got, test.err) {
				t.Fatalf("mapError(%v) lost the original error", test.err)
			}
		})
	}

	if mapError(nil) != nil {
		t.Fatal("mapError(nil) should be nil")
	}
}
