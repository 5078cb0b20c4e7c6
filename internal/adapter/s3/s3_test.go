package s3

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvdmirror/cvdmirror/internal/domain"
)

func TestNew_EmptyBucket(t *testing.T) {
	_, err := New(context.Background(), "", "us-east-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigMissing)
}

func TestOptions(t *testing.T) {
	var o options
	WithEndpoint("http://localhost:9000")(&o)
	WithPathStyle()(&o)

	assert.Equal(t, "http://localhost:9000", o.endpoint)
	assert.True(t, o.forcePathStyle)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"missing key", "NoSuchKey", domain.ErrObjectNotFound},
		{"head not found", "NotFound", domain.ErrObjectNotFound},
		{"missing bucket", "NoSuchBucket", domain.ErrObjectNotFound},
		{"access denied", "AccessDenied", domain.ErrPermissionDenied},
		{"forbidden", "Forbidden", domain.ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := &smithy.GenericAPIError{Code: tt.code, Message: "boom"}
			got := mapError("test op", apiErr)

			assert.ErrorIs(t, got, tt.want)
			assert.Contains(t, got.Error(), "test op")
		})
	}
}

func TestMapError_WrappedAPIError(t *testing.T) {
	inner := &smithy.GenericAPIError{Code: "AccessDenied", Message: "nope"}
	wrapped := fmt.Errorf("operation failed: %w", inner)

	got := mapError("put object", wrapped)
	assert.ErrorIs(t, got, domain.ErrPermissionDenied)
}

func TestMapError_UnknownErrorPassesThrough(t *testing.T) {
	cause := errors.New("connection reset")
	got := mapError("list objects", cause)

	require.Error(t, got)
	assert.ErrorIs(t, got, cause)
	assert.NotErrorIs(t, got, domain.ErrObjectNotFound)
	assert.NotErrorIs(t, got, domain.ErrPermissionDenied)
}
