package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassifyGRPCStatus_MapsKnownCodes(t *testing.T) {
	cases := []struct {
		code codes.Code
		want ErrorKind
	}{
		{codes.Unavailable, KindTransientUnavailable},
		{codes.ResourceExhausted, KindTransientUnavailable},
		{codes.DeadlineExceeded, KindTransientUnavailable},
		{codes.Canceled, KindCancelled},
		{codes.Unauthenticated, KindAuthMissing},
		{codes.NotFound, KindNotSupported},
		{codes.InvalidArgument, KindValidation},
		{codes.Internal, KindInternal},
	}
	for _, tc := range cases {
		err := status.Error(tc.code, "boom")
		kind, ok := ClassifyGRPCStatus(err)
		assert.True(t, ok, "code %s should classify", tc.code)
		assert.Equal(t, tc.want, kind)
	}
}

func TestClassifyGRPCStatus_OKIsNotAnError(t *testing.T) {
	_, ok := ClassifyGRPCStatus(status.Error(codes.OK, ""))
	assert.False(t, ok)
}

func TestClassifyGRPCStatus_NonGRPCErrorIsUnclassified(t *testing.T) {
	_, ok := ClassifyGRPCStatus(errors.New("plain error"))
	assert.False(t, ok)
}
