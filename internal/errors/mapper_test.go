package errors_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/kinnect/internal/errors"
)

func TestMap_Infrastructure(t *testing.T) {
	cases := []struct {
		in     error
		status int
	}{
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", gorm.ErrDuplicatedKey), http.StatusConflict},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{stderrors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.status, svcErr.HTTPStatus(c.in), c.in.Error())
	}
	assert.Nil(t, svcErr.Map(nil))
}

func TestInternal_HidesCause(t *testing.T) {
	de := svcErr.As(stderrors.New("dial tcp 10.0.0.1: refused"))
	require.NotNil(t, de)
	assert.Equal(t, "INTERNAL", de.Code)
	assert.Equal(t, "internal server error", de.Message)
	assert.Contains(t, de.Error(), "refused", "cause stays available for logs")
}

func TestError_IsMatchesCode(t *testing.T) {
	sentinel := svcErr.AlreadyExists("ALREADY_FOLLOWING", "Already following this user")
	err := fmt.Errorf("send: %w", svcErr.AlreadyExists("ALREADY_FOLLOWING", "Already following this user"))

	assert.True(t, stderrors.Is(err, sentinel))
	assert.False(t, stderrors.Is(err, svcErr.AlreadyExists("OTHER", "x")))
	assert.Equal(t, http.StatusConflict, svcErr.HTTPStatus(err))
}

func TestHTTPStatus_Kinds(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, svcErr.HTTPStatus(svcErr.InvalidArgument("X", "x")))
	assert.Equal(t, http.StatusUnauthorized, svcErr.HTTPStatus(svcErr.Unauthorized("X", "x")))
	assert.Equal(t, http.StatusForbidden, svcErr.HTTPStatus(svcErr.Forbidden("X", "x")))
	assert.Equal(t, http.StatusNotFound, svcErr.HTTPStatus(svcErr.NotFound("X", "x")))
	assert.Equal(t, http.StatusTooManyRequests, svcErr.HTTPStatus(svcErr.RateLimited("X", "x")))
}

func TestGRPCStatus(t *testing.T) {
	st, ok := status.FromError(svcErr.GRPCStatus(svcErr.NotFound("USER_NOT_FOUND", "User not found")))
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "User not found", st.Message())
	assert.Nil(t, svcErr.GRPCStatus(nil))
}
