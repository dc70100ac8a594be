package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/vnkhanh/coderoom-server/access"
	"github.com/vnkhanh/coderoom-server/realtime"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("room x: %w", access.ErrNotFound), http.StatusNotFound},
		{access.ErrNotAuthorized, http.StatusForbidden},
		{access.ErrRoomNameTaken, http.StatusConflict},
		{access.ErrDuplicateRequest, http.StatusConflict},
		{access.ErrInvalidInput, http.StatusBadRequest},
		{realtime.ErrInvalidPayload, http.StatusBadRequest},
		{realtime.ErrUnknownKind, http.StatusBadRequest},
		{realtime.ErrUpstreamLookup, http.StatusBadGateway},
		{realtime.ErrConfiguration, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := StatusFor(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}

func TestRateLimitByUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(60, 2, time.Minute)
	defer rl.Stop()

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		c.Set(CtxUserID, uint(c.GetHeader("X-User")[0]-'0'))
		c.Next()
	}, RateLimitByUser(rl), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("1"))
	assert.Equal(t, http.StatusOK, hit("1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("1"))
	// Buckets are per user.
	assert.Equal(t, http.StatusOK, hit("2"))
}
