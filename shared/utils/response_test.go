package utils

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/pavitra93/go-election-system/shared/election"
)

func serveError(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	ElectionErrorResponse(c, err)
	return w
}

func TestRateLimitAdvertisesRemainingWindow(t *testing.T) {
	w := serveError(&election.RateLimitedError{RetryAfter: 90*time.Second + time.Millisecond})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "91", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"RateLimited"`)

	w = serveError(fmt.Errorf("wrapped: %w", &election.RateLimitedError{RetryAfter: 2 * time.Minute}))
	assert.Equal(t, "120", w.Header().Get("Retry-After"))

	w = serveError(election.ErrRateLimited)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestErrorStatusMapping(t *testing.T) {
	status, code := ErrorStatus(&election.DuplicateVoteError{Position: "President", PreviousCandidate: "Grace"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "DuplicateVote", code)

	status, code = ErrorStatus(&election.PartitionInUseError{Code: "12345", BoundVoters: 1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "PartitionInUse", code)

	status, _ = ErrorStatus(election.ErrUnknownPartition)
	assert.Equal(t, http.StatusNotFound, status)

	status, code = ErrorStatus(fmt.Errorf("db down"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "InternalError", code)
}
