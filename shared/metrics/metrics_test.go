package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/go-election-system/shared/election"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, "RateLimited", Outcome(election.ErrRateLimited))
	assert.Equal(t, "DuplicateVote", Outcome(&election.DuplicateVoteError{Position: "President"}))
	assert.Equal(t, "InternalError", Outcome(fmt.Errorf("db: %w", assert.AnError)))
}

func TestInstrumentAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Instrument())
	r.GET("/elections/:tenant_id/results", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/elections/abc/results", nil))
	require.Equal(t, http.StatusOK, w.Code)

	BallotCasts.WithLabelValues(OutcomeOK).Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(BallotCasts.WithLabelValues(OutcomeOK)), 1.0)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `route="/elections/:tenant_id/results"`))
	assert.Contains(t, body, "election_ballot_casts_total")
}
