package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studystake/coordinator/internal/models"
)

func TestRecorder(t *testing.T) {
	m := New()

	m.CommitmentTransition(models.CommitmentCompleted)
	m.CommitmentTransition(models.CommitmentCompleted)
	m.CommitmentTransition(models.CommitmentFailed)
	m.AttestationCreated()
	m.SweepItem("attested")
	m.ScholarshipCredited(decimal.RequireFromString("0.25"))
	m.JobRun("sweep", time.Second, nil)
	m.JobRun("sweep", time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attestations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepItems.WithLabelValues("attested")))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.scholarship))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("sweep", "false")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/pods/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	for i := 0; i < 2; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pods/7", nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/pods/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "studystake_http_requests_total")
}
