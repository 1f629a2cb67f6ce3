package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/members/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/members/1", "/members/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m)
	assert.Contains(t, out, `membership_http_requests_total{method="GET",route="/members/:id",status="204"} 2`)
	assert.Contains(t, out, `membership_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, out, "go_goroutines")
}

func TestObserveScan(t *testing.T) {
	m := New()
	m.ObserveScan(ScanOK, 20*time.Millisecond, 3)
	m.ObserveScan(ScanFailed, 0, 0)

	out := scrape(t, m)
	assert.Contains(t, out, `membership_expiry_scans_total{outcome="ok"} 1`)
	assert.Contains(t, out, `membership_expiry_scans_total{outcome="failed"} 1`)
	assert.Contains(t, out, "membership_expiry_scan_duration_seconds_count 1")
	assert.Contains(t, out, "membership_notification_sets_published_total 3")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveScan(ScanOK, time.Second, 1) })

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
