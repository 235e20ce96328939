package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/serroba/share-links/internal/metrics"
	"github.com/serroba/share-links/internal/share"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ share.Observer = (*metrics.Recorder)(nil)

func TestRecorder(t *testing.T) {
	t.Run("counts issuance outcomes", func(t *testing.T) {
		r := metrics.NewRecorder()

		r.Issued(1)
		r.Issued(3)
		r.Collision()
		r.Collision()
		r.Exhausted()

		body := scrape(t, r)

		assert.Contains(t, body, "share_links_issued_total 2")
		assert.Contains(t, body, "share_links_collisions_total 2")
		assert.Contains(t, body, "share_links_exhausted_total 1")
		assert.Contains(t, body, "share_links_generation_attempts_sum 4")
		assert.Contains(t, body, "share_links_generation_attempts_count 2")
	})

	t.Run("labels resolve results", func(t *testing.T) {
		r := metrics.NewRecorder()

		r.Resolved(true)
		r.Resolved(true)
		r.Resolved(false)

		body := scrape(t, r)

		assert.Contains(t, body, `share_links_resolved_total{result="hit"} 2`)
		assert.Contains(t, body, `share_links_resolved_total{result="miss"} 1`)
	})

	t.Run("registry includes runtime collectors", func(t *testing.T) {
		r := metrics.NewRecorder()

		body := scrape(t, r)

		assert.Contains(t, body, "go_goroutines")
	})

	t.Run("exposition includes help and type", func(t *testing.T) {
		r := metrics.NewRecorder()
		r.Exhausted()

		srv := httptest.NewServer(r.Handler())
		defer srv.Close()

		expected := `
# HELP share_links_exhausted_total Create calls that ran out of generation attempts.
# TYPE share_links_exhausted_total counter
share_links_exhausted_total 1
`

		require.NoError(t, testutil.ScrapeAndCompare(srv.URL, strings.NewReader(expected), "share_links_exhausted_total"))
	})
}

func scrape(t *testing.T, r *metrics.Recorder) string {
	t.Helper()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	return rec.Body.String()
}
