package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadinessGate(t *testing.T) {
	s := New()
	s.AddReadinessCheck("always-ok", time.Second, func(context.Context) error {
		return nil
	})
	s.Start(context.Background(), 10*time.Millisecond)
	defer s.Stop()

	probe := func() *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		s.ReadyEndpoint(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		return rr
	}

	// Not ready until the gate is flipped, even with healthy checks.
	require.Equal(t, http.StatusServiceUnavailable, probe().Code)

	s.SetReady(true)
	require.Equal(t, http.StatusOK, probe().Code)

	s.SetReady(false)
	require.Equal(t, http.StatusServiceUnavailable, probe().Code)
}

func TestFailingCheckReportedWithDetail(t *testing.T) {
	s := New()
	s.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})
	s.SetReady(true)
	s.Start(context.Background(), time.Hour)
	defer s.Stop()

	// Start runs checks asynchronously; wait for the first run to land.
	var rr *httptest.ResponseRecorder
	require.Eventually(t, func() bool {
		rr = httptest.NewRecorder()
		s.ReadyEndpoint(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		return rr.Code == http.StatusServiceUnavailable
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, rr.Body.String(), "connection refused")
}

func TestLivenessIndependentOfReadyGate(t *testing.T) {
	s := New()
	s.AddLivenessCheck("noop", time.Second, func(context.Context) error {
		return nil
	})
	s.Start(context.Background(), time.Hour)
	defer s.Stop()

	rr := httptest.NewRecorder()
	s.LiveEndpoint(rr, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}
