package pacer

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsRetryableStatus(code), code)
	}
	for _, code := range []int{200, 201, 206, 400, 401, 403, 404, 416} {
		assert.False(t, IsRetryableStatus(code), code)
	}
}

func TestBackoffBounds(t *testing.T) {
	p := New()
	for n := 0; n < 10; n++ {
		base := minFloat(pow2(n), 64)
		got := p.Backoff(n)
		assert.GreaterOrEqual(t, got, time.Duration(base*float64(time.Second)))
		assert.Less(t, got, time.Duration(base*float64(time.Second))+time.Second)
	}
}

func pow2(n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= 2
	}
	return r
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// TestCall_RetrySequence exercises a retry sequence: responses
// 503, 429, 503, 200 cause three retries before success.
func TestCall_RetrySequence(t *testing.T) {
	statuses := []int{http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusOK}
	var sleeps []time.Duration
	p := New()
	attempt := 0
	err := p.CallWithSleeper(func() (bool, error) {
		code := statuses[attempt]
		attempt++
		if IsRetryableStatus(code) {
			return true, assertStatusErr(code)
		}
		return false, nil
	}, func(d time.Duration) { sleeps = append(sleeps, d) })

	require.NoError(t, err)
	assert.Equal(t, 4, attempt)
	require.Len(t, sleeps, 3)
	for i, s := range sleeps {
		base := minFloat(pow2(i), 64)
		assert.GreaterOrEqual(t, s, time.Duration(base*float64(time.Second)))
		assert.Less(t, s, time.Duration(base*float64(time.Second))+time.Second)
	}
}

func TestCall_NonRetryableStopsImmediately(t *testing.T) {
	p := New()
	calls := 0
	err := p.CallWithSleeper(func() (bool, error) {
		calls++
		return false, assertStatusErr(http.StatusNotFound)
	}, func(time.Duration) {})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCall_CumulativeCeiling(t *testing.T) {
	p := New(MaxCumulativeRetry(2 * time.Second))
	calls := 0
	var sleeps []time.Duration
	err := p.CallWithSleeper(func() (bool, error) {
		calls++
		return true, assertStatusErr(http.StatusServiceUnavailable)
	}, func(d time.Duration) { sleeps = append(sleeps, d) })
	assert.Error(t, err)
	var total time.Duration
	for _, s := range sleeps {
		total += s
	}
	assert.LessOrEqual(t, total, 2*time.Second)
}

type statusErr struct{ code int }

func (e statusErr) Error() string { return http.StatusText(e.code) }

func assertStatusErr(code int) error { return statusErr{code} }
