package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherRendersRegisteredMetrics(t *testing.T) {
	r := New()
	r.SyscallsTotal.WithLabelValues("1").Inc()
	r.ThreadsRunnable.Set(3)

	snap, err := r.gather()
	require.EqualValues(t, 0, err)
	text := string(snap)
	assert.Contains(t, text, "nanokernel_syscalls_total")
	assert.Contains(t, text, "nanokernel_threads_runnable 3")
}

func TestHandlerServesSameDataAsGather(t *testing.T) {
	r := New()
	r.PagesAllocated.Set(42)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "nanokernel_pages_allocated 42"))
}

func TestStatDevopsReadReflectsCurrentSnapshot(t *testing.T) {
	r := New()
	r.FutexWaiters.Set(7)
	dev := &statDevops{r: r}

	buf := make([]byte, 65536)
	n, err := dev.Read(nil, buf, 0)
	require.EqualValues(t, 0, err)
	assert.Contains(t, string(buf[:n]), "nanokernel_futex_waiters 7")

	n2, err := dev.Write(nil, []byte("x"), 0)
	assert.EqualValues(t, 0, n2)
	assert.NotEqualValues(t, 0, err)
}
