package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	r := New()
	r.Observe("backup", time.Now(), nil)
	r.Observe("backup", time.Now(), nil)
	r.Observe("rollback", time.Now(), errors.New("boom"))
	r.ObserveBackup(12, 4096)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Operations.WithLabelValues("backup", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Operations.WithLabelValues("rollback", "failed")))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.BackupFiles))
	assert.Equal(t, 4096.0, testutil.ToFloat64(r.BackupBytes))
	assert.Greater(t, testutil.ToFloat64(r.LastSuccess.WithLabelValues("backup")), 0.0)
	assert.Equal(t, 2, testutil.CollectAndCount(r.OperationDuration))
}

func TestPush(t *testing.T) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path = req.URL.Path
		data, _ := io.ReadAll(req.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New()
	r.Observe("verify", time.Now(), nil)
	require.NoError(t, r.Push(context.Background(), srv.URL, "sitebak", "staging"))
	assert.Equal(t, "/metrics/job/sitebak/environment/staging", path)
	assert.NotEmpty(t, body)
}

func TestPushDisabled(t *testing.T) {
	assert.NoError(t, New().Push(context.Background(), "", "sitebak", "staging"))
}
