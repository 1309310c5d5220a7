package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(ObjectsSaved)
	ObjectsSaved.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ObjectsSaved))

	BackupPhotos.WithLabelValues(ResultFailed).Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(BackupPhotos.WithLabelValues(ResultFailed)), 1.0)
}

func TestWriteTextfile(t *testing.T) {
	CacheHits.Inc()

	path := filepath.Join(t.TempDir(), "photovault.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "photovault_thumbnail_cache_hits_total"))
}
