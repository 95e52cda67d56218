package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	Register()
	Register()

	const learner = "TestRecorders"

	RecordInference(learner, 0.5)
	RecordInference(learner, 0.25)
	assert.Equal(t, 2.0, testutil.ToFloat64(inferences.WithLabelValues(learner)))
	assert.Equal(t, 0.25, testutil.ToFloat64(epsilon.WithLabelValues(learner)))

	RecordWindow(learner, 3, 0.001)
	assert.Equal(t, 3.0, testutil.ToFloat64(trainedItems.WithLabelValues(learner)))
	assert.Equal(t, 1.0, testutil.ToFloat64(episodes.WithLabelValues(learner)))

	RecordEvicted(learner, 0)
	RecordEvicted(learner, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(evicted.WithLabelValues(learner)))

	RecordPending(learner, 7)
	assert.Equal(t, 7.0, testutil.ToFloat64(pending.WithLabelValues(learner)))
}

func TestHandler(t *testing.T) {
	Register()
	RecordReset("TestHandler")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, strings.Contains(rec.Body.String(),
		`learner_resets_total{learner="TestHandler"} 1`))
}
