package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/tdlearner/agent"
	"github.com/samuelfneumann/tdlearner/agent/online"
	"github.com/samuelfneumann/tdlearner/api"
	"github.com/samuelfneumann/tdlearner/config"
)

type memoryStore struct {
	sync.Mutex
	records []config.Record
}

func (m *memoryStore) Save(r config.Record) error {
	m.Lock()
	defer m.Unlock()
	m.records = append(m.records, r)
	return nil
}

func newServer(t *testing.T) (*api.Server, *online.Learner, *memoryStore) {
	t.Helper()

	p := agent.Defaults()
	p.WindowSize = 3
	p.ActionsN = 2
	p.Alpha = 0.1

	l, err := online.New(agent.SarsaQTable, p, logr.Discard())
	require.NoError(t, err)
	require.NoError(t, l.Start())
	t.Cleanup(l.Stop)

	store := &memoryStore{}
	return api.NewServer(l, store, logr.Discard()), l, store
}

func do(s http.Handler, method, target, body string,
	headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func trainHeaders(eid, state, action, reward string) map[string]string {
	return map[string]string{
		api.HeaderEid:    eid,
		api.HeaderState:  state,
		api.HeaderAction: action,
		api.HeaderReward: reward,
	}
}

func TestBanner(t *testing.T) {
	s, _, _ := newServer(t)

	rec := do(s, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "This is "+config.AppName+" v"+config.AppVersion+".",
		rec.Body.String())

	assert.Equal(t, http.StatusNotFound,
		do(s, http.MethodGet, "/nothing", "", nil).Code)
}

func TestAct(t *testing.T) {
	s, l, _ := newServer(t)

	rec := do(s, http.MethodGet, "/act", "",
		map[string]string{api.HeaderState: "1,0,3"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Contains(t, []string{"0", "1"}, rec.Body.String())
	assert.Equal(t, "0.9", rec.Header().Get(api.HeaderEpsilon))
	assert.Equal(t, uint64(1), l.Stats().Inferences)

	rec = do(s, http.MethodGet, "/act", "",
		map[string]string{api.HeaderState: "1,x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, "/act", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrain(t *testing.T) {
	s, l, _ := newServer(t)

	rec := do(s, http.MethodGet, "/train", "", trainHeaders("1", "0", "0", "1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ok", rec.Body.String())

	// Actions are sent as floats by some producers
	rec = do(s, http.MethodGet, "/train", "", trainHeaders("2", "1", "1.0", "0"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(s, http.MethodGet, "/train", "", trainHeaders("2", "1", "1", "0"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(s, http.MethodGet, "/train", "", trainHeaders("3", "1", "", "0"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, "/train", "", trainHeaders("3", "1", "7", "0"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 2, l.Stats().PendingEntries)
	assert.Equal(t, uint64(1), l.Stats().DuplicateEntries)
}

func TestTrainBatch(t *testing.T) {
	s, l, _ := newServer(t)

	body := `[
		{"eid": 1, "state": "0", "action": 0, "reward": 1},
		{"eid": "2", "state": [1], "action": 1.0, "reward": "0"},
		{"eid": 3, "state": "2", "action": "0", "reward": 1.0}
	]`
	rec := do(s, http.MethodPost, "/train_batch", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		return l.Stats().Episodes == 1
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, uint64(3), l.Stats().TrainedItems)
}

func TestTrainBatchDuplicatesDoNotFail(t *testing.T) {
	s, l, _ := newServer(t)

	body := `[
		{"eid": 1, "state": "0", "action": 0, "reward": 1},
		{"eid": 1, "state": "0", "action": 0, "reward": 1}
	]`
	rec := do(s, http.MethodPost, "/train_batch", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, 1, l.Stats().PendingEntries)
	assert.Equal(t, uint64(1), l.Stats().DuplicateEntries)
}

func TestTrainBatchRejectsMalformedBatch(t *testing.T) {
	s, l, _ := newServer(t)

	for _, body := range []string{
		`[]`,
		`{"eid": 1}`,
		`[{"eid": 1, "state": "0", "action": 0, "reward": 1},
		  {"eid": 2, "state": "a,b", "action": 0, "reward": 1}]`,
		`[{"eid": -1, "state": "0", "action": 0, "reward": 1}]`,
		`[{"eid": 1, "state": "0", "action": 0, "reward": 1},
		  {"eid": 2, "state": "NaN", "action": 0, "reward": 1}]`,
		`[{"eid": 1, "state": "0", "action": 0, "reward": 1},
		  {"eid": 2, "state": [1], "action": 0, "reward": "Inf"}]`,
	} {
		rec := do(s, http.MethodPost, "/train_batch", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	// Nothing of a rejected batch is submitted
	assert.Equal(t, 0, l.Stats().PendingEntries)

	rec := do(s, http.MethodGet, "/train_batch", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTrainBatchSkipsEntriesRejectedByLearner(t *testing.T) {
	s, l, _ := newServer(t)

	// Action 5 is beyond actions_n, which only the learner knows
	body := `[
		{"eid": 1, "state": "0", "action": 0, "reward": 1},
		{"eid": 2, "state": "1", "action": 5, "reward": 0},
		{"eid": 3, "state": "2", "action": 1, "reward": 0}
	]`
	rec := do(s, http.MethodPost, "/train_batch", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stats := l.Stats()
	assert.Equal(t, 2, stats.PendingEntries)
	assert.Equal(t, uint64(3), stats.EidMaxSeen)
}

func TestParameters(t *testing.T) {
	s, l, store := newServer(t)

	rec := do(s, http.MethodGet, "/learner/parameters", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Name       string                 `json:"name"`
		Parameters map[string]interface{} `json:"parameters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, string(agent.SarsaQTable), got.Name)
	assert.Equal(t, 0.1, got.Parameters[agent.AlphaKey])

	rec = do(s, http.MethodPost, "/learner/parameters",
		`{"alpha": "0.5", "epsilon_decay_enabled": false}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0.5, l.Parameters().Alpha)

	require.Len(t, store.records, 1)
	assert.Equal(t, string(agent.SarsaQTable), store.records[0].Name)
	assert.Equal(t, 0.5, store.records[0].Parameters[agent.AlphaKey])

	rec = do(s, http.MethodPost, "/learner/parameters", `{"alpha": "fast"}`,
		nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0.5, l.Parameters().Alpha)
	assert.Len(t, store.records, 1)

	rec = do(s, http.MethodPost, "/learner/parameters", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsWeightsAndReset(t *testing.T) {
	s, l, _ := newServer(t)

	do(s, http.MethodGet, "/act", "", map[string]string{api.HeaderState: "0"})
	do(s, http.MethodGet, "/train", "", trainHeaders("1", "0", "0", "1"))

	rec := do(s, http.MethodGet, "/learner/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats agent.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, uint64(1), stats.Inferences)
	assert.Equal(t, 1, stats.PendingEntries)
	assert.NotNil(t, stats.AverageReward)

	rec = do(s, http.MethodGet, "/learner/weights", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = do(s, http.MethodGet, "/learner/reset", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, l.Stats().PendingEntries)
	assert.Equal(t, uint64(0), l.Stats().Inferences)

	l.Stop()
	rec = do(s, http.MethodGet, "/learner/reset", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = do(s, http.MethodGet, "/train", "", trainHeaders("2", "0", "0", "1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newServer(t)

	rec := do(s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParseBatchValues(t *testing.T) {
	batch, err := api.ParseBatch([]byte(
		`[{"eid": 4, "state": "1, 2", "action": "1.0", "reward": -0.5}]`))
	require.NoError(t, err)
	require.Len(t, batch, 1)

	assert.Equal(t, uint64(4), batch[0].Eid)
	assert.Equal(t, []float64{1, 2}, batch[0].State)
	assert.Equal(t, 1, batch[0].Action)
	assert.Equal(t, -0.5, batch[0].Reward)
}
