package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"backend/internal/config"
	"backend/internal/detector"
	"backend/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestMain(m *testing.M) {
	_ = logger.Init("error", "console", "stderr")
	os.Exit(m.Run())
}

// stubClassifier 测试用外部分类器
type stubClassifier struct {
	result *Result
	err    error
	calls  int
}

func (s *stubClassifier) Classify(_ context.Context, _ string, _ string) (*Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func jsonList(t *testing.T, entries []string) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(entries)
	require.NoError(t, err)
	return datatypes.JSON(raw)
}

func TestBlacklistForcesPositive(t *testing.T) {
	// 外部分类器给低置信度，黑名单命中仍强制 1.0
	stub := &stubClassifier{result: &Result{IsMatch: false, Confidence: 0.1}}
	adapter := NewAdapter(stub)

	cfg := &detector.DetectorConfig{
		Category:  detector.CategoryProfanity,
		Blacklist: jsonList(t, []string{"forbidden"}),
	}

	result, err := adapter.Classify(context.Background(), cfg, "this text contains FORBIDDEN words")
	require.NoError(t, err)
	assert.True(t, result.IsMatch)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	assert.Zero(t, stub.calls, "黑名单命中不应出网")
}

func TestWhitelistForcesNegative(t *testing.T) {
	stub := &stubClassifier{result: &Result{IsMatch: true, Confidence: 0.99}}
	adapter := NewAdapter(stub)

	cfg := &detector.DetectorConfig{
		Category:  detector.CategoryProfanity,
		Whitelist: jsonList(t, []string{"scunthorpe"}),
	}

	result, err := adapter.Classify(context.Background(), cfg, "news from Scunthorpe today")
	require.NoError(t, err)
	assert.False(t, result.IsMatch)
	assert.Zero(t, stub.calls, "白名单命中不应出网")
}

func TestWhitelistWinsOverBlacklist(t *testing.T) {
	stub := &stubClassifier{result: &Result{IsMatch: true, Confidence: 0.99}}
	adapter := NewAdapter(stub)

	cfg := &detector.DetectorConfig{
		Category:  detector.CategoryProfanity,
		Whitelist: jsonList(t, []string{"classic"}),
		Blacklist: jsonList(t, []string{"ass"}),
	}

	result, err := adapter.Classify(context.Background(), cfg, "a classic tale")
	require.NoError(t, err)
	assert.False(t, result.IsMatch)
}

func TestLocalPatternMatching(t *testing.T) {
	stub := &stubClassifier{result: &Result{IsMatch: false, Confidence: 0}}
	adapter := NewAdapter(stub)

	cfg := &detector.DetectorConfig{
		Category: detector.CategoryPIIEmail,
		Pattern:  `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
	}

	hit, err := adapter.Classify(context.Background(), cfg, "联系我: someone@example.com")
	require.NoError(t, err)
	assert.True(t, hit.IsMatch)
	assert.InDelta(t, 1.0, hit.Confidence, 1e-9)

	miss, err := adapter.Classify(context.Background(), cfg, "没有任何联系方式")
	require.NoError(t, err)
	assert.False(t, miss.IsMatch)
	assert.Zero(t, stub.calls, "本地正则类别不应出网")
}

func TestFallthroughToExternalClassifier(t *testing.T) {
	stub := &stubClassifier{result: &Result{IsMatch: true, Confidence: 0.82}}
	adapter := NewAdapter(stub)

	cfg := &detector.DetectorConfig{Category: detector.CategorySpam}

	result, err := adapter.Classify(context.Background(), cfg, "buy cheap things now")
	require.NoError(t, err)
	assert.True(t, result.IsMatch)
	assert.InDelta(t, 0.82, result.Confidence, 1e-9)
	assert.Equal(t, 1, stub.calls)
}

func TestClassifierUnavailablePropagates(t *testing.T) {
	stub := &stubClassifier{err: ErrClassifierUnavailable}
	adapter := NewAdapter(stub)

	cfg := &detector.DetectorConfig{Category: detector.CategoryNSFW}

	_, err := adapter.Classify(context.Background(), cfg, "some payload")
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
}

func TestHTTPClassifierOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, detector.CategorySpam, req.Category)
		_ = json.NewEncoder(w).Encode(Result{IsMatch: true, Confidence: 0.9})
	}))
	defer server.Close()

	classifier := NewHTTPClassifier(&config.ClassifierConfig{
		Endpoints: map[string]string{detector.CategorySpam: server.URL},
		TimeoutMs: 1000,
	})

	result, err := classifier.Classify(context.Background(), detector.CategorySpam, "payload")
	require.NoError(t, err)
	assert.True(t, result.IsMatch)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
}

func TestHTTPClassifierTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	classifier := NewHTTPClassifier(&config.ClassifierConfig{
		Endpoints: map[string]string{detector.CategoryNSFW: server.URL},
		TimeoutMs: 20,
	})

	_, err := classifier.Classify(context.Background(), detector.CategoryNSFW, "payload")
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
}

func TestHTTPClassifierBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	classifier := NewHTTPClassifier(&config.ClassifierConfig{
		Endpoints: map[string]string{detector.CategorySpam: server.URL},
		TimeoutMs: 1000,
	})

	_, err := classifier.Classify(context.Background(), detector.CategorySpam, "payload")
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
}

func TestHTTPClassifierMissingEndpoint(t *testing.T) {
	classifier := NewHTTPClassifier(&config.ClassifierConfig{Endpoints: map[string]string{}})

	_, err := classifier.Classify(context.Background(), detector.CategoryNSFW, "payload")
	assert.ErrorIs(t, err, ErrClassifierUnavailable)
}
