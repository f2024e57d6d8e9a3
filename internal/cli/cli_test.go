package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GoPolymarket/attestgate/internal/config"
	"github.com/GoPolymarket/attestgate/internal/eas"
	"github.com/GoPolymarket/attestgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Log:       config.LogConfig{Level: "debug"},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Audit:     config.AuditConfig{LogDir: t.TempDir()},
		RateLimit: config.RateLimitConfig{RPS: 0},
		Retriever: config.RetrieverConfig{WindowRadius: 200, Limit: 100},
		PriceFeed: config.PriceFeedConfig{BaseURL: "http://127.0.0.1:0", QuoteAsset: "USDC"},
		Chain: config.ChainConfig{
			ChainID:    11155111,
			EASAddress: "0xC2679fBD37d54388Ce493F1DB75320D236e1815e",
			SchemaUID:  "0x417e7ac933ef1ac79862fa06044e1cdbb65ebd62e5f2ab5816899dad06edf459",
		},
	}
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	d := newDeps(testConfig(t))
	defer d.close()

	r, auditSvc, err := newRouter(context.Background(), "store", d)
	require.NoError(t, err)
	require.NotNil(t, auditSvc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"store"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDepsFallBackToMemory(t *testing.T) {
	d := newDeps(testConfig(t))
	defer d.close()

	assert.Nil(t, d.redisClient())
	db, err := d.database()
	require.NoError(t, err)
	assert.Nil(t, db)

	_, ok := d.thresholdStore().(*service.MemoryThresholdStore)
	assert.True(t, ok)

	retriever, err := d.retriever()
	require.NoError(t, err)
	_, ok = retriever.(*service.LocalRetriever)
	assert.True(t, ok)

	cfg := testConfig(t)
	cfg.Retriever.StoreURL = "http://localhost:6000"
	retriever, err = newDeps(cfg).retriever()
	require.NoError(t, err)
	_, ok = retriever.(*service.RemoteRetriever)
	assert.True(t, ok)
}

func TestNewAttesterOffchain(t *testing.T) {
	cfg := testConfig(t)
	d := newDeps(cfg)
	defer d.close()

	attester, err := newAttester(context.Background(), cfg.Chain, d)
	require.NoError(t, err)
	assert.Equal(t, eas.ModeOffchain, attester.Mode())

	att, err := attester.Attest(context.Background(), "agent-1", 88, false)
	require.NoError(t, err)
	assert.NotEmpty(t, att.UID)

	cfg.Chain.Recipient = "not-an-address"
	_, err = newAttester(context.Background(), cfg.Chain, d)
	assert.Error(t, err)
}
