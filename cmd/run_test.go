package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixise/daodash/internal/config"
)

func testConfig(indexerURL string) *config.Config {
	return &config.Config{
		IndexerURL:   indexerURL,
		ChainID:      "osmosis-1",
		DAOAddress:   "osmo1sy9k228qzke0nd3k3vmxdvr68xdlqsu66h3xgm9ke3c4jhamusvsz98pre",
		PollInterval: "30s",
		Tokens:       config.DefaultTokens(),
		Wallet:       config.WalletConfig{Bech32Prefix: "osmo"},
	}
}

func TestSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/daoCore/allProposals"):
			w.Write([]byte(`[{"id":"A1","proposal":{"title":"Fund liquidity","status":"passed"},"createdAt":"2024-05-01"}]`))
		case strings.HasSuffix(r.URL.Path, "/bank/balances"):
			w.Write([]byte(`{"gamm/pool/1344":"2500000000","uosmo":"0"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a, err := newApp(testConfig(srv.URL), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, a.snapshot(context.Background(), &out))

	text := out.String()
	assert.Contains(t, text, "Fund liquidity")
	assert.Contains(t, text, "passed")
	assert.Contains(t, text, "GAMM-1344")
	assert.Contains(t, text, "2.50K")
	assert.NotContains(t, text, "uosmo")
}

func TestSnapshotReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.TreasuryReportStatusErrors = true
	a, err := newApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	var out bytes.Buffer
	assert.Error(t, a.snapshot(context.Background(), &out))
	assert.Contains(t, out.String(), "Failed to load proposals: http error: status 500")
	assert.Contains(t, out.String(), "Failed to load treasury data: http error: status 500")
}

func TestNewAppWithMissingKeyFile(t *testing.T) {
	cfg := testConfig("http://localhost:1")
	cfg.Wallet.KeyFile = t.TempDir() + "/missing.key"

	_, err := newApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
