package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPrometheusProvider(t *testing.T) {
	p, err := NewPrometheusProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	rec, err := NewRecorder(p.Meter())
	require.NoError(t, err)

	ctx := context.Background()
	rec.RecordSimulation(ctx, "expense_claim", 2, 1, 1)
	rec.RecordResolution(ctx, true)
	rec.RecordResolution(ctx, false)
	rec.RecordSave(ctx, "workflow")

	body := scrape(t, p)
	assert.Contains(t, body, "approvals_simulations")
	assert.Contains(t, body, `entity_type="expense_claim"`)
	assert.Contains(t, body, `outcome="skipped"`)
	assert.Contains(t, body, "approvals_delegation_resolutions")
	assert.Contains(t, body, `outcome="delegated"`)
	assert.Contains(t, body, `kind="workflow"`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNilAndNoopRecorder(t *testing.T) {
	var nilRec *Recorder
	assert.NotPanics(t, func() {
		nilRec.RecordSimulation(context.Background(), "x", 1, 0, 0)
		nilRec.RecordResolution(context.Background(), true)
		nilRec.RecordSave(context.Background(), "rule")
		Noop().RecordSimulation(context.Background(), "x", 1, 0, 2)
	})
}
