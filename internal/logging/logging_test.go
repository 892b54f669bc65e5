package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrich_CarriesAttrsThroughContext(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: redactAttr}))

	ctx := WithCtx(context.Background(), l)
	ctx = Enrich(ctx, "merchant_txn", "MT-1")
	FromCtx(ctx).Info("callback", "checksum", "abc###1", "order_id", "o-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "MT-1", line["merchant_txn"])
	assert.Equal(t, "o-1", line["order_id"])
	assert.Equal(t, "***", line["checksum"])
}

func TestFromCtx_FallsBackToBase(t *testing.T) {
	assert.NotNil(t, FromCtx(context.Background()))
}
