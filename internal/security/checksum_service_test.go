package security

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/aq2208/gorder-bookstore/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) ChecksumService {
	t.Helper()
	var cfg configs.Config
	cfg.Gateway.SaltKey = "salt-key"
	cfg.Gateway.SaltIndex = "1"
	cm, err := NewChecksumMaterial(cfg)
	require.NoError(t, err)
	cs, err := NewChecksumService(cm)
	require.NoError(t, err)
	return cs
}

func TestChecksum_SignMatchesGatewayFormat(t *testing.T) {
	cs := newTestService(t)
	body := []byte(`{"merchantTransactionId":"MT1","status":"SUCCESS"}`)

	sum := sha256.Sum256(append(append([]byte{}, body...), "salt-key"...))
	assert.Equal(t, hex.EncodeToString(sum[:])+"###1", cs.Sign(body))
}

func TestChecksum_Verify(t *testing.T) {
	cs := newTestService(t)
	body := []byte(`{"merchantTransactionId":"MT1","amount":59800,"status":"SUCCESS"}`)
	good := cs.Sign(body)

	assert.NoError(t, cs.Verify(body, good))
	assert.ErrorIs(t, cs.Verify(body, ""), ErrChecksumMissing)
	assert.ErrorIs(t, cs.Verify(body, "deadbeef###1"), ErrChecksumMismatch)
	assert.ErrorIs(t, cs.Verify([]byte(`{"merchantTransactionId":"MT1","amount":1,"status":"SUCCESS"}`), good), ErrChecksumMismatch)
}

func TestChecksumMaterial_RequiresSalt(t *testing.T) {
	_, err := LoadChecksumMaterial(configs.Config{})
	assert.Error(t, err)
}
