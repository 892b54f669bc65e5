package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aq2208/gorder-bookstore/configs"
	"github.com/aq2208/gorder-bookstore/internal/logging"
	"github.com/aq2208/gorder-bookstore/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func testConfig() configs.Config {
	var cfg configs.Config
	cfg.Security.JWTSecret = "test-secret"
	cfg.Security.Issuer = "bookstore"
	cfg.Security.Audience = "bookstore-api"
	cfg.Gateway.SaltKey = "salt"
	cfg.Gateway.SaltIndex = "1"
	return cfg
}

func sign(t *testing.T, cfg configs.Config, sub string, perms ...string) string {
	t.Helper()
	p := make([]any, len(perms))
	for i, v := range perms {
		p[i] = v
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   cfg.Security.Issuer,
		"aud":   cfg.Security.Audience,
		"sub":   sub,
		"email": sub + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"perms": p,
	})
	s, err := tok.SignedString([]byte(cfg.Security.JWTSecret))
	require.NoError(t, err)
	return s
}

func TestAuthz_Require(t *testing.T) {
	cfg := testConfig()
	r := gin.New()
	r.GET("/me", NewAuthz(cfg).Require(PermRead), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"account": AccountID(c), "email": Email(c), "admin": IsAdmin(c)})
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"missing perm", "Bearer " + sign(t, cfg, "acc-1", PermWrite), http.StatusForbidden},
		{"ok", "Bearer " + sign(t, cfg, "acc-1", PermRead, PermAdmin), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				var got map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, "acc-1", got["account"])
				assert.Equal(t, "acc-1@example.com", got["email"])
				assert.Equal(t, true, got["admin"])
			}
		})
	}
}

func TestAuthz_WrongAudience(t *testing.T) {
	cfg := testConfig()
	other := cfg
	other.Security.Audience = "someone-else"

	r := gin.New()
	r.GET("/me", NewAuthz(cfg).Require(), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, other, "acc-1"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func newChecksumRouter(t *testing.T) (*gin.Engine, security.ChecksumService) {
	t.Helper()
	cm, err := security.NewChecksumMaterial(testConfig())
	require.NoError(t, err)
	cs, err := security.NewChecksumService(cm)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Logging(logging.Base()))
	r.POST("/callback", NewChecksumVerify(cs).Verify(), func(c *gin.Context) {
		raw, ok := RawBody(c)
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{"captured": ok && bytes.Equal(raw, body), "body": string(body)})
	})
	return r, cs
}

func TestChecksumVerify(t *testing.T) {
	r, cs := newChecksumRouter(t)
	body := `{"merchantTransactionId":"MT1","transactionId":"T1","amount":29900,"status":"SUCCESS"}`

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderVerify, cs.Sign([]byte(body)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var got map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, true, got["captured"])
		assert.Equal(t, body, got["body"])
	})

	t.Run("tampered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(strings.Replace(body, "29900", "1", 1)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderVerify, cs.Sign([]byte(body)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLogging_RestoresLargeBody(t *testing.T) {
	r := gin.New()
	r.Use(Logging(logging.Base()))
	r.POST("/echo", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, "%d", len(b))
	})

	big := `{"note":"` + strings.Repeat("x", 3*reqBodyLimit) + `","password":"hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	n, err := strconv.Atoi(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, len(big), n)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type repeatByte byte

func (b repeatByte) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(b)
	}
	return len(p), nil
}

func TestLogging_OversizedCallbackIsNotBuffered(t *testing.T) {
	r, _ := newChecksumRouter(t)

	body := &countingReader{r: io.LimitReader(repeatByte('x'), 32<<20)}
	req := httptest.NewRequest(http.MethodPost, "/callback", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderVerify, "whatever###1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Less(t, body.n, int64(2*callbackBodyLimit))
}

func TestLogging_CapsRequestBody(t *testing.T) {
	r := gin.New()
	r.Use(Logging(logging.Base()))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	body := &countingReader{r: io.LimitReader(repeatByte('x'), 4*MaxRequestBody)}
	req := httptest.NewRequest(http.MethodPost, "/echo", body)
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.LessOrEqual(t, body.n, int64(MaxRequestBody+64*1024))
}

func TestRedactJSON(t *testing.T) {
	out := redactJSON([]byte(`{"shippingAddress":{"street":"1 Main","phone":"555"},"password":"p","city":"Pune"}`))
	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "***redacted***", got["password"])
	addr := got["shippingAddress"].(map[string]any)
	assert.Equal(t, "***redacted***", addr["street"])
	assert.Equal(t, "***redacted***", addr["phone"])
	assert.Equal(t, "Pune", got["city"])

	assert.Equal(t, "not json", string(redactJSON([]byte("not json"))))
}
