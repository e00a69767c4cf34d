package ipcheck

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banappeals/backend/internal/config"
)

func testClient(serverURL string) *Client {
	c := NewClient(config.IPCheckConfig{Enabled: true, APIKey: "test-key"})
	c.endpoint = serverURL
	return c
}

// TestIsProxy verifies verdict parsing against a stubbed lookup API.
func TestIsProxy(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		want     bool
		wantErr  bool
	}{
		{
			name:   "flagged address",
			body:   `{"status":"ok","203.0.113.7":{"proxy":"yes","type":"VPN"}}`,
			status: http.StatusOK,
			want:   true,
		},
		{
			name:   "clean address",
			body:   `{"status":"ok","203.0.113.7":{"proxy":"no"}}`,
			status: http.StatusOK,
			want:   false,
		},
		{
			name:    "api error status",
			body:    `{"status":"error","message":"invalid key"}`,
			status:  http.StatusOK,
			wantErr: true,
		},
		{
			name:    "http error",
			body:    `{}`,
			status:  http.StatusTooManyRequests,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/203.0.113.7", r.URL.Path)
				assert.Equal(t, "1", r.URL.Query().Get("vpn"))
				assert.Equal(t, "test-key", r.URL.Query().Get("key"))
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got, err := testClient(server.URL).IsProxy("203.0.113.7")

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestIsProxyUnreachable verifies connection failures surface as errors
// for the caller's fail-open policy.
func TestIsProxyUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := testClient(server.URL)
	server.Close()

	_, err := client.IsProxy("203.0.113.7")

	assert.Error(t, err)
}
