package urlcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLandingScanner_PasswordForm(t *testing.T) {
	srv := serveHTML(t, `
		<html><body>
		<form action="/login" method="post">
			<input type="text" name="username">
			<input type="password" name="password">
		</form>
		</body></html>`)

	ls := NewLandingScanner(2 * time.Second)
	found, err := ls.HasCredentialForm(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.True(t, found)
}

func TestLandingScanner_SensitiveFieldName(t *testing.T) {
	srv := serveHTML(t, `
		<form action="/submit">
			<input type="text" name="kata_sandi">
		</form>`)

	ls := NewLandingScanner(2 * time.Second)
	found, err := ls.HasCredentialForm(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.True(t, found)
}

func TestLandingScanner_HarmlessPage(t *testing.T) {
	srv := serveHTML(t, `
		<html><body>
		<h1>Pengumuman Kuliah</h1>
		<form action="/search"><input type="text" name="q"></form>
		</body></html>`)

	ls := NewLandingScanner(2 * time.Second)
	found, err := ls.HasCredentialForm(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.False(t, found)
}

func TestLandingScanner_Unreachable(t *testing.T) {
	ls := NewLandingScanner(200 * time.Millisecond)
	_, err := ls.HasCredentialForm(context.Background(), "http://127.0.0.1:1/")

	assert.Error(t, err)
}
