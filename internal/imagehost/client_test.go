package imagehost

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-orders/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(config.ImageHostConfig{
		BaseURL: srv.URL + "/", CloudName: "demo", APIKey: "key", APISecret: "secret",
		UploadPreset: "meals", Folder: "menu",
	})
	require.NotNil(t, c)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestSign(t *testing.T) {
	// sha1("folder=menu&timestamp=1700000000&upload_preset=mealssecret")
	got := Sign(map[string]string{"upload_preset": "meals", "timestamp": "1700000000", "folder": "menu", "empty": ""}, "secret")
	assert.Equal(t, "c4ff44b68691980170fab9c10c2b14069fda0e6a", got)
	assert.Equal(t, got, Sign(map[string]string{"folder": "menu", "timestamp": "1700000000", "upload_preset": "meals"}, "secret"))
	assert.NotEqual(t, got, Sign(map[string]string{"folder": "menu", "timestamp": "1700000000", "upload_preset": "meals"}, "other"))
}

func TestNewRequiresCredentials(t *testing.T) {
	assert.Nil(t, New(config.ImageHostConfig{CloudName: "demo"}))

	var c *Client
	_, _, err := c.Upload(context.Background(), "a.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.Destroy(context.Background(), "a"), ErrNotConfigured)
}

func TestUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/image/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		b, _ := io.ReadAll(f)
		assert.Equal(t, "pizza.jpg", hdr.Filename)
		assert.Equal(t, "JPEG", string(b))
		assert.Equal(t, "meals", r.FormValue("upload_preset"))
		assert.Equal(t, "menu", r.FormValue("folder"))
		assert.Equal(t, "key", r.FormValue("api_key"))
		want := Sign(map[string]string{"folder": "menu", "upload_preset": "meals", "timestamp": "1700000000"}, "secret")
		assert.Equal(t, want, r.FormValue("signature"))
		_, _ = w.Write([]byte(`{"secure_url":"https://cdn.example/menu/pizza.jpg","public_id":"menu/pizza"}`))
	})

	url, id, err := c.Upload(context.Background(), "pizza.jpg", strings.NewReader("JPEG"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/menu/pizza.jpg", url)
	assert.Equal(t, "menu/pizza", id)
}

func TestUploadHostError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
	})
	_, _, err := c.Upload(context.Background(), "pizza.jpg", strings.NewReader("JPEG"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid Signature")
}

func TestDestroy(t *testing.T) {
	result := "ok"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/image/destroy", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "menu/pizza", r.PostForm.Get("public_id"))
		want := Sign(map[string]string{"public_id": "menu/pizza", "timestamp": "1700000000"}, "secret")
		assert.Equal(t, want, r.PostForm.Get("signature"))
		_, _ = w.Write([]byte(`{"result":"` + result + `"}`))
	})

	require.NoError(t, c.Destroy(context.Background(), "menu/pizza"))
	result = "not found"
	require.NoError(t, c.Destroy(context.Background(), "menu/pizza"))
	result = "error"
	assert.Error(t, c.Destroy(context.Background(), "menu/pizza"))
}
