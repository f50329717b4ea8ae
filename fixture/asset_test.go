package fixture

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/selenium-go/testenv/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeAssetRoot(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xhtmlTest.html"), []byte("<html>hi</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested dir", "page.html"), []byte("nested"), 0o644))
	return dir
}

func getBody(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestAssetServerServesFiles(t *testing.T) {
	logger := &logging.CapturingLogger{}
	s, err := NewAssetServer(makeAssetRoot(t), AssetServerConfig{Logger: logger})
	require.NoError(t, err)
	defer s.Stop()

	base, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, base, s.BaseURL())

	url, err := s.WhereIs("xhtmlTest.html")
	require.NoError(t, err)
	assert.Equal(t, base+"/xhtmlTest.html", url)
	status, body := getBody(t, url)
	assert.Equal(t, 200, status)
	assert.Equal(t, "<html>hi</html>", body)

	url, err = s.WhereIs("/nested dir/page.html")
	require.NoError(t, err)
	assert.Equal(t, base+"/nested%20dir/page.html", url)
	status, body = getBody(t, url)
	assert.Equal(t, 200, status)
	assert.Equal(t, "nested", body)

	status, _ = getBody(t, base+"/missing.html")
	assert.Equal(t, 404, status)
	assert.NotEmpty(t, logger.Output())
}

func TestAssetServerStartIsIdempotent(t *testing.T) {
	s, err := NewAssetServer(makeAssetRoot(t), AssetServerConfig{})
	require.NoError(t, err)
	defer s.Stop()

	first, err := s.Start()
	require.NoError(t, err)
	second, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssetServerStop(t *testing.T) {
	s, err := NewAssetServer(makeAssetRoot(t), AssetServerConfig{})
	require.NoError(t, err)

	assert.NoError(t, s.Stop(), "stopping a server that never started")

	_, err = s.Start()
	require.NoError(t, err)
	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
	assert.Equal(t, "", s.BaseURL())

	_, err = s.WhereIs("xhtmlTest.html")
	assert.Error(t, err)
}

func TestAssetServerUsesConfiguredHost(t *testing.T) {
	s, err := NewAssetServer(makeAssetRoot(t), AssetServerConfig{Host: "127.0.0.1"})
	require.NoError(t, err)
	defer s.Stop()

	base, err := s.Start()
	require.NoError(t, err)
	assert.Regexp(t, `^http://127\.0\.0\.1:\d+$`, base)
}

func TestNewAssetServerRequiresDirectory(t *testing.T) {
	_, err := NewAssetServer(filepath.Join(t.TempDir(), "missing"), AssetServerConfig{})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewAssetServer(file, AssetServerConfig{})
	assert.Error(t, err)
}
