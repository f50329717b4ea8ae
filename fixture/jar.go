package fixture

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/selenium-go/testenv/logging"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultServerVersion is the Selenium server release downloaded when no jar is available
	// locally.
	DefaultServerVersion = "4.25.0"

	serverReleaseURLFormat = "https://github.com/SeleniumHQ/selenium/releases/download/selenium-%s/selenium-server-%s.jar"
	maxDownloadAttempts    = 3
)

// TestJarPath is where a prebuilt server jar is expected relative to the working directory.
var TestJarPath = filepath.Join("rb", "selenium_server_deploy.jar")

// BuiltJarPath is where the build places the server jar, relative to the repository root.
var BuiltJarPath = filepath.Join("bazel-bin", "java", "src", "org", "openqa", "selenium", "grid", "selenium_server_deploy.jar")

// JarLocation contains the inputs of ResolveServerJar.
type JarLocation struct {
	// WorkDir is searched for TestJarPath. Defaults to the current directory.
	WorkDir string

	// RepoRoot is searched for BuiltJarPath. Empty skips that lookup.
	RepoRoot string

	// ForceDownload skips both local lookups.
	ForceDownload bool

	// CacheDir receives downloaded jars. Defaults to the user cache directory.
	CacheDir string

	// Version is the release to download. Defaults to DefaultServerVersion.
	Version string

	// DownloadURL overrides the release URL.
	DownloadURL string

	Logger logging.Logger
}

// ResolveServerJar finds a Selenium server jar: the test jar in the working directory, then the
// jar built under the repository root, and otherwise a released jar, downloaded once into the
// cache directory.
func ResolveServerJar(loc JarLocation) (string, error) {
	logger := loc.Logger
	if logger == nil {
		logger = logging.NullLogger()
	}

	if !loc.ForceDownload {
		workDir := loc.WorkDir
		if workDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			workDir = wd
		}
		candidates := []string{filepath.Join(workDir, TestJarPath)}
		if loc.RepoRoot != "" {
			candidates = append(candidates, filepath.Join(loc.RepoRoot, BuiltJarPath))
		}
		for _, c := range candidates {
			if fileExists(c) {
				logger.Printf("Server location: %s", c)
				return c, nil
			}
		}
	}

	jar, err := downloadServerJar(loc, logger)
	if err != nil {
		return "", err
	}
	logger.Printf("Server location: %s", jar)
	return jar, nil
}

func downloadServerJar(loc JarLocation, logger logging.Logger) (string, error) {
	version := loc.Version
	if version == "" {
		version = DefaultServerVersion
	}
	cacheDir := loc.CacheDir
	if cacheDir == "" {
		userCache, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("no cache directory for server download: %w", err)
		}
		cacheDir = filepath.Join(userCache, "selenium-testenv")
	}
	dest := filepath.Join(cacheDir, fmt.Sprintf("selenium-server-%s.jar", version))
	if fileExists(dest) {
		return dest, nil
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}

	url := loc.DownloadURL
	if url == "" {
		url = fmt.Sprintf(serverReleaseURLFormat, version, version)
	}
	logger.Printf("Downloading %s", url)
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxDownloadAttempts-1)
	if err := backoff.Retry(func() error { return downloadFile(url, dest) }, policy); err != nil {
		return "", fmt.Errorf("could not download server jar from %s: %w", url, err)
	}
	return dest, nil
}

func downloadFile(url, dest string) error {
	resp, err := http.DefaultClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		err := fmt.Errorf("download returned HTTP %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return backoff.Permanent(err)
	}
	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
