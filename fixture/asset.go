package fixture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/selenium-go/testenv/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	assetListenerTimeout = time.Second * 10
	assetShutdownTimeout = time.Second * 5
)

// AssetServer serves the files under a directory over HTTP on a local port. Test pages are
// loaded from it by URL, see WhereIs.
type AssetServer struct {
	root   string
	host   string
	port   int
	logger logging.Logger

	lock    sync.Mutex
	server  *http.Server
	baseURL string
}

// AssetServerConfig contains the optional settings of an AssetServer.
type AssetServerConfig struct {
	// Host is the hostname used in URLs handed out by WhereIs. Defaults to "localhost".
	Host string

	// Port is the port to listen on. Zero selects a free port.
	Port int

	Logger logging.Logger
}

// NewAssetServer creates an AssetServer for root. The directory must exist.
func NewAssetServer(root string, c AssetServerConfig) (*AssetServer, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("asset root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset root %s is not a directory", root)
	}
	s := &AssetServer{
		root:   root,
		host:   c.Host,
		port:   c.Port,
		logger: c.Logger,
	}
	if s.host == "" {
		s.host = "localhost"
	}
	if s.logger == nil {
		s.logger = logging.NullLogger()
	}
	return s, nil
}

// Root returns the directory being served.
func (s *AssetServer) Root() string { return s.root }

// Start begins serving and returns the base URL once the listener is answering requests.
// Starting a running server returns its existing base URL.
func (s *AssetServer) Start() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.server != nil {
		return s.baseURL, nil
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return "", fmt.Errorf("asset server could not listen: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	baseURL := fmt.Sprintf("http://%s:%d", s.host, port)
	server := &http.Server{Handler: s.router()}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Asset server stopped unexpectedly: %s", err)
		}
	}()

	if err := WaitForListener(fmt.Sprintf("http://localhost:%d/", port), assetListenerTimeout); err != nil {
		_ = server.Close()
		return "", err
	}
	s.logger.Printf("Serving %s at %s", s.root, baseURL)
	s.server = server
	s.baseURL = baseURL
	return baseURL, nil
}

// Stop shuts the server down.
func (s *AssetServer) Stop() error {
	s.lock.Lock()
	server := s.server
	s.server = nil
	s.baseURL = ""
	s.lock.Unlock()
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), assetShutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}

// BaseURL returns the root URL of the running server, or "" if it is not running.
func (s *AssetServer) BaseURL() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.baseURL
}

// WhereIs returns the URL at which the running server serves the named file. The name is relative
// to the served directory.
func (s *AssetServer) WhereIs(name string) (string, error) {
	base := s.BaseURL()
	if base == "" {
		return "", errors.New("asset server is not running")
	}
	segments := strings.Split(strings.TrimPrefix(name, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return base + "/" + strings.Join(segments, "/"), nil
}

func (s *AssetServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NoCache)
	r.Use(s.requestLogger)
	r.Handle("/*", http.FileServer(http.Dir(s.root)))
	return r
}

func (s *AssetServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Printf("%s %s -> %d", r.Method, r.URL.Path, ww.Status())
	})
}
