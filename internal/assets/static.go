// Package assets serves files from the SPA build output.
package assets

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// IndexFile is the SPA entry document. It is never served as a plain asset
// because it needs runtime env injection.
const IndexFile = "index.html"

// Server resolves request paths against a build root.
type Server struct {
	root   string
	logger *logrus.Logger
}

// New returns a Server rooted at root.
func New(root string, logger *logrus.Logger) *Server {
	return &Server{root: root, logger: logger}
}

// Serve sends the file at the request path when it exists under the root.
// Directories, the entry document and missing files pass to the next route.
func (s *Server) Serve(c fiber.Ctx) (bool, error) {
	method := c.Method()
	if method != http.MethodGet && method != http.MethodHead {
		return false, nil
	}

	file, ok := s.Resolve(c.Path())
	if !ok {
		return false, nil
	}
	// SendFile routes the file path through a request URI, so reserved
	// characters in file names must stay escaped.
	if err := c.SendFile((&url.URL{Path: filepath.ToSlash(file)}).EscapedPath()); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action": "static",
			"path":   c.Path(),
		}).Warn("static_send_failed")
		return true, err
	}
	return true, nil
}

// Resolve maps a percent-encoded URL path to an absolute file path. Cleaning
// against "/" after decoding keeps ".." and "%2e%2e" from escaping the root.
func (s *Server) Resolve(urlPath string) (string, bool) {
	decoded, err := url.PathUnescape(urlPath)
	if err != nil || strings.ContainsRune(decoded, 0) {
		return "", false
	}
	clean := path.Clean("/" + decoded)
	if clean == "/" || clean == "/"+IndexFile {
		return "", false
	}

	file := filepath.Join(s.root, filepath.FromSlash(clean))
	info, err := os.Stat(file)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"action": "static",
				"path":   urlPath,
			}).Debug("static_stat_failed")
		}
		return "", false
	}
	if !info.Mode().IsRegular() {
		return "", false
	}
	return file, true
}
