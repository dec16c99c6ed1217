// Package static serves files from a directory.
package static

import (
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/indigo-web/strand/http"
	"github.com/indigo-web/strand/http/method"
	"github.com/indigo-web/strand/http/mime"
	"github.com/indigo-web/strand/http/status"
)

// Index is the file served for directory requests.
const Index = "index.html"

// Static streams files under the root. The length is known up front, so the response is
// declared right away and the file is then sent piece by piece, one content buffer per
// pass.
type Static struct {
	root   string
	prefix string
}

// New serves the files from root for targets starting with prefix. The prefix is cut off
// before the file is looked up.
func New(prefix, root string) *Static {
	return &Static{
		root:   filepath.Clean(root),
		prefix: "/" + strings.Trim(prefix, "/"),
	}
}

type transfer struct {
	path      string
	offset    int64
	remaining int64
}

func (s *Static) Serve(req *http.Request, resp *http.Response) http.Result {
	if t, ok := req.Private.(*transfer); ok {
		return s.send(t, resp)
	}

	if req.Method != method.GET && req.Method != method.HEAD {
		return http.Pass
	}

	file, err := s.lookup(req.Path())
	switch {
	case errors.Is(err, errOutside):
		return http.Pass
	case err != nil:
		resp.Code(status.BadRequest)
		return http.Success
	}

	info, err := os.Stat(file)
	if err == nil && info.IsDir() {
		file = filepath.Join(file, Index)
		info, err = os.Stat(file)
	}

	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && info.IsDir():
		return http.Pass
	case errors.Is(err, fs.ErrPermission):
		resp.Code(status.Forbidden)
		return http.Success
	case err != nil:
		resp.Code(status.InternalServerError)
		return http.Success
	}

	resp.
		Header("Content-Type", mime.ByFilename(file)).
		ContentLength(int(info.Size()))

	if req.Method == method.HEAD || info.Size() == 0 {
		return http.Success
	}

	t := &transfer{path: file, remaining: info.Size()}
	req.Private = t

	return s.send(t, resp)
}

var (
	errOutside   = errors.New("target is outside the prefix")
	errBadTarget = errors.New("malformed target")
)

// lookup maps the target onto the filesystem. Cleaning the target as an absolute path
// first keeps dot-dot segments from climbing above the root.
func (s *Static) lookup(target string) (string, error) {
	target, err := url.PathUnescape(target)
	if err != nil || strings.IndexByte(target, 0) != -1 {
		return "", errBadTarget
	}

	target = path.Clean("/" + target)
	if s.prefix != "/" {
		rest, found := strings.CutPrefix(target, s.prefix)
		if !found || (len(rest) > 0 && rest[0] != '/') {
			return "", errOutside
		}

		target = "/" + strings.TrimPrefix(rest, "/")
	}

	return filepath.Join(s.root, filepath.FromSlash(target)), nil
}

// send reads the next piece of the file into the response body. The file is reopened on
// every pass, so no descriptor is held while the connection waits.
func (s *Static) send(t *transfer, resp *http.Response) http.Result {
	room := int64(resp.Body().Room())
	if room <= 0 {
		return http.Continue
	}

	f, err := os.Open(t.path)
	if err != nil {
		return http.Reject
	}
	defer f.Close()

	piece := make([]byte, min(room, t.remaining))
	// ReadAt fails whenever it reads less, including the file shrinking mid-transfer
	n, err := f.ReadAt(piece, t.offset)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(piece)) {
		return http.Reject
	}

	if _, err = resp.Write(piece); err != nil {
		return http.Reject
	}

	t.offset += int64(n)
	t.remaining -= int64(n)
	if t.remaining == 0 {
		return http.Success
	}

	return http.Continue
}
