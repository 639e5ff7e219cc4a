package server

import (
	"bytes"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"matrixpanel/internal/assets"
)

// NotFoundBody is returned with every 404.
const NotFoundBody = "<h1>404 Not Found</h1><p>Page not found, please check the URL.</p>"

// handleStatic resolves the request path against the asset root. It is the
// router's NoRoute handler, so everything that is not an API route lands here.
func (s *GinServer) handleStatic(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		s.handleNotFound(c)
		return
	}

	name, err := assetName(c.Request.URL.Path)
	if err != nil {
		s.handleNotFound(c)
		return
	}

	f, info, err := openAsset(s.assetFS, name)
	if err != nil {
		s.handleNotFound(c)
		return
	}
	defer f.Close()

	content, ok := f.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(f)
		if err != nil {
			s.handleNotFound(c)
			return
		}
		content = bytes.NewReader(data)
	}
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), content)
}

func (s *GinServer) handleNotFound(c *gin.Context) {
	c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte(NotFoundBody))
}

// assetName maps a URL path to a name inside the asset FS. Dot-files and
// anything that does not clean to a valid fs path are refused.
func assetName(urlPath string) (string, error) {
	if len(urlPath) > maxStaticAssetPathLen || strings.ContainsRune(urlPath, 0) {
		return "", errInvalidStaticPath
	}
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		return assets.IndexFile, nil
	}
	if !fs.ValidPath(name) {
		return "", errInvalidStaticPath
	}
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") {
			return "", errInvalidStaticPath
		}
	}
	return name, nil
}

// openAsset opens name, descending into a directory's index.html.
func openAsset(fsys fs.FS, name string) (fs.File, fs.FileInfo, error) {
	f, info, err := openRegular(fsys, name)
	if err == nil {
		return f, info, nil
	}
	if info == nil || !info.IsDir() {
		return nil, nil, err
	}
	return openRegular(fsys, path.Join(name, assets.IndexFile))
}

// openRegular returns an open file, or a nil file with the FileInfo of a
// directory so the caller can look inside it.
func openRegular(fsys fs.FS, name string) (fs.File, fs.FileInfo, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, info, fs.ErrNotExist
	}
	return f, info, nil
}
