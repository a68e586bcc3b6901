package server

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"tasklist/internal/domain/errors"

	"github.com/gin-gonic/gin"
)

// CORS answers preflight requests and decorates responses for the configured
// origin. "*" reflects the caller's origin so credentials remain allowed.
func CORS(origin string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		reqOrigin := ctx.GetHeader("Origin")
		allowed := origin
		if origin == "*" && reqOrigin != "" {
			allowed = reqOrigin
		}

		if reqOrigin != "" && (origin == "*" || reqOrigin == origin) {
			h := ctx.Writer.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}

		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			h := ctx.Writer.Header()
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Content-Encoding, Accept-Encoding")
			h.Set("Access-Control-Max-Age", "600")
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}

type gzipBody struct {
	io.Reader
	gz   *gzip.Reader
	orig io.Closer
}

func (b *gzipBody) Close() error {
	gzErr := b.gz.Close()
	if err := b.orig.Close(); err != nil {
		return err
	}
	return gzErr
}

// GzipRequestDecompress transparently inflates gzip-encoded request bodies.
func GzipRequestDecompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !strings.Contains(strings.ToLower(ctx.GetHeader("Content-Encoding")), "gzip") {
			ctx.Next()
			return
		}

		gr, err := gzip.NewReader(ctx.Request.Body)
		if err != nil {
			fail(ctx, http.StatusBadRequest, errors.ErrInvalidGzipRequest.Error())
			return
		}
		ctx.Request.Body = &gzipBody{Reader: gr, gz: gr, orig: ctx.Request.Body}
		ctx.Request.Header.Del("Content-Encoding")
		ctx.Request.Header.Del("Content-Length")
		ctx.Request.ContentLength = -1
		ctx.Next()
	}
}

const minCompressSize = 1024

var compressibleTypes = []string{
	"application/json",
	"application/xml",
	"application/javascript",
	"text/",
}

// gzipWriter holds the body back until it is large enough to be worth
// compressing, then switches to a gzip stream.
type gzipWriter struct {
	gin.ResponseWriter
	buf   bytes.Buffer
	gz    *gzip.Writer
	plain bool
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	if w.gz != nil {
		n, err := w.gz.Write(data)
		if err != nil {
			return n, errors.ErrGzipCompressionFailed
		}
		return n, nil
	}

	if w.plain {
		return w.ResponseWriter.Write(data)
	}

	n, _ := w.buf.Write(data)
	if w.buf.Len() < minCompressSize {
		return n, nil
	}
	if !w.compressible() {
		w.plain = true
		_, err := w.ResponseWriter.Write(w.buf.Bytes())
		w.buf.Reset()
		return n, err
	}
	w.startGzip()
	if _, err := w.gz.Write(w.buf.Bytes()); err != nil {
		return 0, errors.ErrGzipCompressionFailed
	}
	w.buf.Reset()
	return n, nil
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipWriter) compressible() bool {
	switch w.Status() {
	case http.StatusNoContent, http.StatusNotModified, http.StatusPartialContent:
		return false
	}
	h := w.Header()
	if h.Get("Content-Encoding") != "" {
		return false
	}
	ct := strings.ToLower(h.Get("Content-Type"))
	if strings.HasPrefix(ct, "text/event-stream") {
		return false
	}
	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

func (w *gzipWriter) startGzip() {
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")
	w.gz = gzip.NewWriter(w.ResponseWriter)
}

// finish flushes whatever is still buffered, compressed or not.
func (w *gzipWriter) finish() error {
	if w.gz != nil {
		return w.gz.Close()
	}
	if w.buf.Len() == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

// Flush commits the headers, so a response not yet compressed stays plain.
func (w *gzipWriter) Flush() {
	if w.gz != nil {
		_ = w.gz.Flush()
	} else {
		w.plain = true
		if w.buf.Len() > 0 {
			_, _ = w.ResponseWriter.Write(w.buf.Bytes())
			w.buf.Reset()
		}
	}
	w.ResponseWriter.Flush()
}

// GzipResponseCompress compresses sufficiently large textual responses for
// clients that accept gzip.
func GzipResponseCompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead ||
			!strings.Contains(strings.ToLower(ctx.GetHeader("Accept-Encoding")), "gzip") {
			ctx.Next()
			return
		}

		ctx.Writer.Header().Add("Vary", "Accept-Encoding")
		gw := &gzipWriter{ResponseWriter: ctx.Writer}
		ctx.Writer = gw
		defer func() {
			if err := gw.finish(); err != nil {
				_ = ctx.Error(errors.ErrGzipCompressionFailed)
			}
		}()

		ctx.Next()
	}
}
