package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliConfig tunes the Brotli middleware. Responses shorter than MinLength go out as is.
type BrotliConfig struct {
	Quality   int
	MinLength int
	Skipper   func(c *gin.Context) bool
}

// DefaultBrotliConfig compresses JSON bodies of 1 KiB and more, such as papers and results.
// /metrics is skipped; promhttp negotiates its own encoding.
var DefaultBrotliConfig = BrotliConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
	Skipper: func(c *gin.Context) bool {
		return c.Request.URL.Path == "/metrics"
	},
}

// brotliWriter holds the head of the body until it knows whether the response is worth
// compressing. Once it decides, every later byte takes the same path.
type brotliWriter struct {
	gin.ResponseWriter
	quality   int
	minLength int

	buf     []byte
	decided bool
	br      *brotli.Writer
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	if bw.decided {
		return bw.pass(data)
	}

	bw.buf = append(bw.buf, data...)
	if len(bw.buf) < bw.minLength {
		return len(data), nil
	}

	bw.decide(compressible(bw.Header().Get("Content-Type")))
	head := bw.buf
	bw.buf = nil
	if _, err := bw.pass(head); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// Flush commits to compression for whatever is buffered so a streamed response never mixes
// encodings.
func (bw *brotliWriter) Flush() {
	if !bw.decided && len(bw.buf) > 0 {
		bw.decide(compressible(bw.Header().Get("Content-Type")))
		head := bw.buf
		bw.buf = nil
		_, _ = bw.pass(head)
	}
	if bw.br != nil {
		_ = bw.br.Flush()
	}
	bw.ResponseWriter.Flush()
}

func (bw *brotliWriter) decide(compress bool) {
	bw.decided = true
	if !compress {
		return
	}
	h := bw.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	bw.br = brotli.NewWriterLevel(bw.ResponseWriter, bw.quality)
}

func (bw *brotliWriter) pass(data []byte) (int, error) {
	if bw.br != nil {
		return bw.br.Write(data)
	}
	return bw.ResponseWriter.Write(data)
}

// finish writes a short body uncompressed, or closes the compressed stream.
func (bw *brotliWriter) finish() error {
	if !bw.decided {
		bw.decided = true
		if len(bw.buf) == 0 {
			return nil
		}
		_, err := bw.ResponseWriter.Write(bw.buf)
		bw.buf = nil
		return err
	}
	if bw.br != nil {
		return bw.br.Close()
	}
	return nil
}

// Brotli compresses responses for clients that accept "br".
func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < 0 || cfg.Quality > 11 {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}

	return func(c *gin.Context) {
		if shouldSkip(c) || (cfg.Skipper != nil && cfg.Skipper(c)) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			quality:        cfg.Quality,
			minLength:      cfg.MinLength,
		}
		c.Writer = bw
		defer func() {
			if err := bw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

// shouldSkip passes HEAD requests, streams and WebSocket handshakes through untouched; the
// upgrade needs the raw hijackable writer.
func shouldSkip(c *gin.Context) bool {
	if c.Request.Method == http.MethodHead {
		return true
	}
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		// "br;q=0" opts out
		name, params, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return strings.ReplaceAll(params, " ", "") != "q=0"
		}
	}
	return false
}

// compressible limits compression to text payloads. An empty type is sniffed as text later.
func compressible(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "application/json") || strings.HasPrefix(ct, "text/")
}
