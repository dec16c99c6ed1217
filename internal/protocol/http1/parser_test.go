package http1

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/http"
	"github.com/indigo-web/strand/http/method"
	"github.com/indigo-web/strand/http/proto"
	"github.com/indigo-web/strand/http/status"
	"github.com/indigo-web/strand/internal/buffer"
	"github.com/indigo-web/strand/kv"
	"github.com/stretchr/testify/require"
)

func getParser(cfg *config.Config) (*Parser, *http.Request, *buffer.Buffer) {
	env := &http.Env{Session: kv.NewSession(http.NewBuffer(cfg, cfg.Buffer.Session))}
	return NewParser(cfg), http.NewRequest(cfg, env), http.NewBuffer(cfg, cfg.Buffer.Scratch)
}

func BenchmarkParser(b *testing.B) {
	parser, request, data := getParser(config.Default())

	for _, n := range []int{5, 10, 20} {
		raw := generateRequest(strings.Repeat("a", 500), generateHeaders(n))

		b.Run(fmt.Sprintf("with %d headers", n), func(b *testing.B) {
			b.SetBytes(int64(len(raw)))
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				data.Reset()
				_, _ = data.Append(raw)
				_ = parser.Parse(request, data)
				request.Reset()
			}
		})
	}
}

func generateHeaders(n int) (headers []string) {
	for i := 0; i < n; i++ {
		headers = append(headers, fmt.Sprintf("%s: %s", uniuri.NewLen(8), uniuri.NewLen(16)))
	}

	return headers
}

func generateRequest(uri string, headers []string) []byte {
	request := "GET /" + uri + " HTTP/1.1\r\n"
	for _, header := range headers {
		request += header + "\r\n"
	}

	return []byte(request + "\r\n")
}

func splitIntoParts(req []byte, n int) (parts [][]byte) {
	for i := 0; i < len(req); i += n {
		end := i + n
		if end > len(req) {
			end = len(req)
		}

		parts = append(parts, req[i:end])
	}

	return parts
}

// feedPartially feeds the parser the same way the connection does: every piece is appended
// to the scratch buffer after the consumed bytes were compacted away.
func feedPartially(p *Parser, request *http.Request, data *buffer.Buffer, raw []byte, n int) http.Result {
	result := http.Incomplete

	for _, chunk := range splitIntoParts(raw, n) {
		data.Compact()
		if _, err := data.Append(chunk); err != nil {
			panic(err)
		}

		if result = p.Parse(request, data); result != http.Incomplete {
			return result
		}
	}

	return result
}

type parsed struct {
	Method   method.Method
	URI      string
	Query    string
	Protocol proto.Protocol
	Headers  [][2]string
	Body     string
	Keep     bool
}

func snapshot(request *http.Request) parsed {
	p := parsed{
		Method:   request.Method,
		URI:      request.URI(),
		Query:    request.Query(),
		Protocol: request.Protocol,
		Body:     string(request.Content()),
		Keep:     request.KeepAlive,
	}

	for key, value := range request.Headers.Iter() {
		p.Headers = append(p.Headers, [2]string{key, value})
	}

	return p
}

func TestParser(t *testing.T) {
	cfg := config.Default()

	t.Run("simple GET", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		result := feedPartially(parser, request, data, []byte("GET / HTTP/1.1\r\n\r\n"), 1024)
		require.Equal(t, http.Success, result)
		require.Equal(t, method.GET, request.Method)
		require.Equal(t, "/", request.URI())
		require.Equal(t, proto.HTTP11, request.Protocol)
		require.Equal(t, http.StateEnd, request.State)
		require.True(t, request.Headers.Empty())
		require.False(t, request.KeepAlive)
	})

	t.Run("split in the middle of a header", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		first := "GET /index.html HTTP/1.1\r\nHo"
		second := "st: x\r\nConnection: keep-alive\r\n\r\n"

		_, _ = data.AppendString(first)
		require.Equal(t, http.Incomplete, parser.Parse(request, data))
		require.True(t, request.Continuation)
		data.Compact()
		_, _ = data.AppendString(second)
		require.Equal(t, http.Success, parser.Parse(request, data))

		require.Equal(t, method.GET, request.Method)
		require.Equal(t, "/index.html", request.URI())
		require.Equal(t, "x", request.Header("Host"))
		require.True(t, request.KeepAlive)
	})

	t.Run("resumability", func(t *testing.T) {
		raw := []byte("POST /upload?name=file&x=1 HTTP/1.1\r\n" +
			"Host: example.com\r\n" +
			"Connection: Keep-Alive\r\n" +
			"X-Random: " + uniuri.NewLen(32) + "\r\n" +
			"Content-Length: 13\r\n" +
			"\r\n" +
			"Hello, world!")

		parser, request, data := getParser(cfg)
		require.Equal(t, http.Success, feedPartially(parser, request, data, raw, len(raw)))
		whole := snapshot(request)
		require.Equal(t, "Hello, world!", whole.Body)
		require.Equal(t, "name=file&x=1", whole.Query)
		require.Len(t, whole.Headers, 4)

		for n := 1; n < len(raw); n++ {
			parser, request, data = getParser(cfg)
			require.Equal(t, http.Success, feedPartially(parser, request, data, raw, n), n)
			require.Equal(t, whole, snapshot(request), n)
			require.Empty(t, data.Unread(), n)
		}
	})

	t.Run("state never regresses", func(t *testing.T) {
		raw := []byte("GET /path HTTP/1.0\r\nA: b\r\n\r\n")
		parser, request, data := getParser(cfg)
		last := request.State

		for _, c := range raw {
			data.Compact()
			_ = data.AppendByte(c)
			_ = parser.Parse(request, data)
			require.GreaterOrEqual(t, int(request.State), int(last))
			last = request.State
		}

		require.Equal(t, http.StateEnd, last)
	})

	t.Run("pipelined requests", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		_, _ = data.AppendString("GET /first HTTP/1.1\r\n\r\nGET /second HTTP/1.1\r\n\r\n")
		require.Equal(t, http.Success, parser.Parse(request, data))
		require.Equal(t, "/first", request.URI())

		next := http.NewRequest(cfg, request.Env)
		require.Equal(t, http.Success, parser.Parse(next, data))
		require.Equal(t, "/second", next.URI())
		require.Empty(t, data.Unread())
	})

	t.Run("body bytes of the next request stay unread", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		_, _ = data.AppendString("POST / HTTP/1.1\r\nContent-Length: 3\r\n\r\nabcGET")
		require.Equal(t, http.Success, parser.Parse(request, data))
		require.Equal(t, "abc", string(request.Content()))
		require.Equal(t, "GET", string(data.Unread()))
	})

	t.Run("partial body", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		_, _ = data.AppendString("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nhello")
		require.Equal(t, http.Incomplete, parser.Parse(request, data))
		require.Equal(t, http.StateContent, request.State)
		require.Equal(t, "hello", string(request.Content()))
		require.Equal(t, 5, request.Remaining)

		request.Body().Reset()
		data.Compact()
		_, _ = data.AppendString("world")
		require.Equal(t, http.Success, parser.Parse(request, data))
		require.Equal(t, "world", string(request.Content()))
		require.Zero(t, request.Remaining)
	})

	t.Run("leading empty lines", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		_, _ = data.AppendString("\r\n\r\nHEAD / HTTP/1.1\r\n\r\n")
		require.Equal(t, http.Success, parser.Parse(request, data))
		require.Equal(t, method.HEAD, request.Method)
	})

	t.Run("case-insensitive tokens", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		_, _ = data.AppendString("get / http/1.1\r\nCONNECTION: KEEP-ALIVE\r\ncontent-length: 0\r\n\r\n")
		require.Equal(t, http.Success, parser.Parse(request, data))
		require.Equal(t, method.GET, request.Method)
		require.Equal(t, proto.HTTP11, request.Protocol)
		require.True(t, request.KeepAlive)
	})

	t.Run("connection close", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		_, _ = data.AppendString("GET / HTTP/1.1\r\nConnection: keep-alive\r\nConnection: close\r\n\r\n")
		require.Equal(t, http.Success, parser.Parse(request, data))
		require.False(t, request.KeepAlive)
	})

	t.Run("value spaces", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		_, _ = data.AppendString("GET / HTTP/1.1\r\nHello:    World\r\nEmpty:\r\n\r\n")
		require.Equal(t, http.Success, parser.Parse(request, data))
		require.Equal(t, "World", request.Header("hello"))
		value, found := request.Headers.Get("empty")
		require.True(t, found)
		require.Empty(t, value)
	})

	t.Run("HTTP/0.9", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		raw := []byte("GET /legacy\r\n\r\n")
		for n := 1; n <= len(raw); n++ {
			parser, request, data = getParser(cfg)
			require.Equal(t, http.Success, feedPartially(parser, request, data, raw, n), n)
			require.Equal(t, proto.HTTP09, request.Protocol)
			require.Equal(t, "/legacy", request.URI())
		}
	})

	t.Run("version tokens", func(t *testing.T) {
		for _, p := range proto.Tokens {
			parser, request, data := getParser(cfg)
			_, _ = data.AppendString("GET / " + p.String() + "\r\n\r\n")
			require.Equal(t, http.Success, parser.Parse(request, data))
			require.Equal(t, p, request.Protocol)
		}
	})

	t.Run("aliasing", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		_, _ = data.AppendString("POST / HTTP/1.1\r\nHost: example.com\r\nX-Token: abc\r\nContent-Length: 2\r\n\r\nhi")
		require.Equal(t, http.Success, parser.Parse(request, data))
		host, token := request.Header("host"), request.Header("x-token")

		_, err := request.Body().AppendString(strings.Repeat("b", 1000))
		require.NoError(t, err)
		_, err = request.Target.AppendString(strings.Repeat("u", 1000))
		require.NoError(t, err)
		request.Response.Header("X-Grow", strings.Repeat("r", 1000))

		require.Equal(t, "example.com", host)
		require.Equal(t, "abc", token)
		require.Equal(t, "example.com", request.Header("host"))
		require.Equal(t, "abc", request.Header("x-token"))
	})
}

func TestParserErrors(t *testing.T) {
	cfg := config.Default()

	reject := func(t *testing.T, cfg *config.Config, raw string, code status.Code) {
		parser, request, data := getParser(cfg)
		_, err := data.AppendString(raw)
		require.NoError(t, err)
		require.Equal(t, http.Reject, parser.Parse(request, data))
		require.Equal(t, code, request.Code)
	}

	t.Run("unknown method", func(t *testing.T) {
		reject(t, cfg, "PATCH / HTTP/1.1\r\n\r\n", status.MethodNotAllowed)
		reject(t, cfg, "GETS / HTTP/1.1\r\n\r\n", status.MethodNotAllowed)
	})

	t.Run("extended methods disabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.Server.ExtendedMethods = false
		reject(t, cfg, "PUT / HTTP/1.1\r\n\r\n", status.MethodNotAllowed)
		reject(t, cfg, "DELETE / HTTP/1.1\r\n\r\n", status.MethodNotAllowed)
	})

	t.Run("partial method is not an error", func(t *testing.T) {
		parser, request, data := getParser(cfg)
		_, _ = data.AppendString("DEL")
		require.Equal(t, http.Incomplete, parser.Parse(request, data))
		_, _ = data.AppendString("ETE / HTTP/1.1\r\n\r\n")
		require.Equal(t, http.Success, parser.Parse(request, data))
		require.Equal(t, method.DELETE, request.Method)
	})

	t.Run("empty URI", func(t *testing.T) {
		reject(t, cfg, "GET  HTTP/1.1\r\n\r\n", status.RequestURITooLong)
		reject(t, cfg, "GET \r\n\r\n", status.RequestURITooLong)
	})

	t.Run("zero bytes", func(t *testing.T) {
		reject(t, cfg, "GET /a\x00b HTTP/1.1\r\n\r\n", status.BadRequest)
		reject(t, cfg, "GET /\x00\r\n\r\n", status.BadRequest)
		reject(t, cfg, "GET / HTTP/1.1\r\nX-A: a\x00Content-Length: 5\r\n\r\nhello", status.BadRequest)

		// a zero byte arriving in a later piece of the same line
		parser, request, data := getParser(cfg)
		result := feedPartially(parser, request, data,
			[]byte("GET / HTTP/1.1\r\nX-A: a\x00Content-Length: 5\r\n\r\nhello"), 3)
		require.Equal(t, http.Reject, result)
		require.Equal(t, status.BadRequest, request.Code)
		require.Zero(t, request.ContentLength)
	})

	t.Run("URI ceiling", func(t *testing.T) {
		uri := "/" + strings.Repeat("a", cfg.Buffer.URI.Ceiling)
		parser, request, data := getParser(cfg)
		result := feedPartially(parser, request, data, []byte("GET "+uri+" HTTP/1.1\r\n\r\n"), 512)
		require.Equal(t, http.Reject, result)
		require.Equal(t, status.RequestURITooLong, request.Code)
	})

	t.Run("headers ceiling", func(t *testing.T) {
		raw := generateRequest("", []string{"Cookie: " + strings.Repeat("c", cfg.Buffer.Headers.Ceiling)})
		parser, request, data := getParser(cfg)
		require.Equal(t, http.Reject, feedPartially(parser, request, data, raw, 512))
		require.Equal(t, status.RequestURITooLong, request.Code)
	})

	t.Run("unsupported version", func(t *testing.T) {
		reject(t, cfg, "GET / HTTP/1.2\r\n\r\n", status.HTTPVersionNotSupported)
		reject(t, cfg, "GET / HTTP/3\r\n\r\n", status.HTTPVersionNotSupported)
		reject(t, cfg, "GET / FTP/1.1\r\n\r\n", status.BadRequest)
	})

	t.Run("header without colon", func(t *testing.T) {
		reject(t, cfg, "GET / HTTP/1.1\r\nHello World\r\n\r\n", status.BadRequest)
	})

	t.Run("bad content length", func(t *testing.T) {
		reject(t, cfg, "POST / HTTP/1.1\r\nContent-Length: five\r\n\r\n", status.BadRequest)
		reject(t, cfg, "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n", status.BadRequest)
	})
}
