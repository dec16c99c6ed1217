package strand

import (
	"bufio"
	"crypto/tls"
	"io"
	"net"
	stdhttp "net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/http"
	"github.com/stretchr/testify/require"
)

func hello(_ *http.Request, resp *http.Response) http.Result {
	_ = resp.String("text/plain", "Hello, world!")
	return http.Success
}

func freeAddr(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// launch serves the app in background and returns the address it listens on.
func launch(t *testing.T, app *App, scheduler config.Scheduler) string {
	cfg := config.Default()
	cfg.Server.Scheduler = scheduler
	cfg.NET.AcceptLoopInterruptPeriod = 50 * time.Millisecond
	cfg.NET.KeepAliveTimeout = 5 * time.Second

	addr := "127.0.0.1:0"
	if scheduler == config.EventLoop {
		addr = freeAddr(t)
	}

	started := make(chan struct{})
	errch := make(chan error, 1)
	app.Tune(cfg).Listen(addr).NotifyOnStart(func() {
		close(started)
	})

	go func() {
		errch <- app.Serve()
	}()

	select {
	case <-started:
	case err := <-errch:
		require.FailNow(t, "serve failed", err)
	}

	if bound := app.Addrs()[0]; bound != nil {
		addr = bound.String()
	}

	t.Cleanup(func() {
		app.Stop()
		require.NoError(t, <-errch)
	})

	return addr
}

func dial(t *testing.T, addr string) net.Conn {
	var conn net.Conn
	require.Eventually(t, func() (ok bool) {
		var err error
		conn, err = net.Dial("tcp", addr)
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)

	return conn
}

func roundTrip(t *testing.T, conn net.Conn, rd *bufio.Reader, request string) (*stdhttp.Response, string) {
	_, err := conn.Write([]byte(request))
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	resp, err := stdhttp.ReadResponse(rd, nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, string(body)
}

const keepAliveRequest = "GET / HTTP/1.1\r\nHost: localhost\r\nConnection: keep-alive\r\n\r\n"

func TestApp(t *testing.T) {
	for _, scheduler := range []config.Scheduler{config.Goroutine, config.EventLoop} {
		t.Run(string(scheduler), func(t *testing.T) {
			t.Run("keep-alive round trips", func(t *testing.T) {
				app := New().Connector("", http.ConnectorFunc(hello))
				conn := dial(t, launch(t, app, scheduler))
				defer conn.Close()
				rd := bufio.NewReader(conn)

				for i := 0; i < 3; i++ {
					resp, body := roundTrip(t, conn, rd, keepAliveRequest)
					require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
					require.Equal(t, "Hello, world!", body)
					require.Equal(t, "keep-alive", resp.Header.Get("Connection"))
				}
			})

			t.Run("pipelined", func(t *testing.T) {
				app := New().Connector("", http.ConnectorFunc(func(req *http.Request, resp *http.Response) http.Result {
					_ = resp.String("text/plain", req.Path())
					return http.Success
				}))
				conn := dial(t, launch(t, app, scheduler))
				defer conn.Close()

				_, err := conn.Write([]byte(
					"GET /a HTTP/1.1\r\nConnection: keep-alive\r\n\r\n" +
						"GET /b HTTP/1.1\r\nConnection: keep-alive\r\n\r\n" +
						"GET /c HTTP/1.1\r\n\r\n",
				))
				require.NoError(t, err)
				require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

				rd := bufio.NewReader(conn)
				for _, path := range []string{"/a", "/b", "/c"} {
					resp, err := stdhttp.ReadResponse(rd, nil)
					require.NoError(t, err)
					body, err := io.ReadAll(resp.Body)
					require.NoError(t, err)
					require.Equal(t, path, string(body))
				}

				// the last request didn't ask to keep the connection
				_, err = rd.ReadByte()
				require.ErrorIs(t, err, io.EOF)
			})

			t.Run("malformed request closes", func(t *testing.T) {
				app := New().Connector("", http.ConnectorFunc(hello))
				conn := dial(t, launch(t, app, scheduler))
				defer conn.Close()

				_, err := conn.Write([]byte("BREW /pot HTTP/1.1\r\n\r\n"))
				require.NoError(t, err)
				require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

				data, err := io.ReadAll(conn)
				require.NoError(t, err)
				require.Contains(t, string(data), "405 Method Not Allowed")
				require.Contains(t, string(data), "Allow: GET, POST, HEAD, PUT, DELETE\r\n")
			})

			t.Run("sessions and date", func(t *testing.T) {
				app := New().
					Module(Sessions(0)).
					Connector("", http.ConnectorFunc(func(req *http.Request, resp *http.Response) http.Result {
						_ = resp.String("text/plain", req.Session().Value(SessionKey))
						return http.Success
					})).
					Connector("", DateHeader())
				conn := dial(t, launch(t, app, scheduler))
				defer conn.Close()
				rd := bufio.NewReader(conn)

				resp, first := roundTrip(t, conn, rd, keepAliveRequest)
				require.Len(t, first, 16)
				date, err := time.Parse(TimeFormat, resp.Header.Get("Date"))
				require.NoError(t, err)
				require.WithinDuration(t, time.Now(), date, 5*time.Second)

				_, second := roundTrip(t, conn, rd, keepAliveRequest)
				require.Equal(t, first, second)
			})
		})
	}
}

func TestTLS(t *testing.T) {
	certPEM, keyPEM, err := generateSelfSigned()
	require.NoError(t, err)
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		app := New().Module(TLS(cert)).Connector("", http.ConnectorFunc(hello))
		addr := launch(t, app, config.Goroutine)

		conn, err := tls.Dial("tcp", addr, &tls.Config{InsecureSkipVerify: true})
		require.NoError(t, err)
		defer conn.Close()

		resp, body := roundTrip(t, conn, bufio.NewReader(conn), keepAliveRequest)
		require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
		require.Equal(t, "Hello, world!", body)
	})

	t.Run("event loop", func(t *testing.T) {
		cfg := config.Default()
		cfg.Server.Scheduler = config.EventLoop
		err := New().Tune(cfg).Module(TLS(cert)).Listen("127.0.0.1:0").Serve()
		require.ErrorIs(t, err, ErrTLSOverLoop)
	})

	t.Run("bad certificates", func(t *testing.T) {
		require.ErrorIs(t, TLS().(tlsModule).err, ErrNoCertificates)
		require.ErrorIs(t, TLS(tls.Certificate{}).(tlsModule).err, ErrBadCertificate)
		require.Error(t, HTTPS("nonexistent.crt", "nonexistent.key").(tlsModule).err)
	})

	t.Run("self-signed cache", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "certs")
		first, err := selfSigned(dir)
		require.NoError(t, err)
		require.FileExists(t, filepath.Join(dir, "localhost.crt"))
		require.FileExists(t, filepath.Join(dir, "localhost.key"))

		second, err := selfSigned(dir)
		require.NoError(t, err)
		require.Equal(t, first.Certificate, second.Certificate)
	})

	t.Run("files", func(t *testing.T) {
		dir := t.TempDir()
		certFile, keyFile := filepath.Join(dir, "a.crt"), filepath.Join(dir, "a.key")
		require.NoError(t, os.WriteFile(certFile, certPEM, 0600))
		require.NoError(t, os.WriteFile(keyFile, keyPEM, 0600))
		require.NoError(t, HTTPS(certFile, keyFile).(tlsModule).err)
	})
}

func TestServe(t *testing.T) {
	t.Run("no listeners", func(t *testing.T) {
		require.ErrorIs(t, New().Serve(), ErrNoListeners)
	})

	t.Run("unknown scheduler", func(t *testing.T) {
		cfg := config.Default()
		cfg.Server.Scheduler = "fibers"
		require.ErrorIs(t, New().Tune(cfg).Listen("127.0.0.1:0").Serve(), ErrUnknownSchedule)
	})

	t.Run("already serving", func(t *testing.T) {
		app := New().Connector("", http.ConnectorFunc(hello))
		addr := launch(t, app, config.Goroutine)

		require.ErrorIs(t, app.Serve(), ErrAlreadyServing)
		require.Equal(t, addr, app.Addrs()[0].String())

		conn := dial(t, addr)
		defer conn.Close()
		resp, body := roundTrip(t, conn, bufio.NewReader(conn), keepAliveRequest)
		require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
		require.Equal(t, "Hello, world!", body)
	})

	t.Run("stop before serve", func(t *testing.T) {
		New().Stop()
	})

	t.Run("stop hook", func(t *testing.T) {
		stopped := make(chan struct{})
		app := New().NotifyOnStop(func() {
			close(stopped)
		})
		launch(t, app, config.Goroutine)
		app.Stop()
		<-stopped
	})
}
