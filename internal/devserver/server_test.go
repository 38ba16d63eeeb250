package devserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telnet2/h5runner/internal/compiler"
	"github.com/telnet2/h5runner/internal/event"
)

type fakeCompiler struct {
	bus      *event.Bus
	watchErr error
	watched  int32
	closed   int32
}

func newFakeCompiler() *fakeCompiler {
	return &fakeCompiler{bus: event.NewBus()}
}

func (f *fakeCompiler) Bus() *event.Bus { return f.bus }

func (f *fakeCompiler) Run(context.Context) (*compiler.Stats, error) {
	return &compiler.Stats{BuildID: "run"}, nil
}

func (f *fakeCompiler) Watch(context.Context) (compiler.Watching, error) {
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	atomic.AddInt32(&f.watched, 1)
	return closerFunc(func() error {
		atomic.AddInt32(&f.closed, 1)
		return nil
	}), nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

const indexHTML = `<!DOCTYPE html><html><head><title>app</title></head><body><div id="app"></div></body></html>`

func testFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/app/dist/index.html", []byte(indexHTML), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/app/dist/js/app.js", []byte("console.log(1)"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/app/dist/static/images/logo.png", []byte("png"), 0o644))
	return fs
}

func testOptions() Options {
	return Options{
		Host:               "localhost",
		PublicPath:         "/",
		ContentBase:        "/app/dist",
		Hot:                true,
		DisableHostCheck:   true,
		HistoryAPIFallback: &HistoryFallback{Index: "/"},
	}
}

func get(t *testing.T, h http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_StaticFiles(t *testing.T) {
	s := New(testOptions(), newFakeCompiler(), WithFs(testFs(t)))
	h := s.Handler()

	rec := get(t, h, "/js/app.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = get(t, h, "/", map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div id="app"></div>`)
	assert.Contains(t, rec.Body.String(), `<script src="`+RouteClientJS+`"></script>`)

	rec = get(t, h, "/js/missing.js", map[string]string{"Accept": "*/*"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_HistoryFallback(t *testing.T) {
	s := New(testOptions(), newFakeCompiler(), WithFs(testFs(t)))
	h := s.Handler()

	rec := get(t, h, "/pages/index/index", map[string]string{"Accept": "text/html,application/xhtml+xml"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div id="app"></div>`)

	rec = get(t, h, "/pages/detail.v2", map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "dot rule applies by default")

	rec = get(t, h, "/pages/index/index", map[string]string{"Accept": "application/json"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	opts := testOptions()
	opts.HistoryAPIFallback.DisableDotRule = true
	s = New(opts, newFakeCompiler(), WithFs(testFs(t)))
	rec = get(t, s.Handler(), "/pages/detail.v2", map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusOK, rec.Code)

	opts = testOptions()
	opts.HistoryAPIFallback = nil
	s = New(opts, newFakeCompiler(), WithFs(testFs(t)))
	rec = get(t, s.Handler(), "/pages/index/index", map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_PublicPath(t *testing.T) {
	opts := testOptions()
	opts.PublicPath = "/h5"
	opts.HistoryAPIFallback = &HistoryFallback{Index: "/h5/"}
	s := New(opts, newFakeCompiler(), WithFs(testFs(t)))
	h := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/h5/js/app.js", nil).Code)

	rec := get(t, h, "/js/app.js", map[string]string{"Accept": "*/*"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "files are only served below the public path")

	rec = get(t, h, "/somewhere", map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div id="app"></div>`)
}

func TestServer_NoInjectionWithoutHot(t *testing.T) {
	opts := testOptions()
	opts.Hot = false
	s := New(opts, newFakeCompiler(), WithFs(testFs(t)))

	rec := get(t, s.Handler(), "/index.html", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, indexHTML, rec.Body.String())
}

func TestServer_HostCheckAndHeaders(t *testing.T) {
	opts := testOptions()
	opts.DisableHostCheck = false
	opts.AllowedHosts = []string{".example.test"}
	opts.Headers = map[string]string{"X-Served-By": "h5runner"}
	s := New(opts, newFakeCompiler(), WithFs(testFs(t)))
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/js/app.js", nil)
	req.Host = "evil.invalid"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, host := range []string{"localhost:10086", "127.0.0.1:10086", "dev.example.test"} {
		req = httptest.NewRequest(http.MethodGet, "/js/app.js", nil)
		req.Host = host
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, host)
		assert.Equal(t, "h5runner", rec.Header().Get("X-Served-By"))
	}
}

func TestServer_InternalRoutes(t *testing.T) {
	s := New(testOptions(), newFakeCompiler(), WithFs(testFs(t)))
	h := s.Handler()

	rec := get(t, h, RouteClientJS, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), RouteWS)

	rec = get(t, h, RouteMetrics, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "h5runner_")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/js/app.js", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_LiveReload(t *testing.T) {
	comp := newFakeCompiler()
	s := New(testOptions(), comp, WithFs(testFs(t)))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Close(context.Background())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + RouteWS
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageHello, msg.Type)
	require.Eventually(t, func() bool { return s.hub.count() == 1 }, time.Second, 10*time.Millisecond)

	comp.bus.PublishSync(event.Event{Type: event.CompileInvalid, Data: event.CompileInvalidData{}})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageInvalid, msg.Type)

	comp.bus.PublishSync(event.Event{Type: event.CompileDone, Data: event.CompileDoneData{BuildID: "b2"}})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, Message{Type: MessageReload, Hash: "b2"}, msg)

	comp.bus.PublishSync(event.Event{Type: event.CompileDone, Data: event.CompileDoneData{
		BuildID: "b3",
		Errors:  []string{"Module not found"},
	}})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageErrors, msg.Type)
	assert.Equal(t, []string{"Module not found"}, msg.Errors)
}

func TestServer_EventStream(t *testing.T) {
	comp := newFakeCompiler()
	s := New(testOptions(), comp, WithFs(testFs(t)))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+RouteEvents, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}

	assert.Contains(t, readData(), "server.connected")

	comp.bus.PublishSync(event.Event{Type: event.CompileDone, Data: event.CompileDoneData{BuildID: "b1"}})
	var got struct {
		Type event.EventType       `json:"type"`
		Data event.CompileDoneData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(readData()), &got))
	assert.Equal(t, event.CompileDone, got.Type)
	assert.Equal(t, "b1", got.Data.BuildID)
}

func TestServer_ListenAndClose(t *testing.T) {
	comp := newFakeCompiler()
	s := New(testOptions(), comp, WithFs(testFs(t)))

	var listening []event.ServerListeningData
	comp.bus.Subscribe(event.ServerListening, func(e event.Event) {
		listening = append(listening, e.Data.(event.ServerListeningData))
	})

	require.NoError(t, s.Listen(context.Background(), "127.0.0.1", 0))
	addr := s.Addr()
	require.NotNil(t, addr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&comp.watched))
	require.Len(t, listening, 1)
	assert.Equal(t, "http://"+addr.String()+"/", listening[0].URL)

	assert.Error(t, s.Listen(context.Background(), "127.0.0.1", 0), "second Listen is rejected")

	resp, err := http.Get("http://" + addr.String() + "/js/app.js")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "console.log(1)", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&comp.closed))

	_, err = http.Get("http://" + addr.String() + "/js/app.js")
	assert.Error(t, err)
}

func TestServer_ListenBindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	comp := newFakeCompiler()
	s := New(testOptions(), comp, WithFs(testFs(t)))

	err = s.Listen(context.Background(), "127.0.0.1", port)
	require.Error(t, err)
	var opErr *net.OpError
	assert.ErrorAs(t, err, &opErr)
	assert.Contains(t, err.Error(), strconv.Itoa(port))
	assert.Equal(t, int32(0), atomic.LoadInt32(&comp.watched), "compiler is not started on bind failure")
}

func TestServer_ListenWatchFailure(t *testing.T) {
	comp := newFakeCompiler()
	comp.watchErr = errors.New("too many open files")
	s := New(testOptions(), comp, WithFs(testFs(t)))

	listened := false
	comp.bus.Subscribe(event.ServerListening, func(event.Event) { listened = true })

	err := s.Listen(context.Background(), "127.0.0.1", 0)
	var watchErr *WatchError
	require.ErrorAs(t, err, &watchErr)
	assert.ErrorIs(t, err, comp.watchErr)
	var opErr *net.OpError
	assert.False(t, errors.As(err, &opErr), "a watch failure is not a bind failure")
	assert.Nil(t, s.Addr())
	assert.False(t, listened)
}

func TestServer_ListeningSubscriberMayUseServer(t *testing.T) {
	comp := newFakeCompiler()
	s := New(testOptions(), comp, WithFs(testFs(t)))

	var seen net.Addr
	comp.bus.Subscribe(event.ServerListening, func(event.Event) {
		seen = s.Addr()
		_ = s.Close(context.Background())
	})

	done := make(chan error, 1)
	go func() { done <- s.Listen(context.Background(), "127.0.0.1", 0) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen deadlocked with a subscriber calling back into the server")
	}
	assert.NotNil(t, seen)
	assert.Equal(t, int32(1), atomic.LoadInt32(&comp.closed))
}

func TestServer_ListenHTTPS(t *testing.T) {
	opts := testOptions()
	opts.HTTPS = true
	s := New(opts, newFakeCompiler(), WithFs(testFs(t)))

	require.NoError(t, s.Listen(context.Background(), "127.0.0.1", 0))
	defer s.Close(context.Background())

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}}
	resp, err := client.Get("https://" + s.Addr().String() + "/js/app.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInjectClient_Idempotent(t *testing.T) {
	once, err := injectClient([]byte(indexHTML))
	require.NoError(t, err)
	twice, err := injectClient(once)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(twice), RouteClientJS))
}
