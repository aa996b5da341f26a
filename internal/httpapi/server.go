package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuqie6/ChoreQuest/internal/bootstrap"
	"github.com/yuqie6/ChoreQuest/internal/eventbus"
	"github.com/yuqie6/ChoreQuest/internal/pkg/buildinfo"
	"github.com/yuqie6/ChoreQuest/internal/pkg/retry"
	"github.com/yuqie6/ChoreQuest/internal/service"
)

type LocalServer struct {
	core    *bootstrap.Core
	ln      net.Listener
	srv     *http.Server
	baseURL string
}

type Options struct {
	ListenAddr     string // e.g. "127.0.0.1:0"
	ReadTimeout    time.Duration
	RequestTimeout time.Duration
	MetricsEnabled bool
	Retry          retry.RetryOptions
}

// OptionsFromCore 从配置推导服务选项
func OptionsFromCore(core *bootstrap.Core) Options {
	cfg := core.Cfg.Server
	r := retry.DefaultOptions()
	if cfg.RetryAttempts > 0 {
		r.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryInitialMs > 0 {
		r.InitialInterval = time.Duration(cfg.RetryInitialMs) * time.Millisecond
	}
	return Options{
		ListenAddr:     cfg.Addr,
		ReadTimeout:    time.Duration(cfg.ReadTimeoutSec) * time.Second,
		RequestTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		MetricsEnabled: core.Cfg.Telemetry.MetricsEnabled,
		Retry:          r,
	}
}

func Start(ctx context.Context, core *bootstrap.Core, opts Options) (*LocalServer, error) {
	if core == nil || core.Engine == nil {
		return nil, fmt.Errorf("core 不能为空")
	}
	if strings.TrimSpace(opts.ListenAddr) == "" {
		opts.ListenAddr = "127.0.0.1:0"
	}

	ln, err := net.Listen("tcp", opts.ListenAddr)
	if err != nil {
		return nil, err
	}
	baseURL := "http://" + ln.Addr().String()

	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	// 不设置 WriteTimeout：SSE 是长连接，JSON 接口各自带请求超时
	srv := &http.Server{
		Handler:           NewHandler(core, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
	}

	ls := &LocalServer{
		core:    core,
		ln:      ln,
		srv:     srv,
		baseURL: baseURL,
	}

	go func() {
		<-ctx.Done()
		_ = ls.Shutdown(context.Background())
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server 异常退出", "error", err)
		}
	}()

	slog.Info("HTTP 已启动", "base_url", baseURL)
	return ls, nil
}

// NewHandler 构建完整路由，测试可直接配合 httptest 使用
func NewHandler(core *bootstrap.Core, opts Options) http.Handler {
	api := newAPI(core, opts)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", api.handleHealth)
	mux.HandleFunc("/api/events", api.wrapGET(api.handleSSE))
	api.registerJSONRoutes(mux)
	if opts.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}

func (s *LocalServer) BaseURL() string {
	if s == nil {
		return ""
	}
	return s.baseURL
}

func (s *LocalServer) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type apiServer struct {
	core           *bootstrap.Core
	engine         *service.GameEngine
	hub            *eventbus.Hub
	retry          retry.RetryOptions
	requestTimeout time.Duration
	startTime      time.Time
}

func newAPI(core *bootstrap.Core, opts Options) *apiServer {
	r := opts.Retry
	if r.MaxAttempts <= 0 {
		r = retry.DefaultOptions()
	}
	r.Classifier = service.IsRetryable

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	hub := core.Hub
	if hub == nil {
		hub = eventbus.NewHub()
	}
	return &apiServer{
		core:           core,
		engine:         core.Engine,
		hub:            hub,
		retry:          r,
		requestTimeout: timeout,
		startTime:      time.Now(),
	}
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       a.core.Cfg.App.Name,
		"version":    buildinfo.Version,
		"safe_mode":  a.core.DB != nil && a.core.DB.SafeMode,
		"started_at": a.startTime.Format(time.RFC3339),
	})
}

// handleSSE 推送引擎事件；带 user_id 时只推送该用户及全局事件
func (a *apiServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "stream not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	sub := a.hub.SubscribeUser(ctx, userID, 32)

	// initial event
	_, _ = io.WriteString(w, "event: ready\n")
	_, _ = io.WriteString(w, "data: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, "event: ping\n")
			_, _ = io.WriteString(w, "data: {}\n\n")
			flusher.Flush()
		case evt, ok := <-sub:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt)
			_, _ = io.WriteString(w, "event: "+sanitizeSSEName(evt.Type)+"\n")
			_, _ = io.WriteString(w, "data: ")
			_, _ = w.Write(b)
			_, _ = io.WriteString(w, "\n\n")
			flusher.Flush()
		}
	}
}

func sanitizeSSEName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return "message"
	}
	n = strings.ReplaceAll(n, "\n", "")
	n = strings.ReplaceAll(n, "\r", "")
	return n
}
