package httpapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/yuqie6/ChoreQuest/internal/pkg/retry"
	"github.com/yuqie6/ChoreQuest/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeEngineError 输入错误 400，可重试冲突 503，其余 500
func writeEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case service.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case service.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("请求处理失败", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func readJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func parseInt64Param(value string) (int64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("参数为空")
	}
	return strconv.ParseInt(v, 10, 64)
}

// queryInt 缺省时返回 def
func queryInt(r *http.Request, key string, def int) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get(key))
	if s == "" {
		return def, nil
	}
	n, err := parseInt64Param(s)
	if err != nil {
		return 0, fmt.Errorf("参数 %s 无效: %w", key, err)
	}
	return int(n), nil
}

// withRetry 写操作在存储冲突时整体重跑
func withRetry[T any](ctx context.Context, opts retry.RetryOptions, fn func() (T, error)) (T, error) {
	var out T
	err := retry.Do(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	}, opts)
	return out, err
}
