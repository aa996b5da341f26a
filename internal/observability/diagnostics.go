package observability

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/yuqie6/ChoreQuest/internal/bootstrap"
	"github.com/yuqie6/ChoreQuest/internal/dto"
)

var ErrNotReady = errors.New("core not ready")

func WriteDiagnosticsZip(ctx context.Context, w io.Writer, core *bootstrap.Core, startedAt time.Time) error {
	if core == nil || core.Cfg == nil {
		return ErrNotReady
	}

	status, err := BuildStatus(ctx, core, startedAt)
	if err != nil {
		return err
	}

	return WriteDiagnosticsZipWithStatus(w, core, status)
}

func WriteDiagnosticsZipWithStatus(w io.Writer, core *bootstrap.Core, status *dto.StatusDTO) error {
	if core == nil || core.Cfg == nil {
		return ErrNotReady
	}
	if status == nil {
		return errors.New("status is nil")
	}

	zw := zip.NewWriter(w)
	defer zw.Close()

	_ = addZipJSON(zw, "status.json", status)
	_ = addZipText(zw, "README.txt", buildDiagReadme())

	if cfgPath := strings.TrimSpace(core.CfgPath); cfgPath != "" {
		if b, err := os.ReadFile(cfgPath); err == nil {
			_ = addZipText(zw, "config/config.yaml.redacted", redactConfigYAML(string(b)))
		} else {
			_ = addZipText(zw, "config/ERROR.txt", "读取配置失败: "+err.Error())
		}
	}

	logPath := strings.TrimSpace(core.Cfg.App.LogPath)
	if logPath != "" {
		lines, err := tailLines(logPath, 512*1024)
		if err != nil {
			_ = addZipText(zw, "logs/ERROR.txt", "读取日志失败: "+err.Error())
		} else {
			if len(lines) > 2000 {
				lines = lines[len(lines)-2000:]
			}
			_ = addZipText(zw, "logs/recent.log", strings.Join(lines, "\n"))
		}
	}

	return nil
}

// ReadRecentErrors 从日志尾部倒序取 WARN/ERROR 行
func ReadRecentErrors(logPath string, limit int) []dto.RecentErrorDTO {
	path := strings.TrimSpace(logPath)
	if path == "" {
		return nil
	}
	lines, err := tailLines(path, 256*1024)
	if err != nil {
		return []dto.RecentErrorDTO{{Message: "读取日志失败: " + err.Error()}}
	}

	if limit <= 0 {
		limit = 20
	}

	out := make([]dto.RecentErrorDTO, 0, limit)
	for i := len(lines) - 1; i >= 0 && len(out) < limit; i-- {
		raw := strings.TrimSpace(lines[i])
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "level=ERROR") &&
			!strings.Contains(raw, "level=WARN") &&
			!strings.Contains(raw, "level=error") &&
			!strings.Contains(raw, "level=warn") {
			continue
		}
		out = append(out, parseLogLine(raw))
	}
	return out
}

func buildDiagReadme() string {
	return strings.TrimSpace(`
该诊断包不包含数据库与积分流水。

包含：
- status.json：/api/status 快照
- config/config.yaml.redacted：脱敏后的配置文件（如存在）
- logs/recent.log：最近日志（截断）

建议在提交 issue/反馈时附上该文件。`) + "\n"
}

func addZipText(zw *zip.Writer, name string, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte(content))
	return err
}

func addZipJSON(zw *zip.Writer, name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return addZipText(zw, name, string(b)+"\n")
}

var reYAMLSecret = regexp.MustCompile(`(?im)^(\s*(api_key|apikey|access_token|token|secret|otlp_endpoint)\s*:\s*)(.+)$`)

func redactConfigYAML(y string) string {
	in := strings.ReplaceAll(y, "\r\n", "\n")
	return reYAMLSecret.ReplaceAllStringFunc(in, func(line string) string {
		m := reYAMLSecret.FindStringSubmatch(line)
		if len(m) != 4 {
			return line
		}
		prefix := m[1]
		val := strings.TrimSpace(m[3])
		if strings.Contains(val, "${") || val == `""` || val == "''" {
			return prefix + val
		}
		return prefix + "\"***\""
	})
}

func tailLines(path string, maxBytes int64) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := st.Size()
	start := int64(0)
	if size > maxBytes {
		start = size - maxBytes
	}
	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return nil, err
		}
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	s := string(b)
	if start > 0 {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n"), nil
}
