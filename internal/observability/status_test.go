package observability

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/bootstrap"
	"github.com/yuqie6/ChoreQuest/internal/pkg/config"
	"github.com/yuqie6/ChoreQuest/internal/service"
)

func newTestCore(t *testing.T) *bootstrap.Core {
	t.Helper()
	cfg := config.Default()
	cfg.App.Timezone = "UTC"
	cfg.Storage.DBPath = ":memory:"
	cfg.App.LogPath = filepath.Join(t.TempDir(), "quest.log")

	core, err := bootstrap.NewCoreWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewCoreWithConfig error: %v", err)
	}
	t.Cleanup(func() { _ = core.Close() })
	return core
}

func TestParseLogLine(t *testing.T) {
	line := `time=2026-05-10T10:00:00.000Z level=ERROR msg="结算失败" component=quest-server error="database is locked"`
	e := parseLogLine(line)
	if e.Time != "2026-05-10T10:00:00.000Z" {
		t.Fatalf("time=%q", e.Time)
	}
	if e.Level != "ERROR" {
		t.Fatalf("level=%q", e.Level)
	}
	if e.Message != "结算失败" {
		t.Fatalf("message=%q", e.Message)
	}

	plain := parseLogLine("time=x level=WARN msg=slow")
	if plain.Message != "slow" {
		t.Fatalf("message=%q", plain.Message)
	}
}

func TestReadRecentErrorsFiltersAndOrders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quest.log")
	content := strings.Join([]string{
		`time=1 level=INFO msg=启动`,
		`time=2 level=WARN msg=first`,
		`time=3 level=DEBUG msg=noise`,
		`time=4 level=ERROR msg=second`,
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	got := ReadRecentErrors(path, 10)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(got), got)
	}
	if got[0].Message != "second" || got[1].Message != "first" {
		t.Fatalf("order=%+v", got)
	}

	if ReadRecentErrors("", 10) != nil {
		t.Fatalf("empty path should yield nil")
	}
	missing := ReadRecentErrors(filepath.Join(t.TempDir(), "nope.log"), 10)
	if len(missing) != 1 || !strings.Contains(missing[0].Message, "读取日志失败") {
		t.Fatalf("missing=%+v", missing)
	}
}

func TestRedactConfigYAML(t *testing.T) {
	in := "telemetry:\n  otlp_endpoint: http://collector:4318\n  token: ${QUEST_TOKEN}\napp:\n  name: quest\n"
	out := redactConfigYAML(in)
	if strings.Contains(out, "collector:4318") {
		t.Fatalf("endpoint not redacted: %s", out)
	}
	if !strings.Contains(out, "${QUEST_TOKEN}") || !strings.Contains(out, "name: quest") {
		t.Fatalf("unexpected redaction: %s", out)
	}
}

func TestBuildStatus(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	if _, err := core.Engine.Claim(ctx, "u1", "t1", service.CategoryQuick); err != nil {
		t.Fatalf("Claim error: %v", err)
	}

	started := time.Now().Add(-time.Minute)
	st, err := BuildStatus(ctx, core, started)
	if err != nil {
		t.Fatalf("BuildStatus error: %v", err)
	}
	if st.Game.Users != 1 {
		t.Fatalf("users=%d, want 1", st.Game.Users)
	}
	if st.Game.Categories["epic"] != 50 || len(st.Game.SkillTrees) != 5 {
		t.Fatalf("game=%+v", st.Game)
	}
	if st.Game.NextSweepAt <= time.Now().UnixMilli() {
		t.Fatalf("next sweep should be in the future: %d", st.Game.NextSweepAt)
	}
	if st.App.UptimeSec < 59 || st.App.Timezone != "UTC" {
		t.Fatalf("app=%+v", st.App)
	}
	if st.Storage.SchemaVersion == 0 {
		t.Fatalf("schema version not reported")
	}

	if _, err := BuildStatus(ctx, nil, started); err != ErrNotReady {
		t.Fatalf("nil core err=%v, want ErrNotReady", err)
	}
}

func TestWriteDiagnosticsZip(t *testing.T) {
	core := newTestCore(t)
	if err := os.WriteFile(core.Cfg.App.LogPath, []byte("time=1 level=ERROR msg=boom\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteDiagnosticsZip(context.Background(), &buf, core, time.Now()); err != nil {
		t.Fatalf("WriteDiagnosticsZip error: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader error: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"status.json", "README.txt", "logs/recent.log"} {
		if !names[want] {
			t.Fatalf("missing %s in %v", want, names)
		}
	}
}
