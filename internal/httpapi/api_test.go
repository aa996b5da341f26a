package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/ChoreQuest/internal/bootstrap"
	"github.com/yuqie6/ChoreQuest/internal/dto"
	"github.com/yuqie6/ChoreQuest/internal/pkg/config"
	"github.com/yuqie6/ChoreQuest/internal/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *bootstrap.Core) {
	t.Helper()
	cfg := config.Default()
	cfg.App.Timezone = "UTC"
	cfg.Storage.DBPath = ":memory:"

	core, err := bootstrap.NewCoreWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.Close() })

	srv := httptest.NewServer(NewHandler(core, Options{MetricsEnabled: true}))
	t.Cleanup(srv.Close)
	return srv, core
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getPath(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := getPath(t, srv, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, false, body["safe_mode"])
}

func TestClaimCompleteAndStats(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv, "/api/claim", dto.ClaimRequestDTO{UserID: "u1", TaskID: "t1", Category: "quick"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	claim := decode[dto.ClaimResponseDTO](t, resp)
	assert.True(t, claim.Success)
	assert.Equal(t, 95, claim.Remaining)
	assert.Equal(t, 5, claim.Cost)
	assert.Positive(t, claim.ClaimedAt)

	req := dto.CompleteRequestDTO{UserID: "u1", TaskID: "t1", Category: "quick", IsFirstDaily: true, SkillTree: "domestic"}
	resp = postJSON(t, srv, "/api/complete", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[service.CompleteResult](t, resp)
	assert.False(t, first.Replayed)
	assert.Equal(t, 1, first.Streak)
	assert.Equal(t, int64(15), first.Points.Total) // 10 + 5

	resp = postJSON(t, srv, "/api/complete", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	again := decode[service.CompleteResult](t, resp)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Points.Total, again.Points.Total)

	resp = getPath(t, srv, "/api/stats?user_id=u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[service.UserStats](t, resp)
	assert.Equal(t, int64(15), stats.TotalPoints)
	assert.Equal(t, int64(15), stats.PointsToday)
	assert.Equal(t, 95, stats.Stamina.Current)
	assert.Equal(t, int64(1), stats.TotalTasksCompleted)
	assert.Equal(t, 1, stats.Skills["domestic"].Level)
}

func TestClaimWithoutStaminaIsNotAnError(t *testing.T) {
	srv, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp := postJSON(t, srv, "/api/claim", dto.ClaimRequestDTO{UserID: "u1", TaskID: "big", Category: "legendary"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := postJSON(t, srv, "/api/claim", dto.ClaimRequestDTO{UserID: "u1", TaskID: "big", Category: "legendary"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	claim := decode[dto.ClaimResponseDTO](t, resp)
	assert.False(t, claim.Success)
	assert.Equal(t, 10, claim.Remaining)
}

func TestBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		path string
		body any
	}{
		{"unknown category", "/api/claim", dto.ClaimRequestDTO{UserID: "u1", TaskID: "t1", Category: "heroic"}},
		{"missing user", "/api/claim", dto.ClaimRequestDTO{TaskID: "t1", Category: "quick"}},
		{"missing task", "/api/claim", dto.ClaimRequestDTO{UserID: "u1", Category: "quick"}},
		{"unknown field", "/api/claim", map[string]any{"user_id": "u1", "task_id": "t1", "category": "quick", "extra": 1}},
		{"unknown skill tree", "/api/complete", dto.CompleteRequestDTO{UserID: "u1", TaskID: "t1", Category: "quick", SkillTree: "alchemy"}},
		{"zero adjust", "/api/points/adjust", dto.AdjustPointsRequestDTO{UserID: "u1", Amount: 0}},
		{"negative balance", "/api/points/adjust", dto.AdjustPointsRequestDTO{UserID: "u1", Amount: -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp := getPath(t, srv, "/api/stats")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = getPath(t, srv, "/api/leaderboard?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = getPath(t, srv, "/api/points/verify")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = getPath(t, srv, "/api/claim")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMilestonesAndLeaderboard(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := getPath(t, srv, "/api/streak/milestones?streak=7")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decode[service.MilestoneInfo](t, resp)
	assert.Equal(t, 7, info.CurrentMilestone)
	assert.Equal(t, 14, info.NextMilestone)
	assert.Equal(t, 7, info.DaysToNext)

	for _, u := range []string{"a", "b"} {
		resp := postJSON(t, srv, "/api/complete", dto.CompleteRequestDTO{UserID: u, TaskID: "t", Category: "quick"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp = postJSON(t, srv, "/api/complete", dto.CompleteRequestDTO{UserID: "b", TaskID: "t2", Category: "epic"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = getPath(t, srv, "/api/leaderboard?limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	board := decode[[]service.LeaderboardEntry](t, resp)
	require.Len(t, board, 2)
	assert.Equal(t, "b", board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)
}

func TestAdjustVerifyAndSweep(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv, "/api/points/adjust", dto.AdjustPointsRequestDTO{UserID: "u1", Amount: 30, Type: "bonus", Reason: "生日"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	adj := decode[dto.AdjustPointsResponseDTO](t, resp)
	assert.NotEmpty(t, adj.TxID)
	assert.Equal(t, "bonus", adj.Type)

	resp = getPath(t, srv, "/api/points/verify?user_id=u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[service.LedgerReport](t, resp)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(30), report.LedgerSum)

	resp = postJSON(t, srv, "/api/streaks/sweep", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sweep := decode[dto.SweepResultDTO](t, resp)
	assert.Equal(t, int64(0), sweep.Reset)
	assert.Greater(t, sweep.NextSweepAt, time.Now().UnixMilli())
}

func TestSafeModeRejectsWrites(t *testing.T) {
	srv, core := newTestServer(t)
	core.DB.SafeMode = true
	core.DB.MigrationError = "boom"

	resp := postJSON(t, srv, "/api/claim", dto.ClaimRequestDTO{UserID: "u1", TaskID: "t1", Category: "quick"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = getPath(t, srv, "/api/stats?user_id=u1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv, "/api/complete", dto.CompleteRequestDTO{UserID: "u1", TaskID: "t1", Category: "quick"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = getPath(t, srv, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[dto.StatusDTO](t, resp)
	assert.Equal(t, int64(1), st.Game.Users)
	assert.Equal(t, "UTC", st.App.Timezone)

	resp = getPath(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "quest_completions_total")

	resp = getPath(t, srv, "/api/diagnostics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
}

func TestSSEStreamsUserEvents(t *testing.T) {
	srv, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events?user_id=u1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "event: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "event: "))
			}
		}
	}
	require.Equal(t, "ready", readEvent())

	// 其他用户的事件不会推送给 u1
	other := postJSON(t, srv, "/api/claim", dto.ClaimRequestDTO{UserID: "u2", TaskID: "t1", Category: "quick"})
	require.Equal(t, http.StatusOK, other.StatusCode)
	mine := postJSON(t, srv, "/api/claim", dto.ClaimRequestDTO{UserID: "u1", TaskID: "t1", Category: "quick"})
	require.Equal(t, http.StatusOK, mine.StatusCode)

	require.Equal(t, "task.claimed", readEvent())
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"user_id":"u1"`)
}

func TestSanitizeSSEName(t *testing.T) {
	assert.Equal(t, "message", sanitizeSSEName("  "))
	assert.Equal(t, "a.b", sanitizeSSEName("a.\r\nb"))
}
