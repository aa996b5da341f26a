package observability

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/bootstrap"
	"github.com/yuqie6/ChoreQuest/internal/dto"
	"github.com/yuqie6/ChoreQuest/internal/pkg/buildinfo"
)

func BuildStatus(ctx context.Context, core *bootstrap.Core, startedAt time.Time) (*dto.StatusDTO, error) {
	if core == nil || core.Cfg == nil || core.DB == nil || core.Engine == nil {
		return nil, ErrNotReady
	}

	cfg := core.Cfg
	now := time.Now()
	rules := core.Engine.Rules()

	users := int64(0)
	if n, err := core.Store.Repos().Stats.Count(ctx); err == nil {
		users = n
	}

	categories := make(map[string]int64, len(rules.Points))
	for cat, pts := range rules.Points {
		categories[string(cat)] = pts
	}

	recentErr := ReadRecentErrors(strings.TrimSpace(cfg.App.LogPath), 20)

	return &dto.StatusDTO{
		App: dto.AppStatusDTO{
			Name:       cfg.App.Name,
			Version:    buildinfo.String(),
			StartedAt:  startedAt.Format(time.RFC3339),
			UptimeSec:  int64(now.Sub(startedAt).Seconds()),
			SafeMode:   core.DB.SafeMode,
			ConfigPath: core.CfgPath,
			Timezone:   rules.Location.String(),
		},
		Storage: dto.StorageStatusDTO{
			DBPath:         cfg.Storage.DBPath,
			SchemaVersion:  core.DB.SchemaVersion,
			SafeModeReason: strings.TrimSpace(core.DB.MigrationError),
		},
		Game: dto.GameStatusDTO{
			Users:          users,
			Categories:     categories,
			SkillTrees:     append([]string(nil), rules.Skills.Trees...),
			NextSweepAt:    core.Engine.NextSweepAt().UnixMilli(),
			AutoSweep:      cfg.Game.Streaks.AutoSweep,
			EventListeners: core.Hub.Subscribers(),
		},
		RecentErrors: recentErr,
	}, nil
}

var (
	reLogTime  = regexp.MustCompile(`\btime=([^ ]+)`)
	reLogLevel = regexp.MustCompile(`\blevel=([^ ]+)`)
	reLogMsg   = regexp.MustCompile(`\bmsg=("(?:[^"\\]|\\.)*"|[^ ]+)`)
)

func parseLogLine(line string) dto.RecentErrorDTO {
	e := dto.RecentErrorDTO{Raw: line, Message: line}
	if m := reLogTime.FindStringSubmatch(line); len(m) == 2 {
		e.Time = m[1]
	}
	if m := reLogLevel.FindStringSubmatch(line); len(m) == 2 {
		e.Level = strings.Trim(m[1], "\"")
	}
	if m := reLogMsg.FindStringSubmatch(line); len(m) == 2 {
		msg := strings.TrimSpace(m[1])
		msg = strings.TrimPrefix(msg, "\"")
		msg = strings.TrimSuffix(msg, "\"")
		e.Message = msg
	}
	return e
}
