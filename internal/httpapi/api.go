package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/dto"
	"github.com/yuqie6/ChoreQuest/internal/observability"
	"github.com/yuqie6/ChoreQuest/internal/schema"
	"github.com/yuqie6/ChoreQuest/internal/service"
)

// ========== routes ==========

func (a *apiServer) registerJSONRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/claim", a.wrapPOST(a.claim))
	mux.HandleFunc("/api/complete", a.wrapPOST(a.complete))

	mux.HandleFunc("/api/stats", a.wrapGET(a.getStats))
	mux.HandleFunc("/api/streak/milestones", a.wrapGET(a.getMilestones))
	mux.HandleFunc("/api/leaderboard", a.wrapGET(a.getLeaderboard))
	mux.HandleFunc("/api/streaks/sweep", a.wrapPOST(a.sweepStreaks))

	mux.HandleFunc("/api/points/adjust", a.wrapPOST(a.adjustPoints))
	mux.HandleFunc("/api/points/verify", a.wrapGET(a.verifyLedger))

	mux.HandleFunc("/api/status", a.wrapGET(a.getStatus))
	mux.HandleFunc("/api/diagnostics", a.wrapGET(a.getDiagnostics))
}

func (a *apiServer) wrapGET(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

// wrapPOST 额外拒绝安全模式下的写入
func (a *apiServer) wrapPOST(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := a.core.RequireWritable(); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		fn(w, r)
	}
}

func (a *apiServer) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), a.requestTimeout)
}

// ========== handlers ==========

func (a *apiServer) claim(w http.ResponseWriter, r *http.Request) {
	var req dto.ClaimRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.TaskID) == "" {
		writeError(w, http.StatusBadRequest, service.ErrInvalidTask.Error())
		return
	}

	ctx, cancel := a.requestContext(r)
	defer cancel()

	res, err := withRetry(ctx, a.retry, func() (service.ConsumeResult, error) {
		return a.engine.Claim(ctx, req.UserID, req.TaskID, service.Category(req.Category))
	})
	if err != nil {
		writeEngineError(w, "claim", err)
		return
	}

	// 体力不足仍返回 200，由 success 字段告知调用方不要转换任务状态
	writeJSON(w, http.StatusOK, &dto.ClaimResponseDTO{
		Success:   res.Success,
		Remaining: res.Remaining,
		Cost:      res.Cost,
		Max:       res.Max,
		ClaimedAt: time.Now().UnixMilli(),
	})
}

func (a *apiServer) complete(w http.ResponseWriter, r *http.Request) {
	var req dto.CompleteRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := a.requestContext(r)
	defer cancel()

	res, err := withRetry(ctx, a.retry, func() (service.CompleteResult, error) {
		return a.engine.Complete(ctx, service.CompleteRequest{
			UserID:       req.UserID,
			TaskID:       req.TaskID,
			Category:     service.Category(req.Category),
			IsFirstDaily: req.IsFirstDaily,
			IsSpeedBonus: req.IsSpeedBonus,
			SkillTree:    req.SkillTree,
			ClaimedAt:    req.ClaimedAt,
		})
	})
	if err != nil {
		writeEngineError(w, "complete", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *apiServer) getStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.requestContext(r)
	defer cancel()

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	stats, err := a.engine.GetUserStats(ctx, userID)
	if err != nil {
		writeEngineError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *apiServer) getMilestones(w http.ResponseWriter, r *http.Request) {
	streak, err := queryInt(r, "streak", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.engine.Streaks().MilestoneInfo(streak))
}

func (a *apiServer) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := a.requestContext(r)
	defer cancel()

	entries, err := a.engine.Leaderboard(ctx, limit)
	if err != nil {
		writeEngineError(w, "leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *apiServer) sweepStreaks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.requestContext(r)
	defer cancel()

	n, err := withRetry(ctx, a.retry, func() (int64, error) {
		return a.engine.RunDailyStreakSweep(ctx)
	})
	if err != nil {
		writeEngineError(w, "sweep", err)
		return
	}
	writeJSON(w, http.StatusOK, &dto.SweepResultDTO{
		Reset:       n,
		NextSweepAt: a.engine.NextSweepAt().UnixMilli(),
	})
}

func (a *apiServer) adjustPoints(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustPointsRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := a.requestContext(r)
	defer cancel()

	tx, err := withRetry(ctx, a.retry, func() (*schema.PointTransaction, error) {
		return a.engine.Points().AdjustPoints(ctx, service.AdjustRequest{
			UserID: req.UserID,
			Amount: req.Amount,
			Type:   schema.PointTransactionType(req.Type),
			Reason: req.Reason,
		})
	})
	if err != nil {
		writeEngineError(w, "adjust", err)
		return
	}
	writeJSON(w, http.StatusOK, &dto.AdjustPointsResponseDTO{
		TxID:      tx.TxID,
		Amount:    tx.Amount,
		Type:      string(tx.Type),
		CreatedAt: tx.Timestamp,
	})
}

func (a *apiServer) verifyLedger(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, service.ErrInvalidUser.Error())
		return
	}

	ctx, cancel := a.requestContext(r)
	defer cancel()

	report, err := a.engine.Points().VerifyLedger(ctx, userID)
	if err != nil {
		writeEngineError(w, "verify", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *apiServer) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.requestContext(r)
	defer cancel()

	st, err := observability.BuildStatus(ctx, a.core, a.startTime)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *apiServer) getDiagnostics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.requestContext(r)
	defer cancel()

	st, err := observability.BuildStatus(ctx, a.core, a.startTime)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	name := "quest-diagnostics-" + time.Now().Format("20060102-150405") + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_ = observability.WriteDiagnosticsZipWithStatus(w, a.core, st)
}
