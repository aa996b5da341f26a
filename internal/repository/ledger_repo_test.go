package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yuqie6/ChoreQuest/internal/schema"
	"github.com/yuqie6/ChoreQuest/internal/testutil"
	"gorm.io/datatypes"
)

func TestPointTransactionRepositorySums(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewPointTransactionRepository(db)
	ctx := context.Background()

	dayStart := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	rows := []schema.PointTransaction{
		{TxID: "tx-1", UserID: "u1", Amount: 25, Type: schema.PointTxTaskCompletion, Timestamp: dayStart.Add(-time.Hour).UnixMilli()},
		{TxID: "tx-2", UserID: "u1", Amount: 11, Type: schema.PointTxTaskCompletion, Timestamp: dayStart.Add(time.Hour).UnixMilli()},
		{TxID: "tx-3", UserID: "u1", Amount: -5, Type: schema.PointTxAdminAdjustment, Timestamp: dayStart.Add(2 * time.Hour).UnixMilli()},
		{TxID: "tx-4", UserID: "u2", Amount: 50, Type: schema.PointTxTaskCompletion, Timestamp: dayStart.Add(time.Hour).UnixMilli()},
	}
	for i := range rows {
		rows[i].Metadata = datatypes.NewJSONType(schema.PointsMetadata{Base: rows[i].Amount})
		if err := repo.Append(ctx, &rows[i]); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	today, err := repo.SumPositiveSince(ctx, "u1", dayStart.UnixMilli())
	if err != nil {
		t.Fatalf("SumPositiveSince error: %v", err)
	}
	if today != 11 {
		t.Fatalf("today=%d, want 11", today)
	}

	total, err := repo.SumByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("SumByUser error: %v", err)
	}
	if total != 31 {
		t.Fatalf("total=%d, want 31", total)
	}

	list, err := repo.ListByUser(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(list) != 3 || list[0].TxID != "tx-3" {
		t.Fatalf("list=%+v", list)
	}
	if list[2].Metadata.Data().Base != 25 {
		t.Fatalf("metadata not round-tripped: %+v", list[2].Metadata.Data())
	}
}

func TestPointTransactionRepositoryDuplicateTxID(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewPointTransactionRepository(db)
	ctx := context.Background()

	tx := &schema.PointTransaction{TxID: "dup", UserID: "u1", Amount: 1, Type: schema.PointTxBonus, Timestamp: 1}
	if err := repo.Append(ctx, tx); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	again := &schema.PointTransaction{TxID: "dup", UserID: "u1", Amount: 1, Type: schema.PointTxBonus, Timestamp: 2}
	if err := repo.Append(ctx, again); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err=%v, want ErrDuplicate", err)
	}
}

func TestCompletionRepositoryCountAndDuplicate(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewCompletionRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC).UnixMilli()
	for i, task := range []string{"t1", "t2", "t3"} {
		c := &schema.TaskCompletion{UserID: "u1", TaskID: task, Category: "quick", Timestamp: base + int64(i)*1000}
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	n, err := repo.CountInRange(ctx, "u1", base, base+2000)
	if err != nil {
		t.Fatalf("CountInRange error: %v", err)
	}
	if n != 2 {
		t.Fatalf("count=%d, want 2 (end exclusive)", n)
	}

	err = repo.Create(ctx, &schema.TaskCompletion{UserID: "u1", TaskID: "t1", Category: "quick", Timestamp: base})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err=%v, want ErrDuplicate", err)
	}

	got, err := repo.Get(ctx, "u1", "t2")
	if err != nil || got == nil || got.Timestamp != base+1000 {
		t.Fatalf("Get got=%+v err=%v", got, err)
	}
	missing, err := repo.Get(ctx, "u1", "nope")
	if err != nil || missing != nil {
		t.Fatalf("Get missing got=%+v err=%v", missing, err)
	}
}

func TestSkillProgressRepositoryUpsert(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewSkillProgressRepository(db)
	ctx := context.Background()
	now := time.Now()

	p := schema.NewSkillProgress("u1", "culinary")
	p.AddXP(1500, 1000, 10, now)
	if err := repo.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	got, err := repo.Get(ctx, "u1", "culinary")
	if err != nil || got == nil {
		t.Fatalf("Get got=%+v err=%v", got, err)
	}
	got.AddXP(600, 1000, 10, now)
	if err := repo.Upsert(ctx, got); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	list, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(list) != 1 || list[0].XP != 2100 || list[0].Level != 3 {
		t.Fatalf("list=%+v", list)
	}
}

func TestDayRangeAndStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	start, end, err := DayRange("2026-05-10", loc)
	if err != nil {
		t.Fatalf("DayRange error: %v", err)
	}
	if end-start != 24*3600*1000-1 {
		t.Fatalf("range width=%d", end-start)
	}

	ts := time.Date(2026, 5, 10, 20, 0, 0, 0, time.UTC) // 次日 04:00 (UTC+8)
	sod := StartOfDay(ts, loc)
	if sod.Day() != 11 || sod.Hour() != 0 {
		t.Fatalf("StartOfDay=%v", sod)
	}
	if _, _, err := DayRange("bad", loc); err == nil {
		t.Fatal("expected parse error")
	}
}
