package repository

import (
	"fmt"
	"time"
)

// DayRange 将 YYYY-MM-DD 解析为指定时区日区间的毫秒时间戳 [start, end]（闭区间）。
func DayRange(date string, loc *time.Location) (startMs int64, endMs int64, err error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("解析日期失败: %w", err)
	}
	start := t.UnixMilli()
	end := t.AddDate(0, 0, 1).UnixMilli() - 1
	return start, end, nil
}

// StartOfDay 返回 t 在 loc 时区所在自然日的零点
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
