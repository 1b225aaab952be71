package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Границы периодов для агрегации торговой статистики (день/неделя/месяц)
// и форматирование длительностей в уведомлениях.
//
// Торговый день считается по UTC - так же, как дневные лимиты риска.

// GetDayStart возвращает начало текущего дня (00:00:00) в UTC
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now().UTC())
}

// GetDayStartFrom возвращает начало дня для указанного времени в UTC
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetDayEnd возвращает конец текущего дня (23:59:59.999999999) в UTC
func GetDayEnd() time.Time {
	return GetDayEndFrom(time.Now().UTC())
}

// GetDayEndFrom возвращает конец дня для указанного времени
func GetDayEndFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, time.UTC)
}

// GetWeekStart возвращает начало текущей недели (понедельник 00:00:00) в UTC.
// Неделя начинается с понедельника (ISO 8601).
func GetWeekStart() time.Time {
	return GetWeekStartFrom(time.Now().UTC())
}

// GetWeekStartFrom возвращает начало недели для указанного времени
func GetWeekStartFrom(t time.Time) time.Time {
	t = t.UTC()

	// 0=Sunday в Go, приводим к ISO 8601 (1=Monday ... 7=Sunday)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	monday := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// GetMonthStart возвращает начало текущего месяца (1-е число 00:00:00) в UTC
func GetMonthStart() time.Time {
	return GetMonthStartFrom(time.Now().UTC())
}

// GetMonthStartFrom возвращает начало месяца для указанного времени
func GetMonthStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// SameTradingDay отвечает, относятся ли два момента к одному
// торговому дню (UTC). Используется для rollover дневных лимитов.
func SameTradingDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// ============================================================
// Периоды статистики
// ============================================================

// PeriodType тип периода для статистики
type PeriodType string

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
	PeriodAll   PeriodType = "all"
)

// GetPeriodStart возвращает начало периода указанного типа.
// Для PeriodAll возвращает нулевое время.
func GetPeriodStart(period PeriodType) time.Time {
	switch period {
	case PeriodDay:
		return GetDayStart()
	case PeriodWeek:
		return GetWeekStart()
	case PeriodMonth:
		return GetMonthStart()
	case PeriodAll:
		return time.Time{}
	default:
		return GetDayStart()
	}
}

// ============================================================
// Форматирование
// ============================================================

// FormatDuration форматирует продолжительность в человекочитаемый вид,
// отбрасывая незначащие младшие компоненты.
//
// Примеры: "45s", "5m30s", "2h15m"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		if minutes > 0 {
			return (time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute).String()
		}
		return (time.Duration(hours) * time.Hour).String()
	}

	if minutes > 0 {
		if seconds > 0 {
			return (time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second).String()
		}
		return (time.Duration(minutes) * time.Minute).String()
	}

	return (time.Duration(seconds) * time.Second).String()
}
