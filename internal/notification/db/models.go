package notificationdb

import (
	"database/sql"
	"fmt"
	"time"
)

// Notification は notifications テーブルの1行。
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Message   string
	RelatedID sql.NullInt64
	IsRead    int64
	CreatedAt time.Time
}

// sqliteTimeLayouts はSQLiteが返しうる日時文字列の形式。
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05Z07:00",
	time.RFC3339Nano,
}

// sqliteTime はドライバがtime.Timeと文字列のどちらを返しても読み取れる日時。
type sqliteTime struct {
	t *time.Time
}

// Scan は sql.Scanner の実装。
func (s sqliteTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*s.t = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	case nil:
		*s.t = time.Time{}
		return nil
	default:
		return fmt.Errorf("日時として読み取れない型です: %T", src)
	}
}

func (s sqliteTime) parse(v string) error {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			*s.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("日時の解析に失敗: %q", v)
}
