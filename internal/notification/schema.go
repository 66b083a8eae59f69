package notification

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/nao1215/animalbase/pkg/migration"
	"github.com/rs/zerolog"
)

// migrations は通知ストアのスキーマ定義。
//
//go:embed migrations/*.sql
var migrations embed.FS

// initSchema は未適用のマイグレーションをSQLiteデータベースに適用する。
func initSchema(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	applied, err := migration.Run(ctx, db, migrations, "migrations")
	if err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	for _, name := range applied {
		logger.Info().Str("migration", name).Msg("マイグレーションを適用しました")
	}
	return nil
}
