package migration

import (
	"strings"

	"github.com/retailops/incidentd/internal/config"
	"github.com/retailops/incidentd/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !strings.EqualFold(cfg.DBType, "postgres") {
			log.Warn("skipping schema migrations for non-postgres database",
				zap.String("db_type", cfg.DBType),
			)
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.SeedReferenceData {
			return seed.EnsureReferenceData(conn)
		}
		return nil
	}),
)
