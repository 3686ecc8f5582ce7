package migration

import (
	"strings"

	"github.com/smallbiznis/vehicleguard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBAutoMigrate {
			return nil
		}
		if !strings.EqualFold(cfg.DBType, "postgres") && !strings.EqualFold(cfg.DBType, "postgresql") {
			log.Warn("migrations skipped: embedded schema targets postgres", zap.String("type", cfg.DBType))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		st, err := Apply(sqlDB)
		if err != nil {
			return err
		}
		log.Info("schema ready", zap.Uint("version", st.Version), zap.Bool("changed", st.Changed))
		return nil
	}),
)
