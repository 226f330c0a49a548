package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/huddle-backend/internal/platform/envutil"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type PostgresConfig struct {
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string

	MaxOpenConns int
	MaxIdleConns int
}

// PostgresConfigFromEnv prefers POSTGRES_DSN and falls back to the discrete settings.
func PostgresConfigFromEnv() PostgresConfig {
	return PostgresConfig{
		DSN:          envutil.String("POSTGRES_DSN", ""),
		Host:         envutil.String("POSTGRES_HOST", "localhost"),
		Port:         envutil.String("POSTGRES_PORT", "5432"),
		User:         envutil.String("POSTGRES_USER", "postgres"),
		Password:     envutil.String("POSTGRES_PASSWORD", ""),
		Name:         envutil.String("POSTGRES_NAME", "huddle"),
		MaxOpenConns: envutil.Int("POSTGRES_MAX_OPEN_CONNS", 20),
		MaxIdleConns: envutil.Int("POSTGRES_MAX_IDLE_CONNS", 5),
	}
}

func (c PostgresConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(logg *logger.Logger, cfg PostgresConfig) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.dsn()), GormConfig(gormLog))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	serviceLog.Info("Connected to Postgres", "host", cfg.Host, "name", cfg.Name)
	return &PostgresService{db: db, log: serviceLog}, nil
}

// GormConfig is shared by the service and the test harness so both see the
// same error translation and UTC timestamps.
func GormConfig(l gormLogger.Interface) *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   l,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
