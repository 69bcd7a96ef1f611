package db

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是进程级的数据库连接实例，由 cmd 入口在启动时设置。
var DB *gorm.DB

// Options 描述数据库连接方式。
type Options struct {
	Driver   string // sqlite | mysql | postgres
	DSN      string
	LogLevel string
}

// Init 打开连接、执行自动迁移并设置全局 DB。
func Init(opts Options) error {
	gdb, err := Open(opts)
	if err != nil {
		return err
	}
	if err := Migrate(gdb); err != nil {
		return err
	}
	DB = gdb
	return nil
}

// Open 根据驱动类型建立连接。TranslateError 打开后，唯一约束冲突统一表现为 gorm.ErrDuplicatedKey。
func Open(opts Options) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	dsn := strings.TrimSpace(opts.DSN)

	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			dsn = "dailyagent.db"
		}
		if err := ensureParentDir(sqlitePath(dsn)); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(withForeignKeys(dsn))
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(opts.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == "mysql" || driver == "postgres" {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	return gdb, nil
}

// Migrate 为核心模型建表，并确保 (user_id, log_date) 唯一索引存在。
func Migrate(gdb *gorm.DB) error {
	if gdb == nil {
		return errors.New("database not initialized")
	}
	if err := gdb.AutoMigrate(&User{}, &DailyLog{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping 用于健康检查。
func Ping(gdb *gorm.DB) error {
	if gdb == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// newGormLogger 将应用日志级别映射到 gorm：info 只保留慢查询和警告，debug 才打印 SQL。
func newGormLogger(level string) logger.Interface {
	var gormLevel logger.LogLevel
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		gormLevel = logger.Info
	case "error":
		gormLevel = logger.Error
	case "silent":
		gormLevel = logger.Silent
	default:
		gormLevel = logger.Warn
	}

	return logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// withForeignKeys sqlite 默认不执行外键约束，需要按连接开启才能让级联删除生效。
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=1"
	}
	return dsn + "?_foreign_keys=1"
}

func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return ""
	}
	return path
}

func ensureParentDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
