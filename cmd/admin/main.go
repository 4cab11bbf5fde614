package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/rev2018/placement-tracker/internal/account"
	"github.com/rev2018/placement-tracker/internal/config"
	"github.com/rev2018/placement-tracker/internal/database"
)

func main() {
	var (
		fullName = flag.String("full-name", "", "账号姓名（必填）")
		email    = flag.String("email", "", "登录邮箱（必填）")
		minLen   = flag.Int("min-password-length", 6, "密码最小长度")
		dbHost   = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort   = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName   = flag.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser   = flag.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass   = flag.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode  = flag.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	flag.Parse()

	if strings.TrimSpace(*fullName) == "" || strings.TrimSpace(*email) == "" {
		log.Fatal("missing required flags: --full-name and --email")
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	password, err := generateRandomPassword(24)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}

	store := account.NewStore(db, *minLen)
	id, err := store.CreateAccount(context.Background(), *fullName, *email, password)
	switch {
	case errors.Is(err, account.ErrDuplicateEmail):
		log.Fatalf("email %q already registered", account.NormalizeEmail(*email))
	case err != nil:
		log.Fatalf("create account: %v", err)
	}

	fmt.Printf("已创建账号：\n")
	fmt.Printf("ID: %d\n", id)
	fmt.Printf("邮箱: %s\n", account.NormalizeEmail(*email))
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：该密码仅显示一次，请妥善保存。\n")
}

// loadDatabaseConfig 以环境变量为基础，非空的命令行参数优先。
func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	override := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	override(&cfg.Host, host)
	override(&cfg.Name, name)
	override(&cfg.User, user)
	override(&cfg.Password, password)
	override(&cfg.SSLMode, sslmode)
	if port > 0 {
		cfg.Port = port
	}
	return cfg, nil
}

func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 24
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
