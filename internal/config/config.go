// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（JWT 密钥、数据库密码）和 APP_ENV
//  2. 加载 configs/common.yaml，再按 APP_ENV 叠加 configs/{env}.yaml
//  3. 环境变量可覆盖 YAML 配置
//
// 凭据单一数据源：密码/密钥只存在 .env 文件中，YAML 中不存储任何密码。
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// 数据库驱动标识
const (
	DriverMongoDB  = "mongodb"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverSheets   = "sheets"
	DriverMemory   = "memory"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Sheets   SheetsConfig   `yaml:"sheets"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// AllowedOrigins CORS 允许的来源，空列表表示放行全部（开发环境）
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver  string `yaml:"driver"` // mongodb / sqlite / postgres / sheets / memory
	Path    string `yaml:"path"`   // SQLite 文件路径
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Name    string `yaml:"name"`
	SSLMode string `yaml:"sslmode"`
	URI     string `yaml:"uri"` // MongoDB 连接 URI（优先于 host/port）
}

type RedisConfig struct {
	Enabled bool `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DB      int    `yaml:"db"`
}

// AuthConfig 认证配置
// 注意：JWTSecret 只从 JWT_SECRET 环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret string `yaml:"-"`
	TokenTTL  string `yaml:"token_ttl"` // 例如 "24h"
	// StrictStatus 启用后，status 与 completed 同时出现且矛盾的写入
	// 直接拒绝（400），默认关闭时以 status 为准静默修正
	StrictStatus bool `yaml:"strict_status"`
}

// SheetsConfig 表格网关配置
// APIKey 只从 SHEETS_API_KEY 环境变量读取
type SheetsConfig struct {
	URL     string `yaml:"url"`
	APIKey  string `yaml:"-"`
	Timeout string `yaml:"timeout"` // 例如 "30s"
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	APIPort        string
	AllowedOrigins []string

	DBDriver    string
	DatabaseURL string // PostgreSQL 连接串
	SQLitePath  string
	MongoURI    string
	MongoDBName string

	SheetsURL     string
	SheetsAPIKey  string
	SheetsTimeout time.Duration

	RedisEnabled  bool
	RedisAddr     string
	RedisDB       int
	RedisPassword string

	JWTSecret    string
	TokenTTL     time.Duration
	StrictStatus bool
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 加载 common.yaml + configs/{env}.yaml
// 3. 构建最终配置
func Load() *Config {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	env := parseEnv(getEnv("APP_ENV", "dev"))
	yamlCfg := loadYAMLConfig(env)

	dbPassword := getEnv("DB_PASSWORD", "workerbee_dev_password")

	cfg := &Config{
		Env:            env,
		APIPort:        getEnv("API_PORT", yamlCfg.Server.Port),
		AllowedOrigins: yamlCfg.Server.AllowedOrigins,

		DBDriver:    getEnv("DB_DRIVER", yamlCfg.Database.Driver),
		DatabaseURL: buildDatabaseURL(yamlCfg.Database, dbPassword),
		SQLitePath:  yamlCfg.Database.Path,
		MongoURI:    getEnv("MONGO_URI", yamlCfg.Database.URI),
		MongoDBName: yamlCfg.Database.Name,

		SheetsURL:     getEnv("SHEETS_URL", yamlCfg.Sheets.URL),
		SheetsAPIKey:  os.Getenv("SHEETS_API_KEY"),
		SheetsTimeout: parseDuration(yamlCfg.Sheets.Timeout, 30*time.Second),

		RedisEnabled:  yamlCfg.Redis.Enabled,
		RedisAddr:     fmt.Sprintf("%s:%d", yamlCfg.Redis.Host, yamlCfg.Redis.Port),
		RedisDB:       yamlCfg.Redis.DB,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		TokenTTL:     parseDuration(yamlCfg.Auth.TokenTTL, 24*time.Hour),
		StrictStatus: parseBool(getEnv("STRICT_STATUS", ""), yamlCfg.Auth.StrictStatus),
	}

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	cfg := &YAMLConfig{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Driver: DriverMongoDB, Host: "localhost", Port: 5432, User: "workerbee", Name: "workerbee", SSLMode: "disable", URI: "mongodb://localhost:27017", Path: "workerbee.db"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		Auth:     AuthConfig{TokenTTL: "24h"},
		Sheets:   SheetsConfig{Timeout: "30s"},
	}

	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// buildDatabaseURL 构建 PostgreSQL 连接字符串
func buildDatabaseURL(db DatabaseConfig, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, password, db.Host, db.Port, db.Name, db.SSLMode)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func parseBool(s string, defaultValue bool) bool {
	if s == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultValue
	}
	return b
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Driver: %s, DB: %s}",
		c.Env, c.DBDriver, maskPassword(c.DatabaseURL))
}

// maskPassword 隐藏密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}
