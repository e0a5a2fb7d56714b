// Package config 服务配置: TOML 文件 + 环境变量覆盖
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	"zone-router/model"

	"github.com/BurntSushi/toml"
)

// Config 全部配置
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Database DatabaseConfig `toml:"database"`
	Roads    RoadsConfig    `toml:"roads"`
	Zones    ZonesConfig    `toml:"zones"`
	Profiles ProfilesConfig `toml:"profiles"`
	Planner  PlannerConfig  `toml:"planner"`
	Loader   LoaderConfig   `toml:"loader"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Listen      string   `toml:"listen"`
	CORSOrigins []string `toml:"cors_origins"`
}

// AuthConfig 登录与管理接口认证; JWTSecret 为空时不启用认证
type AuthConfig struct {
	JWTSecret string        `toml:"jwt_secret"`
	TokenTTL  time.Duration `toml:"token_ttl"`
	Users     []model.User  `toml:"users"`
}

// Enabled 是否启用认证
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

// DatabaseConfig PostgreSQL 路网库
type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
}

// DSN gorm / lib/pq 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=Asia/Shanghai",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// 路网数据源类型
const (
	RoadsOSMFile  = "osm"
	RoadsOverpass = "overpass"
	RoadsDatabase = "database"
)

// RoadsConfig 路网数据源
type RoadsConfig struct {
	Source      string        `toml:"source"`
	OSMFile     string        `toml:"osm_file"`
	OverpassURL string        `toml:"overpass_url"`
	BBox        string        `toml:"bbox"` // south,west,north,east
	HTTPTimeout time.Duration `toml:"http_timeout"`
}

// 区域数据源类型
const (
	ZonesGeoJSON = "geojson"
	ZonesSQL     = "sql"
)

// ZonesConfig 规避区域数据源
type ZonesConfig struct {
	Source   string  `toml:"source"`
	File     string  `toml:"file"`
	Driver   string  `toml:"driver"` // postgres | sqlite
	DSN      string  `toml:"dsn"`
	Query    string  `toml:"query"`
	CellSize float64 `toml:"cell_size"` // 网格索引单元 (度), 0 表示线性扫描
}

// ProfilesConfig 路线偏好配置表
type ProfilesConfig struct {
	File string `toml:"file"`
}

// PlannerConfig 寻路参数
type PlannerConfig struct {
	Timeout          time.Duration `toml:"timeout"`
	SnapRadiusMeters float64       `toml:"snap_radius_m"`
	Workers          int           `toml:"workers"`
}

// LoaderConfig 数据源加载重试
type LoaderConfig struct {
	Attempts        int           `toml:"attempts"`
	AttemptTimeout  time.Duration `toml:"attempt_timeout"`
	InitialInterval time.Duration `toml:"initial_interval"`
}

// LoggingConfig 日志
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text 或 json
}

// Default 默认配置
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:      ":8080",
			CORSOrigins: []string{"*"},
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "zrouter",
			Password: "zrouter",
			Name:     "zrouter",
			SSLMode:  "disable",
		},
		Roads: RoadsConfig{
			Source:      RoadsOSMFile,
			OSMFile:     "map.osm",
			OverpassURL: "https://overpass-api.de/api/interpreter",
			HTTPTimeout: 60 * time.Second,
		},
		Zones: ZonesConfig{
			Source:   ZonesGeoJSON,
			File:     "zones.geojson",
			Driver:   "postgres",
			CellSize: 0.01,
		},
		Profiles: ProfilesConfig{
			File: "profiles.toml",
		},
		Planner: PlannerConfig{
			Timeout:          5 * time.Second,
			SnapRadiusMeters: 500,
		},
		Loader: LoaderConfig{
			Attempts:        3,
			AttemptTimeout:  30 * time.Second,
			InitialInterval: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load 读取配置文件; path 为空或文件不存在时使用默认配置, 然后应用环境变量
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			md, err := toml.DecodeFile(path, &cfg)
			if err != nil {
				return cfg, fmt.Errorf("解析配置文件失败: %w", err)
			}
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				return cfg, fmt.Errorf("配置文件包含未知字段: %v", undecoded)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv 环境变量覆盖 (Docker 部署方便)
func (c *Config) applyEnv() error {
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT %q: %w", v, err)
		}
		c.Database.Port = port
	}
	setString(&c.Auth.JWTSecret, "ZR_JWT_SECRET")
	setString(&c.Server.Listen, "ZR_LISTEN")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate 检查数据源类型和数值参数
func (c *Config) Validate() error {
	switch c.Roads.Source {
	case RoadsOSMFile:
		if c.Roads.OSMFile == "" {
			return fmt.Errorf("roads.osm_file is required for source %q", c.Roads.Source)
		}
	case RoadsOverpass:
		if c.Roads.BBox == "" {
			return fmt.Errorf("roads.bbox is required for source %q", c.Roads.Source)
		}
	case RoadsDatabase:
	default:
		return fmt.Errorf("unknown roads.source %q", c.Roads.Source)
	}

	switch c.Zones.Source {
	case ZonesGeoJSON:
		if c.Zones.File == "" {
			return fmt.Errorf("zones.file is required for source %q", c.Zones.Source)
		}
	case ZonesSQL:
		if c.Zones.Driver != "postgres" && c.Zones.Driver != "sqlite" {
			return fmt.Errorf("unknown zones.driver %q", c.Zones.Driver)
		}
		if c.Zones.DSN == "" {
			return fmt.Errorf("zones.dsn is required for source %q", c.Zones.Source)
		}
	default:
		return fmt.Errorf("unknown zones.source %q", c.Zones.Source)
	}

	if c.Planner.Timeout <= 0 {
		return fmt.Errorf("planner.timeout must be positive")
	}
	if c.Planner.SnapRadiusMeters <= 0 {
		return fmt.Errorf("planner.snap_radius_m must be positive")
	}
	if c.Loader.Attempts <= 0 {
		return fmt.Errorf("loader.attempts must be positive")
	}
	if c.Auth.Enabled() && c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	return nil
}
