// Package config 负责加载 atbot 的 YAML 配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 传输方式。
const (
	TransportWS   = "ws"
	TransportHTTP = "http"
)

// envPrefix 标记从环境变量读取的配置值。
const envPrefix = "env:"

// OneBotConfig 描述与 OneBot 实现端的连接方式。
type OneBotConfig struct {
	Transport         string `yaml:"transport"`          // ws | http
	WSURL             string `yaml:"ws_url"`             // 正向 WebSocket 地址
	HTTPURL           string `yaml:"http_url"`           // HTTP API 地址
	ListenAddr        string `yaml:"listen_addr"`        // http 模式下事件上报监听地址
	CallbackPath      string `yaml:"callback_path"`      // http 模式下事件上报路径
	AccessToken       string `yaml:"access_token"`       // 支持 env:NAME
	Secret            string `yaml:"secret"`             // HTTP 上报签名密钥，支持 env:NAME
	TimeoutSeconds    int    `yaml:"timeout_seconds"`    // HTTP API 超时
	ReconnectInterval int    `yaml:"reconnect_interval"` // WebSocket 重连间隔（秒），0 表示不重连
}

// Timeout 返回 HTTP API 超时。
func (c OneBotConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Reconnect 返回 WebSocket 重连间隔。
func (c OneBotConfig) Reconnect() time.Duration {
	return time.Duration(c.ReconnectInterval) * time.Second
}

// CommandConfig 描述命令入口。
type CommandConfig struct {
	Marker string   `yaml:"marker"` // 命令前缀，默认 "/@"
	Admins []string `yaml:"admins"` // 允许触发命令的 QQ 号，为空表示不限制
}

// LogConfig 日志配置。
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config 是完整配置。
type Config struct {
	OneBot  OneBotConfig  `yaml:"onebot"`
	Command CommandConfig `yaml:"command"`
	Log     LogConfig     `yaml:"log"`
}

// Default 返回默认配置。
func Default() Config {
	return Config{
		OneBot: OneBotConfig{
			Transport:         TransportWS,
			WSURL:             "ws://127.0.0.1:3001",
			HTTPURL:           "http://127.0.0.1:3000",
			ListenAddr:        ":8080",
			CallbackPath:      "/onebot",
			TimeoutSeconds:    10,
			ReconnectInterval: 5,
		},
		Command: CommandConfig{Marker: "/@"},
		Log:     LogConfig{Level: "info"},
	}
}

// LoadEnv 加载 .env 文件。path 为空时尝试当前目录下的 .env，文件不存在不视为错误。
func LoadEnv(path string) error {
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load 读取 YAML 配置，在默认值之上覆盖，解析 env: 引用并校验。
// path 为空时只使用默认值。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.resolveEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CommandPrefix 返回命令前缀（marker 的首字符）。
func (c CommandConfig) CommandPrefix() string {
	_, size := utf8.DecodeRuneInString(c.Marker)
	return c.Marker[:size]
}

// CommandName 返回命令名（marker 去掉首字符）。
func (c CommandConfig) CommandName() string {
	_, size := utf8.DecodeRuneInString(c.Marker)
	return c.Marker[size:]
}

// Validate 校验配置并补全空缺的默认值。
func (c *Config) Validate() error {
	def := Default()

	c.OneBot.Transport = strings.ToLower(strings.TrimSpace(c.OneBot.Transport))
	if c.OneBot.Transport == "" {
		c.OneBot.Transport = def.OneBot.Transport
	}
	switch c.OneBot.Transport {
	case TransportWS:
		if c.OneBot.WSURL == "" {
			return errors.New("onebot.ws_url is required for ws transport")
		}
	case TransportHTTP:
		if c.OneBot.HTTPURL == "" {
			return errors.New("onebot.http_url is required for http transport")
		}
		if c.OneBot.ListenAddr == "" {
			return errors.New("onebot.listen_addr is required for http transport")
		}
	default:
		return fmt.Errorf("unsupported onebot.transport %q", c.OneBot.Transport)
	}

	if c.OneBot.CallbackPath == "" {
		c.OneBot.CallbackPath = def.OneBot.CallbackPath
	}
	if !strings.HasPrefix(c.OneBot.CallbackPath, "/") {
		c.OneBot.CallbackPath = "/" + c.OneBot.CallbackPath
	}
	if c.OneBot.TimeoutSeconds <= 0 {
		c.OneBot.TimeoutSeconds = def.OneBot.TimeoutSeconds
	}
	if c.OneBot.ReconnectInterval < 0 {
		return errors.New("onebot.reconnect_interval must not be negative")
	}

	c.Command.Marker = strings.TrimSpace(c.Command.Marker)
	if c.Command.Marker == "" {
		c.Command.Marker = def.Command.Marker
	}
	// 首字符作为命令前缀，其余部分作为命令名。
	if utf8.RuneCountInString(c.Command.Marker) < 2 || strings.ContainsAny(c.Command.Marker, " \t\r\n") {
		return fmt.Errorf("invalid command.marker %q", c.Command.Marker)
	}
	admins := c.Command.Admins[:0]
	for _, id := range c.Command.Admins {
		if id = strings.TrimSpace(id); id != "" {
			admins = append(admins, id)
		}
	}
	c.Command.Admins = admins

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	return nil
}

func (c *Config) resolveEnv() {
	c.OneBot.AccessToken = resolveEnv(c.OneBot.AccessToken)
	c.OneBot.Secret = resolveEnv(c.OneBot.Secret)
	c.OneBot.WSURL = resolveEnv(c.OneBot.WSURL)
	c.OneBot.HTTPURL = resolveEnv(c.OneBot.HTTPURL)
}

// resolveEnv 如果值以 "env:" 开头，则从环境变量中获取实际值。
func resolveEnv(value string) string {
	if strings.HasPrefix(value, envPrefix) {
		return os.Getenv(strings.TrimPrefix(value, envPrefix))
	}
	return value
}
