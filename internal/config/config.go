package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config 描述了 vestifyd 在启动阶段需要加载的核心配置。
type Config struct {
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Signer   SignerConfig   `json:"signer"`
	Chain    ChainConfig    `json:"chain"`
	Storage  StorageConfig  `json:"storage"`
	Events   EventsConfig   `json:"events"`
	Workflow WorkflowConfig `json:"workflow"`
}

// ServerConfig 控制 API 服务的监听地址与访问令牌。
type ServerConfig struct {
	Address string   `json:"address"`
	Tokens  []string `json:"tokens"`
}

// LoggingConfig 控制应用日志与审计日志输出。
type LoggingConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	Audit       struct {
		Enabled    bool   `json:"enabled"`
		Path       string `json:"path"`
		MaxSizeMB  int    `json:"max_size_mb"`
		MaxBackups int    `json:"max_backups"`
		MaxAgeDays int    `json:"max_age_days"`
	} `json:"audit"`
}

// SignerConfig 描述签名提供方的密钥来源。二选一：
// keystore 文件（配合口令环境变量）或私钥环境变量。
type SignerConfig struct {
	KeystorePath  string `json:"keystore_path"`
	PassphraseEnv string `json:"passphrase_env"`
	PrivateKeyEnv string `json:"private_key_env"`
}

// ChainConfig 指向链与合约定义文件。
type ChainConfig struct {
	Definitions string `json:"definitions"`
}

// StorageConfig 统一描述工作流运行记录的持久化后端。
type StorageConfig struct {
	RunStore RunStoreConfig `json:"run_store"`
}

// RunStoreConfig 支持 memory 与 mysql 两种驱动。
type RunStoreConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// EventsConfig 描述运行状态事件的对外发布通道。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 发布通道的连接参数。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Channel  string `json:"channel"`
}

// RabbitMQConfig 描述 RabbitMQ 发布通道的连接参数。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// WorkflowConfig 放置编排器的运行参数。
type WorkflowConfig struct {
	ConfirmTimeoutSeconds int `json:"confirm_timeout_seconds"`
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8085"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Storage.RunStore.Driver == "" {
		c.Storage.RunStore.Driver = "memory"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}

	if c.Signer.PassphraseEnv == "" {
		c.Signer.PassphraseEnv = "VESTIFY_KEYSTORE_PASSPHRASE"
	}
	if c.Signer.PrivateKeyEnv == "" {
		c.Signer.PrivateKeyEnv = "VESTIFY_PRIVATE_KEY"
	}

	if c.Chain.Definitions == "" {
		c.Chain.Definitions = filepath.Join(baseDir, "contracts.yaml")
	} else if !filepath.IsAbs(c.Chain.Definitions) {
		c.Chain.Definitions = filepath.Join(baseDir, c.Chain.Definitions)
	}

	if c.Workflow.ConfirmTimeoutSeconds <= 0 {
		c.Workflow.ConfirmTimeoutSeconds = 180
	}
}
