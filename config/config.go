package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// TableConfig 对应配置文件中的一条数据表登记。
type TableConfig struct {
	Name     string  `mapstructure:"name" yaml:"name" json:"name"`
	Display  string  `mapstructure:"display" yaml:"display" json:"display"`
	Category string  `mapstructure:"category" yaml:"category" json:"category"`
	Weight   float64 `mapstructure:"weight" yaml:"weight" json:"weight"`
}

type RestConfig struct {
	URL               string        `mapstructure:"url" yaml:"url" json:"url"`
	APIKey            string        `mapstructure:"apiKey" yaml:"apiKey" json:"-"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	RetryAttempts     int           `mapstructure:"retryAttempts" yaml:"retryAttempts" json:"retryAttempts"`
	RetryDelay        time.Duration `mapstructure:"retryDelay" yaml:"retryDelay" json:"retryDelay"`
	PageSize          int           `mapstructure:"pageSize" yaml:"pageSize" json:"pageSize"`
	RequestsPerSecond float64       `mapstructure:"requestsPerSecond" yaml:"requestsPerSecond" json:"requestsPerSecond"`
	BreakerFailures   uint32        `mapstructure:"breakerFailures" yaml:"breakerFailures" json:"breakerFailures"`
}

type GalleryConfig struct {
	CacheTTL          time.Duration `mapstructure:"cacheTTL" yaml:"cacheTTL" json:"cacheTTL"`
	PageSize          int           `mapstructure:"pageSize" yaml:"pageSize" json:"pageSize"`
	DefaultAlgorithm  string        `mapstructure:"defaultAlgorithm" yaml:"defaultAlgorithm" json:"defaultAlgorithm"`
	ViewFlushInterval time.Duration `mapstructure:"viewFlushInterval" yaml:"viewFlushInterval" json:"viewFlushInterval"`
	ViewMaxRetries    int           `mapstructure:"viewMaxRetries" yaml:"viewMaxRetries" json:"viewMaxRetries"`
	FetchWorkers      int           `mapstructure:"fetchWorkers" yaml:"fetchWorkers" json:"fetchWorkers"`
	SyntheticIDs      bool          `mapstructure:"syntheticIDs" yaml:"syntheticIDs" json:"syntheticIDs"`
	// 按设备缓存的会话和偏好：最多保留的设备数，以及空闲多久后淘汰
	SessionCapacity int           `mapstructure:"sessionCapacity" yaml:"sessionCapacity" json:"sessionCapacity"`
	SessionTTL      time.Duration `mapstructure:"sessionTTL" yaml:"sessionTTL" json:"sessionTTL"`
	Tables          []TableConfig `mapstructure:"tables" yaml:"tables" json:"tables"`
}

type Config struct {
	Server struct {
		Port           string        `mapstructure:"port" yaml:"port" json:"port"`
		Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
		AllowedOrigins []string      `mapstructure:"allowedOrigins" yaml:"allowedOrigins" json:"allowedOrigins"`
		RateLimit      int           `mapstructure:"rateLimit" yaml:"rateLimit" json:"rateLimit"`
	} `mapstructure:"server" yaml:"server" json:"server"`

	Database struct {
		Driver   string `mapstructure:"driver" yaml:"driver" json:"driver"`
		URI      string `mapstructure:"uri" yaml:"uri" json:"uri"`
		Name     string `mapstructure:"name" yaml:"name" json:"name"`
		SeedFile string `mapstructure:"seedFile" yaml:"seedFile" json:"seedFile"`
	} `mapstructure:"database" yaml:"database" json:"database"`

	Rest RestConfig `mapstructure:"rest" yaml:"rest" json:"rest"`

	Logger struct {
		Level  string `mapstructure:"level" yaml:"level" json:"level"`
		Format string `mapstructure:"format" yaml:"format" json:"format"`
		Path   string `mapstructure:"path" yaml:"path" json:"path"`
	} `mapstructure:"logger" yaml:"logger" json:"logger"`

	Gallery GalleryConfig `mapstructure:"gallery" yaml:"gallery" json:"gallery"`

	Preferences struct {
		Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
		Path   string `mapstructure:"path" yaml:"path" json:"path"`
	} `mapstructure:"preferences" yaml:"preferences" json:"preferences"`
}

var C *Config

func LoadConfig(path string) (err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		return
	}

	var cfg Config
	if err = v.Unmarshal(&cfg); err != nil {
		return
	}
	cfg.ApplyDefaults()
	C = &cfg
	return
}

// ApplyDefaults 为未填写的配置项补上默认值。
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = 15 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "rest"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Rest.Timeout <= 0 {
		c.Rest.Timeout = 10 * time.Second
	}
	if c.Rest.RetryAttempts <= 0 {
		c.Rest.RetryAttempts = 3
	}
	if c.Rest.RetryDelay <= 0 {
		c.Rest.RetryDelay = time.Second
	}
	if c.Rest.PageSize <= 0 {
		c.Rest.PageSize = 1000
	}
	if c.Rest.BreakerFailures == 0 {
		c.Rest.BreakerFailures = 5
	}
	if c.Gallery.CacheTTL <= 0 {
		c.Gallery.CacheTTL = 5 * time.Minute
	}
	if c.Gallery.PageSize <= 0 {
		c.Gallery.PageSize = 150
	}
	if c.Gallery.DefaultAlgorithm == "" {
		c.Gallery.DefaultAlgorithm = "smartPersonalized"
	}
	if c.Gallery.ViewFlushInterval <= 0 {
		c.Gallery.ViewFlushInterval = 30 * time.Second
	}
	if c.Gallery.ViewMaxRetries <= 0 {
		c.Gallery.ViewMaxRetries = 3
	}
	if c.Gallery.SessionCapacity <= 0 {
		c.Gallery.SessionCapacity = 10000
	}
	if c.Gallery.SessionTTL <= 0 {
		c.Gallery.SessionTTL = 30 * time.Minute
	}
	if c.Preferences.Driver == "" {
		c.Preferences.Driver = "file"
	}
	if c.Preferences.Path == "" {
		c.Preferences.Path = "preferences.json"
	}
}

// Save 把配置序列化为 YAML 并写回磁盘。
func Save(cfg *Config, path string) error {
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, yamlData, 0644)
}
