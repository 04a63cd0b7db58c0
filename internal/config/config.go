package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Database DatabaseConfig `mapstructure:"database"`
	Lockers  []LockerConfig `mapstructure:"lockers"`
	Kiosk    KioskConfig    `mapstructure:"kiosk"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 硬件桥接服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PushInterval    time.Duration `mapstructure:"push_interval"` // WebSocket状态推送间隔
}

// SerialConfig 串口配置
type SerialConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MockMode    bool          `mapstructure:"mock_mode"` // 调试模式（不打开真实串口）
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	Reconnect   ReconnectConfig `mapstructure:"reconnect"`
}

// ReconnectConfig 串口重连策略（默认关闭，保持与固件一致的行为）
type ReconnectConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Interval    time.Duration `mapstructure:"interval"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
}

// DatabaseConfig 数据库配置（硬件事件日志）
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	RetentionDays   int           `mapstructure:"retention_days"`
}

// LockerConfig 柜门配置表
// 对外展示的柜号（id）和主控板的物理槽位（slot）是两套编号，
// 开锁指令（unlock_token）按槽位下发。解码器和指令分发器共用这张表。
type LockerConfig struct {
	ID          int    `mapstructure:"id"`
	Slot        int    `mapstructure:"slot"`
	UnlockToken string `mapstructure:"unlock_token"`
	Size        string `mapstructure:"size"`
	Capacity    string `mapstructure:"capacity"`
}

// KioskConfig 自助终端配置
type KioskConfig struct {
	BridgeURL        string        `mapstructure:"bridge_url"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"` // 连续失败多少次视为硬件断开
	PricePerKg       float64       `mapstructure:"price_per_kg"`
	MinWeight        float64       `mapstructure:"min_weight"`   // 称重有效的最小重量（kg）
	SettleDelay      time.Duration `mapstructure:"settle_delay"` // 重量稳定等待时间
	PinErrorHold     time.Duration `mapstructure:"pin_error_hold"`
	DemoMode         bool          `mapstructure:"demo_mode"` // 演示模式下允许读取柜门PIN
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		v.SetEnvPrefix("LAUNDRY_KIOSK")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		setDefaults(v)

		if err = v.ReadInConfig(); err != nil {
			// 配置文件不存在时使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return
			}
			err = nil
		}

		cfg = &Config{}
		if err = v.Unmarshal(cfg); err != nil {
			return
		}
	})

	return err
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置（原固件桥接服务监听3000端口）
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.push_interval", "500ms")

	// 串口默认配置
	v.SetDefault("serial.enabled", true)
	v.SetDefault("serial.mock_mode", false)
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.read_timeout", "0s")
	v.SetDefault("serial.reconnect.enabled", false)
	v.SetDefault("serial.reconnect.max_retries", 5)
	v.SetDefault("serial.reconnect.interval", "5s")
	v.SetDefault("serial.reconnect.max_interval", "30s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/laundry-kiosk.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.retention_days", 30)

	// 柜门配置表。历史上柜号和槽位的对应关系改过（曾出现柜号6/8对应槽位1/2），
	// 所以必须显式配置，不允许按柜号推断槽位。
	v.SetDefault("lockers", []map[string]interface{}{
		{"id": 1, "slot": 1, "unlock_token": "1", "size": "Medium", "capacity": "10 kg"},
		{"id": 2, "slot": 2, "unlock_token": "2", "size": "Medium", "capacity": "10 kg"},
	})

	// 终端默认配置
	v.SetDefault("kiosk.bridge_url", "http://localhost:3000")
	v.SetDefault("kiosk.poll_interval", "500ms")
	v.SetDefault("kiosk.request_timeout", "2s")
	v.SetDefault("kiosk.failure_threshold", 5)
	v.SetDefault("kiosk.price_per_kg", 25.0)
	v.SetDefault("kiosk.min_weight", 0.5)
	v.SetDefault("kiosk.settle_delay", "3s")
	v.SetDefault("kiosk.pin_error_hold", "1500ms")
	v.SetDefault("kiosk.demo_mode", false)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "laundry-kiosk.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}
	})
}

// GetString 获取字符串配置
func GetString(key string) string {
	return v.GetString(key)
}

// GetDuration 获取时间间隔配置
func GetDuration(key string) time.Duration {
	return v.GetDuration(key)
}

// Set 动态设置配置值
func Set(key string, value interface{}) {
	v.Set(key, value)
}
