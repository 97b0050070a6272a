package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// AppConfig holds the structure of the configuration
type AppConfig struct {
	Port       string `json:"port"`
	SelfPath   string `json:"selfpath"`
	Blocksize  int    `json:"blocksize"`  // 每格渲染像素
	Gridsize   int    `json:"gridsize"`   // 棋盘边长（格）
	TickMs     int    `json:"tickms"`     // tick 间隔毫秒
	SessionTTL int    `json:"sessionttl"` // 会话空闲回收秒数
	LogLevel   string `json:"loglevel"`   // debug/info/warn/error
	DBPath     string `json:"dbpath"`
}

var (
	instance *AppConfig
	mu       sync.RWMutex
	once     sync.Once
)

func defaultConfig() *AppConfig {
	return &AppConfig{
		Port:       "38866",                  // Default value
		SelfPath:   "http://127.0.0.1:38866", // Default value
		Blocksize:  20,
		Gridsize:   20,
		TickMs:     150,
		SessionTTL: 300,
		LogLevel:   "info",
		DBPath:     "./data/snakeweb.db",
	}
}

// LoadConfig initializes and returns the instance of AppConfig
func LoadConfig(filePath string) *AppConfig {
	once.Do(func() {
		instance = defaultConfig()
		// Load the config file if it exists, otherwise create one
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			saveConfig(filePath)
		} else {
			loadConfig(filePath)
		}
	})
	return Get()
}

// Get 返回当前配置的副本，热更新后再取一次就能看到新值
func Get() *AppConfig {
	mu.RLock()
	defer mu.RUnlock()
	cp := *instance
	return &cp
}

// loadConfig loads the settings from the file
func loadConfig(filePath string) {
	file, err := os.Open(filePath)
	if err != nil {
		panic(err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	mu.Lock()
	defer mu.Unlock()
	if err := decoder.Decode(instance); err != nil {
		panic(err)
	}
}

// saveConfig saves the current settings to the file
func saveConfig(filePath string) {
	file, err := os.Create(filePath)
	if err != nil {
		panic(err)
	}
	defer file.Close()

	mu.RLock()
	defer mu.RUnlock()
	encoder := json.NewEncoder(file)
	if err := encoder.Encode(instance); err != nil {
		panic(err)
	}
}

// reloadConfig 热更新用：文件缺的字段回落到默认值，
// 解析失败保持旧配置原样不动。
func reloadConfig(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	fresh := defaultConfig()
	if err := json.NewDecoder(file).Decode(fresh); err != nil {
		return err
	}

	mu.Lock()
	instance = fresh
	mu.Unlock()
	return nil
}

// WatchConfig 监听配置文件变动并热更新，调用方用 go 起一个协程跑。
// 每次成功重载后回调拿到新配置的副本。
func WatchConfig(filePath string, onReload func(*AppConfig)) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		panic(err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(filePath)
	if err != nil {
		panic(err)
	}

	done := make(chan bool)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				// 编辑器保存多半是整文件替换，按文件名过滤目录事件
				if filepath.Base(event.Name) != filepath.Base(abs) {
					continue
				}
				if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
					if err := reloadConfig(filePath); err != nil {
						slog.Warn("配置重载失败，沿用旧配置", "file", filePath, "error", err)
						continue
					}
					slog.Info("配置已热更新", "file", filePath)
					if onReload != nil {
						onReload(Get())
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("配置监听错误", "error", err)
			}
		}
	}()

	err = watcher.Add(filepath.Dir(abs))
	if err != nil {
		panic(err)
	}
	<-done
}

// GetConfigValue returns the value of the configuration by key
func GetConfigValue(key string) interface{} {
	mu.RLock()
	defer mu.RUnlock()
	switch key {
	case "port":
		return instance.Port
	case "selfpath":
		return instance.SelfPath
	case "blocksize":
		return instance.Blocksize
	case "gridsize":
		return instance.Gridsize
	case "tickms":
		return instance.TickMs
	case "sessionttl":
		return instance.SessionTTL
	case "loglevel":
		return instance.LogLevel
	case "dbpath":
		return instance.DBPath
	default:
		return ""
	}
}
