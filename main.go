package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snake-web/api"
	"github.com/hoshinonyaruko/snake-web/config"
	"github.com/hoshinonyaruko/snake-web/portstore"
	"github.com/hoshinonyaruko/snake-web/session"
	"github.com/hoshinonyaruko/snake-web/web"
)

// 日志级别挂在 LevelVar 上，配置热更新时直接改
var logLevel = new(slog.LevelVar)

func main() {
	EnsureFoldersExist()
	// Initialize the configuration
	cfg := config.LoadConfig("./config.json")

	logLevel.Set(parseLogLevel(cfg.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	db := api.InitDB(cfg.DBPath)
	ports := portstore.New(db)

	manager := session.NewManager(session.Options{
		Grid:      cfg.Gridsize,
		BlockSize: cfg.Blocksize,
		TickEvery: time.Duration(cfg.TickMs) * time.Millisecond,
		IdleTTL:   time.Duration(cfg.SessionTTL) * time.Second,
		Logger:    logger,
	})
	// 空闲会话定期回收
	manager.StartReaper(time.Minute)

	// 检测配置文件变动并热更新：日志级别立即生效，棋盘参数影响新会话
	go config.WatchConfig("./config.json", func(c *config.AppConfig) {
		logLevel.Set(parseLogLevel(c.LogLevel))
		manager.Retune(session.Options{
			Grid:      c.Gridsize,
			BlockSize: c.Blocksize,
			TickEvery: time.Duration(c.TickMs) * time.Millisecond,
			IdleTTL:   time.Duration(c.SessionTTL) * time.Second,
		})
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.RequestLogger(logger), gin.Recovery())

	api.Register(router, manager, ports)

	// 页面和静态资源全部打进二进制，部署只需要一个文件
	router.GET("/", servePage("index.html"))
	router.GET("/snake", servePage("snake.html"))
	router.GET("/ports", servePage("ports.html"))
	router.StaticFS("/static", web.StaticFS())

	logger.Info("listening", "addr", ":"+cfg.Port)
	// 从配置单例读取端口 监听
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

// servePage 返回一个内嵌页面
func servePage(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := web.Page(name)
		if err != nil {
			c.String(http.StatusInternalServerError, "page missing: %s", name)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", data)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnsureFoldersExist 检查并创建必需的文件夹
func EnsureFoldersExist() {
	folders := []string{"data"}

	for _, folder := range folders {
		if _, err := os.Stat(folder); os.IsNotExist(err) {
			// 文件夹不存在，尝试创建它
			err := os.Mkdir(folder, 0755) // 使用0755权限以确保读写权限
			if err != nil {
				// 如果创建失败，则记录错误并可能退出程序
				log.Fatalf("Failed to create %s directory: %s", folder, err)
			}
			log.Printf("Created %s directory", folder)
		} else {
			// 文件夹已存在
			log.Printf("%s directory already exists", folder)
		}
	}
}
