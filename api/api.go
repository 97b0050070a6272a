package api

import (
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snake-web/portstore"
	"github.com/hoshinonyaruko/snake-web/render"
	"github.com/hoshinonyaruko/snake-web/session"
	"github.com/hoshinonyaruko/snake-web/sqlite"
	"github.com/hoshinonyaruko/snake-web/structs"
	_ "github.com/mattn/go-sqlite3"
)

// 帧放大倍数上限，防止一次请求渲染出超大图
const maxFrameScale = 4

// Register 挂载全部业务路由
func Register(router *gin.Engine, manager *session.Manager, store *portstore.Store) {
	// 开新对局
	router.GET("/api/game/new", NewGame(manager))
	// 开始或重开
	router.GET("/api/game/start", StartGame(manager))
	// 处理玩家改变方向
	router.GET("/api/game/direction", UpdateDirection(manager))
	// 轮询快照
	router.GET("/api/game/state", GameState(manager))
	// 取最近一帧 PNG
	router.GET("/api/game/frame", GameFrame(manager))
	// 关闭对局
	router.GET("/api/game/close", CloseGame(manager))

	// 端口映射面板
	router.GET("/api/ports", ListPorts(store))
	router.POST("/api/ports", AddPort(store))
	router.PUT("/api/ports/:id", UpdatePort(store))
	router.DELETE("/api/ports/:id", RemovePort(store))
}

func InitDB(path string) *sql.DB {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		log.Fatal(err)
	}

	sqlite.InitializeDatabase(db)

	return db
}

// RequestLogger logs method, path, status, bytes, and duration in a human-readable format.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"dur", time.Since(start).Round(time.Millisecond),
		)
	}
}

// sessionFrom 按 session 查询参数取会话，出错时直接写好响应
func sessionFrom(c *gin.Context, manager *session.Manager) (*session.Session, bool) {
	id := c.Query("session")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required query parameter: session"})
		return nil, false
	}
	s, err := manager.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return s, true
}

// NewGame 开一个新会话，返回会话号和初始快照
func NewGame(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := manager.Create()
		c.JSON(http.StatusOK, gin.H{"session": s.ID, "state": s.Snapshot()})
	}
}

// StartGame 把对局带入运行态。进行中重复调用不重置，终局后调用重新开一局。
func StartGame(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := sessionFrom(c, manager)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.Start())
	}
}

// UpdateDirection 处理玩家改变方向
func UpdateDirection(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		newDirection := c.Query("direction")
		if newDirection == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required query parameter: direction"})
			return
		}

		d, valid := structs.ParseDirection(newDirection)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid direction '" + newDirection + "' provided"})
			return
		}

		s, ok := sessionFrom(c, manager)
		if !ok {
			return
		}

		// 反向和非运行态的输入由引擎静默丢弃，接口层不报错
		s.SetDirection(d)
		c.JSON(http.StatusOK, gin.H{"message": "Direction updated successfully"})
	}
}

// GameState 返回当前快照，浏览器轮询用
func GameState(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := sessionFrom(c, manager)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.Snapshot())
	}
}

// GameFrame 返回最近一帧的 PNG，scale 放大倍数限制在 1 到 4
func GameFrame(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := sessionFrom(c, manager)
		if !ok {
			return
		}

		scale, _ := strconv.Atoi(c.DefaultQuery("scale", "1"))
		if scale < 1 {
			scale = 1
		}
		if scale > maxFrameScale {
			scale = maxFrameScale
		}

		img := render.Scale(s.Frame(), scale)
		data, err := render.EncodePNG(img)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode frame"})
			return
		}
		c.Data(http.StatusOK, "image/png", data)
	}
}

// CloseGame 关闭会话，停掉它的定时循环
func CloseGame(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Query("session")
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required query parameter: session"})
			return
		}
		if err := manager.Close(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Session closed successfully"})
	}
}

// ListPorts 返回全部端口映射
func ListPorts(store *portstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := store.List()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load mappings"})
			return
		}
		if list == nil {
			list = []structs.PortMapping{}
		}
		c.JSON(http.StatusOK, list)
	}
}

// AddPort 新增一条端口映射
func AddPort(store *portstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m structs.PortMapping
		if err := c.ShouldBindJSON(&m); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}

		added, err := store.Add(m)
		if err != nil {
			writePortError(c, err)
			return
		}
		c.JSON(http.StatusCreated, added)
	}
}

// UpdatePort 整条替换指定映射
func UpdatePort(store *portstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m structs.PortMapping
		if err := c.ShouldBindJSON(&m); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}

		updated, err := store.Update(c.Param("id"), m)
		if err != nil {
			writePortError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// RemovePort 删除指定映射
func RemovePort(store *portstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Remove(c.Param("id")); err != nil {
			writePortError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Mapping deleted successfully"})
	}
}

// writePortError 把映射表的错误翻译成对应的状态码
func writePortError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, portstore.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, portstore.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, portstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Mapping not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save mapping"})
	}
}
