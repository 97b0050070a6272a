package session

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hoshinonyaruko/snake-web/render"
	"github.com/hoshinonyaruko/snake-web/snake"
	"github.com/hoshinonyaruko/snake-web/structs"
)

// ErrNotFound 会话不存在或已被回收
var ErrNotFound = errors.New("会话不存在")

// Session 一个浏览器对局：独立引擎加独立 tick 循环。
// 每个 tick 渲染出的帧缓存在这里，HTTP 侧取帧时直接拿现成的。
type Session struct {
	ID string

	engine    *snake.Engine
	loop      *snake.Loop
	blockSize int

	mu       sync.Mutex
	lastSeen time.Time
	frame    image.Image
}

// Start 把这局游戏带入运行态并确保 tick 循环在跑。
// 进行中的对局调用只返回当前快照，不会重置。
// 终局后的重开可能正撞上旧循环协程的自停收尾：旧协程还没把
// running 放下时 loop.Start 会当作无事发生，引擎却已经复位成
// Running，这局就再也没人 tick 了。Stop 会等旧协程退净，之后
// 的 Start 一定能起一个新循环。
func (s *Session) Start() structs.Snapshot {
	snap := s.engine.Start()
	s.loop.Stop()
	s.loop.Start()
	return snap
}

// SetDirection 转交给引擎，下一个 tick 生效
func (s *Session) SetDirection(d structs.Direction) {
	s.engine.SetDirection(d)
}

// Snapshot 返回引擎当前状态
func (s *Session) Snapshot() structs.Snapshot {
	return s.engine.Snapshot()
}

// Frame 返回最近一个 tick 渲染的帧。对局还没 tick 过时
// 现场渲染一张当前快照，保证总有图可回。
func (s *Session) Frame() image.Image {
	s.mu.Lock()
	img := s.frame
	s.mu.Unlock()
	if img == nil {
		img = render.Frame(s.engine.Snapshot(), s.blockSize)
	}
	return img
}

func (s *Session) storeFrame(img image.Image) {
	s.mu.Lock()
	s.frame = img
	s.mu.Unlock()
}

// Touch 记录一次客户端活动，空闲回收以此为准
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen 最近一次客户端活动时间
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Options 控制新会话的棋盘几何与节奏，零值取默认
type Options struct {
	Grid      int           // 棋盘边长（格）
	BlockSize int           // 每格像素
	TickEvery time.Duration // tick 间隔
	IdleTTL   time.Duration // 空闲多久回收
	Logger    *slog.Logger
}

// Manager 管全部活动会话：创建、查找、关闭，外加空闲回收。
type Manager struct {
	grid      int
	blockSize int
	period    time.Duration
	ttl       time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewManager 创建会话管理器
func NewManager(opts Options) *Manager {
	if opts.Grid <= 0 {
		opts.Grid = 20
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = 20
	}
	if opts.TickEvery <= 0 {
		opts.TickEvery = 150 * time.Millisecond
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		grid:      opts.Grid,
		blockSize: opts.BlockSize,
		period:    opts.TickEvery,
		ttl:       opts.IdleTTL,
		logger:    opts.Logger,
		sessions:  make(map[string]*Session),
		stopCh:    make(chan struct{}),
	}
}

// Create 新建一局：uuid 做会话号，引擎用当前纳秒做随机种子。
// 循环这里只创建不启动，等客户端真正开始游戏。
func (m *Manager) Create() *Session {
	m.mu.Lock()
	grid, blockSize, period := m.grid, m.blockSize, m.period
	m.mu.Unlock()

	s := &Session{
		ID:        uuid.NewString(),
		blockSize: blockSize,
		lastSeen:  time.Now(),
	}
	s.engine = snake.New(grid, time.Now().UnixNano())
	s.loop = snake.NewLoop(s.engine, period, func(snap structs.Snapshot) {
		s.storeFrame(render.Frame(snap, s.blockSize))
	})

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("会话已创建", "session", s.ID)
	return s
}

// Retune 应用热更新后的参数。棋盘几何和 tick 间隔只影响之后
// 创建的会话，空闲阈值对下一轮回收立刻生效。零值字段跳过。
func (m *Manager) Retune(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if opts.Grid > 0 {
		m.grid = opts.Grid
	}
	if opts.BlockSize > 0 {
		m.blockSize = opts.BlockSize
	}
	if opts.TickEvery > 0 {
		m.period = opts.TickEvery
	}
	if opts.IdleTTL > 0 {
		m.ttl = opts.IdleTTL
	}
}

// Get 按会话号查找，命中即视为一次活动
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.Touch()
	return s, nil
}

// Close 停掉会话的定时循环并移除会话
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.loop.Stop()
	m.logger.Info("会话已关闭", "session", id)
	return nil
}

// Len 当前活动会话数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StartReaper 启动空闲回收协程。超过 IdleTTL 没有任何客户端
// 请求的会话连同它的定时器一起销毁。
func (m *Manager) StartReaper(every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.reap()
			}
		}
	}()
}

func (m *Manager) reap() {
	now := time.Now()
	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.ttl {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.loop.Stop()
		m.logger.Info("回收空闲会话", "session", s.ID)
	}
}

// Shutdown 停掉回收协程和所有会话的循环，进程退出前调用
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.loop.Stop()
	}
}
