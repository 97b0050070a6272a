package snake

import (
	"sync"
	"time"

	"github.com/hoshinonyaruko/snake-web/structs"
)

// Loop 拥有一局游戏的周期定时器：单协程串行调用 Tick，
// 每步之后回调 onFrame 交给渲染方。tick 之间绝不重叠。
// 定时器的释放是确定的：阶段一离开 Running 循环自己就停，
// 会话关闭时 Stop 兜底。
type Loop struct {
	engine  *Engine
	period  time.Duration
	onFrame func(structs.Snapshot)

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	stopped bool
}

// NewLoop 创建循环但不启动。onFrame 可以为 nil。
func NewLoop(e *Engine, period time.Duration, onFrame func(structs.Snapshot)) *Loop {
	return &Loop{engine: e, period: period, onFrame: onFrame}
}

// Start 启动 tick 协程。已经在跑则不重复启动。
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stopped = false
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.run(l.stopCh, l.doneCh)
}

func (l *Loop) run(stop <-chan struct{}, done chan<- struct{}) {
	ticker := time.NewTicker(l.period)
	defer func() {
		ticker.Stop()
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := l.engine.Tick()
			if l.onFrame != nil {
				l.onFrame(snap)
			}
			if snap.Phase != structs.PhaseRunning {
				// 终局或外部复位，立刻释放定时器
				return
			}
		}
	}
}

// Stop 停掉定时器并等协程退出。幂等：没启动过、已自停、
// 或者被别的调用者停过，都可以安全再调。
func (l *Loop) Stop() {
	l.mu.Lock()
	done := l.doneCh
	if l.running && !l.stopped {
		l.stopped = true
		close(l.stopCh)
	}
	l.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Running 报告 tick 协程当前是否存活，主要给测试和状态接口用。
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
