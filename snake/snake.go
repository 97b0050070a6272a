// 贪吃蛇引擎：固定步长推进、碰撞判定与渲染快照
package snake

import (
	"math/rand"
	"sync"

	"github.com/hoshinonyaruko/snake-web/structs"
)

// Engine 持有一局游戏的全部可变状态。输入从 HTTP 处理协程进来，
// tick 在循环协程里跑，所以所有字段都挂在同一把锁下面。
type Engine struct {
	mu sync.Mutex

	grid      int // 棋盘边长 N
	snake     []structs.Cell
	food      structs.Cell
	direction structs.Direction // 当前 tick 实际使用的方向
	pending   structs.Direction // 待生效方向，下个 tick 边界提交
	score     int
	phase     structs.Phase
	tick      uint64
	rng       *rand.Rand
}

// 固定出生点在棋盘中心，初始朝右。
func origin(grid int) structs.Cell {
	return structs.Cell{X: grid / 2, Y: grid / 2}
}

var initialDirection = structs.DirRight

// New 创建一个处于 Idle 阶段的引擎。seed 固定时食物序列可复现。
func New(grid int, seed int64) *Engine {
	e := &Engine{
		grid: grid,
		rng:  rand.New(rand.NewSource(seed)),
	}
	e.resetLocked()
	e.phase = structs.PhaseIdle
	return e
}

// resetLocked 把蛇恢复成出生点单格、初始方向，并重新撒食物。
func (e *Engine) resetLocked() {
	e.snake = []structs.Cell{origin(e.grid)}
	e.direction = initialDirection
	e.pending = initialDirection
	e.score = 0
	e.placeFoodLocked()
}

// Start 开始或重开一局。Running 中调用不做任何事，只返回当前快照。
func (e *Engine) Start() structs.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == structs.PhaseRunning {
		return e.snapshotLocked()
	}
	e.resetLocked()
	e.phase = structs.PhaseRunning
	return e.snapshotLocked()
}

// SetDirection 记录一次转向请求。非 Running 阶段忽略；
// 与当前已提交方向正好相反的请求也忽略，防止原地调头咬到自己。
// 请求只改 pending，真正生效要等下一个 tick 边界。
func (e *Engine) SetDirection(d structs.Direction) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != structs.PhaseRunning {
		return
	}
	if d == e.direction.Opposite() {
		return
	}
	e.pending = d
}

// Tick 推进一个仿真步，是唯一改变游戏状态的入口。
// 顺序：提交方向 → 算新蛇头 → 终局判定 → 接头 → 吃食物或缩尾。
// 撞墙或撞到身体时只把阶段切到 Over，蛇身、食物、分数都保持原样。
func (e *Engine) Tick() structs.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != structs.PhaseRunning {
		return e.snapshotLocked()
	}
	e.tick++

	e.direction = e.pending
	newHead := e.snake[0].Add(e.direction)

	if newHead.X < 0 || newHead.X >= e.grid || newHead.Y < 0 || newHead.Y >= e.grid || e.occupiedLocked(newHead) {
		e.phase = structs.PhaseOver
		return e.snapshotLocked()
	}

	// 新头接到最前面，身体整体不动
	body := make([]structs.Cell, 0, len(e.snake)+1)
	body = append(body, newHead)
	body = append(body, e.snake...)

	if newHead == e.food {
		// 吃到食物：长一格，重新撒食物
		e.score++
		e.snake = body
		e.placeFoodLocked()
	} else {
		// 没吃到：去掉尾巴，长度不变
		e.snake = body[:len(body)-1]
	}
	return e.snapshotLocked()
}

// Snapshot 返回当前状态的只读拷贝，用于初始帧和状态查询。
func (e *Engine) Snapshot() structs.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() structs.Snapshot {
	body := make([]structs.Cell, len(e.snake))
	copy(body, e.snake)
	return structs.Snapshot{
		Grid:  e.grid,
		Snake: body,
		Food:  e.food,
		Score: e.score,
		Phase: e.phase,
		Tick:  e.tick,
	}
}

// occupiedLocked 判断格子是否被蛇身占用。尾巴也算：
// 判定发生在缩尾之前，追着自己尾巴走同样算撞。
func (e *Engine) occupiedLocked(c structs.Cell) bool {
	for _, b := range e.snake {
		if b == c {
			return true
		}
	}
	return false
}

// placeFoodLocked 在棋盘上均匀随机撒一个食物。
// 不排除蛇身占用的格子：食物可能落在蛇身下面，
// 等身体移开之前它一直不可见也吃不到。
func (e *Engine) placeFoodLocked() {
	e.food = structs.Cell{
		X: e.rng.Intn(e.grid),
		Y: e.rng.Intn(e.grid),
	}
}
