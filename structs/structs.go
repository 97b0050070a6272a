package structs

import (
	"encoding/json"
	"fmt"
)

// Cell 描述棋盘上的一个格子坐标。
type Cell struct {
	X int `json:"x"` // 横坐标，0 到 N-1
	Y int `json:"y"` // 纵坐标，0 到 N-1，向下递增
}

// Add 返回沿方向移动一格后的坐标。
func (c Cell) Add(d Direction) Cell {
	return Cell{X: c.X + d.DX, Y: c.Y + d.DY}
}

// Direction 移动方向，四个单位向量之一。
type Direction struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

var (
	DirUp    = Direction{DX: 0, DY: -1}
	DirDown  = Direction{DX: 0, DY: 1}
	DirLeft  = Direction{DX: -1, DY: 0}
	DirRight = Direction{DX: 1, DY: 0}
)

// ParseDirection 把 up/down/left/right 转为单位向量，非法输入返回 false。
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return DirUp, true
	case "down":
		return DirDown, true
	case "left":
		return DirLeft, true
	case "right":
		return DirRight, true
	}
	return Direction{}, false
}

// Opposite 返回相反方向。
func (d Direction) Opposite() Direction {
	return Direction{DX: -d.DX, DY: -d.DY}
}

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	}
	return fmt.Sprintf("(%d,%d)", d.DX, d.DY)
}

// Phase 一局游戏的生命周期状态。
type Phase int

const (
	PhaseIdle    Phase = iota // 已创建未开始
	PhaseRunning              // 进行中
	PhaseOver                 // 撞墙或咬到自己，终局
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseOver:
		return "over"
	}
	return "unknown"
}

// MarshalJSON 以字符串形式输出阶段，方便前端直接显示。
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "idle":
		*p = PhaseIdle
	case "running":
		*p = PhaseRunning
	case "over":
		*p = PhaseOver
	default:
		return fmt.Errorf("unknown phase %q", s)
	}
	return nil
}

// Snapshot 引擎每个 tick 输出的渲染快照，蛇身按头在前排列。
type Snapshot struct {
	Grid  int    `json:"grid"`  // 棋盘边长 N
	Snake []Cell `json:"snake"` // 蛇身，头在第一个
	Food  Cell   `json:"food"`  // 当前食物位置
	Score int    `json:"score"`
	Phase Phase  `json:"phase"`
	Tick  uint64 `json:"tick"` // 已执行的 tick 数
}

// PortMapping 端口转发面板里的一条映射记录。
type PortMapping struct {
	ID         string `json:"id"`          // 服务端生成的 uuid
	Name       string `json:"name"`        // 显示名称
	Protocol   string `json:"protocol"`    // "tcp" 或 "udp"
	ListenPort int    `json:"listen_port"` // 本机监听端口
	TargetHost string `json:"target_host"` // 转发目标主机
	TargetPort int    `json:"target_port"` // 转发目标端口
	Enabled    bool   `json:"enabled"`
	Note       string `json:"note,omitempty"`
	UpdatedAt  int64  `json:"updated_at"` // Unix 时间戳
}
