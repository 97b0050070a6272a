package portstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hoshinonyaruko/snake-web/sqlite"
	"github.com/hoshinonyaruko/snake-web/structs"
)

// 整张映射表在 Blobs 里占用的键
const blobKey = "portmappings"

var (
	// ErrNotFound 指定的映射不存在
	ErrNotFound = errors.New("映射不存在")
	// ErrInvalid 字段校验失败
	ErrInvalid = errors.New("映射不合法")
	// ErrConflict 协议加监听端口的组合已被别的映射占用
	ErrConflict = errors.New("监听端口已被占用")
)

// Store 端口映射表。整张表序列化成一个 JSON 数组存进 Blobs，
// 每次写操作读出整个数组、改完再整体写回，互斥锁保证写写串行。
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// List 返回全部映射，从未写入过时返回空表
func (s *Store) List() ([]structs.PortMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Add 校验并追加一条映射。ID 由服务端生成，调用方给的 ID 会被覆盖。
func (s *Store) Add(m structs.PortMapping) (structs.PortMapping, error) {
	normalize(&m)
	if err := validate(m); err != nil {
		return structs.PortMapping{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked()
	if err != nil {
		return structs.PortMapping{}, err
	}
	for _, other := range list {
		if other.Protocol == m.Protocol && other.ListenPort == m.ListenPort {
			return structs.PortMapping{}, fmt.Errorf("%w: %s/%d", ErrConflict, m.Protocol, m.ListenPort)
		}
	}

	m.ID = uuid.NewString()
	m.UpdatedAt = time.Now().Unix()
	list = append(list, m)

	if err := s.saveLocked(list); err != nil {
		return structs.PortMapping{}, err
	}
	return m, nil
}

// Update 整条替换指定映射，ID 不变，UpdatedAt 重新盖章
func (s *Store) Update(id string, m structs.PortMapping) (structs.PortMapping, error) {
	normalize(&m)
	if err := validate(m); err != nil {
		return structs.PortMapping{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked()
	if err != nil {
		return structs.PortMapping{}, err
	}

	idx := -1
	for i, other := range list {
		if other.ID == id {
			idx = i
			continue
		}
		if other.Protocol == m.Protocol && other.ListenPort == m.ListenPort {
			return structs.PortMapping{}, fmt.Errorf("%w: %s/%d", ErrConflict, m.Protocol, m.ListenPort)
		}
	}
	if idx < 0 {
		return structs.PortMapping{}, ErrNotFound
	}

	m.ID = id
	m.UpdatedAt = time.Now().Unix()
	list[idx] = m

	if err := s.saveLocked(list); err != nil {
		return structs.PortMapping{}, err
	}
	return m, nil
}

// Remove 删除指定映射
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked()
	if err != nil {
		return err
	}

	kept := list[:0]
	for _, other := range list {
		if other.ID != id {
			kept = append(kept, other)
		}
	}
	if len(kept) == len(list) {
		return ErrNotFound
	}
	return s.saveLocked(kept)
}

func (s *Store) loadLocked() ([]structs.PortMapping, error) {
	raw, err := sqlite.GetBlob(s.db, blobKey)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []structs.PortMapping
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("解析映射表失败: %w", err)
	}
	return list, nil
}

func (s *Store) saveLocked(list []structs.PortMapping) error {
	if list == nil {
		list = []structs.PortMapping{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return sqlite.PutBlob(s.db, blobKey, string(data))
}

func normalize(m *structs.PortMapping) {
	m.Name = strings.TrimSpace(m.Name)
	m.Protocol = strings.ToLower(strings.TrimSpace(m.Protocol))
	m.TargetHost = strings.TrimSpace(m.TargetHost)
	m.Note = strings.TrimSpace(m.Note)
}

func validate(m structs.PortMapping) error {
	if m.Name == "" {
		return fmt.Errorf("%w: name 不能为空", ErrInvalid)
	}
	if m.Protocol != "tcp" && m.Protocol != "udp" {
		return fmt.Errorf("%w: protocol 只支持 tcp 或 udp", ErrInvalid)
	}
	if m.ListenPort < 1 || m.ListenPort > 65535 {
		return fmt.Errorf("%w: listen_port 必须在 1-65535 之间", ErrInvalid)
	}
	if m.TargetHost == "" {
		return fmt.Errorf("%w: target_host 不能为空", ErrInvalid)
	}
	if m.TargetPort < 1 || m.TargetPort > 65535 {
		return fmt.Errorf("%w: target_port 必须在 1-65535 之间", ErrInvalid)
	}
	return nil
}
