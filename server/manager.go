package server

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrManagerClosed 管理器已关闭，不再创建房间
var ErrManagerClosed = errors.New("room manager closed")

// RoomManager 管理多个房间的生命周期
type RoomManager struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	rooms  map[string]*Room
	closed bool
}

// NewRoomManager 房间管理器；所有房间的 Tick 循环随 Close 一起停止
func NewRoomManager(cfg Config) *RoomManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &RoomManager{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		rooms:  make(map[string]*Room),
	}
}

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick；Close 之后返回 ErrManagerClosed
func (m *RoomManager) GetOrCreateRoom(id string) (*Room, error) {
	if id == "" {
		id = m.cfg.DefaultRoom
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	r, ok := m.rooms[id]
	if !ok {
		r = NewRoom(id, RoomConfig{
			Rules:            m.cfg.Rules,
			MaxInputsPerTick: m.cfg.MaxInputsPerTick,
		})
		m.rooms[id] = r
		r.StartTicker(m.ctx)
		Log.Infof("room created: room=%s syncRate=%d", id, m.cfg.Rules.SyncRate)
	}
	return r, nil
}

// Room 查找已存在的房间
func (m *RoomManager) Room(id string) (*Room, bool) {
	if id == "" {
		id = m.cfg.DefaultRoom
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Rooms 按 ID 排序的房间视图
func (m *RoomManager) Rooms() []RoomInfo {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close 停止所有房间
func (m *RoomManager) Close() {
	m.cancel()
	m.mu.Lock()
	m.closed = true
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
}
