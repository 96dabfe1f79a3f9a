package server

import (
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"arrowarena/game"
	"arrowarena/protocol"
)

// ErrRoomClosed 房间已关闭
var ErrRoomClosed = errors.New("room closed")

// RoomConfig 创建房间的参数
type RoomConfig struct {
	Rules            game.Rules
	MaxInputsPerTick int
	// Now 单调时钟，Tick 循环用它计算 TimeAdvance；为空时使用 time.Now
	Now func() time.Time
	// Spawn 新玩家初始位置；为空时在 [-5,5) 内随机
	Spawn func() game.Vec2
}

// Room 房间世界：权威状态只由 Tick 线程修改，输入经队列进入
type Room struct {
	ID string

	rules            game.Rules
	maxInputsPerTick int
	now              func() time.Time
	spawn            func() game.Vec2

	queue   *InputQueue
	metrics *RoomMetrics
	netsim  netSim

	// mu 保护以下字段；Tick 在 drain → apply → 组帧 期间全程持有，
	// 因此 Join 的快照与注册要么完全在某个 Tick 之前，要么完全在之后
	mu           sync.Mutex
	sys          *game.System
	peers        map[int]*Peer
	nextPlayerID int
	tickSeq      uint64
	lastTickAt   time.Time
	closed       bool

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewRoom 创建房间，初始化数据结构（尚未开始 Tick）
func NewRoom(id string, cfg RoomConfig) *Room {
	r := &Room{
		ID:               id,
		rules:            cfg.Rules,
		maxInputsPerTick: cfg.MaxInputsPerTick,
		now:              cfg.Now,
		spawn:            cfg.Spawn,
		metrics:          &RoomMetrics{},
		sys:              game.NewSystem(cfg.Rules),
		peers:            make(map[int]*Peer),
		nextPlayerID:     1,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
	if r.maxInputsPerTick <= 0 {
		r.maxInputsPerTick = DefaultConfig().MaxInputsPerTick
	}
	r.queue = NewInputQueue(r.maxInputsPerTick)
	if r.now == nil {
		r.now = time.Now
	}
	if r.spawn == nil {
		rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
		r.spawn = func() game.Vec2 {
			return game.Vec2{X: rng.Float64()*10 - 5, Y: rng.Float64()*10 - 5}
		}
	}
	r.sys.Subscribe(r.onEvent)
	return r
}

// Join 将连接加入房间：分配玩家 ID，把 Join 输入排进队列，并立即向连接发送
// 当前完整状态。快照不含尚在队列中的输入，这些输入会出现在下一帧里。
func (r *Room) Join(conn Conn, connID string, codec protocol.Codec) (*Peer, protocol.JoinResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, protocol.JoinResponse{}, ErrRoomClosed
	}

	id := r.nextPlayerID
	p := newPeer(id, connID, conn, codec)
	resp := protocol.JoinResponse{
		PlayerID: id,
		State:    r.sys.State(),
		Tick:     r.tickSeq,
		Rules:    r.rules,
	}
	b, err := p.codec.Encode(protocol.NewJoined(resp))
	if err != nil {
		return nil, protocol.JoinResponse{}, err
	}
	// 必须先于任何帧入队
	if err := conn.Send(b); err != nil {
		return nil, protocol.JoinResponse{}, err
	}

	r.nextPlayerID++
	pos := r.spawn()
	r.queue.Push(game.Join(id, pos))
	r.peers[id] = p
	Log.Infof("player joined: room=%s player=%d conn=%s pos=(%.2f,%.2f) tick=%d",
		r.ID, id, connID, pos.X, pos.Y, r.tickSeq)
	return p, resp, nil
}

// Leave 将玩家移出广播集合，并排入 Leave 输入；重复调用无副作用
func (r *Room) Leave(playerID int) {
	r.mu.Lock()
	p, ok := r.peers[playerID]
	if ok {
		delete(r.peers, playerID)
		r.queue.Push(game.Leave(playerID))
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	p.left.Store(true)
	_ = p.conn.Close()
	Log.Infof("player left: room=%s player=%d conn=%s", r.ID, playerID, p.ConnID)
}

// NumPlayers 当前连接数
func (r *Room) NumPlayers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Snapshot 原子地返回最近的帧号与权威状态副本
func (r *Room) Snapshot() (uint64, game.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tickSeq, r.sys.State()
}

// PeerInfo 连接的管理视图
type PeerInfo struct {
	PlayerID int    `json:"playerId"`
	ConnID   string `json:"connId"`
	LastAck  *int64 `json:"lastAck,omitempty"`
}

// RoomInfo 房间的管理视图
type RoomInfo struct {
	ID          string     `json:"id"`
	Tick        uint64     `json:"tick"`
	Running     bool       `json:"running"`
	Now         float64    `json:"now"`
	Projectiles int        `json:"projectiles"`
	Peers       []PeerInfo `json:"peers"`
}

func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.sys.State()
	info := RoomInfo{
		ID:          r.ID,
		Tick:        r.tickSeq,
		Running:     r.running.Load(),
		Now:         st.Now,
		Projectiles: len(st.Projectiles),
		Peers:       make([]PeerInfo, 0, len(r.peers)),
	}
	for _, p := range r.peers {
		info.Peers = append(info.Peers, PeerInfo{PlayerID: p.PlayerID, ConnID: p.ConnID, LastAck: p.ackPtr()})
	}
	return info
}

func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// Close 停止 Tick 并断开所有连接
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.peers = make(map[int]*Peer)
	r.mu.Unlock()

	close(r.stop)
	if r.running.Load() {
		<-r.done
	}
	for _, p := range peers {
		p.left.Store(true)
		_ = p.conn.Close()
	}
}

func (r *Room) onEvent(ev game.Event) {
	switch ev.Type {
	case game.EventProjectileSpawned:
		Log.Debugf("projectile spawned: room=%s id=%d owner=%d impact=(%.2f,%.2f)@%.0f",
			r.ID, ev.Projectile.ID, ev.Projectile.OwnerID, ev.Projectile.ImpactPos.X, ev.Projectile.ImpactPos.Y, ev.Projectile.ImpactTime)
	case game.EventProjectileLanded:
		if len(ev.Hits) > 0 {
			Log.Debugf("projectile landed: room=%s id=%d hits=%v", r.ID, ev.Projectile.ID, ev.Hits)
		}
	}
}
