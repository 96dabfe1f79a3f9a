package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/brunoga/deep"
)

// Vec2 二维坐标 / 速度
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vec2) Scale(k float64) Vec2 { return Vec2{X: v.X * k, Y: v.Y * k} }

// DistSq 平方距离，命中判定只比较平方值
func (v Vec2) DistSq(o Vec2) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	return dx*dx + dy*dy
}

// Player 玩家状态
type Player struct {
	ID  int  `json:"id"`
	Pos Vec2 `json:"pos"`
	// 晕眩结束时间（游戏时间），nil 表示未晕眩
	IncapacitatedUntil *float64 `json:"incapacitatedUntil,omitempty"`
}

// Incapacitated 在游戏时间 now 是否处于晕眩中
func (p Player) Incapacitated(now float64) bool {
	return p.IncapacitatedUntil != nil && *p.IncapacitatedUntil > now
}

// Projectile 飞行中的箭矢
type Projectile struct {
	ID         int     `json:"id"`
	OwnerID    int     `json:"ownerId"` // 发射者，可能已离开房间
	ImpactPos  Vec2    `json:"impactPos"`
	ImpactTime float64 `json:"impactTime"` // 落地时间（游戏时间）
}

// State 模拟状态：只能由输入序列推导，不含任何墙钟或随机来源
type State struct {
	Now              float64      `json:"now"` // 游戏时间（毫秒），只由 TimeAdvance 推进
	Players          []Player     `json:"players"`
	Projectiles      []Projectile `json:"projectiles"`
	NextProjectileID int          `json:"nextProjectileId"`
}

// NewState 空状态
func NewState() State {
	return State{
		Players:          []Player{},
		Projectiles:      []Projectile{},
		NextProjectileID: 1,
	}
}

// Clone 深拷贝，live 与权威快照之间不能共享任何可变容器
func (s State) Clone() State {
	return deep.MustCopy(s)
}

// PlayerIndex 按 ID 查找玩家下标，找不到返回 -1
func (s *State) PlayerIndex(id int) int {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// Player 返回玩家指针（可直接修改），不存在时 ok=false
func (s *State) Player(id int) (*Player, bool) {
	i := s.PlayerIndex(id)
	if i < 0 {
		return nil, false
	}
	return &s.Players[i], true
}

// Digest 状态的规范化摘要（按浮点位编码），用于验证重放结果逐位一致
func (s State) Digest() string {
	h := sha256.New()
	var buf [8]byte
	putU := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	putF := func(f float64) { putU(math.Float64bits(f)) }

	putF(s.Now)
	putU(uint64(s.NextProjectileID))
	putU(uint64(len(s.Players)))
	for _, p := range s.Players {
		putU(uint64(p.ID))
		putF(p.Pos.X)
		putF(p.Pos.Y)
		if p.IncapacitatedUntil == nil {
			putU(0)
		} else {
			putU(1)
			putF(*p.IncapacitatedUntil)
		}
	}
	putU(uint64(len(s.Projectiles)))
	for _, a := range s.Projectiles {
		putU(uint64(a.ID))
		putU(uint64(a.OwnerID))
		putF(a.ImpactPos.X)
		putF(a.ImpactPos.Y)
		putF(a.ImpactTime)
	}
	return hex.EncodeToString(h.Sum(nil))
}
