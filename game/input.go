package game

import (
	"errors"
	"fmt"
	"math"
)

// InputType 输入种类
type InputType string

const (
	InputMove        InputType = "move"
	InputAttack      InputType = "attack"
	InputJoin        InputType = "join"
	InputLeave       InputType = "leave"
	InputTimeAdvance InputType = "time"
)

// ErrInvalidInput 结构不合法的输入（未知类型、非有限数值等）
var ErrInvalidInput = errors.New("invalid input")

// Input 状态变更的唯一单位。按 Type 区分，只使用对应字段：
//
//	move:   PlayerID, Velocity（单位/秒）, DeltaTime（秒）
//	attack: PlayerID, ImpactPos, ImpactTime（游戏时间，毫秒）
//	join:   PlayerID, Pos
//	leave:  PlayerID
//	time:   DeltaTime（毫秒）
//
// 客户端上行时 PlayerID 省略，由接收方注入。
type Input struct {
	Type       InputType `json:"type"`
	PlayerID   int       `json:"playerId,omitempty"`
	Velocity   Vec2      `json:"velocity,omitzero"`
	DeltaTime  float64   `json:"dt,omitempty"`
	ImpactPos  Vec2      `json:"impactPos,omitzero"`
	ImpactTime float64   `json:"impactTime,omitempty"`
	Pos        Vec2      `json:"pos,omitzero"`
}

func Move(playerID int, velocity Vec2, dtSeconds float64) Input {
	return Input{Type: InputMove, PlayerID: playerID, Velocity: velocity, DeltaTime: dtSeconds}
}

func Attack(playerID int, impactPos Vec2, impactTime float64) Input {
	return Input{Type: InputAttack, PlayerID: playerID, ImpactPos: impactPos, ImpactTime: impactTime}
}

func Join(playerID int, pos Vec2) Input {
	return Input{Type: InputJoin, PlayerID: playerID, Pos: pos}
}

func Leave(playerID int) Input {
	return Input{Type: InputLeave, PlayerID: playerID}
}

// TimeAdvance 时间流逝输入；负数或 NaN 在构造时就钳为 0
func TimeAdvance(dtMillis float64) Input {
	return Input{Type: InputTimeAdvance, DeltaTime: clampDelta(dtMillis)}
}

// AttackToward 朝 dir 方向投掷：落点在 ProjectileRange 处，落地时间为 now + 飞行时间
func AttackToward(playerID int, from, dir Vec2, now float64, rules Rules) Input {
	l := math.Hypot(dir.X, dir.Y)
	if l == 0 {
		dir, l = Vec2{X: 1}, 1
	}
	target := from.Add(dir.Scale(rules.ProjectileRange / l))
	return Attack(playerID, target, now+rules.ProjectileFlightMs)
}

// WithPlayer 返回注入了玩家 ID 的副本
func (in Input) WithPlayer(id int) Input {
	in.PlayerID = id
	return in
}

// IsClientInput 客户端是否允许发送此类输入
func (in Input) IsClientInput() bool {
	return in.Type == InputMove || in.Type == InputAttack
}

// Validate 校验数值是否有限、类型是否已知
func (in Input) Validate() error {
	switch in.Type {
	case InputMove:
		if !finite(in.Velocity.X, in.Velocity.Y, in.DeltaTime) {
			return fmt.Errorf("%w: move with non-finite velocity or dt", ErrInvalidInput)
		}
		if in.DeltaTime < 0 {
			return fmt.Errorf("%w: move with negative dt %v", ErrInvalidInput, in.DeltaTime)
		}
	case InputAttack:
		if !finite(in.ImpactPos.X, in.ImpactPos.Y, in.ImpactTime) {
			return fmt.Errorf("%w: attack with non-finite target", ErrInvalidInput)
		}
	case InputJoin:
		if !finite(in.Pos.X, in.Pos.Y) {
			return fmt.Errorf("%w: join with non-finite position", ErrInvalidInput)
		}
	case InputLeave:
	case InputTimeAdvance:
		if !finite(in.DeltaTime) || in.DeltaTime < 0 {
			return fmt.Errorf("%w: time advance dt %v", ErrInvalidInput, in.DeltaTime)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInput, in.Type)
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clampDelta(dt float64) float64 {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return 0
	}
	return dt
}
