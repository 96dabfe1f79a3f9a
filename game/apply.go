package game

import "slices"

// SkipReason 输入未产生效果的原因（空字符串表示已生效）
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipUnknownPlayer SkipReason = "unknown_player"
	SkipIncapacitated SkipReason = "incapacitated"
	SkipDuplicateJoin SkipReason = "duplicate_join"
	SkipInvalid       SkipReason = "invalid"
)

// Outcome 一次 Apply 的附带输出：瞬时事件与跳过原因，均不属于状态
type Outcome struct {
	Events []Event
	Skip   SkipReason
}

// Applied 输入是否改变了状态
func (o Outcome) Applied() bool { return o.Skip == SkipNone }

// Apply 将一个输入应用到状态上（原地修改）。
// 对同样的 (state, input) 结果确定；从不失败，引用不存在的玩家时为空操作。
func Apply(s *State, in Input, rules Rules) Outcome {
	out := apply(s, in, rules)
	for i := range out.Events {
		out.Events[i].Cause = in
	}
	return out
}

func apply(s *State, in Input, rules Rules) Outcome {
	switch in.Type {
	case InputMove:
		return applyMove(s, in)
	case InputAttack:
		return applyAttack(s, in)
	case InputJoin:
		if s.PlayerIndex(in.PlayerID) >= 0 {
			return Outcome{Skip: SkipDuplicateJoin}
		}
		s.Players = append(s.Players, Player{ID: in.PlayerID, Pos: in.Pos})
		return Outcome{}
	case InputLeave:
		i := s.PlayerIndex(in.PlayerID)
		if i < 0 {
			return Outcome{Skip: SkipUnknownPlayer}
		}
		s.Players = slices.Delete(s.Players, i, i+1)
		return Outcome{}
	case InputTimeAdvance:
		return advanceTime(s, clampDelta(in.DeltaTime), rules)
	default:
		return Outcome{Skip: SkipInvalid}
	}
}

func applyMove(s *State, in Input) Outcome {
	p, ok := s.Player(in.PlayerID)
	if !ok {
		return Outcome{Skip: SkipUnknownPlayer}
	}
	// 晕眩中放弃移动
	if p.Incapacitated(s.Now) {
		return Outcome{Skip: SkipIncapacitated}
	}
	p.Pos = p.Pos.Add(in.Velocity.Scale(in.DeltaTime))
	return Outcome{}
}

func applyAttack(s *State, in Input) Outcome {
	if s.PlayerIndex(in.PlayerID) < 0 {
		return Outcome{Skip: SkipUnknownPlayer}
	}
	a := Projectile{
		ID:         s.NextProjectileID,
		OwnerID:    in.PlayerID,
		ImpactPos:  in.ImpactPos,
		ImpactTime: in.ImpactTime,
	}
	s.NextProjectileID++
	s.Projectiles = append(s.Projectiles, a)
	return Outcome{Events: []Event{{Type: EventProjectileSpawned, Projectile: a}}}
}

func advanceTime(s *State, dt float64, rules Rules) Outcome {
	s.Now += dt

	var out Outcome
	r2 := rules.AttackRadius * rules.AttackRadius
	// 倒序遍历，删除不影响尚未处理的下标
	for i := len(s.Projectiles) - 1; i >= 0; i-- {
		a := s.Projectiles[i]
		if a.ImpactTime > s.Now {
			continue
		}
		var hits []int
		for j := range s.Players {
			p := &s.Players[j]
			if p.Pos.DistSq(a.ImpactPos) <= r2 {
				until := s.Now + rules.IncapacitationMs
				p.IncapacitatedUntil = &until
				hits = append(hits, p.ID)
			}
		}
		s.Projectiles = slices.Delete(s.Projectiles, i, i+1)
		out.Events = append(out.Events, Event{Type: EventProjectileLanded, Projectile: a, Hits: hits})
	}
	return out
}

// Replay 在 base 的副本上按顺序重放输入日志
func Replay(base State, inputs []Input, rules Rules) State {
	s := base.Clone()
	for _, in := range inputs {
		Apply(&s, in, rules)
	}
	return s
}
