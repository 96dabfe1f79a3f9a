package server

import (
	"errors"
	"fmt"

	"arrowarena/game"
	"arrowarena/protocol"
)

var (
	// ErrStaleSequence 输入包序列号不大于已收到的最大序列号（重复或乱序）
	ErrStaleSequence = errors.New("stale input sequence")
	// ErrPeerLeft 玩家已离开，输入被丢弃
	ErrPeerLeft = errors.New("peer already left")
)

// clientInputs 校验客户端输入包并注入玩家 ID。
// 客户端只能发送 move/attack；任何一个输入不合法则整包拒绝。
func clientInputs(playerID int, env protocol.ClientInputEnvelope) ([]game.Input, error) {
	if env.Seq <= 0 {
		return nil, fmt.Errorf("%w: sequence %d must start at 1", game.ErrInvalidInput, env.Seq)
	}
	out := make([]game.Input, 0, len(env.Inputs))
	for i, in := range env.Inputs {
		if !in.IsClientInput() {
			return nil, fmt.Errorf("%w: input %d has type %q not allowed from clients", game.ErrInvalidInput, i, in.Type)
		}
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		out = append(out, in.WithPlayer(playerID))
	}
	return out, nil
}

// OnClientInput 入站输入包：不立即改变状态，只进入队列，等下一次 Tick 处理
func (r *Room) OnClientInput(p *Peer, env protocol.ClientInputEnvelope) error {
	if p.Left() {
		return ErrPeerLeft
	}
	inputs, err := clientInputs(p.PlayerID, env)
	if err != nil {
		r.metrics.IncInvalid()
		return err
	}

	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	if env.Seq <= p.lastSeen {
		r.metrics.IncOldSeqIgnored()
		return fmt.Errorf("%w: got %d, last %d", ErrStaleSequence, env.Seq, p.lastSeen)
	}
	p.lastSeen = env.Seq

	// 同帧限流：超出部分丢弃，但序列号照常确认，客户端和解后自然纠正
	accepted := r.queue.PushEnvelope(p.PlayerID, env.Seq, inputs)
	if dropped := len(inputs) - accepted; dropped > 0 {
		r.metrics.AddRateLimited(dropped)
	}
	r.metrics.AddAccepted(accepted)
	return nil
}
