package client

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"arrowarena/game"
	"arrowarena/protocol"
)

var (
	// ErrNotJoined 尚未加入房间，本地输入被忽略
	ErrNotJoined = errors.New("not joined")
	// ErrFrameOutOfOrder 权威帧乱序或重复：协议要求有序传输，属于致命错误
	ErrFrameOutOfOrder = errors.New("authoritative frame out of order")
)

// Sender 发送输入包的传输端，不得阻塞
type Sender interface {
	SendInput(env protocol.ClientInputEnvelope) error
}

// SenderFunc 函数适配
type SenderFunc func(env protocol.ClientInputEnvelope) error

func (f SenderFunc) SendInput(env protocol.ClientInputEnvelope) error { return f(env) }

type Option func(*Predictor)

// WithClock 注入单调时钟（默认 time.Now）
func WithClock(now func() time.Time) Option {
	return func(p *Predictor) { p.now = now }
}

// WithQuietReplay 和解重放时不再为本地已预测过的输入触发事件。
// 默认关闭：每次重放都会触发，表现层需自行容忍重复。
func WithQuietReplay() Option {
	return func(p *Predictor) { p.quietReplay = true }
}

// Predictor 客户端的预测与和解。
// 所有方法串行执行：和解（回滚、重放权威输入、裁剪、重放本地输入）是一个原子操作，
// 完成之前不会有新的本地输入基于旧基线被预测。
type Predictor struct {
	mu sync.Mutex

	sender      Sender
	now         func() time.Time
	quietReplay bool

	selfID int
	rules  game.Rules
	// live 渲染用状态 = lastAuthoritative + 未确认的本地输入
	live *game.System
	// lastAuthoritative 最近的权威快照，从不包含未确认的本地输入
	lastAuthoritative game.State
	lastTick          uint64
	hasAck            bool
	lastAck           int64

	pending []protocol.ClientInputEnvelope
	lastSN  int64

	lastAdvanceAt time.Time
}

// NewPredictor 以加入房间时的完整状态为基线
func NewPredictor(resp protocol.JoinResponse, sender Sender, opts ...Option) *Predictor {
	p := &Predictor{
		sender:            sender,
		now:               time.Now,
		selfID:            resp.PlayerID,
		rules:             resp.Rules,
		live:              game.NewSystem(resp.Rules),
		lastAuthoritative: resp.State.Clone(),
		lastTick:          resp.Tick,
	}
	for _, o := range opts {
		o(p)
	}
	p.live.Reset(resp.State)
	p.lastAdvanceAt = p.now()
	return p
}

// SubmitLocalInput 本地输入：分配序列号、发送、记入待确认日志，并立即应用到 live（预测）
func (p *Predictor) SubmitLocalInput(inputs ...game.Input) (protocol.ClientInputEnvelope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selfID == 0 {
		return protocol.ClientInputEnvelope{}, ErrNotJoined
	}
	if len(inputs) == 0 {
		return protocol.ClientInputEnvelope{}, fmt.Errorf("%w: empty input batch", game.ErrInvalidInput)
	}

	wire := make([]game.Input, 0, len(inputs))
	for _, in := range inputs {
		if !in.IsClientInput() {
			return protocol.ClientInputEnvelope{}, fmt.Errorf("%w: %q cannot be sent by a client", game.ErrInvalidInput, in.Type)
		}
		if err := in.Validate(); err != nil {
			return protocol.ClientInputEnvelope{}, err
		}
		// 玩家 ID 由服务端注入
		wire = append(wire, in.WithPlayer(0))
	}

	env := protocol.ClientInputEnvelope{Seq: p.lastSN + 1, Inputs: wire}
	if err := p.sender.SendInput(env); err != nil {
		return protocol.ClientInputEnvelope{}, fmt.Errorf("send input sn=%d: %w", env.Seq, err)
	}
	p.lastSN = env.Seq
	p.pending = append(p.pending, env)

	for _, in := range wire {
		p.live.Apply(in.WithPlayer(p.selfID))
	}
	return env, nil
}

// OnAuthoritativeFrame 和解：
//  1. 回滚 live 到上一次权威状态
//  2. 按顺序应用帧内全部权威输入
//  3. 结果保存为新的权威状态
//  4. 删除序列号 <= LastAck 的待确认输入
//  5. 在新基线上重放剩余的本地输入
func (p *Predictor) OnAuthoritativeFrame(f protocol.AuthoritativeFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f.Tick != p.lastTick+1 {
		return fmt.Errorf("%w: got tick %d after %d", ErrFrameOutOfOrder, f.Tick, p.lastTick)
	}
	if f.LastAck != nil && p.hasAck && *f.LastAck < p.lastAck {
		return fmt.Errorf("%w: ack regressed from %d to %d", ErrFrameOutOfOrder, p.lastAck, *f.LastAck)
	}

	p.live.Reset(p.lastAuthoritative)
	for _, in := range f.Inputs {
		// 自己的 move/attack 在预测时已经触发过事件
		if p.quietReplay && in.PlayerID == p.selfID && in.IsClientInput() {
			p.live.ApplyQuiet(in)
			continue
		}
		p.live.Apply(in)
	}
	p.lastAuthoritative = p.live.State()
	p.lastTick = f.Tick

	if f.LastAck != nil {
		p.hasAck = true
		p.lastAck = *f.LastAck
		ack := *f.LastAck
		p.pending = slices.DeleteFunc(p.pending, func(env protocol.ClientInputEnvelope) bool {
			return env.Seq <= ack
		})
	}

	for _, env := range p.pending {
		for _, in := range env.Inputs {
			in = in.WithPlayer(p.selfID)
			if p.quietReplay {
				p.live.ApplyQuiet(in)
			} else {
				p.live.Apply(in)
			}
		}
	}
	p.lastAdvanceAt = p.now()
	return nil
}

// AdvanceLocalTime 本地时间流逝，只作用于 live，下一次和解时被完全覆盖
func (p *Predictor) AdvanceLocalTime() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	dt := float64(now.Sub(p.lastAdvanceAt)) / float64(time.Millisecond)
	p.lastAdvanceAt = now
	p.live.Apply(game.TimeAdvance(dt))
}

// Live 当前渲染状态的副本
func (p *Predictor) Live() game.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live.State()
}

// Authoritative 最近权威状态的副本
func (p *Predictor) Authoritative() game.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuthoritative.Clone()
}

// Pending 尚未确认的输入包（升序）
func (p *Predictor) Pending() []protocol.ClientInputEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.pending)
}

func (p *Predictor) SelfID() int { return p.selfID }

func (p *Predictor) Rules() game.Rules { return p.rules }

// LastTick 最近应用的权威帧号
func (p *Predictor) LastTick() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTick
}

// Self 自己在 live 中的状态
func (p *Predictor) Self() (game.Player, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.live.State()
	pl, ok := st.Player(p.selfID)
	if !ok {
		return game.Player{}, false
	}
	return *pl, true
}

// Subscribe 订阅 live 上的瞬时事件。回调在 Predictor 的锁内同步执行，不能回调 Predictor。
func (p *Predictor) Subscribe(fn func(game.Event)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.live.Subscribe(fn)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		c()
	}
}
