package server

import (
	"context"
	"time"

	"arrowarena/game"
	"arrowarena/protocol"
)

// StartTicker 启动房间的 Tick 循环（单线程推进世界），ctx 取消或 Close 时退出。
// Idle -> Running 只发生一次，重复调用无效。
func (r *Room) StartTicker(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	interval := r.rules.TickInterval()
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				// 核心循环：取出输入 → 推进世界 → 广播本帧输入
				start := time.Now()
				r.Tick(r.now())
				if elapsed := time.Since(start); elapsed > interval {
					r.metrics.IncTickOverrun()
					Log.Warnf("tick overrun: room=%s took=%s interval=%s", r.ID, elapsed, interval)
				}
			}
		}
	}()
}

type outgoing struct {
	peer *Peer
	data []byte
}

// Tick 执行一次帧同步：
//  1. 整体换出待处理队列
//  2. 按到达顺序应用到权威状态
//  3. 合成并应用 TimeAdvance(now - 上次 Tick)，首个 Tick 为 0
//  4. 向每个连接发送本帧输入及其确认号
//
// now 由调用方提供，引擎内部从不读取时钟。
func (r *Room) Tick(now time.Time) protocol.AuthoritativeFrame {
	start := time.Now()

	r.mu.Lock()
	batch := r.queue.Drain()

	applied := make([]game.Input, 0, len(batch.Inputs)+1)
	for _, in := range batch.Inputs {
		out := r.sys.Apply(in)
		r.observe(in, out)
		applied = append(applied, in)
	}

	var dt float64
	if !r.lastTickAt.IsZero() {
		dt = float64(now.Sub(r.lastTickAt)) / float64(time.Millisecond)
	}
	r.lastTickAt = now
	advance := game.TimeAdvance(dt)
	r.sys.Apply(advance)
	applied = append(applied, advance)

	r.tickSeq++
	for pid, seq := range batch.Acks {
		if p, ok := r.peers[pid]; ok {
			p.ack(seq)
		}
	}

	frame := protocol.AuthoritativeFrame{Tick: r.tickSeq, Inputs: applied}
	outbox := r.buildOutbox(frame)
	r.mu.Unlock()

	if failed := r.deliver(outbox); len(failed) > 0 {
		for _, p := range failed {
			r.metrics.IncSlowConsumer()
			Log.Warnf("dropping slow consumer: room=%s player=%d conn=%s", r.ID, p.PlayerID, p.ConnID)
			r.Leave(p.PlayerID)
		}
	}
	r.metrics.AddTick(time.Since(start).Nanoseconds())
	return frame
}

// buildOutbox 为每个连接编码一份带确认号的帧（需持有 r.mu），连接列表在锁内快照
func (r *Room) buildOutbox(frame protocol.AuthoritativeFrame) []outgoing {
	out := make([]outgoing, 0, len(r.peers))
	for _, p := range r.peers {
		f := frame
		f.LastAck = p.ackPtr()
		b, err := p.codec.Encode(protocol.NewFrame(f))
		if err != nil {
			Log.Errorf("encode frame: room=%s player=%d err=%v", r.ID, p.PlayerID, err)
			continue
		}
		out = append(out, outgoing{peer: p, data: b})
	}
	return out
}

// deliver 在锁外发送；Send 失败（队列满或已关闭）的连接返回给调用方移除
func (r *Room) deliver(outbox []outgoing) []*Peer {
	var failed []*Peer
	for _, o := range outbox {
		if o.peer.Left() {
			continue
		}
		if err := o.peer.conn.Send(o.data); err != nil {
			failed = append(failed, o.peer)
			continue
		}
		r.metrics.AddFramesSent(1)
	}
	return failed
}

// observe 记录被引擎跳过的输入
func (r *Room) observe(in game.Input, out game.Outcome) {
	switch out.Skip {
	case game.SkipNone:
	case game.SkipDuplicateJoin:
		r.metrics.IncJoinRejected()
		Log.Warnf("duplicate join rejected: room=%s player=%d", r.ID, in.PlayerID)
	default:
		Log.Debugf("input skipped: room=%s type=%s player=%d reason=%s", r.ID, in.Type, in.PlayerID, out.Skip)
	}
}
