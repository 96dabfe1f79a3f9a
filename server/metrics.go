package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount      int64 // 统计的 Tick 次数
	InputsAccepted int64 // 被接受的输入数
	RateLimited    int64 // 因同帧限流被丢弃的输入数
	OldSeqIgnored  int64 // 因旧序列被忽略的输入包数
	InvalidInputs  int64 // 校验失败的输入包数
	JoinsRejected  int64 // 重复 Join 被引擎拒绝的次数
	FramesSent     int64 // 发出的帧数（按连接计）
	SlowConsumers  int64 // 发送队列满而被踢出的连接数
	TickOverruns   int64 // 耗时超过 Tick 周期的次数
	TotalTickNs    int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) AddAccepted(n int)    { atomic.AddInt64(&m.InputsAccepted, int64(n)) }
func (m *RoomMetrics) AddRateLimited(n int) { atomic.AddInt64(&m.RateLimited, int64(n)) }
func (m *RoomMetrics) IncOldSeqIgnored()    { atomic.AddInt64(&m.OldSeqIgnored, 1) }
func (m *RoomMetrics) IncInvalid()          { atomic.AddInt64(&m.InvalidInputs, 1) }
func (m *RoomMetrics) IncJoinRejected()     { atomic.AddInt64(&m.JoinsRejected, 1) }
func (m *RoomMetrics) AddFramesSent(n int)  { atomic.AddInt64(&m.FramesSent, int64(n)) }
func (m *RoomMetrics) IncSlowConsumer()     { atomic.AddInt64(&m.SlowConsumers, 1) }
func (m *RoomMetrics) IncTickOverrun()      { atomic.AddInt64(&m.TickOverruns, 1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":      tick,
		"inputs_accepted": atomic.LoadInt64(&m.InputsAccepted),
		"rate_limited":    atomic.LoadInt64(&m.RateLimited),
		"old_seq_ignored": atomic.LoadInt64(&m.OldSeqIgnored),
		"invalid_inputs":  atomic.LoadInt64(&m.InvalidInputs),
		"joins_rejected":  atomic.LoadInt64(&m.JoinsRejected),
		"frames_sent":     atomic.LoadInt64(&m.FramesSent),
		"slow_consumers":  atomic.LoadInt64(&m.SlowConsumers),
		"tick_overruns":   atomic.LoadInt64(&m.TickOverruns),
		"avg_tick_ms":     avgMs,
	}
}
