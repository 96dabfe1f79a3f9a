package server

import (
	"sync"

	"arrowarena/game"
)

// Batch 一次 Drain 取出的内容：按到达顺序的输入，以及随之确认的各玩家序列号
type Batch struct {
	Inputs []game.Input
	Acks   map[int]int64
}

// InputQueue 待处理输入的双缓冲。任意多个连接并发写入，Tick 线程整体交换取出；
// 确认号、限流计数与输入在同一把锁下记录，确认不会早于对应输入被应用，
// 一个批次里每个玩家的输入数也不会超过上限。
type InputQueue struct {
	mu     sync.Mutex
	limit  int
	inputs []game.Input
	acks   map[int]int64
	counts map[int]int
}

// NewInputQueue limit 为每个玩家每批次最多接受的输入数，<= 0 表示不限
func NewInputQueue(limit int) *InputQueue {
	return &InputQueue{limit: limit, acks: make(map[int]int64), counts: make(map[int]int)}
}

// Push 追加服务端合成的输入（Join/Leave）
func (q *InputQueue) Push(inputs ...game.Input) {
	q.mu.Lock()
	q.inputs = append(q.inputs, inputs...)
	q.mu.Unlock()
}

// PushEnvelope 追加某连接的一个输入包并记录其序列号，返回实际接受的输入数。
// 超出本批次上限的部分被截断，序列号照常确认。
func (q *InputQueue) PushEnvelope(playerID int, seq int64, inputs []game.Input) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 {
		inputs = inputs[:min(len(inputs), max(q.limit-q.counts[playerID], 0))]
	}
	q.counts[playerID] += len(inputs)
	q.inputs = append(q.inputs, inputs...)
	if seq > q.acks[playerID] {
		q.acks[playerID] = seq
	}
	return len(inputs)
}

// Drain 换出当前缓冲并返回，队列重置为空
func (q *InputQueue) Drain() Batch {
	q.mu.Lock()
	defer q.mu.Unlock()
	b := Batch{Inputs: q.inputs, Acks: q.acks}
	q.inputs = nil
	q.acks = make(map[int]int64)
	clear(q.counts)
	return b
}

func (q *InputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inputs)
}
