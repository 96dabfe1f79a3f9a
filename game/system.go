package game

import "slices"

// System 前后端复用的状态计算模块：持有一份状态，并把瞬时事件分发给订阅者。
// 不是并发安全的，调用方负责串行化。
type System struct {
	rules     Rules
	state     State
	listeners []listener
	nextSub   int
}

type listener struct {
	id int
	fn func(Event)
}

func NewSystem(rules Rules) *System {
	return &System{
		rules: rules,
		state: NewState(),
	}
}

func (g *System) Rules() Rules { return g.rules }

// State 当前状态的深拷贝
func (g *System) State() State { return g.state.Clone() }

// Reset 整体替换状态（拷贝传入值，不与调用方共享）
func (g *System) Reset(s State) {
	g.state = s.Clone()
}

// Apply 应用输入并同步分发事件
func (g *System) Apply(in Input) Outcome {
	out := Apply(&g.state, in, g.rules)
	g.emit(out.Events)
	return out
}

// ApplyQuiet 应用输入但不分发事件（用于和解重放）
func (g *System) ApplyQuiet(in Input) Outcome {
	return Apply(&g.state, in, g.rules)
}

// Subscribe 订阅瞬时事件，返回取消函数
func (g *System) Subscribe(fn func(Event)) (cancel func()) {
	id := g.nextSub
	g.nextSub++
	g.listeners = append(g.listeners, listener{id: id, fn: fn})
	return func() {
		g.listeners = slices.DeleteFunc(g.listeners, func(l listener) bool { return l.id == id })
	}
}

func (g *System) emit(events []Event) {
	if len(events) == 0 || len(g.listeners) == 0 {
		return
	}
	ls := slices.Clone(g.listeners)
	for _, ev := range events {
		for _, l := range ls {
			l.fn(ev)
		}
	}
}
