package server

import (
	"sync"
	"testing"

	"arrowarena/game"
)

func TestInputQueueConcurrentPushDrain(t *testing.T) {
	const producers, perProducer = 8, 500
	q := NewInputQueue(0)

	var wg sync.WaitGroup
	for p := 1; p <= producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			for i := 1; i <= perProducer; i++ {
				// 用 DeltaTime 携带生产者内的序号
				q.PushEnvelope(pid, int64(i), []game.Input{game.Move(pid, game.Vec2{}, float64(i))})
			}
		}(p)
	}

	var drained []game.Input
	acks := make(map[int]int64)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	collect := func() {
		b := q.Drain()
		drained = append(drained, b.Inputs...)
		for pid, seq := range b.Acks {
			if seq < acks[pid] {
				t.Errorf("ack for %d regressed: %d < %d", pid, seq, acks[pid])
			}
			acks[pid] = seq
		}
	}
loop:
	for {
		select {
		case <-done:
			break loop
		default:
			collect()
		}
	}
	collect()

	if len(drained) != producers*perProducer {
		t.Fatalf("drained %d inputs, want %d", len(drained), producers*perProducer)
	}
	last := make(map[int]float64)
	for _, in := range drained {
		if in.DeltaTime != last[in.PlayerID]+1 {
			t.Fatalf("producer %d out of order: %v after %v", in.PlayerID, in.DeltaTime, last[in.PlayerID])
		}
		last[in.PlayerID] = in.DeltaTime
	}
	for p := 1; p <= producers; p++ {
		if acks[p] != perProducer {
			t.Fatalf("ack for %d = %d, want %d", p, acks[p], perProducer)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty: %d", q.Len())
	}
}

func TestInputQueueDrainResets(t *testing.T) {
	q := NewInputQueue(0)
	q.Push(game.Join(1, game.Vec2{}))
	q.PushEnvelope(1, 3, []game.Input{game.Move(1, game.Vec2{}, 1)})
	// 截断为空的输入包同样推进确认号
	q.PushEnvelope(1, 4, nil)

	b := q.Drain()
	if len(b.Inputs) != 2 || b.Acks[1] != 4 {
		t.Fatalf("batch = %+v", b)
	}
	if b2 := q.Drain(); len(b2.Inputs) != 0 || len(b2.Acks) != 0 {
		t.Fatalf("second drain = %+v", b2)
	}
}

func TestInputQueueLimitPerBatch(t *testing.T) {
	const limit = 4
	q := NewInputQueue(limit)
	mv := game.Move(1, game.Vec2{}, 0.1)

	if n := q.PushEnvelope(1, 1, []game.Input{mv, mv, mv}); n != 3 {
		t.Fatalf("accepted %d, want 3", n)
	}
	if n := q.PushEnvelope(1, 2, []game.Input{mv, mv, mv}); n != 1 {
		t.Fatalf("accepted %d, want 1", n)
	}
	if n := q.PushEnvelope(1, 3, []game.Input{mv}); n != 0 {
		t.Fatalf("accepted %d over the limit", n)
	}
	// 其他玩家单独计数
	if n := q.PushEnvelope(2, 1, []game.Input{mv.WithPlayer(2)}); n != 1 {
		t.Fatalf("player 2 accepted %d, want 1", n)
	}
	b := q.Drain()
	if len(b.Inputs) != limit+1 || b.Acks[1] != 3 {
		t.Fatalf("batch inputs=%d acks=%v", len(b.Inputs), b.Acks)
	}
	if n := q.PushEnvelope(1, 4, []game.Input{mv, mv, mv}); n != 3 {
		t.Fatalf("limit not reset by drain: accepted %d", n)
	}
}

// 计数与取出在同一把锁下：并发写入、交错取出时，任何批次都不会超过上限
func TestInputQueueLimitHoldsUnderConcurrentDrain(t *testing.T) {
	const limit, producers = 3, 4
	q := NewInputQueue(limit)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for p := 1; p <= producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			mv := game.Move(pid, game.Vec2{}, 0.1)
			for seq := int64(1); ; seq++ {
				select {
				case <-stop:
					return
				default:
				}
				q.PushEnvelope(pid, seq, []game.Input{mv, mv})
			}
		}(p)
	}

	for i := 0; i < 2000; i++ {
		per := make(map[int]int)
		for _, in := range q.Drain().Inputs {
			per[in.PlayerID]++
		}
		for pid, n := range per {
			if n > limit {
				close(stop)
				wg.Wait()
				t.Fatalf("player %d had %d inputs in one batch, limit %d", pid, n, limit)
			}
		}
	}
	close(stop)
	wg.Wait()
}
