package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"arrowarena/client"
	"arrowarena/game"
	"arrowarena/logging"
	"arrowarena/protocol"
)

// 终端客户端：WASD 移动，空格朝最后移动方向射箭，q 退出
func main() {
	url := flag.String("url", "ws://localhost:3000/ws?room=room-1", "server websocket url")
	codecName := flag.String("codec", "json", "wire codec: json or msgpack")
	lag := flag.Duration("lag", 0, "simulated one-way latency, e.g. 80ms")
	logFile := flag.String("log", "client.log", "log file path")
	flag.Parse()

	if err := run(*url, *codecName, *lag, *logFile); err != nil {
		fmt.Fprintf(os.Stderr, "\r\n%v\r\n", err)
		os.Exit(1)
	}
}

func run(url, codecName string, lag time.Duration, logFile string) error {
	codec, err := protocol.CodecByName(codecName)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{FilePath: logFile, Level: "info"})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, err := client.Dial(ctx, url, client.Options{
		Codec:     codec,
		Logger:    log,
		Lag:       lag,
		Predictor: []client.Option{client.WithQuietReplay()},
	})
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()
	p := conn.Predictor()

	p.Subscribe(func(ev game.Event) {
		if ev.Type == game.EventProjectileLanded && len(ev.Hits) > 0 {
			log.Infof("projectile %d landed, hits=%v", ev.Projectile.ID, ev.Hits)
		}
	})

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, old) }()
	}

	keys := make(chan byte, 16)
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := os.Stdin.Read(buf); err != nil {
				close(keys)
				return
			}
			keys <- buf[0]
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	rules := p.Rules()
	dir := game.Vec2{X: 1}
	frame := time.NewTicker(50 * time.Millisecond)
	defer frame.Stop()

	for {
		select {
		case <-sig:
			return nil
		case <-conn.Done():
			return conn.Err()
		case k, ok := <-keys:
			if !ok || k == 'q' || k == 3 {
				return nil
			}
			var in game.Input
			switch k {
			case 'w':
				dir = game.Vec2{Y: -1}
			case 's':
				dir = game.Vec2{Y: 1}
			case 'a':
				dir = game.Vec2{X: -1}
			case 'd':
				dir = game.Vec2{X: 1}
			case ' ':
				self, ok := p.Self()
				if !ok {
					continue
				}
				in = game.AttackToward(0, self.Pos, dir, p.Live().Now, rules)
			default:
				continue
			}
			if in.Type == "" {
				in = game.Move(0, dir.Scale(rules.MoveSpeed), 0.1)
			}
			if _, err := p.SubmitLocalInput(in); err != nil {
				log.Warnf("submit: %v", err)
			}
		case <-frame.C:
			p.AdvanceLocalTime()
			printStatus(p)
		}
	}
}

func printStatus(p *client.Predictor) {
	st := p.Live()
	line := fmt.Sprintf("tick=%d t=%.0fms pending=%d arrows=%d", p.LastTick(), st.Now, len(p.Pending()), len(st.Projectiles))
	for _, pl := range st.Players {
		mark := " "
		if pl.ID == p.SelfID() {
			mark = "*"
		}
		stun := ""
		if pl.Incapacitated(st.Now) {
			stun = "!"
		}
		line += fmt.Sprintf(" %s%d(%.1f,%.1f)%s", mark, pl.ID, pl.Pos.X, pl.Pos.Y, stun)
	}
	fmt.Printf("\r\033[K%s", line)
}
