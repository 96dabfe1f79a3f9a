package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"arrowarena/protocol"
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrClosed         = errors.New("connection closed")
)

// Options 连接参数
type Options struct {
	Codec  protocol.Codec // 默认 JSON
	Logger *zap.SugaredLogger
	// Lag 模拟的单向网络延迟，收发各施加一次（只用于开发调试）
	Lag        time.Duration
	SendBuffer int
	Predictor  []Option
}

// Conn 到服务端的 WebSocket 连接：负责握手、把权威帧交给 Predictor、发送本地输入
type Conn struct {
	ws        *websocket.Conn
	codec     protocol.Codec
	log       *zap.SugaredLogger
	lag       time.Duration
	predictor *Predictor

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Dial 连接并加入房间；返回时已收到完整状态，读写协程已启动
func Dial(ctx context.Context, rawURL string, opts Options) (*Conn, error) {
	if opts.Codec == nil {
		opts.Codec = protocol.JSON
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	if q.Get("codec") == "" {
		q.Set("codec", opts.Codec.Name())
		u.RawQuery = q.Encode()
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	c := &Conn{
		ws:    ws,
		codec: opts.Codec,
		log:   opts.Logger,
		lag:   opts.Lag,
		send:  make(chan []byte, opts.SendBuffer),
		done:  make(chan struct{}),
	}

	resp, err := c.handshake(ctx)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	c.predictor = NewPredictor(resp, c, opts.Predictor...)
	c.log.Infof("joined: player=%d tick=%d players=%d", resp.PlayerID, resp.Tick, len(resp.State.Players))

	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

func (c *Conn) messageType() int {
	if c.codec.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func (c *Conn) handshake(ctx context.Context) (protocol.JoinResponse, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.ws.SetReadDeadline(dl)
		_ = c.ws.SetWriteDeadline(dl)
		defer func() {
			_ = c.ws.SetReadDeadline(time.Time{})
			_ = c.ws.SetWriteDeadline(time.Time{})
		}()
	}
	b, err := c.codec.Encode(protocol.NewJoin())
	if err != nil {
		return protocol.JoinResponse{}, err
	}
	if err := c.ws.WriteMessage(c.messageType(), b); err != nil {
		return protocol.JoinResponse{}, fmt.Errorf("send join: %w", err)
	}
	_, payload, err := c.ws.ReadMessage()
	if err != nil {
		return protocol.JoinResponse{}, fmt.Errorf("read join response: %w", err)
	}
	m, err := c.codec.Decode(payload)
	if err != nil {
		return protocol.JoinResponse{}, err
	}
	switch m.Type {
	case protocol.MsgJoined:
		return *m.Joined, nil
	case protocol.MsgError:
		return protocol.JoinResponse{}, fmt.Errorf("join rejected: %s", m.Error)
	default:
		return protocol.JoinResponse{}, fmt.Errorf("unexpected %q before join response", m.Type)
	}
}

// SendInput 实现 Sender：编码后放入发送队列（非阻塞）
func (c *Conn) SendInput(env protocol.ClientInputEnvelope) error {
	b, err := c.codec.Encode(protocol.NewInput(env))
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			if c.lag > 0 {
				time.Sleep(c.lag)
			}
			if err := c.ws.WriteMessage(c.messageType(), b); err != nil {
				c.fail(fmt.Errorf("write: %w", err))
				return
			}
		}
	}
}

// readLoop 接收权威帧并和解；乱序帧视为致命错误，断开连接
func (c *Conn) readLoop() {
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("read: %w", err))
			return
		}
		if c.lag > 0 {
			time.Sleep(c.lag)
		}
		m, err := c.codec.Decode(payload)
		if err != nil {
			c.log.Warnf("bad message from server: %v", err)
			continue
		}
		switch m.Type {
		case protocol.MsgFrame:
			if err := c.predictor.OnAuthoritativeFrame(*m.Frame); err != nil {
				c.log.Errorf("protocol violation: %v", err)
				c.fail(err)
				return
			}
		case protocol.MsgError:
			c.fail(fmt.Errorf("server error: %s", m.Error))
			return
		default:
			c.log.Debugf("ignoring %q message", m.Type)
		}
	}
}

// fail 记录导致断开的错误；主动 Close 之后读写协程的报错不记录
func (c *Conn) fail(err error) {
	select {
	case <-c.done:
		return
	default:
	}
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	_ = c.Close()
}

// Predictor 本连接的预测器
func (c *Conn) Predictor() *Predictor { return c.predictor }

// Done 连接关闭时关闭
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err 导致连接关闭的原因；主动 Close 时为 nil
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}
