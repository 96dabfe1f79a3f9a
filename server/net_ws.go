package server

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"arrowarena/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	joinWait   = 10 * time.Second
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrConnClosed     = errors.New("connection closed")
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ID    string
	ws    *websocket.Conn
	codec protocol.Codec
	send  chan []byte
	delay func() time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func NewClientConn(ws *websocket.Conn, codec protocol.Codec, buffer int, delay func() time.Duration) *ClientConn {
	if buffer <= 0 {
		buffer = 64
	}
	return &ClientConn{
		ID:    uuid.NewString(),
		ws:    ws,
		codec: codec,
		send:  make(chan []byte, buffer),
		delay: delay,
		done:  make(chan struct{}),
	}
}

// Send 将消息压入发送队列（非阻塞）。
// 帧同步要求可靠有序，队列满时返回错误由房间踢出该连接，而不是静默丢帧。
func (c *ClientConn) Send(b []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close 关闭底层连接，写协程随之退出
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *ClientConn) messageType() int {
	if c.codec.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			// 开发用的模拟延迟：单个写协程内顺序等待，不会打乱帧顺序
			if c.delay != nil {
				if d := c.delay(); d > 0 {
					time.Sleep(d)
				}
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(c.messageType(), msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// awaitJoin 第一条消息必须是 join
func (c *ClientConn) awaitJoin() error {
	_ = c.ws.SetReadDeadline(time.Now().Add(joinWait))
	_, payload, err := c.ws.ReadMessage()
	if err != nil {
		return err
	}
	m, err := c.codec.Decode(payload)
	if err != nil {
		return err
	}
	if m.Type != protocol.MsgJoin {
		return errors.New("expected join as first message, got " + string(m.Type))
	}
	return nil
}

// rejectJoin 在写协程启动前直接回写错误
func (c *ClientConn) rejectJoin(reason string) {
	b, err := c.codec.Encode(protocol.NewError(reason))
	if err != nil {
		return
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(c.messageType(), b)
}

// readPump 读取客户端输入包，交给房间排队
func (c *ClientConn) readPump(room *Room) {
	defer c.Close()
	c.ws.SetReadLimit(1 << 20) // 1MB

	if err := c.awaitJoin(); err != nil {
		Log.Infof("join handshake failed: room=%s conn=%s err=%v", room.ID, c.ID, err)
		c.rejectJoin(err.Error())
		return
	}
	peer, _, err := room.Join(c, c.ID, c.codec)
	if err != nil {
		Log.Warnf("join failed: room=%s conn=%s err=%v", room.ID, c.ID, err)
		c.rejectJoin(err.Error())
		return
	}
	go c.writePump()
	// 读泵退出时，通知房间移除该玩家
	defer room.Leave(peer.PlayerID)

	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		m, err := c.codec.Decode(payload)
		if err != nil {
			Log.Debugf("bad message: room=%s player=%d err=%v", room.ID, peer.PlayerID, err)
			continue
		}
		if m.Type != protocol.MsgInput {
			continue
		}
		if err := room.OnClientInput(peer, *m.Input); err != nil {
			Log.Debugf("input rejected: room=%s player=%d sn=%d err=%v", room.ID, peer.PlayerID, m.Input.Seq, err)
		}
	}
}

// netSim 开发环境下模拟的单向网络延迟（毫秒，区间内均匀随机）
type netSim struct {
	minMs atomic.Int64
	maxMs atomic.Int64
}

func (n *netSim) set(minMs, maxMs int64) {
	if minMs < 0 {
		minMs = 0
	}
	if maxMs < minMs {
		maxMs = minMs
	}
	n.minMs.Store(minMs)
	n.maxMs.Store(maxMs)
}

func (n *netSim) delay() time.Duration {
	lo, hi := n.minMs.Load(), n.maxMs.Load()
	if hi <= 0 {
		return 0
	}
	ms := lo
	if hi > lo {
		ms += rand.Int64N(hi - lo + 1)
	}
	return time.Duration(ms) * time.Millisecond
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：?room=room-1&codec=json|msgpack
func (m *RoomManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	codecName := r.URL.Query().Get("codec")
	if codecName == "" {
		codecName = m.cfg.Codec
	}
	codec, err := protocol.CodecByName(codecName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	room, err := m.GetOrCreateRoom(r.URL.Query().Get("room"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	client := NewClientConn(ws, codec, m.cfg.SendBuffer, room.netsim.delay)
	Log.Debugf("ws connected: room=%s conn=%s codec=%s remote=%s", room.ID, client.ID, codec.Name(), r.RemoteAddr)
	go client.readPump(room)
}
