package server

import (
	"sync"
	"sync/atomic"

	"arrowarena/protocol"
)

// Conn 房间向连接发送数据的最小接口；Send 不得阻塞 Tick
type Conn interface {
	Send([]byte) error
	Close() error
}

// Peer 房间内的一个连接（一个玩家）及其确认号记录
type Peer struct {
	PlayerID int
	ConnID   string

	conn  Conn
	codec protocol.Codec

	// 到达侧：最后收到的序列号，用于拒绝重复/过期输入包
	seqMu    sync.Mutex
	lastSeen int64

	left atomic.Bool

	// 广播侧：帧里报告的确认号，只在 Tick 线程（持有房间锁）中读写
	hasAck  bool
	lastAck int64
}

func newPeer(playerID int, connID string, conn Conn, codec protocol.Codec) *Peer {
	if codec == nil {
		codec = protocol.JSON
	}
	return &Peer{PlayerID: playerID, ConnID: connID, conn: conn, codec: codec}
}

// ackPtr 当前报告给客户端的确认号；从未发送输入时为 nil
func (p *Peer) ackPtr() *int64 {
	if !p.hasAck {
		return nil
	}
	v := p.lastAck
	return &v
}

func (p *Peer) ack(seq int64) {
	if !p.hasAck || seq > p.lastAck {
		p.hasAck = true
		p.lastAck = seq
	}
}

// Left 玩家是否已离开房间
func (p *Peer) Left() bool { return p.left.Load() }
