package protocol

import "arrowarena/game"

// MsgType 消息类型
type MsgType string

const (
	MsgJoin   MsgType = "join"   // client -> server
	MsgJoined MsgType = "joined" // server -> client
	MsgInput  MsgType = "input"  // client -> server
	MsgFrame  MsgType = "frame"  // server -> client，每个 Tick 一次
	MsgError  MsgType = "error"  // server -> client
)

// JoinRequest 加入房间
type JoinRequest struct{}

// JoinResponse 加入成功：一次性同步当前完整状态，之后改为帧同步
type JoinResponse struct {
	PlayerID int        `json:"playerId"`
	State    game.State `json:"state"`
	// Tick 已经包含在 State 中的最后一个帧号，下一帧应为 Tick+1
	Tick  uint64     `json:"tick"`
	Rules game.Rules `json:"rules"`
}

// ClientInputEnvelope 客户端上行输入，Seq 每个连接从 1 开始严格递增
type ClientInputEnvelope struct {
	Seq    int64        `json:"sn"`
	Inputs []game.Input `json:"inputs"`
}

// AuthoritativeFrame 服务端本 Tick 实际消费的输入（按应用顺序，含合成的 TimeAdvance）
type AuthoritativeFrame struct {
	Tick   uint64       `json:"tick"`
	Inputs []game.Input `json:"inputs"`
	// LastAck 该连接最近被确认的 Seq；从未发送过输入时为 nil
	LastAck *int64 `json:"lastSn,omitempty"`
}

// Message 传输层信封，按 Type 只填充对应字段
type Message struct {
	Type   MsgType              `json:"type"`
	Join   *JoinRequest         `json:"join,omitempty"`
	Joined *JoinResponse        `json:"joined,omitempty"`
	Input  *ClientInputEnvelope `json:"input,omitempty"`
	Frame  *AuthoritativeFrame  `json:"frame,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func NewJoin() Message { return Message{Type: MsgJoin, Join: &JoinRequest{}} }

func NewJoined(r JoinResponse) Message { return Message{Type: MsgJoined, Joined: &r} }

func NewInput(env ClientInputEnvelope) Message { return Message{Type: MsgInput, Input: &env} }

func NewFrame(f AuthoritativeFrame) Message { return Message{Type: MsgFrame, Frame: &f} }

func NewError(reason string) Message { return Message{Type: MsgError, Error: reason} }
