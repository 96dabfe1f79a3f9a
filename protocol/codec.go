package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnknownCodec = errors.New("unknown codec")
	ErrEmptyMessage = errors.New("empty message")
	ErrMissingBody  = errors.New("message body missing for type")
)

// Codec 消息编解码。Binary 表示应使用 WebSocket 二进制帧
type Codec interface {
	Name() string
	Binary() bool
	Encode(m Message) ([]byte, error)
	Decode(b []byte) (Message, error)
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// CodecByName 按名称选择编解码器（空字符串为 json）
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func (jsonCodec) Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return Message{}, ErrEmptyMessage
	}
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("decode json message: %w", err)
	}
	return m, m.check()
}

// msgpack 复用 json 标签，保证两种编码字段名一致
type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }
func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(m Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(&m); err != nil {
		return nil, fmt.Errorf("encode msgpack message: %w", err)
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return Message{}, ErrEmptyMessage
	}
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	var m Message
	if err := dec.Decode(&m); err != nil {
		return Message{}, fmt.Errorf("decode msgpack message: %w", err)
	}
	return m, m.check()
}

// check 确认 Type 对应的消息体存在
func (m Message) check() error {
	var ok bool
	switch m.Type {
	case MsgJoin:
		ok = m.Join != nil
	case MsgJoined:
		ok = m.Joined != nil
	case MsgInput:
		ok = m.Input != nil
	case MsgFrame:
		ok = m.Frame != nil
	case MsgError:
		ok = true
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	if !ok {
		return fmt.Errorf("%w %q", ErrMissingBody, m.Type)
	}
	return nil
}
