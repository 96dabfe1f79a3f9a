package protocol

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"arrowarena/game"
)

func sampleFrame(ack *int64) AuthoritativeFrame {
	return AuthoritativeFrame{
		Tick: 7,
		Inputs: []game.Input{
			game.Join(3, game.Vec2{X: -4.25, Y: 0.1}),
			game.Move(3, game.Vec2{X: 10, Y: -10}, 0.1),
			game.Attack(3, game.Vec2{X: 1.0 / 3, Y: 2}, 612.5),
			game.Leave(2),
			game.TimeAdvance(100.00000001),
		},
		LastAck: ack,
	}
}

func TestCodecsPreserveFrames(t *testing.T) {
	ack := int64(42)
	for _, c := range []Codec{JSON, MsgPack} {
		for _, f := range []AuthoritativeFrame{sampleFrame(&ack), sampleFrame(nil)} {
			b, err := c.Encode(NewFrame(f))
			if err != nil {
				t.Fatalf("%s encode: %v", c.Name(), err)
			}
			m, err := c.Decode(b)
			if err != nil {
				t.Fatalf("%s decode: %v", c.Name(), err)
			}
			if m.Type != MsgFrame || m.Frame == nil {
				t.Fatalf("%s: decoded %+v", c.Name(), m)
			}
			if (f.LastAck == nil) != (m.Frame.LastAck == nil) {
				t.Fatalf("%s: ack presence changed: sent %v got %v", c.Name(), f.LastAck, m.Frame.LastAck)
			}
			if f.LastAck != nil && *m.Frame.LastAck != *f.LastAck {
				t.Fatalf("%s: ack = %d, want %d", c.Name(), *m.Frame.LastAck, *f.LastAck)
			}
			// 浮点必须逐位还原，否则客户端重放会与服务端分叉
			if !reflect.DeepEqual(m.Frame.Inputs, f.Inputs) {
				t.Fatalf("%s: inputs changed:\n got %+v\nwant %+v", c.Name(), m.Frame.Inputs, f.Inputs)
			}
		}
	}
}

func TestClientEnvelopeOmitsPlayerID(t *testing.T) {
	env := ClientInputEnvelope{Seq: 1, Inputs: []game.Input{game.Move(0, game.Vec2{X: 1}, 0.1)}}
	b, err := JSON.Encode(NewInput(env))
	if err != nil {
		t.Fatal(err)
	}
	var raw struct {
		Input struct {
			Inputs []map[string]any `json:"inputs"`
		} `json:"input"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw.Input.Inputs) != 1 {
		t.Fatalf("inputs = %s", b)
	}
	if _, ok := raw.Input.Inputs[0]["playerId"]; ok {
		t.Fatalf("client input carries playerId: %s", b)
	}
}

func TestDecodeRejectsMissingBody(t *testing.T) {
	_, err := JSON.Decode([]byte(`{"type":"frame"}`))
	if !errors.Is(err, ErrMissingBody) {
		t.Fatalf("err = %v, want ErrMissingBody", err)
	}
	if _, err := JSON.Decode(nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	if _, err := JSON.Decode([]byte(`{"type":"bogus"}`)); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestJoinedCarriesState(t *testing.T) {
	st := game.NewState()
	until := 1500.0
	st.Players = append(st.Players, game.Player{ID: 1, Pos: game.Vec2{X: 2}, IncapacitatedUntil: &until})
	resp := JoinResponse{PlayerID: 2, State: st, Tick: 9, Rules: game.DefaultRules()}

	for _, c := range []Codec{JSON, MsgPack} {
		b, err := c.Encode(NewJoined(resp))
		if err != nil {
			t.Fatalf("%s encode: %v", c.Name(), err)
		}
		m, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", c.Name(), err)
		}
		if m.Joined.State.Digest() != st.Digest() {
			t.Fatalf("%s: state digest changed", c.Name())
		}
		if m.Joined.Rules != resp.Rules || m.Joined.Tick != 9 || m.Joined.PlayerID != 2 {
			t.Fatalf("%s: joined = %+v", c.Name(), m.Joined)
		}
	}
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]Codec{"": JSON, "json": JSON, "MsgPack": MsgPack} {
		c, err := CodecByName(name)
		if err != nil || c != want {
			t.Fatalf("CodecByName(%q) = %v, %v", name, c, err)
		}
	}
	if _, err := CodecByName("xml"); !errors.Is(err, ErrUnknownCodec) {
		t.Fatalf("err = %v, want ErrUnknownCodec", err)
	}
}

func TestSchemaDescribesEnvelope(t *testing.T) {
	b, err := Schema()
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("schema is not json: %v", err)
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %s", b)
	}
	for _, k := range []string{"type", "frame", "input", "joined"} {
		if _, ok := props[k]; !ok {
			t.Fatalf("schema missing %q", k)
		}
	}
}
