package protocol

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// Schema 生成消息信封的 JSON Schema，供其他语言的客户端对照
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	s := reflector.ReflectFromType(reflect.TypeOf(Message{}))
	if s == nil {
		return nil, fmt.Errorf("failed to reflect message schema")
	}
	s.Title = "arrowarena wire message"
	s.Description = "Envelope exchanged over the websocket; exactly one body field is set according to type."
	return json.MarshalIndent(s, "", "  ")
}
