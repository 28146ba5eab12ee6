package service

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Codec names Connect negotiates on. They map to application/json and
// application/json; charset=utf-8.
const (
	codecNameJSON        = "json"
	codecNameJSONCharset = "json; charset=utf-8"
)

// jsonCodec replaces Connect's default JSON codecs so plain Go structs can be
// used as messages. Protobuf messages still go through protojson.
type jsonCodec struct {
	name string
}

func (c jsonCodec) Name() string { return c.name }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	if pm, ok := msg.(proto.Message); ok {
		return protojson.Marshal(pm)
	}
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if pm, ok := msg.(proto.Message); ok {
		return protojson.Unmarshal(data, pm)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal into %T: %w", msg, err)
	}
	return nil
}
