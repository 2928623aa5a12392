package server

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec connect的JSON编解码器，直接序列化Go结构体
type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// Codec 服务端与客户端共用的connect选项
func Codec() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
