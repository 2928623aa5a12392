package clock

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const (
	// ClockServiceName 时钟服务名
	ClockServiceName = "sossim.v1.ClockService"
	// ClockServiceNowProcedure Now接口路径
	ClockServiceNowProcedure = "/" + ClockServiceName + "/Now"
)

// NowRequest Now请求（无参数）
type NowRequest struct{}

// NowResponse Now响应
type NowResponse struct {
	Step int32   `json:"step"` // 当前步数
	T    float64 `json:"t"`    // 当前时间（秒）
}

// Handler 生成时钟服务的HTTP处理器
// 参数：opts-connect处理器选项（编解码器等）
// 返回：挂载路径与处理器
func (c *Clock) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ClockServiceNowProcedure, connect.NewUnaryHandler(ClockServiceNowProcedure, c.Now, opts...))
	return "/" + ClockServiceName + "/", mux
}

// Now 获取当前仿真时间
func (c *Clock) Now(ctx context.Context, in *connect.Request[NowRequest]) (*connect.Response[NowResponse], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return connect.NewResponse(&NowResponse{
		Step: c.tick,
		T:    c.t,
	}), nil
}
