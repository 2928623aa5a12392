package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/tsinghua-fib-lab/sossim-go/task"
)

// Server 仿真调试服务器
// 功能：在同一端口上提供
// 1. connect RPC：仿真控制与查询、时钟
// 2. /ws：逐步快照推送
// 3. /geojson：带实时占用的路网GeoJSON
type Server struct {
	id      uuid.UUID
	ctx     *task.Context
	hub     *Hub
	handler http.Handler
}

// New 创建服务器，并把推送中心注册为调度器的观察者
func New(ctx *task.Context) *Server {
	s := &Server{
		id:  uuid.New(),
		ctx: ctx,
		hub: NewHub(ctx.CurrentState),
	}
	ctx.Subscribe(s.hub)

	mux := http.NewServeMux()
	path, handler := NewService(ctx).Handler(Codec())
	mux.Handle(path, handler)
	path, handler = ctx.Clock().Handler(Codec())
	mux.Handle(path, handler)
	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/geojson", s.geojson)
	s.handler = cors.AllowAll().Handler(mux)
	return s
}

// ID 服务器实例ID
func (s *Server) ID() uuid.UUID {
	return s.id
}

// Handler HTTP处理器（已包含CORS）
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub 快照推送中心，需由调用者启动Run
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) geojson(w http.ResponseWriter, r *http.Request) {
	occupancy := map[int32]int32{}
	if state := s.ctx.CurrentState(); state != nil {
		occupancy = state.Occupancy()
	}
	fc := s.ctx.Network().GeoJSON(occupancy)
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		log.Warnf("write geojson: %v", err)
	}
}

// ListenAndServe 启动服务器，ctx结束时优雅关闭
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.hub.Run(hubCtx)

	srv := &http.Server{Addr: addr, Handler: s.handler}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Infof("server %s listening at %s", s.id, addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Infof("server %s closed", s.id)
	return nil
}

// Autoplay 按固定间隔自动推进
// 功能：直到仿真停止、到达步数上限或ctx结束
// 返回：到达步数上限或被停止时返回nil，其余错误原样返回
func (s *Server) Autoplay(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if _, err := s.ctx.Step(); err != nil {
			if errors.Is(err, task.ErrStopped) || errors.Is(err, task.ErrTickLimitReached) {
				log.Infof("autoplay finished: %v", err)
				return nil
			}
			return err
		}
	}
}
