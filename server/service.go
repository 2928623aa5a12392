package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent"
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/worldmodel"
	"github.com/tsinghua-fib-lab/sossim-go/entity/cargo"
	"github.com/tsinghua-fib-lab/sossim-go/task"
	"github.com/tsinghua-fib-lab/sossim-go/utils"
)

const (
	// SimulationServiceName 仿真控制与查询服务名
	SimulationServiceName = "sossim.v1.SimulationService"

	GetSnapshotProcedure   = "/" + SimulationServiceName + "/GetSnapshot"
	StepProcedure          = "/" + SimulationServiceName + "/Step"
	RunProcedure           = "/" + SimulationServiceName + "/Run"
	StopProcedure          = "/" + SimulationServiceName + "/Stop"
	GetAgentProcedure      = "/" + SimulationServiceName + "/GetAgent"
	GetWorldModelProcedure = "/" + SimulationServiceName + "/GetWorldModel"
	GetCargoProcedure      = "/" + SimulationServiceName + "/GetCargo"
	ListAgentsProcedure    = "/" + SimulationServiceName + "/ListAgents"
	ListCargoProcedure     = "/" + SimulationServiceName + "/ListCargo"
)

type GetSnapshotRequest struct{}

type StepRequest struct{}

type RunRequest struct {
	Ticks int `json:"ticks"`
}

type StopRequest struct{}

type StopResponse struct {
	Tick int32 `json:"tick"`
}

type GetAgentRequest struct {
	ID int32 `json:"id"`
}

type GetCargoRequest struct {
	ID int32 `json:"id"`
}

// ListRequest 批量查询请求，IDs为空时返回全部
type ListRequest struct {
	IDs []int32 `json:"ids"`
}

type ListAgentsResponse struct {
	Tick   int32        `json:"tick"`
	Agents []agent.View `json:"agents"`
}

type ListCargoResponse struct {
	Tick  int32        `json:"tick"`
	Cargo []cargo.View `json:"cargo"`
}

// Service 仿真服务
// 功能：把调度器的步进、停止与只读查询接口暴露为connect RPC
type Service struct {
	ctx *task.Context
}

// NewService 创建仿真服务
func NewService(ctx *task.Context) *Service {
	return &Service{ctx: ctx}
}

// Handler 生成服务的HTTP处理器
// 参数：opts-connect处理器选项（编解码器等）
// 返回：挂载路径与处理器
func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(GetSnapshotProcedure, connect.NewUnaryHandler(GetSnapshotProcedure, s.GetSnapshot, opts...))
	mux.Handle(StepProcedure, connect.NewUnaryHandler(StepProcedure, s.Step, opts...))
	mux.Handle(RunProcedure, connect.NewUnaryHandler(RunProcedure, s.Run, opts...))
	mux.Handle(StopProcedure, connect.NewUnaryHandler(StopProcedure, s.Stop, opts...))
	mux.Handle(GetAgentProcedure, connect.NewUnaryHandler(GetAgentProcedure, s.GetAgent, opts...))
	mux.Handle(GetWorldModelProcedure, connect.NewUnaryHandler(GetWorldModelProcedure, s.GetWorldModel, opts...))
	mux.Handle(GetCargoProcedure, connect.NewUnaryHandler(GetCargoProcedure, s.GetCargo, opts...))
	mux.Handle(ListAgentsProcedure, connect.NewUnaryHandler(ListAgentsProcedure, s.ListAgents, opts...))
	mux.Handle(ListCargoProcedure, connect.NewUnaryHandler(ListCargoProcedure, s.ListCargo, opts...))
	return "/" + SimulationServiceName + "/", mux
}

// connectError 把调度器错误映射为connect错误码
func connectError(err error) error {
	switch {
	case errors.Is(err, task.ErrInvalidTickCount):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, task.ErrStopped), errors.Is(err, task.ErrTickLimitReached):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, task.ErrUnknownAgent), errors.Is(err, task.ErrUnknownCargo):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// GetSnapshot 获取最近一次发布的快照
func (s *Service) GetSnapshot(ctx context.Context, req *connect.Request[GetSnapshotRequest]) (*connect.Response[task.Snapshot], error) {
	return connect.NewResponse(s.ctx.CurrentState()), nil
}

// Step 推进一步
func (s *Service) Step(ctx context.Context, req *connect.Request[StepRequest]) (*connect.Response[task.Snapshot], error) {
	snapshot, err := s.ctx.Step()
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(snapshot), nil
}

// Run 推进多步
func (s *Service) Run(ctx context.Context, req *connect.Request[RunRequest]) (*connect.Response[task.Snapshot], error) {
	snapshot, err := s.ctx.Run(req.Msg.Ticks)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(snapshot), nil
}

// Stop 停止仿真
func (s *Service) Stop(ctx context.Context, req *connect.Request[StopRequest]) (*connect.Response[StopResponse], error) {
	s.ctx.Stop()
	return connect.NewResponse(&StopResponse{Tick: s.ctx.Clock().Tick()}), nil
}

// GetAgent 获取车辆状态
func (s *Service) GetAgent(ctx context.Context, req *connect.Request[GetAgentRequest]) (*connect.Response[agent.View], error) {
	v, err := s.ctx.AgentView(req.Msg.ID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&v), nil
}

// GetWorldModel 获取车辆的世界模型
func (s *Service) GetWorldModel(ctx context.Context, req *connect.Request[GetAgentRequest]) (*connect.Response[worldmodel.View], error) {
	v, err := s.ctx.WorldModelView(req.Msg.ID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&v), nil
}

// GetCargo 获取货物状态
func (s *Service) GetCargo(ctx context.Context, req *connect.Request[GetCargoRequest]) (*connect.Response[cargo.View], error) {
	v, err := s.ctx.CargoView(req.Msg.ID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&v), nil
}

// ListAgents 从最近一次发布的快照中批量获取车辆状态
// 返回：任一ID不存在时返回NotFound，并列出所有不存在的ID
func (s *Service) ListAgents(ctx context.Context, req *connect.Request[ListRequest]) (*connect.Response[ListAgentsResponse], error) {
	state := s.ctx.CurrentState()
	agents, failed := utils.Find(state.Agents, func(v agent.View) int32 { return v.ID }, req.Msg.IDs)
	if len(failed) > 0 {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("%w: %v", task.ErrUnknownAgent, failed))
	}
	return connect.NewResponse(&ListAgentsResponse{Tick: state.Tick, Agents: agents}), nil
}

// ListCargo 从最近一次发布的快照中批量获取货物状态
func (s *Service) ListCargo(ctx context.Context, req *connect.Request[ListRequest]) (*connect.Response[ListCargoResponse], error) {
	state := s.ctx.CurrentState()
	list, failed := utils.Find(state.Cargo, func(v cargo.View) int32 { return v.ID }, req.Msg.IDs)
	if len(failed) > 0 {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("%w: %v", task.ErrUnknownCargo, failed))
	}
	return connect.NewResponse(&ListCargoResponse{Tick: state.Tick, Cargo: list}), nil
}
