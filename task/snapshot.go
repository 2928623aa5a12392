package task

import (
	"github.com/paulmach/orb"
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent"
	"github.com/tsinghua-fib-lab/sossim-go/entity/cargo"
	"github.com/tsinghua-fib-lab/sossim-go/entity/charger"
	"github.com/tsinghua-fib-lab/sossim-go/entity/roadnet"
)

// NodeState 快照中的节点
type NodeState struct {
	ID          int32     `json:"id"`
	X           int32     `json:"x"`
	Y           int32     `json:"y"`
	Point       orb.Point `json:"point"`
	Destination bool      `json:"destination"`
}

// EdgeState 快照中的路段
type EdgeState struct {
	ID        int32             `json:"id"`
	From      int32             `json:"from"`
	To        int32             `json:"to"`
	Class     roadnet.RoadClass `json:"class"`
	Capacity  int32             `json:"capacity"`
	Length    float64           `json:"length"`
	Occupancy int32             `json:"occupancy"`
}

// NetworkState 快照中的路网
type NetworkState struct {
	Width      int32       `json:"width"`
	Height     int32       `json:"height"`
	CellLength float64     `json:"cell_length"`
	Nodes      []NodeState `json:"nodes"`
	Edges      []EdgeState `json:"edges"`
}

// Metrics 全局统计
type Metrics struct {
	agent.GlobalRuntime
	Cargo    cargo.Counts           `json:"cargo"`
	Statuses map[agent.Status]int32 `json:"statuses"` // 各状态车辆数
}

// Snapshot 某一步提交后的完整仿真状态
// 说明：发布后不再修改，切片均按ID排序
type Snapshot struct {
	Tick     int32          `json:"tick"`
	Time     float64        `json:"time"`
	Finished bool           `json:"finished"` // 已到达步数上限
	Stopped  bool           `json:"stopped"`
	Network  NetworkState   `json:"network"`
	Agents   []agent.View   `json:"agents"`
	Cargo    []cargo.View   `json:"cargo"`
	Chargers []charger.View `json:"chargers"`
	Metrics  Metrics        `json:"metrics"`
}

// Occupancy 路段ID -> 车辆数（只含非空路段）
func (s *Snapshot) Occupancy() map[int32]int32 {
	res := make(map[int32]int32)
	for _, e := range s.Network.Edges {
		if e.Occupancy > 0 {
			res[e.ID] = e.Occupancy
		}
	}
	return res
}

func newNetworkState(n *roadnet.Network) NetworkState {
	s := NetworkState{
		Width:      n.Width,
		Height:     n.Height,
		CellLength: n.CellLength,
		Nodes:      make([]NodeState, 0, len(n.Nodes())),
		Edges:      make([]EdgeState, 0, len(n.Edges())),
	}
	for _, node := range n.Nodes() {
		s.Nodes = append(s.Nodes, NodeState{
			ID:          node.ID,
			X:           node.X,
			Y:           node.Y,
			Point:       node.Point,
			Destination: node.Destination,
		})
	}
	for _, e := range n.Edges() {
		s.Edges = append(s.Edges, EdgeState{
			ID:       e.ID,
			From:     e.From,
			To:       e.To,
			Class:    e.Class,
			Capacity: e.Capacity,
			Length:   e.Length,
		})
	}
	return s
}

// buildSnapshot 由当前运行时状态生成快照
// 说明：节点列表在各快照间共享（不可变），路段列表每步复制以写入占用
func (ctx *Context) buildSnapshot() *Snapshot {
	network := ctx.staticNetwork
	network.Edges = make([]EdgeState, len(ctx.staticNetwork.Edges))
	for i, e := range ctx.staticNetwork.Edges {
		e.Occupancy = ctx.traffic.Count(e.ID)
		network.Edges[i] = e
	}
	return &Snapshot{
		Tick:     ctx.clock.Tick(),
		Time:     ctx.clock.T(),
		Finished: ctx.clock.Finished(),
		Stopped:  ctx.stopped.Load(),
		Network:  network,
		Agents:   ctx.agentManager.Views(),
		Cargo:    ctx.cargoRegistry.Views(),
		Chargers: ctx.chargerManager.Views(),
		Metrics: Metrics{
			GlobalRuntime: ctx.agentManager.Metrics(),
			Cargo:         ctx.cargoRegistry.Counts(),
			Statuses:      ctx.agentManager.StatusCounts(),
		},
	}
}
