package agent

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/tsinghua-fib-lab/sossim-go/entity"
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/worldmodel"
	"github.com/tsinghua-fib-lab/sossim-go/utils/randengine"
)

// Agent 车辆
// 功能：每步先感知、决策产生意图（只读），再由调度器在提交阶段按ID顺序执行意图
// 说明：runtime只在提交阶段写入，snapshot在准备阶段从runtime复制，决策阶段只读snapshot
type Agent struct {
	ctx     entity.ITaskContext
	manager *Manager

	id  int32
	wm  *worldmodel.WorldModel
	rng *randengine.Engine // 漫游用，只在决策阶段由本车辆使用

	runtime, snapshot runtime
	intent            Intent // 本步决策结果
}

func newAgent(ctx entity.ITaskContext, m *Manager, id, node int32, charge float64, wm *worldmodel.WorldModel) *Agent {
	a := &Agent{
		ctx:     ctx,
		manager: m,
		id:      id,
		wm:      wm,
		runtime: runtime{
			Status: Idle,
			Node:   node,
			Prev:   -1,
			Edge:   -1,
			Charge: charge,
			Cargo:  -1,
		},
	}
	a.snapshot = a.runtime
	return a
}

func (a *Agent) String() string {
	return fmt.Sprintf("Agent{ID=%d, %v, node=%d, edge=%d, charge=%.2f}", a.id, a.runtime.Status, a.runtime.Node, a.runtime.Edge, a.runtime.Charge)
}

func (a *Agent) ID() int32 {
	return a.id
}

// Status 当前状态（提交后的运行时值）
func (a *Agent) Status() Status {
	return a.runtime.Status
}

// Charge 当前电量
func (a *Agent) Charge() float64 {
	return a.runtime.Charge
}

// Node 所在节点（在路段上时为路段起点）
func (a *Agent) Node() int32 {
	return a.runtime.Node
}

// Cargo 负责的货物ID，没有为-1
func (a *Agent) Cargo() int32 {
	return a.runtime.Cargo
}

// Intent 最近一次决策的意图
func (a *Agent) Intent() Intent {
	return a.intent
}

// WorldModel 车辆的世界模型
func (a *Agent) WorldModel() *worldmodel.WorldModel {
	return a.wm
}

// position 车辆的平面坐标
func (a *Agent) position(rt *runtime) orb.Point {
	net := a.ctx.Network()
	if rt.atNode() {
		return net.Node(rt.Node).Point
	}
	return net.Edge(rt.Edge).PointAt(rt.Progress)
}

// prepare 准备阶段：复制运行时数据到快照
func (a *Agent) prepare() {
	a.snapshot = a.runtime
}

// View 车辆的只读副本
type View struct {
	ID         int32     `json:"id"`
	Status     Status    `json:"status"`
	Position   orb.Point `json:"position"`
	Node       int32     `json:"node"`
	Edge       int32     `json:"edge"`
	Progress   float64   `json:"progress"`
	Charge     float64   `json:"charge"`
	Cargo      int32     `json:"cargo"`
	Loaded     bool      `json:"loaded"`
	Goal       Goal      `json:"goal"`
	Route      []int32   `json:"route"`       // 路径节点
	RouteIndex int       `json:"route_index"` // 下一条要驶入的路段下标
	Retries    int32     `json:"retries"`
	WaitTicks  int32     `json:"wait_ticks"`
	Blocked    int32     `json:"blocked"`
	Distance   float64   `json:"distance"`
}

// View 生成只读副本
func (a *Agent) View() View {
	rt := &a.runtime
	return View{
		ID:         a.id,
		Status:     rt.Status,
		Position:   a.position(rt),
		Node:       rt.Node,
		Edge:       rt.Edge,
		Progress:   rt.Progress,
		Charge:     rt.Charge,
		Cargo:      rt.Cargo,
		Loaded:     rt.Loaded,
		Goal:       rt.Goal,
		Route:      append([]int32(nil), rt.Route.Nodes...),
		RouteIndex: rt.RouteIndex,
		Retries:    rt.Retries,
		WaitTicks:  rt.WaitTicks,
		Blocked:    rt.Blocked,
		Distance:   rt.Distance,
	}
}
