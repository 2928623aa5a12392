package agent

import (
	"errors"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/route"
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/worldmodel"
)

// perceive 感知
// 功能：读取上一步发布的快照，把感知半径内的节点、路段、充电桩、等待货物合并进世界模型
// 说明：只读共享快照，只写车辆私有的世界模型，可并发执行
func (a *Agent) perceive(tick int32) {
	rt := &a.snapshot
	cfg := &a.ctx.RuntimeConfig().C
	radius := cfg.Agent.PerceptionRadius * cfg.Network.CellLength
	cells := a.ctx.SpatialIndex().CellsWithin(a.position(rt), radius)

	traffic := a.ctx.Traffic()
	chargers := a.ctx.ChargerManager()
	cargo := a.ctx.CargoRegistry()
	p := worldmodel.Perception{
		Nodes: cells.Nodes,
		Edges: lo.Map(cells.Edges, func(id int32, _ int) worldmodel.EdgeObservation {
			return worldmodel.EdgeObservation{ID: id, Occupancy: traffic.SnapshotCount(id)}
		}),
	}
	for _, node := range cells.Nodes {
		if c, ok := chargers.SnapshotAt(node); ok {
			p.Chargers = append(p.Chargers, c)
		}
		p.Cargo = append(p.Cargo, cargo.SnapshotWaitingAt(node)...)
	}
	a.wm.Perceive(tick, p)
	a.wm.Refresh(tick)
}

// decide 决策阶段
// 功能：感知后根据状态快照产生本步意图
// 说明：不修改任何共享状态
func (a *Agent) decide() {
	if a.snapshot.Status == Stranded {
		a.intent = Intent{Kind: Nothing}
		return
	}
	a.perceive(a.ctx.Clock().Tick())
	a.intent = a.plan()
}

// plan 按状态选择意图
// 算法说明：
// 1. Idle：电量低于low_charge时，所在节点有充电桩则申请充电位，否则前往最近的已知充电桩；
// 找不到可达的充电桩时照常请求货物，同时附带世界模型中看到的货物和一跳随机漫游
// 2. Assigned：规划到货物起点（未取货）或终点（已取货）的路径；
// 未取货时连续失败达到route_retry_limit次则放弃货物，已取货时漫游一跳扩展世界模型
// 3. EnRoute：停在节点上且下一条路段连续route_retry_limit步已满时，绕开该路段重新规划
// 4. 其他状态直接对应行驶、卸货、充电、排队意图
func (a *Agent) plan() Intent {
	rt := &a.snapshot
	cfg := &a.ctx.RuntimeConfig().C.Agent
	switch rt.Status {
	case Idle:
		if rt.Charge < cfg.LowCharge*cfg.MaxCharge {
			if _, ok := a.ctx.ChargerManager().SnapshotAt(rt.Node); ok {
				return Intent{Kind: RequestCharge}
			}
			if p, err := a.routeToCharger(); err == nil {
				return Intent{Kind: SeekCharge, Path: p}
			}
		}
		return Intent{Kind: RequestCargo, Known: a.knownCargo(), Path: a.hop()}
	case Assigned:
		info, ok := a.ctx.CargoRegistry().Info(rt.Cargo)
		if !ok {
			log.Panicf("agent %d holds unknown cargo %d", a.id, rt.Cargo)
		}
		target := info.Origin
		if rt.Loaded {
			target = info.Destination
		}
		p, err := a.route(rt.Node, target)
		if err == nil {
			return Intent{Kind: Follow, Path: p}
		}
		if !errors.Is(err, route.ErrNoPathFound) {
			log.Panicf("agent %d: %v", a.id, err)
		}
		if !rt.Loaded && rt.Retries+1 >= cfg.RouteRetryLimit {
			return Intent{Kind: Release}
		}
		if rt.Loaded {
			return Intent{Kind: RouteFailed, Path: a.hop()}
		}
		return Intent{Kind: RouteFailed}
	case EnRoute:
		if rt.atNode() && !rt.routeDone() && rt.Blocked >= cfg.RouteRetryLimit {
			return a.reroute()
		}
		return Intent{Kind: Move, Budget: cfg.Speed}
	case Delivering:
		return Intent{Kind: Deliver}
	case Charging:
		return Intent{Kind: Charge}
	case Waiting:
		return Intent{Kind: Wait}
	default:
		return Intent{Kind: Nothing}
	}
}

func (a *Agent) cost() (route.CostFunc, error) {
	return route.NewCost(a.ctx.RuntimeConfig().C.Agent, a.snapshot.Charge)
}

// route 在世界模型上规划路径
func (a *Agent) route(from, to int32) (route.Path, error) {
	cost, err := a.cost()
	if err != nil {
		return route.Path{}, err
	}
	return route.Route(from, to, cost, a.wm)
}

// reroute 绕开前方已满的路段，重新规划到原路径终点的路径，找不到时寻路失败
func (a *Agent) reroute() Intent {
	rt := &a.snapshot
	base, err := a.cost()
	if err != nil {
		log.Panicf("agent %d: %v", a.id, err)
	}
	cost := route.AvoidFull{Base: base, Blocked: rt.Route.Edges[rt.RouteIndex]}
	p, err := route.Route(rt.Node, rt.Route.Target(), cost, a.wm)
	if err == nil {
		return Intent{Kind: Reroute, Path: p, Budget: a.ctx.RuntimeConfig().C.Agent.Speed}
	}
	if !errors.Is(err, route.ErrNoPathFound) {
		log.Panicf("agent %d: %v", a.id, err)
	}
	return Intent{Kind: RouteFailed}
}

// hop 漫游一跳
// 功能：在世界模型中所在节点的出边里随机选一条，有其他选择时不走回头路
// 返回：只含一条路段的路径，没有已知出边时为空路径
func (a *Agent) hop() route.Path {
	rt := &a.snapshot
	edges := a.wm.Neighbors(rt.Node)
	if forward := lo.Filter(edges, func(e *worldmodel.KnownEdge, _ int) bool { return e.To != rt.Prev }); len(forward) > 0 {
		edges = forward
	}
	if len(edges) == 0 {
		return route.Path{}
	}
	e := edges[a.rng.Intn(len(edges))]
	return route.Path{Nodes: []int32{rt.Node, e.To}, Edges: []int32{e.ID}, Cost: e.Length, Length: e.Length}
}

// knownCargo 世界模型中正在等待的货物ID
func (a *Agent) knownCargo() []int32 {
	return lo.Map(a.wm.Cargo(), func(c *worldmodel.KnownCargo, _ int) int32 { return c.ID })
}

// routeToCharger 前往最近的已知充电桩
func (a *Agent) routeToCharger() (route.Path, error) {
	cost, err := a.cost()
	if err != nil {
		return route.Path{}, err
	}
	nodes := lo.Map(a.wm.Chargers(), func(c *worldmodel.KnownCharger, _ int) int32 { return c.Node })
	return route.RouteToNearest(a.snapshot.Node, nodes, cost, a.wm)
}
