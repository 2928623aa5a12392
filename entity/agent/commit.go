package agent

import (
	"fmt"

	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/route"
)

const eps = 1e-9

// commit 提交阶段：执行本步意图
// 说明：由Manager.Commit按车辆ID顺序串行调用，所有共享资源的修改都发生在这里
func (a *Agent) commit() error {
	rt := &a.runtime
	switch a.intent.Kind {
	case Nothing:
	case RequestCargo:
		reg := a.ctx.CargoRegistry()
		info, ok := reg.MatchKnown(rt.Node, a.intent.Known)
		if !ok {
			info, ok = reg.Match(a.id, rt.Node)
		}
		if !ok {
			if reg.Waiting() > 0 {
				a.explore(a.intent.Path)
			}
			return nil
		}
		if err := reg.Assign(info.ID, a.id); err != nil {
			return err
		}
		rt.Cargo = info.ID
		rt.Loaded = false
		rt.Retries = 0
		rt.Status = Assigned
	case Follow, SeekCharge:
		rt.Retries = 0
		switch {
		case a.intent.Kind == SeekCharge:
			rt.follow(a.intent.Path, Recharge)
		case rt.Loaded:
			rt.follow(a.intent.Path, Delivery)
		default:
			rt.follow(a.intent.Path, Pickup)
		}
		if rt.Route.Empty() {
			return a.arrive()
		}
	case Reroute:
		rt.follow(a.intent.Path, rt.Goal)
		a.manager.runtime.Reroutes++
		return a.move(a.intent.Budget)
	case RouteFailed:
		a.manager.runtime.NoPath++
		if rt.Status == EnRoute {
			// 绕行失败，继续在原地等待前方路段
			rt.Blocked = 0
			a.contend()
			return nil
		}
		rt.Retries++
		a.explore(a.intent.Path)
	case Release:
		if err := a.ctx.CargoRegistry().Release(rt.Cargo, a.id); err != nil {
			return err
		}
		rt.Cargo = -1
		rt.Retries = 0
		rt.Status = Idle
		a.manager.runtime.Released++
	case Move:
		return a.move(a.intent.Budget)
	case Deliver:
		if err := a.ctx.CargoRegistry().MarkDelivered(rt.Cargo, a.id); err != nil {
			return err
		}
		log.Debugf("agent %d delivered cargo %d", a.id, rt.Cargo)
		rt.Cargo = -1
		rt.Loaded = false
		rt.Status = Idle
		a.manager.runtime.Delivered++
	case RequestCharge:
		return a.requestCharge()
	case Charge:
		return a.charge()
	case Wait:
		if a.ctx.ChargerManager().IsOccupant(rt.Node, a.id) {
			rt.Status = Charging
			return nil
		}
		a.contend()
	default:
		return fmt.Errorf("agent %d: unknown intent %v", a.id, a.intent)
	}
	return nil
}

// move 沿路径行驶
// 功能：在本步距离预算内逐段前进，到达路径终点时执行到达逻辑
// 算法说明：
// 1. 停在节点上时，下一条路段已满则原地等待（计一次冲突和一次连续拥堵）
// 2. 电量不足以走完本段剩余距离时，走到电量耗尽处并进入Stranded
// 3. 走完一条路段后离开路段，停在其终点节点上
func (a *Agent) move(budget float64) error {
	rt := &a.runtime
	net := a.ctx.Network()
	traffic := a.ctx.Traffic()
	consumption := a.ctx.RuntimeConfig().C.Agent.Consumption
	for {
		if rt.atNode() {
			if rt.routeDone() {
				return a.arrive()
			}
			if budget <= eps {
				return nil
			}
			e := net.Edge(rt.Route.Edges[rt.RouteIndex])
			if traffic.Count(e.ID) >= e.Capacity {
				rt.Blocked++
				a.contend()
				return nil
			}
			if consumption > 0 && rt.Charge <= 0 {
				a.strand()
				return nil
			}
			if err := traffic.Enter(a.id, e.ID, 0); err != nil {
				return err
			}
			rt.Edge = e.ID
			rt.Progress = 0
			rt.Blocked = 0
		}
		if budget <= eps {
			return nil
		}
		e := net.Edge(rt.Edge)
		step := min(budget, e.Length-rt.Progress)
		if step*consumption > rt.Charge {
			step = rt.Charge / consumption
			rt.Charge = 0
			rt.Progress += step
			rt.Distance += step
			a.manager.runtime.Distance += step
			traffic.Move(a.id, rt.Progress)
			a.strand()
			return nil
		}
		rt.Charge -= step * consumption
		rt.Progress += step
		rt.Distance += step
		a.manager.runtime.Distance += step
		budget -= step
		if rt.Progress >= e.Length-eps {
			traffic.Leave(a.id)
			rt.Prev = e.From
			rt.Node = e.To
			rt.Edge = -1
			rt.Progress = 0
			rt.RouteIndex++
		} else {
			traffic.Move(a.id, rt.Progress)
		}
	}
}

// arrive 到达路径终点
func (a *Agent) arrive() error {
	rt := &a.runtime
	goal := rt.Goal
	rt.clearRoute()
	switch goal {
	case Pickup:
		if err := a.ctx.CargoRegistry().PickUp(rt.Cargo, a.id); err != nil {
			return err
		}
		rt.Loaded = true
		rt.Status = Assigned
	case Delivery:
		rt.Status = Delivering
	case Recharge:
		return a.requestCharge()
	case Explore:
		if rt.Cargo >= 0 {
			rt.Status = Assigned
		} else {
			rt.Status = Idle
		}
	default:
		rt.Status = Idle
	}
	return nil
}

// explore 沿漫游路径出发，空路径时留在原状态
func (a *Agent) explore(p route.Path) {
	if p.Empty() {
		return
	}
	a.runtime.follow(p, Explore)
	a.manager.runtime.Explorations++
}

// requestCharge 在所在节点的充电桩申请充电位
func (a *Agent) requestCharge() error {
	rt := &a.runtime
	granted, err := a.ctx.ChargerManager().Request(rt.Node, a.id)
	if err != nil {
		return err
	}
	if granted {
		rt.Status = Charging
		return nil
	}
	rt.Status = Waiting
	a.contend()
	return nil
}

// charge 充电，达到resume_charge后释放充电位
func (a *Agent) charge() error {
	rt := &a.runtime
	cfg := &a.ctx.RuntimeConfig().C.Agent
	rt.Charge = min(cfg.MaxCharge, rt.Charge+cfg.ChargeRate)
	if rt.Charge < cfg.ResumeCharge*cfg.MaxCharge {
		return nil
	}
	promoted, ok, err := a.ctx.ChargerManager().Release(rt.Node, a.id)
	if err != nil {
		return err
	}
	if ok {
		log.Debugf("agent %d left charger at node %d, agent %d promoted", a.id, rt.Node, promoted)
	}
	rt.Status = Idle
	return nil
}

// contend 因容量冲突等待
func (a *Agent) contend() {
	a.runtime.WaitTicks++
	a.manager.runtime.ContentionWaits++
}

// strand 电量耗尽
func (a *Agent) strand() {
	rt := &a.runtime
	rt.Status = Stranded
	a.manager.runtime.Stranded++
	log.Infof("agent %d stranded at node %d edge %d with cargo %d", a.id, rt.Node, rt.Edge, rt.Cargo)
}
