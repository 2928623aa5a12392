package route

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/worldmodel"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
)

// CostFunc 路段代价函数
type CostFunc interface {
	// Cost 经过路段e的代价，travelled为到达路段起点前已行驶的距离；+Inf表示不可通行
	Cost(e *worldmodel.KnownEdge, travelled float64) float64
}

// Distance 按长度计算代价
type Distance struct{}

func (Distance) Cost(e *worldmodel.KnownEdge, _ float64) float64 {
	return e.Length
}

// Congestion 拥堵感知代价：长度 x (1 + 权重 x 占用/容量)
// 说明：占用来自世界模型中（可能过时的）感知值，过期时视为0
type Congestion struct {
	Weight float64
}

func (c Congestion) Cost(e *worldmodel.KnownEdge, _ float64) float64 {
	load := float64(e.Occupancy()) / float64(max(e.Capacity, 1))
	return e.Length * (1 + c.Weight*load)
}

// ChargeFeasible 电量可行性代价
// 功能：累计行驶距离所需电量超过当前电量的路段不可通行，其余按Base计算
type ChargeFeasible struct {
	Charge float64  // 当前电量
	Rate   float64  // 单位距离耗电
	Base   CostFunc // 可通行时的代价
}

func (c ChargeFeasible) Cost(e *worldmodel.KnownEdge, travelled float64) float64 {
	if (travelled+e.Length)*c.Rate > c.Charge {
		return math.Inf(1)
	}
	return c.Base.Cost(e, travelled)
}

// AvoidFull 绕行代价
// 功能：Blocked路段与感知到已满（未过期）的路段不可通行，其余按Base计算
type AvoidFull struct {
	Base    CostFunc
	Blocked int32 // 车辆前方持续拥堵的路段
}

func (c AvoidFull) Cost(e *worldmodel.KnownEdge, travelled float64) float64 {
	if e.ID == c.Blocked || e.Occupancy() >= e.Capacity {
		return math.Inf(1)
	}
	return c.Base.Cost(e, travelled)
}

// NewCost 按配置创建代价函数
// 参数：agent-车辆配置，charge-车辆当前电量（charge代价使用）
func NewCost(agent config.Agent, charge float64) (CostFunc, error) {
	switch agent.Cost {
	case config.CostDistance, "":
		return Distance{}, nil
	case config.CostCongestion:
		return Congestion{Weight: agent.CongestionWeight}, nil
	case config.CostCharge:
		return ChargeFeasible{Charge: charge, Rate: agent.Consumption, Base: Distance{}}, nil
	default:
		return nil, fmt.Errorf("unknown cost function %q", agent.Cost)
	}
}
