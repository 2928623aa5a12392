package agent

import (
	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/route"
)

// runtime 车辆运行时数据
// 功能：记录车辆在仿真中的全部可变状态
// 说明：需要可以被直接复制；Route中的切片创建后不再修改，只整体替换，浅拷贝是安全的
type runtime struct {
	Status Status

	Node     int32   // 所在节点，在路段上时为路段起点
	Prev     int32   // 上一个离开的节点，没有为-1
	Edge     int32   // 所在路段，在节点上时为-1
	Progress float64 // 在路段上已行驶的距离

	Charge float64 // 电量，始终在[0, max_charge]内

	Cargo  int32 // 负责的货物ID，没有为-1
	Loaded bool  // 货物是否已取到车上

	Goal       Goal
	Route      route.Path
	RouteIndex int // 下一条要驶入的路段在Route.Edges中的下标

	Retries   int32   // 连续寻路失败次数
	Blocked   int32   // 停在节点上连续因下一条路段已满而等待的步数
	WaitTicks int32   // 因容量冲突等待的总步数
	Distance  float64 // 累计行驶距离
}

// atNode 是否停在节点上
func (rt *runtime) atNode() bool {
	return rt.Edge < 0
}

// routeDone 路径上的路段是否已全部走完
func (rt *runtime) routeDone() bool {
	return rt.RouteIndex >= len(rt.Route.Edges)
}

// clearRoute 清除路径与目的
func (rt *runtime) clearRoute() {
	rt.Route = route.Path{}
	rt.RouteIndex = 0
	rt.Goal = NoGoal
	rt.Blocked = 0
}

// follow 换用新路径
func (rt *runtime) follow(p route.Path, goal Goal) {
	rt.Route = p
	rt.RouteIndex = 0
	rt.Goal = goal
	rt.Blocked = 0
	rt.Status = EnRoute
}
