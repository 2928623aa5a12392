package entity

// Manager依赖倒置
// 说明：Snapshot开头的方法只读取Prepare时发布的快照，决策阶段可并发调用；
// 其余方法修改运行时状态，只允许调度器在提交阶段串行调用

// entity/cargo/registry.go的依赖倒置
type ICargoRegistry interface {
	// 快照中在指定节点等待的货物（按ID排序）
	SnapshotWaitingAt(node int32) []CargoInfo
	// 货物信息，不存在时返回false
	Info(id int32) (CargoInfo, bool)

	// 为位于node的车辆匹配最近的等待货物
	Match(agent, node int32) (CargoInfo, bool)
	// 在车辆世界模型中看到的货物里匹配最近的等待货物
	MatchKnown(node int32, ids []int32) (CargoInfo, bool)
	// 等待中的货物数
	Waiting() int32
	// 分配货物给车辆
	Assign(id, agent int32) error
	// 车辆放弃尚未取走的货物
	Release(id, agent int32) error
	// 车辆在起点取货
	PickUp(id, agent int32) error
	// 车辆在终点送达，每件货物至多一次
	MarkDelivered(id, agent int32) error
}

// entity/charger/manager.go的依赖倒置
type IChargerManager interface {
	// 快照中指定节点上的充电桩
	SnapshotAt(node int32) (ChargerInfo, bool)
	// 所有充电桩（按ID排序）的快照
	SnapshotAll() []ChargerInfo

	// 在节点上的充电桩申请充电位，返回是否立即获得
	Request(node, agent int32) (granted bool, err error)
	// 释放充电位，返回被提升的排队车辆
	Release(node, agent int32) (promoted int32, ok bool, err error)
	// 车辆是否正占用节点上充电桩的充电位
	IsOccupant(node, agent int32) bool
}
