package entity

import "fmt"

// CargoInfo 货物的只读信息，决策阶段通过快照获得
type CargoInfo struct {
	ID          int32 `json:"id"`
	Origin      int32 `json:"origin"`      // 起点节点ID
	Destination int32 `json:"destination"` // 终点节点ID
}

func (c CargoInfo) String() string {
	return fmt.Sprintf("Cargo{ID=%d, %d->%d}", c.ID, c.Origin, c.Destination)
}

// ChargerInfo 充电桩的只读信息，决策阶段通过快照获得
type ChargerInfo struct {
	ID        int32 `json:"id"`
	Node      int32 `json:"node"`      // 所在节点ID
	Capacity  int32 `json:"capacity"`  // 可同时充电的车辆数
	Occupants int32 `json:"occupants"` // 正在充电的车辆数
	Queue     int32 `json:"queue"`     // 排队车辆数
}

// Free 是否有空闲充电位且无人排队
func (c ChargerInfo) Free() bool {
	return c.Occupants < c.Capacity && c.Queue == 0
}
