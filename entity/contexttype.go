package entity

import (
	"github.com/tsinghua-fib-lab/sossim-go/clock"
	"github.com/tsinghua-fib-lab/sossim-go/entity/roadnet"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
)

// ITaskContext 仿真上下文
// 功能：车辆在决策与提交时通过它访问时钟、配置、路网与共享资源
type ITaskContext interface {
	Clock() *clock.Clock
	RuntimeConfig() *config.RuntimeConfig
	Network() *roadnet.Network
	SpatialIndex() *roadnet.SpatialIndex
	Traffic() *roadnet.Traffic
	CargoRegistry() ICargoRegistry
	ChargerManager() IChargerManager
}
