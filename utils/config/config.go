package config

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

const (
	CostDistance   = "distance"
	CostCongestion = "congestion"
	CostCharge     = "charge"

	PriorNone   = "none"
	PriorCoarse = "coarse"
	PriorFull   = "full"
)

// Default 默认配置
// 功能：返回所有参数均为默认值的配置
// 说明：加载配置文件时以默认配置为底，文件中省略的项保持默认值
func Default() Config {
	return Config{
		Control: Control{
			Seed:      0,
			Step:      ControlStep{Total: 1000, Interval: 1},
			Workers:   1,
			Heartbeat: 100,
		},
		Network: Network{
			Width:              10,
			Height:             10,
			CellLength:         1,
			Coverage:           0.6,
			FineDensity:        0.3,
			OneWayRatio:        0.5,
			DestinationDensity: 0.3,
			CoarseCapacity:     4,
			FineCapacity:       2,
		},
		Agent: Agent{
			Count:            10,
			Speed:            1,
			MaxCharge:        100,
			InitialChargeMin: 0.2,
			InitialChargeMax: 1,
			Consumption:      1,
			ChargeRate:       10,
			LowCharge:        0.3,
			ResumeCharge:     0.9,
			PerceptionRadius: 2,
			RouteRetryLimit:  5,
			Cost:             CostDistance,
			CongestionWeight: 1,
		},
		WorldModel: WorldModel{
			Staleness: 10,
			Prior:     PriorCoarse,
		},
		Cargo: Cargo{
			Count:         10,
			SpawnInterval: 0,
			SpawnCount:    1,
		},
		Charger: Charger{
			Count:    2,
			Capacity: 1,
		},
		Output: Output{
			Interval: 1,
			Mongo:    Mongo{DB: "sossim", Col: "states"},
		},
	}
}

// Load 从YAML数据加载配置
// 功能：以默认配置为底严格解析YAML（未知字段报错）
// 参数：data-YAML数据
// 返回：配置，错误信息
// 说明：只做解析，不做校验，校验由Validate完成
func Load(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("config load err: %w", err)
	}
	return c, nil
}

// Dump 将配置序列化为YAML
func Dump(c Config) ([]byte, error) {
	return yaml.Marshal(c)
}

// RuntimeConfig 运行时配置
// 功能：包装校验通过的配置，各组件以指针只读持有
// 说明：构造后不再修改
type RuntimeConfig struct {
	C Config
}

// NewRuntimeConfig 校验配置并创建运行时配置
// 功能：调用Validate，全部通过后返回运行时配置
// 参数：c-原始配置
// 返回：运行时配置指针，校验失败时返回*ConfigurationError
func NewRuntimeConfig(c Config) (*RuntimeConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	rc := &RuntimeConfig{C: c}
	// 切片深拷贝，避免调用方修改
	rc.C.Agent.Start = append([]Coordinate(nil), c.Agent.Start...)
	rc.C.Cargo.Initial = append([]CargoSpec(nil), c.Cargo.Initial...)
	rc.C.Charger.Positions = append([]Coordinate(nil), c.Charger.Positions...)
	return rc, nil
}
