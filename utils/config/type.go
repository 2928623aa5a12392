package config

// Coordinate 网格坐标
// 说明：YAML中写作 [x, y]
type Coordinate [2]int32

// X 横坐标
func (c Coordinate) X() int32 { return c[0] }

// Y 纵坐标
func (c Coordinate) Y() int32 { return c[1] }

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真步数控制参数
// 说明：步数从0开始，Total为最大步数（tick limit），Interval仅用于把步数换算为时间
type ControlStep struct {
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步对应的时间间隔（秒）
}

// Control 模拟器控制配置
// 功能：定义随机种子、步数、决策阶段并发度等核心控制参数
type Control struct {
	Seed      uint64      `yaml:"seed"`      // 随机种子
	Step      ControlStep `yaml:"step"`      // 步数控制
	Workers   int         `yaml:"workers"`   // 决策阶段并发数，1为串行
	Heartbeat int32       `yaml:"heartbeat"` // 心跳日志间隔步数
}

// Network 路网生成配置
// 功能：定义网格尺寸、主干道覆盖率、支路密度等参数
type Network struct {
	Width              int32   `yaml:"width"`               // 网格宽度
	Height             int32   `yaml:"height"`              // 网格高度
	CellLength         float64 `yaml:"cell_length"`         // 网格边长（距离单位）
	Coverage           float64 `yaml:"coverage"`            // 主干道覆盖的网格比例（road density）
	FineDensity        float64 `yaml:"fine_density"`        // 支路生成概率
	OneWayRatio        float64 `yaml:"one_way_ratio"`       // 支路为单行道的概率
	DestinationDensity float64 `yaml:"destination_density"` // 节点成为目的地的概率
	CoarseCapacity     int32   `yaml:"coarse_capacity"`     // 主干道每条有向边的同时容量
	FineCapacity       int32   `yaml:"fine_capacity"`       // 支路每条有向边的同时容量
}

// Agent 车辆智能体配置
type Agent struct {
	Count            int32        `yaml:"count"`              // 车辆数
	Speed            float64      `yaml:"speed"`              // 每步行驶距离
	MaxCharge        float64      `yaml:"max_charge"`         // 电量上限
	InitialChargeMin float64      `yaml:"initial_charge_min"` // 初始电量下限（占上限比例）
	InitialChargeMax float64      `yaml:"initial_charge_max"` // 初始电量上限（占上限比例）
	Consumption      float64      `yaml:"consumption"`        // 单位距离耗电
	ChargeRate       float64      `yaml:"charge_rate"`        // 每步充电量
	LowCharge        float64      `yaml:"low_charge"`         // 低电量阈值（占上限比例）
	ResumeCharge     float64      `yaml:"resume_charge"`      // 充电结束阈值（占上限比例）
	PerceptionRadius float64      `yaml:"perception_radius"`  // 感知半径（网格单位）
	RouteRetryLimit  int32        `yaml:"route_retry_limit"`  // 连续寻路失败后释放货物的次数
	Cost             string       `yaml:"cost"`               // 路径代价：distance|congestion|charge
	CongestionWeight float64      `yaml:"congestion_weight"`  // 拥堵代价权重
	Start            []Coordinate `yaml:"start,omitempty"`    // 指定初始位置，不足部分随机
}

// WorldModel 智能体世界模型配置
type WorldModel struct {
	Staleness int32  `yaml:"staleness"` // 信息过期窗口（步）
	Prior     string `yaml:"prior"`     // 先验知识：none|coarse|full
}

// CargoSpec 指定一件初始货物
type CargoSpec struct {
	Origin      Coordinate `yaml:"origin"`
	Destination Coordinate `yaml:"destination"`
}

// Cargo 货物生成配置
type Cargo struct {
	Count         int32       `yaml:"count"`             // 初始随机货物数
	SpawnInterval int32       `yaml:"spawn_interval"`    // 周期生成间隔（步），0为不生成
	SpawnCount    int32       `yaml:"spawn_count"`       // 每次周期生成的货物数
	Initial       []CargoSpec `yaml:"initial,omitempty"` // 指定的初始货物
}

// Charger 充电桩配置
type Charger struct {
	Count     int32        `yaml:"count"`               // 随机放置的充电桩数量
	Capacity  int32        `yaml:"capacity"`            // 每个充电桩可同时充电的车辆数
	Positions []Coordinate `yaml:"positions,omitempty"` // 指定位置，优先于Count
}

// Mongo MongoDB输出配置
type Mongo struct {
	URI string `yaml:"uri"` // MongoDB连接字符串，为空则不输出
	DB  string `yaml:"db"`  // 数据库名
	Col string `yaml:"col"` // 集合名
}

// Output 输出配置
type Output struct {
	Dir      string `yaml:"dir,omitempty"` // 归档目录，为空则不输出
	Interval int32  `yaml:"interval"`      // 记录间隔步数
	Mongo    Mongo  `yaml:"mongo"`
}

// Config YAML配置文件的根结构
// 功能：定义整个仿真系统的配置结构
// 说明：按所属组件分节，构造时校验一次，此后只读
type Config struct {
	Control    Control    `yaml:"control"`
	Network    Network    `yaml:"network"`
	Agent      Agent      `yaml:"agent"`
	WorldModel WorldModel `yaml:"world_model"`
	Cargo      Cargo      `yaml:"cargo"`
	Charger    Charger    `yaml:"charger"`
	Output     Output     `yaml:"output"`
}
