package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
)

// Violation 单条配置校验失败
type Violation struct {
	Field      string `json:"field"`      // 参数路径，如 network.width
	Value      any    `json:"value"`      // 实际值
	Constraint string `json:"constraint"` // 违反的约束
}

func (v Violation) String() string {
	return fmt.Sprintf("%s=%v: %s", v.Field, v.Value, v.Constraint)
}

// ConfigurationError 配置错误
// 功能：在创建任何仿真状态之前报告所有违反约束的参数
// 说明：也用于路网生成无法满足参数的情况
type ConfigurationError struct {
	Violations []Violation
}

func (e *ConfigurationError) Error() string {
	parts := lo.Map(e.Violations, func(v Violation, _ int) string { return v.String() })
	return "configuration error: " + strings.Join(parts, "; ")
}

// NewConfigurationError 创建只包含一条违反项的配置错误
func NewConfigurationError(field string, value any, constraint string) *ConfigurationError {
	return &ConfigurationError{Violations: []Violation{{Field: field, Value: value, Constraint: constraint}}}
}

// checker 累积校验结果
type checker struct {
	violations []Violation
}

func (c *checker) add(field string, value any, constraint string) {
	c.violations = append(c.violations, Violation{Field: field, Value: value, Constraint: constraint})
}

func (c *checker) check(ok bool, field string, value any, constraint string) {
	if !ok {
		c.add(field, value, constraint)
	}
}

func (c *checker) unit(field string, v float64) {
	c.check(v >= 0 && v <= 1, field, v, "must be in [0, 1]")
}

func (c *checker) inGrid(field string, p Coordinate, n Network) {
	c.check(p.X() >= 0 && p.Y() >= 0 && p.X() < n.Width && p.Y() < n.Height,
		field, p, fmt.Sprintf("must lie inside the %dx%d grid", n.Width, n.Height))
}

func (c *checker) err() error {
	if len(c.violations) == 0 {
		return nil
	}
	return &ConfigurationError{Violations: c.violations}
}

func (c *checker) network(n Network) {
	c.check(n.Width >= 2, "network.width", n.Width, "must be >= 2")
	c.check(n.Height >= 2, "network.height", n.Height, "must be >= 2")
	c.check(n.CellLength > 0, "network.cell_length", n.CellLength, "must be > 0")
	c.check(n.Coverage > 0 && n.Coverage <= 1, "network.coverage", n.Coverage, "must be in (0, 1]")
	if n.Width >= 2 && n.Height >= 2 && n.Coverage > 0 && n.Coverage <= 1 {
		c.check(TargetNodes(n) >= 2, "network.coverage", n.Coverage, "must yield at least 2 connected cells")
	}
	c.unit("network.fine_density", n.FineDensity)
	c.unit("network.one_way_ratio", n.OneWayRatio)
	c.unit("network.destination_density", n.DestinationDensity)
	c.check(n.CoarseCapacity >= 1, "network.coarse_capacity", n.CoarseCapacity, "must be >= 1")
	c.check(n.FineCapacity >= 1, "network.fine_capacity", n.FineCapacity, "must be >= 1")
}

// Validate 只校验路网生成参数
func (n Network) Validate() error {
	ck := &checker{}
	ck.network(n)
	return ck.err()
}

// Validate 校验配置
// 功能：检查所有参数的取值范围与相互约束，一次性返回全部违反项
// 返回：nil或*ConfigurationError
func (c Config) Validate() error {
	ck := &checker{}

	ctl := c.Control
	ck.check(ctl.Step.Total >= 1, "control.step.total", ctl.Step.Total, "must be >= 1")
	ck.check(ctl.Step.Interval > 0, "control.step.interval", ctl.Step.Interval, "must be > 0")
	ck.check(ctl.Workers >= 1, "control.workers", ctl.Workers, "must be >= 1")
	ck.check(ctl.Heartbeat >= 1, "control.heartbeat", ctl.Heartbeat, "must be >= 1")

	n := c.Network
	ck.network(n)

	a := c.Agent
	ck.check(a.Count >= 0, "agent.count", a.Count, "must be >= 0")
	if n.Width >= 2 && n.Height >= 2 && n.Coverage > 0 && n.Coverage <= 1 {
		ck.check(int(a.Count) <= TargetNodes(n), "agent.count", a.Count,
			fmt.Sprintf("grid too small: at most %d agents for %d road cells", TargetNodes(n), TargetNodes(n)))
	}
	ck.check(a.Speed > 0, "agent.speed", a.Speed, "must be > 0")
	ck.check(a.MaxCharge > 0, "agent.max_charge", a.MaxCharge, "must be > 0")
	ck.unit("agent.initial_charge_min", a.InitialChargeMin)
	ck.unit("agent.initial_charge_max", a.InitialChargeMax)
	ck.check(a.InitialChargeMin <= a.InitialChargeMax, "agent.initial_charge_min", a.InitialChargeMin, "must be <= agent.initial_charge_max")
	ck.check(a.Consumption >= 0, "agent.consumption", a.Consumption, "must be >= 0")
	ck.check(a.ChargeRate > 0, "agent.charge_rate", a.ChargeRate, "must be > 0")
	ck.unit("agent.low_charge", a.LowCharge)
	ck.check(a.ResumeCharge > a.LowCharge && a.ResumeCharge <= 1, "agent.resume_charge", a.ResumeCharge, "must be in (agent.low_charge, 1]")
	ck.check(a.PerceptionRadius >= 0, "agent.perception_radius", a.PerceptionRadius, "must be >= 0")
	ck.check(a.RouteRetryLimit >= 1, "agent.route_retry_limit", a.RouteRetryLimit, "must be >= 1")
	ck.check(lo.Contains([]string{CostDistance, CostCongestion, CostCharge}, a.Cost), "agent.cost", a.Cost, "must be one of distance, congestion, charge")
	ck.check(a.CongestionWeight >= 0, "agent.congestion_weight", a.CongestionWeight, "must be >= 0")
	ck.check(len(a.Start) <= int(max(a.Count, 0)), "agent.start", len(a.Start), "must not list more positions than agent.count")
	for i, p := range a.Start {
		ck.inGrid(fmt.Sprintf("agent.start[%d]", i), p, n)
	}

	w := c.WorldModel
	ck.check(w.Staleness >= 1, "world_model.staleness", w.Staleness, "must be >= 1")
	ck.check(lo.Contains([]string{PriorNone, PriorCoarse, PriorFull}, w.Prior), "world_model.prior", w.Prior, "must be one of none, coarse, full")

	cg := c.Cargo
	ck.check(cg.Count >= 0, "cargo.count", cg.Count, "must be >= 0")
	ck.check(cg.SpawnInterval >= 0, "cargo.spawn_interval", cg.SpawnInterval, "must be >= 0")
	ck.check(cg.SpawnCount >= 0, "cargo.spawn_count", cg.SpawnCount, "must be >= 0")
	for i, s := range cg.Initial {
		ck.inGrid(fmt.Sprintf("cargo.initial[%d].origin", i), s.Origin, n)
		ck.inGrid(fmt.Sprintf("cargo.initial[%d].destination", i), s.Destination, n)
		ck.check(s.Origin != s.Destination, fmt.Sprintf("cargo.initial[%d]", i), s, "origin and destination must differ")
	}

	ch := c.Charger
	ck.check(ch.Count >= 0, "charger.count", ch.Count, "must be >= 0")
	ck.check(ch.Capacity >= 1, "charger.capacity", ch.Capacity, "must be >= 1")
	for i, p := range ch.Positions {
		ck.inGrid(fmt.Sprintf("charger.positions[%d]", i), p, n)
	}
	ck.check(len(lo.Uniq(ch.Positions)) == len(ch.Positions), "charger.positions", ch.Positions, "must not repeat a cell")

	o := c.Output
	ck.check(o.Interval >= 1, "output.interval", o.Interval, "must be >= 1")
	if o.Mongo.URI != "" {
		ck.check(o.Mongo.DB != "", "output.mongo.db", o.Mongo.DB, "must be set when output.mongo.uri is set")
		ck.check(o.Mongo.Col != "", "output.mongo.col", o.Mongo.Col, "must be set when output.mongo.uri is set")
	}

	return ck.err()
}

// TargetNodes 主干道网络需要覆盖的网格数
func TargetNodes(n Network) int {
	return int(math.Ceil(float64(n.Width) * float64(n.Height) * n.Coverage))
}
