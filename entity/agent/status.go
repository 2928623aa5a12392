package agent

import (
	"fmt"

	"github.com/tsinghua-fib-lab/sossim-go/entity/agent/route"
)

// Status 车辆状态
type Status int32

const (
	Idle       Status = iota // 空闲
	Assigned                 // 已分配货物，等待规划路径（取货或送货）
	EnRoute                  // 沿路径行驶
	Delivering               // 到达货物终点，卸货
	Charging                 // 充电中
	Waiting                  // 在已满的充电桩排队
	Stranded                 // 电量耗尽，停在原地
)

var statusNames = map[Status]string{
	Idle:       "idle",
	Assigned:   "assigned",
	EnRoute:    "en-route",
	Delivering: "delivering",
	Charging:   "charging",
	Waiting:    "waiting",
	Stranded:   "stranded",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for k, name := range statusNames {
		if name == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown agent status %q", text)
}

// Goal 当前路径的目的
type Goal int32

const (
	NoGoal   Goal = iota
	Pickup        // 前往货物起点
	Delivery      // 前往货物终点
	Recharge      // 前往充电桩
	Explore       // 随机漫游一段，寻找货物或扩展世界模型
)

func (g Goal) String() string {
	switch g {
	case NoGoal:
		return "none"
	case Pickup:
		return "pickup"
	case Delivery:
		return "delivery"
	case Recharge:
		return "recharge"
	case Explore:
		return "explore"
	default:
		return fmt.Sprintf("Goal(%d)", int32(g))
	}
}

func (g Goal) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Goal) UnmarshalText(text []byte) error {
	for _, x := range []Goal{NoGoal, Pickup, Delivery, Recharge, Explore} {
		if x.String() == string(text) {
			*g = x
			return nil
		}
	}
	return fmt.Errorf("unknown goal %q", text)
}

// IntentKind 决策阶段产生的意图类型
type IntentKind int32

const (
	Nothing       IntentKind = iota
	RequestCargo             // 请求匹配货物，没有可匹配的货物时随机漫游
	Follow                   // 按新路径前往货物起点或终点
	SeekCharge               // 按新路径前往充电桩
	RouteFailed              // 本步寻路失败
	Release                  // 放弃已分配的货物
	Move                     // 沿路径前进
	Deliver                  // 卸货
	RequestCharge            // 在所在节点的充电桩申请充电位
	Charge                   // 充电
	Wait                     // 排队等待充电位
	Reroute                  // 下一条路段持续拥堵，换用绕行路径
)

var intentNames = [...]string{
	"nothing", "request-cargo", "follow", "seek-charge", "route-failed",
	"release", "move", "deliver", "request-charge", "charge", "wait",
	"reroute",
}

func (k IntentKind) String() string {
	if int(k) >= 0 && int(k) < len(intentNames) {
		return intentNames[k]
	}
	return fmt.Sprintf("IntentKind(%d)", int32(k))
}

// Intent 车辆在决策阶段产生、由调度器在提交阶段执行的意图
type Intent struct {
	Kind   IntentKind
	Path   route.Path // Follow/SeekCharge/Reroute使用；RequestCargo与RouteFailed时为漫游的一跳
	Known  []int32    // RequestCargo使用：世界模型中正在等待的货物
	Budget float64    // Move/Reroute使用：本步可行驶的距离
}

func (i Intent) String() string {
	switch i.Kind {
	case Follow, SeekCharge, Reroute:
		return fmt.Sprintf("%v(%v)", i.Kind, i.Path)
	case Move:
		return fmt.Sprintf("%v(%.2f)", i.Kind, i.Budget)
	default:
		return i.Kind.String()
	}
}
