package cargo

import (
	"fmt"

	"github.com/tsinghua-fib-lab/sossim-go/entity"
	"github.com/tsinghua-fib-lab/sossim-go/utils/container"
)

// Status 货物状态
type Status int32

const (
	Waiting   Status = iota // 等待分配
	Assigned                // 已分配车辆，尚未取货
	InTransit               // 运输中
	Delivered               // 已送达
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Assigned:
		return "assigned"
	case InTransit:
		return "in-transit"
	case Delivered:
		return "delivered"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for _, x := range []Status{Waiting, Assigned, InTransit, Delivered} {
		if x.String() == string(text) {
			*s = x
			return nil
		}
	}
	return fmt.Errorf("unknown cargo status %q", text)
}

// 合法的状态转移，Assigned -> Waiting 为车辆放弃货物
var transitions = map[Status][]Status{
	Waiting:   {Assigned},
	Assigned:  {InTransit, Waiting},
	InTransit: {Delivered},
}

// CanTransit 判断状态转移是否合法
func CanTransit(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Cargo 货物
type Cargo struct {
	container.IncrementalItemBase

	id          int32
	origin      int32
	destination int32

	status   Status
	agent    int32   // 负责的车辆ID，未分配为-1
	history  []Status
	released map[int32]struct{} // 放弃过该货物的车辆

	createdTick   int32
	assignedTick  int32
	pickedUpTick  int32
	deliveredTick int32
}

func newCargo(id, origin, destination, tick int32) *Cargo {
	return &Cargo{
		id:            id,
		origin:        origin,
		destination:   destination,
		status:        Waiting,
		agent:         -1,
		history:       []Status{Waiting},
		released:      make(map[int32]struct{}),
		createdTick:   tick,
		assignedTick:  -1,
		pickedUpTick:  -1,
		deliveredTick: -1,
	}
}

func (c *Cargo) String() string {
	return fmt.Sprintf("Cargo{ID=%d, %d->%d, %v, agent=%d}", c.id, c.origin, c.destination, c.status, c.agent)
}

func (c *Cargo) ID() int32 {
	return c.id
}

func (c *Cargo) Status() Status {
	return c.status
}

func (c *Cargo) Agent() int32 {
	return c.agent
}

// Info 只读信息
func (c *Cargo) Info() entity.CargoInfo {
	return entity.CargoInfo{ID: c.id, Origin: c.origin, Destination: c.destination}
}

func (c *Cargo) transit(to Status, tick int32) error {
	if !CanTransit(c.status, to) {
		return fmt.Errorf("cargo %d: %w: %v -> %v", c.id, ErrInvalidTransition, c.status, to)
	}
	c.status = to
	c.history = append(c.history, to)
	switch to {
	case Assigned:
		c.assignedTick = tick
	case InTransit:
		c.pickedUpTick = tick
	case Delivered:
		c.deliveredTick = tick
	}
	return nil
}

// View 货物的只读副本，用于快照与调试接口
type View struct {
	ID            int32    `json:"id"`
	Origin        int32    `json:"origin"`
	Destination   int32    `json:"destination"`
	Status        Status   `json:"status"`
	Agent         int32    `json:"agent"`
	History       []Status `json:"history"`
	CreatedTick   int32    `json:"created_tick"`
	AssignedTick  int32    `json:"assigned_tick"`
	PickedUpTick  int32    `json:"picked_up_tick"`
	DeliveredTick int32    `json:"delivered_tick"`
}

// View 生成只读副本
func (c *Cargo) View() View {
	return View{
		ID:            c.id,
		Origin:        c.origin,
		Destination:   c.destination,
		Status:        c.status,
		Agent:         c.agent,
		History:       append([]Status(nil), c.history...),
		CreatedTick:   c.createdTick,
		AssignedTick:  c.assignedTick,
		PickedUpTick:  c.pickedUpTick,
		DeliveredTick: c.deliveredTick,
	}
}
