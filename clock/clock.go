package clock

import (
	"fmt"
	"sync"

	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
)

// Clock 仿真时钟
// 功能：管理仿真步数与对应的仿真时间
// 说明：步数从0开始单调递增，到达Limit后仿真结束；RPC读取与调度器推进可能并发，用读写锁保护
type Clock struct {
	DT    float64 // 每步对应的时间间隔（秒）
	Limit int32   // 最大步数

	mu   sync.RWMutex
	tick int32   // 当前步数
	t    float64 // 当前时间（秒）
}

// New 根据配置创建时钟
func New(stepConfig config.ControlStep) *Clock {
	c := &Clock{
		DT:    stepConfig.Interval,
		Limit: stepConfig.Total,
	}
	c.Init()
	return c
}

// Init 重置到第0步
func (c *Clock) Init() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = 0
	c.t = 0
}

// Advance 推进一步
func (c *Clock) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick++
	c.t = float64(c.tick) * c.DT
}

// Tick 当前步数
func (c *Clock) Tick() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick
}

// T 当前仿真时间（秒）
func (c *Clock) T() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Finished 是否已到达步数上限
func (c *Clock) Finished() bool {
	return c.Tick() >= c.Limit
}

// String 获取时钟的字符串表示
// 功能：将当前时间格式化为HH:MM:SS
func (c *Clock) String() string {
	h, m, s := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}

// GetHourMinuteSecond 获取当前时间的小时、分钟、秒
// 返回：小时、分钟、秒（秒为浮点数，支持亚秒级精度）
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	t := c.T()
	hour := int(t) / 3600
	minute := int(t) % 3600 / 60
	second := t - float64(hour*3600+minute*60)
	return hour, minute, second
}
