package task

import (
	"errors"
	"fmt"
)

// prepare 准备阶段，每步执行一次
// 功能：发布路段占用、充电桩、等待货物、车辆状态的快照，决策阶段只读取这些快照
func (ctx *Context) prepare() {
	ctx.traffic.Prepare()
	ctx.chargerManager.Prepare()
	ctx.cargoRegistry.Prepare()
	ctx.agentManager.Prepare()
}

// update 决策与提交阶段，每步执行一次
// 算法说明：
// 1. 决策：所有车辆按control.workers并发感知、决策，只读快照
// 2. 提交：按车辆ID升序执行意图，冲突由先提交者获得资源解决
// 3. 检查不变量：充电桩容量、电量范围
func (ctx *Context) update() error {
	ctx.agentManager.Decide(ctx.runtimeConfig.C.Control.Workers)
	log.Debugf("step %d: decide complete", ctx.clock.Tick())
	if err := ctx.agentManager.Commit(); err != nil {
		return err
	}
	log.Debugf("step %d: commit complete", ctx.clock.Tick())
	return ctx.checkInvariants()
}

func (ctx *Context) checkInvariants() error {
	if err := ctx.chargerManager.CheckInvariants(); err != nil {
		return err
	}
	maxCharge := ctx.runtimeConfig.C.Agent.MaxCharge
	for _, a := range ctx.agentManager.Agents() {
		if c := a.Charge(); c < 0 || c > maxCharge {
			return fmt.Errorf("agent %d charge %f out of [0, %f]", a.ID(), c, maxCharge)
		}
	}
	return nil
}

// Step 推进一步
// 功能：准备 -> 决策 -> 提交 -> 时钟+1 -> 周期生成货物 -> 发布快照 -> 通知观察者
// 返回：新快照；已停止或已到达步数上限时返回对应错误且不改变状态
// 说明：提交阶段出错表示仿真状态已不一致，仿真随即停止
func (ctx *Context) Step() (*Snapshot, error) {
	ctx.stepMu.Lock()
	s, err := ctx.step()
	if err != nil {
		ctx.stepMu.Unlock()
		return nil, err
	}
	// 先取得观察者锁再释放步进锁，观察者按步的顺序收到快照
	ctx.observerMu.Lock()
	ctx.stepMu.Unlock()
	defer ctx.observerMu.Unlock()
	ctx.notify(s)
	return s, nil
}

func (ctx *Context) step() (*Snapshot, error) {
	if ctx.stopped.Load() {
		return nil, ErrStopped
	}
	if ctx.clock.Finished() {
		return nil, ErrTickLimitReached
	}
	ctx.prepare()
	if err := ctx.update(); err != nil {
		ctx.stopped.Store(true)
		log.Errorf("step %d failed, simulation stopped: %v", ctx.clock.Tick(), err)
		return nil, err
	}
	ctx.clock.Advance()
	ctx.cargoRegistry.Spawn(ctx.clock.Tick())

	tick := ctx.clock.Tick()
	if tick%ctx.runtimeConfig.C.Control.Heartbeat == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		log.Infof("STEP: %d(%d:%d:%.2f)", tick, hour, minute, second)
	}
	s := ctx.buildSnapshot()
	ctx.publish(s)
	return s, nil
}

// Run 连续推进n步
// 功能：每步之间检查停止指令，到达步数上限或被停止时提前结束
// 参数：n-步数，必须为正数
// 返回：最后发布的快照；一步都没有推进时返回ErrStopped或ErrTickLimitReached
func (ctx *Context) Run(n int) (*Snapshot, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTickCount, n)
	}
	for i := 0; i < n; i++ {
		if _, err := ctx.Step(); err != nil {
			// 其他调用方可能在两步之间停止仿真或走到上限，已经推进过的Run照常返回
			if i > 0 && (errors.Is(err, ErrStopped) || errors.Is(err, ErrTickLimitReached)) {
				break
			}
			return nil, err
		}
	}
	if ctx.clock.Finished() {
		log.Infof("engine complete at step %d", ctx.clock.Tick())
	}
	return ctx.CurrentState(), nil
}

// Stop 停止仿真，之后的Step/Run返回ErrStopped
// 说明：正在执行的步会完整结束
func (ctx *Context) Stop() {
	if ctx.stopped.Swap(true) {
		return
	}
	log.Infof("simulation stopped at step %d", ctx.clock.Tick())
	ctx.stateMu.Lock()
	if ctx.state != nil {
		s := *ctx.state
		s.Stopped = true
		ctx.state = &s
	}
	ctx.stateMu.Unlock()
}

// Stopped 是否已停止
func (ctx *Context) Stopped() bool {
	return ctx.stopped.Load()
}

// CurrentState 最近一次发布的快照
// 说明：快照发布后不再修改，多次调用返回同一快照
func (ctx *Context) CurrentState() *Snapshot {
	ctx.stateMu.RLock()
	defer ctx.stateMu.RUnlock()
	return ctx.state
}

// publish 发布快照
// 说明：与Stop在同一把锁下读写停止标记，停止后发布的快照一定带有Stopped
func (ctx *Context) publish(s *Snapshot) {
	ctx.stateMu.Lock()
	s.Stopped = s.Stopped || ctx.stopped.Load()
	ctx.state = s
	ctx.stateMu.Unlock()
}
