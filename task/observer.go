package task

// Observer 快照观察者
// 说明：每步提交后按订阅顺序同步调用，实现方不得修改快照，也不得在回调中调用Subscribe
type Observer interface {
	OnSnapshot(s *Snapshot)
}

// ObserverFunc 函数形式的观察者
type ObserverFunc func(s *Snapshot)

func (f ObserverFunc) OnSnapshot(s *Snapshot) {
	f(s)
}

// Subscribe 订阅每步的快照
func (ctx *Context) Subscribe(o Observer) {
	ctx.observerMu.Lock()
	defer ctx.observerMu.Unlock()
	ctx.observers = append(ctx.observers, o)
}

// notify 通知观察者，调用方持有observerMu
func (ctx *Context) notify(s *Snapshot) {
	for _, o := range ctx.observers {
		o.OnSnapshot(s)
	}
}
