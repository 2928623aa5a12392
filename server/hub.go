package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/tsinghua-fib-lab/sossim-go/task"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 64
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub websocket快照推送
// 功能：作为调度器的观察者，把每一步的快照以JSON推送给所有已连接的客户端
// 说明：
// 1. 客户端集合只在run协程中修改
// 2. 推送不阻塞调度器，发送缓冲已满的客户端被断开
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	current    func() *task.Snapshot
}

// NewHub 创建推送中心
// 参数：current-获取最新快照，新客户端连接后先收到一次
func NewHub(current func() *task.Snapshot) *Hub {
	return &Hub{
		clients:    map[*client]bool{},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		current:    current,
	}
}

// Run 事件循环，ctx结束时断开所有客户端
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			log.Debugf("websocket client %v connected, %d clients", c.conn.RemoteAddr(), len(h.clients))
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					log.Warnf("websocket client %v too slow, disconnected", c.conn.RemoteAddr())
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// OnSnapshot 实现task.Observer
func (h *Hub) OnSnapshot(s *task.Snapshot) {
	b, err := json.Marshal(s)
	if err != nil {
		log.Errorf("marshal snapshot %d: %v", s.Tick, err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
		log.Warnf("websocket broadcast buffer full, drop snapshot %d", s.Tick)
	}
}

// ServeHTTP 升级为websocket连接
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	if s := h.current(); s != nil {
		if b, err := json.Marshal(s); err == nil {
			c.send <- b
		}
	}
	select {
	case h.register <- c:
	case <-r.Context().Done():
		conn.Close()
		return
	case <-h.done:
		conn.Close()
		return
	}
	go h.writer(c)
	go h.reader(c)
}

// reader 只用于检测连接关闭，客户端消息被忽略
func (h *Hub) reader(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writer(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
