package output

import (
	"context"
	"fmt"
	"time"

	"github.com/tsinghua-fib-lab/sossim-go/entity/agent"
	"github.com/tsinghua-fib-lab/sossim-go/task"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoBatch   = 64
	mongoTimeout = 10 * time.Second
)

// MongoSink MongoDB输出
// 功能：作为快照观察者，每interval步生成一条文档，攒够一批后InsertMany写入
type MongoSink struct {
	client   *mongo.Client
	coll     *mongo.Collection
	runID    string
	interval int32

	buffer []any
}

// NewMongoSink 连接MongoDB并创建输出
// 参数：cfg-输出配置（uri、db、col与记录间隔），runID-本次运行的ID
func NewMongoSink(ctx context.Context, cfg config.Output, runID string) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	log.Infof("writing states to mongo %s.%s", cfg.Mongo.DB, cfg.Mongo.Col)
	return &MongoSink{
		client:   client,
		coll:     client.Database(cfg.Mongo.DB).Collection(cfg.Mongo.Col),
		runID:    runID,
		interval: max(cfg.Interval, 1),
		buffer:   make([]any, 0, mongoBatch),
	}, nil
}

// document 一步状态对应的文档
func document(runID string, s *task.Snapshot) bson.D {
	statuses := bson.D{}
	for status := agent.Idle; status <= agent.Stranded; status++ {
		statuses = append(statuses, bson.E{Key: status.String(), Value: s.Metrics.Statuses[status]})
	}
	agents := make(bson.A, 0, len(s.Agents))
	for _, v := range s.Agents {
		agents = append(agents, bson.D{
			{Key: "id", Value: v.ID},
			{Key: "status", Value: v.Status.String()},
			{Key: "node", Value: v.Node},
			{Key: "edge", Value: v.Edge},
			{Key: "progress", Value: v.Progress},
			{Key: "position", Value: bson.A{v.Position.X(), v.Position.Y()}},
			{Key: "charge", Value: v.Charge},
			{Key: "cargo", Value: v.Cargo},
			{Key: "loaded", Value: v.Loaded},
		})
	}
	cargo := make(bson.A, 0, len(s.Cargo))
	for _, v := range s.Cargo {
		cargo = append(cargo, bson.D{
			{Key: "id", Value: v.ID},
			{Key: "origin", Value: v.Origin},
			{Key: "destination", Value: v.Destination},
			{Key: "status", Value: v.Status.String()},
			{Key: "agent", Value: v.Agent},
		})
	}
	chargers := make(bson.A, 0, len(s.Chargers))
	for _, v := range s.Chargers {
		chargers = append(chargers, bson.D{
			{Key: "id", Value: v.ID},
			{Key: "node", Value: v.Node},
			{Key: "occupants", Value: v.Occupants},
			{Key: "queue", Value: v.Queue},
		})
	}
	m := s.Metrics
	return bson.D{
		{Key: "run", Value: runID},
		{Key: "tick", Value: s.Tick},
		{Key: "time", Value: s.Time},
		{Key: "agents", Value: agents},
		{Key: "cargo", Value: cargo},
		{Key: "chargers", Value: chargers},
		{Key: "metrics", Value: bson.D{
			{Key: "delivered", Value: m.Delivered},
			{Key: "stranded", Value: m.Stranded},
			{Key: "released", Value: m.Released},
			{Key: "no_path", Value: m.NoPath},
			{Key: "contention_waits", Value: m.ContentionWaits},
			{Key: "reroutes", Value: m.Reroutes},
			{Key: "explorations", Value: m.Explorations},
			{Key: "distance", Value: m.Distance},
			{Key: "statuses", Value: statuses},
		}},
	}
}

// OnSnapshot 缓存一步的文档，攒够一批后写入
func (m *MongoSink) OnSnapshot(s *task.Snapshot) {
	if s.Tick%m.interval != 0 {
		return
	}
	m.buffer = append(m.buffer, document(m.runID, s))
	if len(m.buffer) >= mongoBatch {
		if err := m.flush(context.Background()); err != nil {
			log.Errorf("insert states: %v", err)
		}
	}
}

func (m *MongoSink) flush(ctx context.Context) error {
	if len(m.buffer) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	_, err := m.coll.InsertMany(ctx, m.buffer)
	m.buffer = m.buffer[:0]
	return err
}

// Close 写入剩余文档并断开连接
func (m *MongoSink) Close(ctx context.Context) error {
	err := m.flush(ctx)
	if derr := m.client.Disconnect(ctx); err == nil {
		err = derr
	}
	return err
}
