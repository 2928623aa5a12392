// 仿真数据输出：运行归档（CSV表 + 配置 + 清单）与MongoDB逐步写入
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/sossim-go/task"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
)

const (
	ConfigurationFile = "configuration.yaml"
	ManifestFile      = "manifest.json"
)

// Manifest 归档清单
type Manifest struct {
	RunID               string            `json:"run_id"`
	GenerationStartTime time.Time         `json:"generation_start_time"`
	GenerationEndTime   time.Time         `json:"generation_end_time"`
	SaveTime            time.Time         `json:"save_time"`
	Ticks               int32             `json:"ticks"` // 最后记录的步数
	Files               map[string]string `json:"files"` // 文件名 -> 说明
}

// table 一张逐步追加的CSV表
type table struct {
	name        string
	description string
	file        *os.File
	w           *csv.Writer
	rows        int
}

func newTable(dir, name, description string, header []string) (*table, error) {
	f, err := os.Create(filepath.Join(dir, name+".csv"))
	if err != nil {
		return nil, err
	}
	t := &table{name: name, description: description, file: f, w: csv.NewWriter(f)}
	if err := t.w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

func (t *table) write(row []string) {
	if err := t.w.Write(row); err != nil {
		log.Errorf("write %s row: %v", t.name, err)
		return
	}
	t.rows++
}

func (t *table) close() error {
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}

// Archive 运行归档
// 功能：作为快照观察者，每interval步把车辆、货物、充电桩与统计写入各自的CSV表；
// Close时写入配置与清单
type Archive struct {
	dir      string
	interval int32
	cfg      config.Config
	manifest Manifest

	agents, cargo, chargers, metrics *table
}

// NewArchive 创建运行归档
// 参数：dir-归档目录（不存在则创建），cfg-本次运行的配置，start,end-仿真初始化的起止时间
func NewArchive(dir string, cfg config.Config, start, end time.Time) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	a := &Archive{
		dir:      dir,
		interval: max(cfg.Output.Interval, 1),
		cfg:      cfg,
		manifest: Manifest{
			RunID:               uuid.New().String(),
			GenerationStartTime: start.UTC(),
			GenerationEndTime:   end.UTC(),
			Files: map[string]string{
				ManifestFile:      "Meta-information about the content of this archive",
				ConfigurationFile: "The configuration used to create the simulation",
			},
		},
	}
	var err error
	if a.agents, err = newTable(dir, "agent", "Per-tick state of every agent",
		[]string{"tick", "id", "status", "node", "edge", "progress", "x", "y", "charge", "cargo", "loaded", "goal", "retries", "wait_ticks", "distance"}); err != nil {
		return nil, err
	}
	if a.cargo, err = newTable(dir, "cargo", "Per-tick state of every cargo",
		[]string{"tick", "id", "origin", "destination", "status", "agent"}); err != nil {
		return nil, err
	}
	if a.chargers, err = newTable(dir, "charger", "Per-tick occupancy of every charging point",
		[]string{"tick", "id", "node", "capacity", "occupants", "queue"}); err != nil {
		return nil, err
	}
	if a.metrics, err = newTable(dir, "metrics", "Per-tick global metrics",
		[]string{"tick", "delivered", "stranded", "released", "no_path", "contention_waits", "reroutes", "explorations", "distance", "cargo_waiting", "cargo_assigned", "cargo_in_transit", "cargo_delivered"}); err != nil {
		return nil, err
	}
	log.Infof("archive %s created in %s", a.manifest.RunID, dir)
	return a, nil
}

// RunID 本次运行的ID
func (a *Archive) RunID() string {
	return a.manifest.RunID
}

func itoa(v int32) string {
	return strconv.FormatInt(int64(v), 10)
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// OnSnapshot 记录一步的状态
func (a *Archive) OnSnapshot(s *task.Snapshot) {
	if s.Tick%a.interval != 0 {
		return
	}
	tick := itoa(s.Tick)
	for _, v := range s.Agents {
		a.agents.write([]string{
			tick, itoa(v.ID), v.Status.String(), itoa(v.Node), itoa(v.Edge), ftoa(v.Progress),
			ftoa(v.Position.X()), ftoa(v.Position.Y()), ftoa(v.Charge), itoa(v.Cargo),
			strconv.FormatBool(v.Loaded), v.Goal.String(), itoa(v.Retries), itoa(v.WaitTicks), ftoa(v.Distance),
		})
	}
	for _, v := range s.Cargo {
		a.cargo.write([]string{tick, itoa(v.ID), itoa(v.Origin), itoa(v.Destination), v.Status.String(), itoa(v.Agent)})
	}
	for _, v := range s.Chargers {
		a.chargers.write([]string{tick, itoa(v.ID), itoa(v.Node), itoa(v.Capacity), itoa(int32(len(v.Occupants))), itoa(int32(len(v.Queue)))})
	}
	m := s.Metrics
	a.metrics.write([]string{
		tick, itoa(m.Delivered), itoa(m.Stranded), itoa(m.Released), itoa(m.NoPath), itoa(m.ContentionWaits), itoa(m.Reroutes), itoa(m.Explorations), ftoa(m.Distance),
		itoa(m.Cargo.Waiting), itoa(m.Cargo.Assigned), itoa(m.Cargo.InTransit), itoa(m.Cargo.Delivered),
	})
	a.manifest.Ticks = s.Tick
}

// Close 关闭CSV表并写入配置与清单
func (a *Archive) Close() error {
	for _, t := range []*table{a.agents, a.cargo, a.chargers, a.metrics} {
		if err := t.close(); err != nil {
			return fmt.Errorf("close %s table: %w", t.name, err)
		}
		if t.rows > 0 {
			a.manifest.Files[t.name+".csv"] = t.description
		} else if err := os.Remove(filepath.Join(a.dir, t.name+".csv")); err != nil {
			return err
		}
	}
	data, err := config.Dump(a.cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(a.dir, ConfigurationFile), data, 0o644); err != nil {
		return err
	}
	a.manifest.SaveTime = time.Now().UTC()
	data, err = json.MarshalIndent(a.manifest, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(a.dir, ManifestFile), data, 0o644); err != nil {
		return err
	}
	log.Infof("archive %s saved to %s", a.manifest.RunID, a.dir)
	return nil
}
