package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"slices"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	easy "github.com/t-tomalak/logrus-easy-formatter"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
)

var (
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}

	log = logrus.WithField("module", "sossim")
)

// options 各子命令共用的命令行参数
type options struct {
	configPath string // 配置文件路径
	configData string // 配置文件Base64编码后的数据
	seed       uint64 // 覆盖control.seed
	ticks      int32  // 覆盖control.step.total
	agents     int32  // 覆盖agent.count
	logLevel   string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "sossim",
		Short: "Transport system-of-systems simulator",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLog(opts.logLevel)
		},
		SilenceUsage: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file path (empty means defaults)")
	flags.StringVar(&opts.configData, "config-data", "", "config file base64 encoded data")
	flags.Uint64Var(&opts.seed, "seed", 0, "override control.seed")
	flags.Int32Var(&opts.ticks, "ticks", 0, "override control.step.total")
	flags.Int32Var(&opts.agents, "agents", 0, "override agent.count")
	flags.StringVar(&opts.logLevel, "log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	cmd.AddCommand(runCmd(opts))
	cmd.AddCommand(serveCmd(opts))
	cmd.AddCommand(generateCmd(opts))
	return cmd
}

func setupLog(level string) error {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	l, ok := logLevels[level]
	if !ok {
		return fmt.Errorf("log.level must be one of %v", sortedKeys(logLevels))
	}
	logrus.SetLevel(l)
	return nil
}

// loadConfig 读取配置并应用命令行覆盖
// 说明：--config 与 --config-data 都未指定时使用默认配置
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	var (
		c    config.Config
		file []byte
		err  error
	)
	switch {
	case opts.configPath != "":
		if file, err = os.ReadFile(opts.configPath); err != nil {
			return config.Config{}, fmt.Errorf("config file load err: %w", err)
		}
	case opts.configData != "":
		if file, err = base64.StdEncoding.DecodeString(opts.configData); err != nil {
			return config.Config{}, fmt.Errorf("config data load err: %w", err)
		}
	}
	if file != nil {
		if c, err = config.Load(file); err != nil {
			return config.Config{}, err
		}
	} else {
		c = config.Default()
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		c.Control.Seed = opts.seed
	}
	if flags.Changed("ticks") {
		c.Control.Step.Total = opts.ticks
	}
	if flags.Changed("agents") {
		c.Agent.Count = opts.agents
	}
	return c, nil
}

func sortedKeys(m map[string]logrus.Level) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
