// Package config 读取 yaml 配置: HAC 带宽规则, 默认 HC 版本, 日志.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"regcore/infra/observe/log/staticLog"
)

const (
	KernelBartlett = "bartlett"
	KernelParzen   = "parzen"

	RuleNW1 = "nw1" // 0.75 * T^(1/3)
	RuleNW2 = "nw2" // 4 * (T/100)^(2/9)
)

type HACConfig struct {
	Kernel string `yaml:"kernel"`
	Lag    int    `yaml:"lag"` // >0 时固定滞后阶数, 忽略 Rule
	Rule   string `yaml:"rule"`
}

type HCCMEConfig struct {
	Version int `yaml:"version"` // 0..3
}

type Config struct {
	HAC   HACConfig        `yaml:"hac"`
	HCCME HCCMEConfig      `yaml:"hccme"`
	Log   staticLog.Config `yaml:"log"`
}

// 用 atomic.Value 存当前配置, 读取无锁
var cfgValue atomic.Value // stores *Config

func Default() *Config {
	return &Config{
		HAC:   HACConfig{Kernel: KernelBartlett, Rule: RuleNW1},
		HCCME: HCCMEConfig{Version: 1},
		Log:   staticLog.Config{Level: "warn"},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read yaml: %w", err)
	}
	return Parse(b)
}

// Parse 未出现的字段沿用 Default 的取值
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// 规范化: 小写、去空格
	c.HAC.Kernel = strings.ToLower(strings.TrimSpace(c.HAC.Kernel))
	c.HAC.Rule = strings.ToLower(strings.TrimSpace(c.HAC.Rule))

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.HAC.Kernel {
	case KernelBartlett, KernelParzen:
	default:
		return fmt.Errorf("invalid hac kernel %q", c.HAC.Kernel)
	}
	switch c.HAC.Rule {
	case RuleNW1, RuleNW2:
	default:
		return fmt.Errorf("invalid hac bandwidth rule %q", c.HAC.Rule)
	}
	if c.HAC.Lag < 0 {
		return fmt.Errorf("invalid hac lag %d", c.HAC.Lag)
	}
	if c.HCCME.Version < 0 || c.HCCME.Version > 3 {
		return fmt.Errorf("invalid hccme version %d", c.HCCME.Version)
	}
	return nil
}

// Init 读取配置, 初始化日志并设为当前配置
func Init(path string) error {
	c, err := Load(path)
	if err != nil {
		return err
	}
	if err := staticLog.Init(c.Log); err != nil {
		return err
	}
	cfgValue.Store(c)
	return nil
}

// Current 未 Init 时返回 Default()
func Current() *Config {
	cAny := cfgValue.Load()
	if cAny == nil {
		return Default()
	}
	return cAny.(*Config)
}

// LagFor 给定有效样本量 T, 返回 Newey-West 最大滞后阶数, 结果落在 [0, T-1]
func (h HACConfig) LagFor(T int) int {
	if T <= 1 {
		return 0
	}
	var p int
	switch {
	case h.Lag > 0:
		p = h.Lag
	case h.Rule == RuleNW2:
		p = int(math.Floor(4 * math.Pow(float64(T)/100, 2.0/9.0)))
	default:
		p = int(math.Floor(0.75 * math.Cbrt(float64(T))))
	}
	if p > T-1 {
		p = T - 1
	}
	if p < 0 {
		p = 0
	}
	return p
}
