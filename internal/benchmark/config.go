package benchmark

import "time"

const (
	defaultIterations = 100
	defaultTimeout    = 300
)

type Config struct {
	Iterations   int    `json:"iterations"`
	Parallel     int    `json:"parallel"`
	ShowProgress bool   `json:"show_progress"`
	Timeout      int    `json:"timeout"`
	Verbose      bool   `json:"verbose"`
	Seed         string `json:"seed,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.Iterations < 1 {
		c.Iterations = defaultIterations
	}
	if c.Parallel < 1 {
		c.Parallel = 1
	}
	if c.Timeout < 1 {
		c.Timeout = defaultTimeout
	}
	return c
}

type Result struct {
	Iterations    int           `json:"iterations"`
	Parallel      int           `json:"parallel"`
	Generated     int           `json:"generated"`
	UniqueModuli  int           `json:"unique_moduli"`
	TotalTime     time.Duration `json:"total_time"`
	AverageTime   time.Duration `json:"average_time"`
	MinTime       time.Duration `json:"min_time"`
	MaxTime       time.Duration `json:"max_time"`
	StdDev        time.Duration `json:"std_dev"`
	KeysPerSecond float64       `json:"keys_per_second"`
	CPUUsage      float64       `json:"cpu_usage"`
	MemoryUsed    uint64        `json:"memory_used"`
	Exhausted     int           `json:"exhausted"`
	Errors        int           `json:"errors"`
	TimedOut      bool          `json:"timed_out"`
	CompletedAt   time.Time     `json:"completed_at"`
}

type ProgressUpdate struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Rate       float64 `json:"rate"`
}
