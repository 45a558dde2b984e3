package loadtest

import (
	"fmt"
	"time"

	"github.com/studiowebux/chatbench/internal/config"
	"github.com/studiowebux/chatbench/internal/expect"
	"github.com/studiowebux/chatbench/internal/fixture"
)

const (
	MaxUsers         = 1000
	DefaultSpawnRate = 2
	DefaultRunTime   = time.Minute
	DefaultWaitMin   = 3 * time.Second
	DefaultWaitMax   = 6 * time.Second
	defaultMessage   = "Hello, chatbench is testing you!"
)

// Run statuses
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Config represents a load test configuration
type Config struct {
	Name            string        `yaml:"name,omitempty"`
	Users           int           `yaml:"users"`
	SpawnRate       float64       `yaml:"spawn_rate,omitempty"` // users started per second, 0 starts all at once
	RunTime         time.Duration `yaml:"run_time,omitempty"`   // 0 runs until every user sent RequestsPerUser
	RequestsPerUser int           `yaml:"requests_per_user,omitempty"`
	WaitMin         time.Duration `yaml:"wait_min,omitempty"`
	WaitMax         time.Duration `yaml:"wait_max,omitempty"`
	RequestTimeout  time.Duration `yaml:"request_timeout,omitempty"`
	MaxRPS          float64       `yaml:"max_rps,omitempty"` // global request-rate cap, 0 disables it
}

// DefaultConfig mirrors a single locust-style user hitting the API for a minute
func DefaultConfig() Config {
	return Config{
		Name:           "chat-completion",
		Users:          1,
		SpawnRate:      DefaultSpawnRate,
		RunTime:        DefaultRunTime,
		WaitMin:        DefaultWaitMin,
		WaitMax:        DefaultWaitMax,
		RequestTimeout: config.DefaultRequestTimeout,
	}
}

// Validate validates the load test configuration
func (c *Config) Validate() error {
	if c.Users <= 0 {
		return fmt.Errorf("users must be greater than 0")
	}
	if c.Users > MaxUsers {
		return fmt.Errorf("users cannot exceed %d", MaxUsers)
	}
	if c.SpawnRate < 0 {
		return fmt.Errorf("spawn rate cannot be negative")
	}
	if c.RunTime < 0 {
		return fmt.Errorf("run time cannot be negative")
	}
	if c.RequestsPerUser < 0 {
		return fmt.Errorf("requests per user cannot be negative")
	}
	if c.RunTime == 0 && c.RequestsPerUser == 0 {
		return fmt.Errorf("either a run time or a request count per user is required")
	}
	if c.WaitMin < 0 || c.WaitMax < 0 {
		return fmt.Errorf("wait times cannot be negative")
	}
	if c.WaitMin > c.WaitMax {
		return fmt.Errorf("minimum wait %s exceeds maximum wait %s", c.WaitMin, c.WaitMax)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative")
	}
	if c.MaxRPS < 0 {
		return fmt.Errorf("max RPS cannot be negative")
	}
	return nil
}

// SpawnInterval is the delay between two user starts
func (c *Config) SpawnInterval() time.Duration {
	if c.SpawnRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.SpawnRate)
}

// ExpectedRequests is the request count of a run that is not cut off, or 0
// when the run is bounded by time only
func (c *Config) ExpectedRequests() int {
	return c.Users * c.RequestsPerUser
}

// Task is the request every simulated user sends
type Task struct {
	Model    string              `yaml:"model,omitempty"`
	Endpoint string              `yaml:"endpoint,omitempty"`
	Request  fixture.Request     `yaml:"request"`
	Expect   *expect.Expectation `yaml:"expect,omitempty"` // nil expects HTTP 200
}

// DefaultTask sends one short user message and expects HTTP 200
func DefaultTask(model string) Task {
	return Task{
		Model:    model,
		Endpoint: config.DefaultEndpoint,
		Request: fixture.Request{
			Messages: []fixture.Message{{Role: "user", Content: defaultMessage}},
		},
		Expect: expect.StatusOK(),
	}
}

// Validate checks the task definition
func (t *Task) Validate() error {
	if err := t.Request.Validate(); err != nil {
		return err
	}
	return t.expectation().Validate()
}

func (t *Task) expectation() *expect.Expectation {
	if t.Expect == nil {
		return expect.StatusOK()
	}
	return t.Expect
}
