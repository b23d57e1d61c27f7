// Package configfile loads a priosql.Config from a JSON or YAML file on
// disk. It is a thin outer layer: the core client package never imports it,
// matching spec.md §1's framing of config-file parsing as an edge concern.
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	priosql "github.com/priosql/priosql"
	"github.com/priosql/priosql/executor"
	"github.com/priosql/priosql/pool"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape: seconds-based durations and a string
// isolation level name, mirroring the original implementation's
// from_dict/from_json/from_yaml (original_source/web_sqlite3/config.py).
type fileConfig struct {
	Connection struct {
		DriverName       string  `json:"driver_name" yaml:"driver_name"`
		DSN              string  `json:"dsn" yaml:"dsn"`
		TimeoutSeconds   float64 `json:"timeout" yaml:"timeout"`
		CheckSameThread  bool    `json:"check_same_thread" yaml:"check_same_thread"`
		IsolationLevel   string  `json:"isolation_level" yaml:"isolation_level"`
		CachedStatements int     `json:"cached_statements" yaml:"cached_statements"`
		URI              bool    `json:"uri" yaml:"uri"`
	} `json:"connection" yaml:"connection"`

	Pool struct {
		MinSize                  int     `json:"min_size" yaml:"min_size"`
		MaxSize                  int     `json:"max_size" yaml:"max_size"`
		MaxQueries               int64   `json:"max_queries" yaml:"max_queries"`
		MaxIdleTimeSeconds       float64 `json:"max_idle_time" yaml:"max_idle_time"`
		ConnectionTimeoutSeconds float64 `json:"connection_timeout" yaml:"connection_timeout"`
		PoolRecycleSeconds       float64 `json:"pool_recycle" yaml:"pool_recycle"`
		HealthCheckPeriodSeconds float64 `json:"health_check_period" yaml:"health_check_period"`
	} `json:"pool" yaml:"pool"`

	Executor struct {
		WorkerCount            int     `json:"worker_count" yaml:"worker_count"`
		MaxQueueSize           int     `json:"max_queue_size" yaml:"max_queue_size"`
		AdmissionTimeoutSeconds   float64 `json:"admission_timeout" yaml:"admission_timeout"`
		WorkerPollIntervalSeconds float64 `json:"worker_poll_interval" yaml:"worker_poll_interval"`
	} `json:"executor" yaml:"executor"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

var isolationLevels = map[string]priosql.IsolationLevel{
	"NONE":      priosql.IsolationLevelNone,
	"DEFERRED":  priosql.IsolationLevelDeferred,
	"IMMEDIATE": priosql.IsolationLevelImmediate,
	"EXCLUSIVE": priosql.IsolationLevelExclusive,
}

func parseIsolationLevel(name string) (priosql.IsolationLevel, error) {
	if name == "" {
		return priosql.IsolationLevelDeferred, nil
	}
	level, ok := isolationLevels[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown isolation level %q", priosql.ErrConfiguration, name)
	}
	return level, nil
}

func (fc *fileConfig) toConfig() (*priosql.Config, error) {
	isolation, err := parseIsolationLevel(fc.Connection.IsolationLevel)
	if err != nil {
		return nil, err
	}

	return &priosql.Config{
		Pool: &pool.Config{
			ConnectionConfig: &priosql.ConnectionConfig{
				DriverName:       fc.Connection.DriverName,
				DSN:              fc.Connection.DSN,
				Timeout:          seconds(fc.Connection.TimeoutSeconds),
				CheckSameThread:  fc.Connection.CheckSameThread,
				IsolationLevel:   isolation,
				CachedStatements: fc.Connection.CachedStatements,
				URI:              fc.Connection.URI,
			},
			MinSize:           fc.Pool.MinSize,
			MaxSize:           fc.Pool.MaxSize,
			MaxQueries:        fc.Pool.MaxQueries,
			MaxIdleTime:       seconds(fc.Pool.MaxIdleTimeSeconds),
			ConnectionTimeout: seconds(fc.Pool.ConnectionTimeoutSeconds),
			PoolRecycle:       seconds(fc.Pool.PoolRecycleSeconds),
			HealthCheckPeriod: seconds(fc.Pool.HealthCheckPeriodSeconds),
		},
		Executor: &executor.Config{
			WorkerCount:        fc.Executor.WorkerCount,
			MaxQueueSize:       fc.Executor.MaxQueueSize,
			AdmissionTimeout:   seconds(fc.Executor.AdmissionTimeoutSeconds),
			WorkerPollInterval: seconds(fc.Executor.WorkerPollIntervalSeconds),
		},
	}, nil
}

// Load reads path and parses it as a priosql.Config, dispatching on the
// file extension: .json for JSON, .yaml/.yml for YAML.
func Load(path string) (*priosql.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", priosql.ErrConfiguration, err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON configuration: %v", priosql.ErrConfiguration, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("%w: invalid YAML configuration: %v", priosql.ErrConfiguration, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported configuration file extension %q", priosql.ErrConfiguration, ext)
	}

	return fc.toConfig()
}
