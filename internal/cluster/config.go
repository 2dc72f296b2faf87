package cluster

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Default tunables for cluster formation. The cloud timeout bounds the whole
// barrier wait; the RPC timeout bounds a single request/response exchange.
const (
	DefaultCloudTimeoutMillis = 60_000
	DefaultRPCTimeoutMillis   = 10_000
	DefaultBarrierPollMillis  = 100
	DefaultInternalPortOffset = 1
)

// ClusterConfig holds the tunable cluster-formation parameters. It is derived
// once at startup from the environment plus explicit overrides and is
// read-only for the lifetime of the coordinating session.
type ClusterConfig struct {
	// ExpectedWorkerCount is the number of workers the caller wants in the
	// cloud. Zero means "use every discovered worker". When smaller than the
	// discovered set and AllowExtraNodes is false, registration is truncated
	// to the first ExpectedWorkerCount endpoints in discovery order.
	ExpectedWorkerCount int `yaml:"expected_worker_count" json:"expected_worker_count"`

	// CloudName names the compute cloud the nodes form. Auto-derived from the
	// current user and a random suffix when left empty.
	CloudName string `yaml:"cloud_name" json:"cloud_name"`

	// CloudTimeoutMillis bounds the barrier wait for full membership.
	CloudTimeoutMillis int `yaml:"cloud_timeout_millis" json:"cloud_timeout_millis"`

	// RPCTimeoutMillis bounds a single coordinator-to-endpoint exchange.
	RPCTimeoutMillis int `yaml:"rpc_timeout_millis" json:"rpc_timeout_millis"`

	// BarrierPollMillis is the interval between cluster-size polls.
	BarrierPollMillis int `yaml:"barrier_poll_millis" json:"barrier_poll_millis"`

	// InternalPortOffset is added to each node's base port to derive the
	// internal peer-communication port, broadcast with the flat file.
	InternalPortOffset int `yaml:"internal_port_offset" json:"internal_port_offset"`

	// AllowExtraNodes permits more workers than ExpectedWorkerCount to join
	// instead of truncating the registration.
	AllowExtraNodes bool `yaml:"allow_extra_nodes" json:"allow_extra_nodes"`

	// Kerberos/Hive settings are forwarded verbatim to the compute nodes.
	KerberosPrincipal string `yaml:"kerberos_principal" json:"kerberos_principal,omitempty"`
	KerberosKeytab    string `yaml:"kerberos_keytab" json:"kerberos_keytab,omitempty"`
	HiveHost          string `yaml:"hive_host" json:"hive_host,omitempty"`
	HivePrincipal     string `yaml:"hive_principal" json:"hive_principal,omitempty"`
}

// CloudTimeout returns the barrier deadline as a duration.
func (c ClusterConfig) CloudTimeout() time.Duration {
	return time.Duration(c.CloudTimeoutMillis) * time.Millisecond
}

// RPCTimeout returns the per-call deadline as a duration.
func (c ClusterConfig) RPCTimeout() time.Duration {
	return time.Duration(c.RPCTimeoutMillis) * time.Millisecond
}

// BarrierPoll returns the poll interval as a duration.
func (c ClusterConfig) BarrierPoll() time.Duration {
	return time.Duration(c.BarrierPollMillis) * time.Millisecond
}

// ApplyDefaults fills unset tunables and derives the cloud name when empty.
// Called once by the coordinator before the config becomes read-only.
func (c *ClusterConfig) ApplyDefaults() {
	if c.CloudTimeoutMillis <= 0 {
		c.CloudTimeoutMillis = DefaultCloudTimeoutMillis
	}
	if c.RPCTimeoutMillis <= 0 {
		c.RPCTimeoutMillis = DefaultRPCTimeoutMillis
	}
	if c.BarrierPollMillis <= 0 {
		c.BarrierPollMillis = DefaultBarrierPollMillis
	}
	if c.InternalPortOffset <= 0 {
		c.InternalPortOffset = DefaultInternalPortOffset
	}
	if c.CloudName == "" {
		c.CloudName = deriveCloudName()
	}
}

// deriveCloudName builds a per-session cloud name from the current user and a
// short random suffix, so two sessions on one machine never collide.
func deriveCloudName() string {
	name := "hydroml"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username + "-" + name
	}
	return fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])
}

// ConfigFromEnv reads a ClusterConfig from HYDROML_* environment variables,
// then applies defaults. Unset variables keep their zero value.
func ConfigFromEnv() ClusterConfig {
	cfg := ClusterConfig{
		ExpectedWorkerCount: getenvInt("HYDROML_EXPECTED_WORKERS", 0),
		CloudName:           os.Getenv("HYDROML_CLOUD_NAME"),
		CloudTimeoutMillis:  getenvInt("HYDROML_CLOUD_TIMEOUT_MS", 0),
		RPCTimeoutMillis:    getenvInt("HYDROML_RPC_TIMEOUT_MS", 0),
		BarrierPollMillis:   getenvInt("HYDROML_BARRIER_POLL_MS", 0),
		InternalPortOffset:  getenvInt("HYDROML_PORT_OFFSET", 0),
		AllowExtraNodes:     getenvBool("HYDROML_ALLOW_EXTRA_NODES"),
		KerberosPrincipal:   os.Getenv("HYDROML_KERBEROS_PRINCIPAL"),
		KerberosKeytab:      os.Getenv("HYDROML_KERBEROS_KEYTAB"),
		HiveHost:            os.Getenv("HYDROML_HIVE_HOST"),
		HivePrincipal:       os.Getenv("HYDROML_HIVE_PRINCIPAL"),
	}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfigFile reads a YAML ClusterConfig from path. Fields present in the
// file override the base config; defaults are applied afterwards.
func LoadConfigFile(path string, base ClusterConfig) (ClusterConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading cluster config %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return base, fmt.Errorf("parsing cluster config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(k string) bool {
	v, err := strconv.ParseBool(os.Getenv(k))
	return err == nil && v
}
