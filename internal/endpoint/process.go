package endpoint

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/openfathom/hydroml/internal/cluster"
)

// bindLine matches the runtime's startup announcement, e.g.
// "cloud node listening on 10.0.0.4:54321".
var bindLine = regexp.MustCompile(`listening on ([^\s:]+):(\d+)`)

// ProcessNode drives an external compute runtime spawned as a child process.
// Start launches the binary and scans its stdout for the bind address; the
// remaining operations go through the runtime's admin HTTP API on that
// address. The child is deliberately never killed here: endpoint teardown
// releases the RPC machinery only, the compute cloud keeps running.
type ProcessNode struct {
	// Binary is the runtime executable. ExtraArgs are appended after the
	// generated flags.
	Binary    string
	ExtraArgs []string

	// FlatFilePath, when set, receives a copy of each distributed membership
	// list (one address per line) so a restarted runtime can rejoin.
	FlatFilePath string

	// ProcessID labels this worker in descriptors. Defaults to the hostname.
	ProcessID string

	mu      sync.Mutex
	desc    cluster.NodeDescriptor
	started bool
}

// Start spawns the runtime and waits for its bind announcement. The ctx
// deadline bounds the wait; expiry fails the start but leaves the child
// running for post-mortem inspection.
func (p *ProcessNode) Start(ctx context.Context, cfg cluster.ClusterConfig) (cluster.NodeDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return p.desc, fmt.Errorf("compute node already started (pid for %s)", p.desc.Addr())
	}

	args := []string{
		"-name", cfg.CloudName,
		"-port_offset", strconv.Itoa(cfg.InternalPortOffset),
	}
	if cfg.KerberosPrincipal != "" {
		args = append(args, "-principal", cfg.KerberosPrincipal, "-keytab", cfg.KerberosKeytab)
	}
	if cfg.HiveHost != "" {
		args = append(args, "-hive_host", cfg.HiveHost, "-hive_principal", cfg.HivePrincipal)
	}
	args = append(args, p.ExtraArgs...)

	cmd := exec.Command(p.Binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return cluster.NodeDescriptor{}, err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return cluster.NodeDescriptor{}, fmt.Errorf("spawning compute runtime %s: %w", p.Binary, err)
	}

	bound := make(chan cluster.NodeDescriptor, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if m := bindLine.FindStringSubmatch(scanner.Text()); m != nil {
				port, _ := strconv.Atoi(m[2])
				bound <- cluster.NodeDescriptor{
					ProcessID: p.processID(),
					Host:      m[1],
					Port:      port,
				}
				break
			}
		}
		// Keep draining so the child never blocks on a full pipe.
		for scanner.Scan() {
		}
	}()

	select {
	case desc := <-bound:
		p.desc = desc
		p.started = true
		return desc, nil
	case <-ctx.Done():
		return cluster.NodeDescriptor{}, fmt.Errorf("waiting for compute runtime bind address: %w", ctx.Err())
	}
}

// Distribute forwards the flat file to the runtime's admin API and, when
// configured, persists it next to the runtime.
func (p *ProcessNode) Distribute(ctx context.Context, nodes []cluster.NodeDescriptor, portOffset int) error {
	desc, err := p.descriptor()
	if err != nil {
		return err
	}
	if p.FlatFilePath != "" {
		if err := writeFlatFile(p.FlatFilePath, nodes); err != nil {
			return err
		}
	}
	req := cluster.DistributeRequest{Nodes: nodes, PortOffset: portOffset}
	return cluster.PostJSON(ctx, p.adminURL(desc, "/flatfile"), req, nil)
}

// Size queries the runtime's live cloud size.
func (p *ProcessNode) Size(ctx context.Context) (int, error) {
	desc, err := p.descriptor()
	if err != nil {
		return 0, err
	}
	var out cluster.ClusterSizeResponse
	if err := cluster.GetJSON(ctx, p.adminURL(desc, "/size"), &out); err != nil {
		return 0, err
	}
	return out.Size, nil
}

// Lock instructs the runtime to close membership.
func (p *ProcessNode) Lock(ctx context.Context) error {
	desc, err := p.descriptor()
	if err != nil {
		return err
	}
	return cluster.PostJSON(ctx, p.adminURL(desc, "/lock"), struct{}{}, nil)
}

// Leader queries the runtime's locally-known leader.
func (p *ProcessNode) Leader(ctx context.Context) (cluster.NodeDescriptor, bool, error) {
	desc, err := p.descriptor()
	if err != nil {
		return cluster.NodeDescriptor{}, false, err
	}
	var out cluster.LeaderResponse
	if err := cluster.GetJSON(ctx, p.adminURL(desc, "/leader"), &out); err != nil {
		return cluster.NodeDescriptor{}, false, err
	}
	if out.Leader == nil || out.Leader.Zero() {
		return cluster.NodeDescriptor{}, false, nil
	}
	return *out.Leader, true, nil
}

func (p *ProcessNode) descriptor() (cluster.NodeDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return cluster.NodeDescriptor{}, ErrNotStarted
	}
	return p.desc, nil
}

func (p *ProcessNode) adminURL(desc cluster.NodeDescriptor, path string) string {
	return "http://" + desc.Addr() + path
}

func (p *ProcessNode) processID() string {
	if p.ProcessID != "" {
		return p.ProcessID
	}
	host, err := os.Hostname()
	if err != nil {
		return "worker"
	}
	return host
}

// writeFlatFile writes the membership list atomically: temp file in the same
// directory, then rename, so the runtime never reads a half-written file.
func writeFlatFile(path string, nodes []cluster.NodeDescriptor) error {
	sorted := append([]cluster.NodeDescriptor(nil), nodes...)
	SortMembers(sorted)
	var b strings.Builder
	for _, n := range sorted {
		b.WriteString(n.Addr())
		b.WriteByte('\n')
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".flatfile-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Ping probes the runtime's admin API, used by the endpoint health handler.
func (p *ProcessNode) Ping(ctx context.Context) error {
	desc, err := p.descriptor()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.adminURL(desc, "/size"), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
