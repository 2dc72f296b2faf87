// Package main implements the hydroml bootstrap driver. It runs on the host
// engine's driving process, walks every worker endpoint through the cloud
// formation protocol and prints the resulting membership and leader.
//
// Endpoints are discovered through HYDROML_ENDPOINTS, a comma-separated list
// of "processID=baseURL" pairs, the integration point where the host engine
// injects its execution slots:
//
//	HYDROML_ENDPOINTS="w0=http://10.0.0.4:8561,w1=http://10.0.0.5:8561" \
//	./bootstrap
//
// With -local the whole protocol is bypassed and a single in-process compute
// node is started instead (single-process execution mode).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/openfathom/hydroml/internal/cluster"
	"github.com/openfathom/hydroml/internal/coordinator"
)

func main() {
	configPath := flag.String("config", "", "optional YAML cluster config")
	local := flag.Bool("local", false, "single-process mode: start one embedded compute node")
	teardown := flag.Bool("teardown", false, "stop endpoint RPC machinery after bootstrap")
	flag.Parse()

	cfg := cluster.ConfigFromEnv()
	if *configPath != "" {
		var err error
		cfg, err = cluster.LoadConfigFile(*configPath, cfg)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	coord := coordinator.New(cfg)
	ctx := context.Background()

	if *local {
		if _, err := coord.BootstrapLocal(ctx); err != nil {
			log.Fatalf("local bootstrap: %v", err)
		}
		report(coord)
		return
	}

	discovered, err := parseEndpoints(os.Getenv("HYDROML_ENDPOINTS"))
	if err != nil {
		log.Fatalf("endpoints: %v", err)
	}
	if len(discovered) == 0 {
		log.Fatalf("no endpoints: set HYDROML_ENDPOINTS")
	}

	// Deduplicate by process id, last registration wins, discovery order kept.
	registry := coordinator.NewRegistry()
	for _, h := range discovered {
		registry.Register(h)
	}

	if err := coord.Bootstrap(ctx, registry.Endpoints()); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	report(coord)

	if *teardown {
		if err := coord.Teardown(ctx); err != nil {
			log.Printf("teardown: %v", err)
		}
	}
}

func report(coord *coordinator.Coordinator) {
	cfg := coord.Config()
	fmt.Printf("cloud %s formed with %d nodes\n", cfg.CloudName, len(coord.Members()))
	for _, m := range coord.Members() {
		fmt.Printf("  node %s at %s\n", m.ProcessID, m.Addr())
	}
	fmt.Printf("leader: %s\n", coord.Leader().Addr())
}

// parseEndpoints reads "id=url" pairs; a bare URL gets a positional id.
func parseEndpoints(raw string) ([]coordinator.EndpointHandle, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []coordinator.EndpointHandle
	for i, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, url, found := strings.Cut(part, "=")
		if !found {
			id, url = fmt.Sprintf("worker-%d", i), part
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("endpoint %q: url must start with http:// or https://", part)
		}
		out = append(out, coordinator.EndpointHandle{ProcessID: id, BaseURL: url})
	}
	return out, nil
}
