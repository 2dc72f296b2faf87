// Package main implements the hydroml worker endpoint daemon. One workerd
// runs inside (or beside) each host-engine worker process and answers the
// bootstrap coordinator's protocol messages, owning the lifecycle of the
// locally-spawned compute node.
//
// Configuration:
//   - WORKERD_LISTEN: endpoint listen address (default ":8561")
//   - WORKERD_PROCESS_ID: worker identity (default: hostname)
//   - WORKERD_EMBEDDED: "true" to run an in-process compute node
//   - WORKERD_RUNTIME_BIN: compute runtime binary (required unless embedded)
//   - WORKERD_FLATFILE: optional path to persist the membership flat file
//
// Shutting workerd down stops the endpoint's RPC machinery only; a spawned
// compute runtime keeps serving the cloud.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openfathom/hydroml/internal/endpoint"
)

func main() {
	listen := getenv("WORKERD_LISTEN", ":8561")
	processID := getenv("WORKERD_PROCESS_ID", defaultProcessID())

	var node endpoint.ComputeNode
	if getenv("WORKERD_EMBEDDED", "") == "true" {
		node = endpoint.NewEmbeddedNode(processID)
	} else {
		node = &endpoint.ProcessNode{
			Binary:       mustGetenv("WORKERD_RUNTIME_BIN"),
			FlatFilePath: os.Getenv("WORKERD_FLATFILE"),
			ProcessID:    processID,
		}
	}

	srv := endpoint.NewServer(listen, node)
	go func() {
		log.Printf("workerd[%s] listening on %s", processID, listen)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("workerd stopped (compute node keeps running)")
}

func defaultProcessID() string {
	host, err := os.Hostname()
	if err != nil {
		return "worker"
	}
	return host
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustGetenv(k string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	log.Fatalf("missing env %s", k)
	return ""
}
