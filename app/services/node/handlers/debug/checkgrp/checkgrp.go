// Package checkgrp provides the node's liveness and readiness endpoints,
// hit by process supervisors and load balancers rather than the wallet API.
package checkgrp

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// Handlers holds the state needed to answer the standard library
// http.HandlerFunc-shaped debug endpoints DebugMux registers.
type Handlers struct {
	Build string
	Log   *zap.SugaredLogger
}

// Readiness always reports 200: the node has nothing external to dial at
// startup (storage is opened before the listener starts), so there is no
// dependency readiness can usefully gate on beyond the process being up.
func (h Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Status string `json:"status"`
	}{
		Status: "ok",
	}

	if err := respond(w, http.StatusOK, data); err != nil {
		h.Log.Errorw("readiness", "ERROR", err)
	}
}

// Liveness reports process identity and uptime information used to
// confirm the node is still scheduling work, not just accepting TCP.
func (h Handlers) Liveness(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Status    string    `json:"status"`
		Build     string    `json:"build"`
		Host      string    `json:"host"`
		Pod       string    `json:"pod,omitempty"`
		PodIP     string    `json:"podIP,omitempty"`
		Node      string    `json:"node,omitempty"`
		Namespace string    `json:"namespace,omitempty"`
		Timestamp time.Time `json:"timestamp"`
	}{
		Status:    "up",
		Build:     h.Build,
		Timestamp: time.Now().UTC(),
	}

	host, err := os.Hostname()
	if err == nil {
		data.Host = host
	}

	data.Pod = os.Getenv("KUBERNETES_PODNAME")
	data.PodIP = os.Getenv("KUBERNETES_NAMESPACE_POD_IP")
	data.Node = os.Getenv("KUBERNETES_NODENAME")
	data.Namespace = os.Getenv("KUBERNETES_NAMESPACE")

	if err := respond(w, http.StatusOK, data); err != nil {
		h.Log.Errorw("liveness", "ERROR", err)
	}
}

func respond(w http.ResponseWriter, statusCode int, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err = w.Write(jsonData)
	return err
}
