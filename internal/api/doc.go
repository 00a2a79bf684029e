// Package api hosts the optional status server that runs alongside a CLI
// command. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /progress for the current run's counter snapshot.
//   - GET /runs/last for the most recently finished run.
package api
