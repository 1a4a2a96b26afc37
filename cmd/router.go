package main

import (
	"net/http"

	"github.com/akoutsou/pipegate/internal/metrics"
)

func setupRouter(routes []*route, collector *metrics.Collector, status func() metrics.Snapshot) *http.ServeMux {
	mux := http.NewServeMux()

	for _, rt := range routes {
		mux.Handle(rt.prefix, rt.handler)
	}

	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/status", metrics.StatusHandler(status))

	return mux
}
