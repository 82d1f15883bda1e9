package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lockedDropCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "harpoon_events_dropped_locked",
	Help: "Number of message events dropped because bootstrap had not completed",
})

var gatewayEventCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "harpoon_gateway_events",
	Help: "Number of gateway events received",
}, []string{"type"})
