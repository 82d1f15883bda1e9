package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "harpoon_bootstrap_pass_duration_sec",
	Help: "Duration of guild chunking passes",
})

var passTimeoutCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "harpoon_bootstrap_pass_timeouts",
	Help: "Number of chunking passes which hit the global timeout",
})

var chunkFailCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "harpoon_bootstrap_chunk_failures",
	Help: "Number of individual guild chunk fetches which failed",
})

var guildsChunked = promauto.NewCounter(prometheus.CounterOpts{
	Name: "harpoon_bootstrap_guilds_chunked",
	Help: "Number of successful guild chunk fetches",
})
