package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(workerTasksTotal, workerQueueDepth) }

var (
	workerTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_tasks_total",
			Help: "Background tasks by status.",
		},
		[]string{"status"}, // 'completed', 'failed', 'panic', 'dropped'
	)

	workerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Tasks waiting in the background pool queue.",
		},
	)
)

func IncWorkerTask(status string) {
	workerTasksTotal.WithLabelValues(norm(status)).Inc()
}

func SetWorkerQueueDepth(n int) {
	workerQueueDepth.Set(float64(n))
}
