package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	applicationOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "applications",
			Name:      "operations_total",
			Help:      "求职记录操作次数，按操作与结果区分。",
		},
		[]string{"operation", "outcome"},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "登录尝试次数。",
		},
		[]string{"result"},
	)

	exportRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "csv_rows",
			Help:      "每次 CSV 导出的数据行数。",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)
)

// ObserveApplicationOperation counts one repository operation; outcome is "ok" or an error class.
func ObserveApplicationOperation(operation, outcome string) {
	applicationOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveLogin counts a login attempt by result ("success", "invalid", "locked", "rate_limited").
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// ObserveExport records the number of data rows in an export.
func ObserveExport(rows int) {
	exportRows.Observe(float64(rows))
}
