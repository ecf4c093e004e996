// Package metrics exposes Prometheus collectors for the admission pipeline
// and the token lifecycle manager.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AdmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "buzzposter_admissions_total",
		Help: "Tool call admission outcomes.",
	}, []string{"outcome"})

	ToolCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "buzzposter_tool_calls_total",
		Help: "Admitted tool calls by tool name.",
	}, []string{"tool"})

	TokenRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "buzzposter_token_refreshes_total",
		Help: "Provider token refresh attempts by result.",
	}, []string{"result"})
)

// Register registers all collectors with reg (DefaultRegisterer when nil).
// Re-registration is tolerated so tests can call it repeatedly.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{AdmissionsTotal, ToolCallsTotal, TokenRefreshesTotal} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
