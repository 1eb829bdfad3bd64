// Package metrics exposes objrecord activity as Prometheus metrics.
//
// A Collectors value counts and times adapter operations when installed
// as the adapter's tracer, and counts record changes when installed as a
// repository observer:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New()
//	if err := m.Register(reg); err != nil {
//	    return err
//	}
//	adapter.SetTracer(m)
//	router.Handle("/metrics", metrics.Handler(reg))
package metrics
