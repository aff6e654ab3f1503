package adapter

// MetricSink receives fire-and-forget usage events. Implementations must not
// block the caller and must swallow delivery failures; billing state never
// depends on a metric landing.
type MetricSink interface {
	Emit(event string, value float64, meta map[string]string)
}
