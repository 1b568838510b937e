// Package metrics records structured metric events. Every event is logged,
// dispatched to registered handlers and, when configured, published to
// CloudWatch.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"strategist/logger"
)

// Metric types.
const (
	Counter = "counter"
	Gauge   = "gauge"
	Timer   = "timer"
)

// Metric is one structured metric event.
type Metric struct {
	Timestamp time.Time
	Component string
	Name      string
	Value     float64
	Type      string
	Unit      string
	Fields    logger.Fields
}

// MetricHandler consumes emitted metrics.
type MetricHandler func(Metric)

// MetricHandlerID identifies a registered handler.
type MetricHandlerID uint64

var (
	metricHandlersMu    sync.RWMutex
	metricHandlers      = make(map[MetricHandlerID]MetricHandler)
	nextMetricHandlerID MetricHandlerID

	enabled  atomic.Bool
	disabled sync.Map // metric name -> struct{}

	timeNow = time.Now
)

func init() {
	enabled.Store(true)
}

// Options switches metrics off globally or per name.
type Options struct {
	Enabled  bool
	Disabled []string
}

// Configure replaces the current switches.
func Configure(opts Options) {
	enabled.Store(opts.Enabled)
	disabled.Range(func(k, _ any) bool {
		disabled.Delete(k)
		return true
	})
	for _, name := range opts.Disabled {
		disabled.Store(name, struct{}{})
	}
}

// RegisterMetricHandler registers a handler that receives every emitted
// metric. A nil handler gets the zero id.
func RegisterMetricHandler(handler MetricHandler) MetricHandlerID {
	if handler == nil {
		return 0
	}

	metricHandlersMu.Lock()
	defer metricHandlersMu.Unlock()

	nextMetricHandlerID++
	id := nextMetricHandlerID
	metricHandlers[id] = handler
	return id
}

func UnregisterMetricHandler(id MetricHandlerID) {
	if id == 0 {
		return
	}

	metricHandlersMu.Lock()
	delete(metricHandlers, id)
	metricHandlersMu.Unlock()
}

// Emit logs the metric, hands it to the handlers and publishes it to
// CloudWatch when a client is configured.
func Emit(log *logger.Log, component, name string, value float64, metricType, unit string, fields logger.Fields) {
	metric, ok := recordMetric(log, component, name, value, metricType, unit, fields)
	if !ok {
		return
	}
	publishMetricDatum(metric)
}

func recordMetric(log *logger.Log, component, name string, value float64, metricType, unit string, fields logger.Fields) (Metric, bool) {
	if name == "" || !enabled.Load() {
		return Metric{}, false
	}
	if _, off := disabled.Load(name); off {
		return Metric{}, false
	}
	if metricType == "" {
		metricType = Counter
	}
	if unit == "" {
		unit = "count"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	userFields := cloneFields(fields)
	logFields := make(logger.Fields, len(userFields)+4)
	for k, v := range userFields {
		logFields[k] = v
	}
	logFields["metric"] = name
	logFields["metric_type"] = metricType
	logFields["value"] = value
	logFields["unit"] = unit
	log.WithComponent(component).WithFields(logFields).Debug("metric")

	metric := Metric{
		Timestamp: timeNow(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Unit:      unit,
		Fields:    userFields,
	}
	dispatchMetric(metric)
	return metric, true
}

func dispatchMetric(metric Metric) {
	metricHandlersMu.RLock()
	if len(metricHandlers) == 0 {
		metricHandlersMu.RUnlock()
		return
	}
	handlers := make([]MetricHandler, 0, len(metricHandlers))
	for _, handler := range metricHandlers {
		handlers = append(handlers, handler)
	}
	metricHandlersMu.RUnlock()

	for _, handler := range handlers {
		handler(metric)
	}
}

func cloneFields(fields logger.Fields) logger.Fields {
	copied := make(logger.Fields, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return copied
}
