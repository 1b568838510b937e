package logger

import (
	"sort"
	"sync"
	"sync/atomic"
)

type componentStat struct {
	warns  int64
	errors int64
}

var components sync.Map // map[string]*componentStat

func statFor(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&statFor(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&statFor(component).errors, 1)
}

// ComponentCount is the number of warnings and errors logged by one component.
type ComponentCount struct {
	Component string
	Warns     int64
	Errors    int64
}

// Counts returns per-component warning and error totals ordered by component name.
func Counts() []ComponentCount {
	var out []ComponentCount
	components.Range(func(k, v any) bool {
		cs := v.(*componentStat)
		out = append(out, ComponentCount{
			Component: k.(string),
			Warns:     atomic.LoadInt64(&cs.warns),
			Errors:    atomic.LoadInt64(&cs.errors),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}

// ResetCounts clears all recorded totals.
func ResetCounts() {
	components.Range(func(k, _ any) bool {
		components.Delete(k)
		return true
	})
}

// LogReport writes the warning and error totals as a single entry.
func LogReport(log *Log) {
	fields := Fields{}
	var warns, errs int64
	for _, c := range Counts() {
		fields[c.Component] = map[string]int64{"warns": c.Warns, "errors": c.Errors}
		warns += c.Warns
		errs += c.Errors
	}
	fields["warns_total"] = warns
	fields["errors_total"] = errs
	log.WithComponent("report").WithFields(fields).Info("run report")
}
