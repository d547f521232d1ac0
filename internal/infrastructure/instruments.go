package infrastructure

import "go.opentelemetry.io/otel/metric"

// instruments builds metric instruments against one meter while
// remembering the first creation error, so a whole set can be declared
// as a literal and checked once.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	if in.err != nil {
		return nil
	}
	var c metric.Int64Counter
	c, in.err = in.meter.Int64Counter(name, metric.WithDescription(desc))
	return c
}

func (in *instruments) upDown(name, desc string) metric.Int64UpDownCounter {
	if in.err != nil {
		return nil
	}
	var c metric.Int64UpDownCounter
	c, in.err = in.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	return c
}

func (in *instruments) seconds(name, desc string) metric.Float64Histogram {
	if in.err != nil {
		return nil
	}
	var h metric.Float64Histogram
	h, in.err = in.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	return h
}

func (in *instruments) gauge(name, desc string) metric.Int64Gauge {
	if in.err != nil {
		return nil
	}
	var g metric.Int64Gauge
	g, in.err = in.meter.Int64Gauge(name, metric.WithDescription(desc))
	return g
}

func (in *instruments) bytesGauge(name, desc string) metric.Int64Gauge {
	if in.err != nil {
		return nil
	}
	var g metric.Int64Gauge
	g, in.err = in.meter.Int64Gauge(name, metric.WithDescription(desc), metric.WithUnit("By"))
	return g
}

func (in *instruments) secondsGauge(name, desc string) metric.Float64Gauge {
	if in.err != nil {
		return nil
	}
	var g metric.Float64Gauge
	g, in.err = in.meter.Float64Gauge(name, metric.WithDescription(desc), metric.WithUnit("s"))
	return g
}
