package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"strategist/logger"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func withClient(t *testing.T, client PutMetricDataAPI) {
	t.Helper()
	prev := cwState.Load()
	SetCloudWatchClient(client, "Test", "eu-west-1")
	t.Cleanup(func() { cwState.Store(prev) })

	resetMetricPublishTimes()
	t.Cleanup(resetMetricPublishTimes)
}

func withClock(t *testing.T, now *time.Time) {
	t.Helper()
	timeNow = func() time.Time { return *now }
	t.Cleanup(func() { timeNow = time.Now })
}

func TestPublishMetricDatumThrottlesToInterval(t *testing.T) {
	withClient(t, &fakeCloudWatch{})
	original := cloudWatchPublishInterval
	cloudWatchPublishInterval = 50 * time.Millisecond
	t.Cleanup(func() { cloudWatchPublishInterval = original })

	now := time.Now()
	withClock(t, &now)

	var batches [][]cwtypes.MetricDatum
	publishMetricsFunc = func(_ context.Context, _ *cloudWatchState, data []cwtypes.MetricDatum) {
		batches = append(batches, data)
	}
	t.Cleanup(func() { publishMetricsFunc = publishMetrics })

	metric := Metric{Component: "series_loader", Name: "series_loaded", Unit: "count"}
	publishMetricDatum(metric)
	now = now.Add(25 * time.Millisecond)
	metric.Value = 2
	publishMetricDatum(metric)
	if len(batches) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(batches))
	}

	now = now.Add(50 * time.Millisecond)
	metric.Value = 3
	publishMetricDatum(metric)
	if len(batches) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(batches))
	}
	if v := aws.ToFloat64(batches[1][0].Value); v != 3 {
		t.Fatalf("unexpected value: %v", v)
	}
}

func TestEmitPublishesDimensions(t *testing.T) {
	fake := &fakeCloudWatch{}
	withClient(t, fake)
	resetMetricHandlers()

	Emit(nil, "series_loader", LoadDurationMs, 12.5, Timer, "milliseconds", logger.Fields{
		"symbol":     "XAUUSD",
		"timeframe":  "4hr",
		"request_id": "abc",
		"rows":       10,
	})

	if len(fake.inputs) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	if aws.ToString(in.Namespace) != "Test" {
		t.Fatalf("unexpected namespace %q", aws.ToString(in.Namespace))
	}
	datum := in.MetricData[0]
	if datum.Unit != cwtypes.StandardUnitMilliseconds {
		t.Fatalf("unexpected unit %s", datum.Unit)
	}
	dims := map[string]string{}
	for _, d := range datum.Dimensions {
		dims[aws.ToString(d.Name)] = aws.ToString(d.Value)
	}
	if dims["component"] != "series_loader" || dims["symbol"] != "XAUUSD" || dims["timeframe"] != "4hr" {
		t.Fatalf("unexpected dimensions %v", dims)
	}
	if _, ok := dims["request_id"]; ok {
		t.Fatalf("request_id must not become a dimension")
	}
	if _, ok := dims["rows"]; ok {
		t.Fatalf("non-string fields must not become dimensions")
	}
}

func TestPublishFailureIsLoggedOnly(t *testing.T) {
	fake := &fakeCloudWatch{err: errors.New("throttled")}
	withClient(t, fake)

	publishMetricDatum(Metric{Component: "c", Name: "n"})
	if len(fake.inputs) != 1 {
		t.Fatalf("expected publish attempt")
	}
}

func TestNoClientNoPublish(t *testing.T) {
	withClient(t, nil)
	called := false
	publishMetricsFunc = func(context.Context, *cloudWatchState, []cwtypes.MetricDatum) { called = true }
	t.Cleanup(func() { publishMetricsFunc = publishMetrics })

	publishMetricDatum(Metric{Component: "c", Name: "n"})
	if called {
		t.Fatalf("publish without a client")
	}
}
