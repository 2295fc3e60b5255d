package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"skyline/internal/types"
)

// Metric names and dimensions published to CloudWatch.
const (
	MetricAPIRequest      = "APIRequest"
	MetricAPILatency      = "APIRequestLatency"
	MetricUpstreamFailure = "UpstreamFailure"

	DimMethod    = "Method"
	DimEndpoint  = "Endpoint"
	DimStatus    = "Status"
	DimErrorCode = "ErrorCode"
)

// metricsPutTimeout bounds a single PutMetricData call.
const metricsPutTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics publishes request and upstream-failure metrics.
//
// Metrics emitted:
//   - APIRequest: Dims {Method, Endpoint, Status} -- one per request
//   - APIRequestLatency: Dims {Method, Endpoint} -- handler duration in ms
//   - UpstreamFailure: Dims {Endpoint, ErrorCode} -- one per failed provider call
//
// Publishing errors are logged and never returned.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ MetricsCollector = (*CloudWatchMetrics)(nil)

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordRequest implements MetricsCollector.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsPutTimeout)
	defer cancel()

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricAPIRequest),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(DimMethod), Value: aws.String(method)},
					{Name: aws.String(DimEndpoint), Value: aws.String(endpoint)},
					{Name: aws.String(DimStatus), Value: aws.String(status)},
				},
			},
			{
				MetricName: aws.String(MetricAPILatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(DimMethod), Value: aws.String(method)},
					{Name: aws.String(DimEndpoint), Value: aws.String(endpoint)},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record request metric",
			"error", err.Error(),
			"endpoint", endpoint,
			"status", status,
		)
	}
}

// RecordUpstreamFailure emits one UpstreamFailure datum for a failed provider
// call. It satisfies external.FailureRecorder.
func (m *CloudWatchMetrics) RecordUpstreamFailure(ctx context.Context, endpoint string, code types.ErrorCode) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsPutTimeout)
	defer cancel()

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricUpstreamFailure),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(DimEndpoint), Value: aws.String(endpoint)},
					{Name: aws.String(DimErrorCode), Value: aws.String(string(code))},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record upstream failure metric",
			"error", err.Error(),
			"endpoint", endpoint,
			"code", string(code),
		)
	}
}
