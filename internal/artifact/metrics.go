package artifact

import "strings"

// Metric is a canonical model-quality metric name. The document's metric
// sections use loosely-formatted field names ("r2", "pr_auc",
// "mean_per_class_error"); matching strips underscores and ignores case, and
// anything that does not match a canonical name is dropped.
type Metric string

const (
	MetricMSE                   Metric = "MSE"
	MetricRMSE                  Metric = "RMSE"
	MetricMAE                   Metric = "MAE"
	MetricRMSLE                 Metric = "RMSLE"
	MetricR2                    Metric = "R2"
	MetricLogLoss               Metric = "LogLoss"
	MetricAUC                   Metric = "AUC"
	MetricPRAUC                 Metric = "PRAUC"
	MetricGini                  Metric = "Gini"
	MetricAIC                   Metric = "AIC"
	MetricLoglikelihood         Metric = "Loglikelihood"
	MetricMeanPerClassError     Metric = "MeanPerClassError"
	MetricMeanResidualDeviance  Metric = "MeanResidualDeviance"
	MetricNullDeviance          Metric = "NullDeviance"
	MetricResidualDeviance      Metric = "ResidualDeviance"
	MetricTotalWithinClusterSSE Metric = "TotalWithinClusterSSE"
	MetricBetweenClusterSSE     Metric = "BetweenClusterSSE"
)

// allMetrics is the closed canonical enumeration the matcher resolves into.
var allMetrics = []Metric{
	MetricMSE, MetricRMSE, MetricMAE, MetricRMSLE, MetricR2,
	MetricLogLoss, MetricAUC, MetricPRAUC, MetricGini, MetricAIC,
	MetricLoglikelihood, MetricMeanPerClassError, MetricMeanResidualDeviance,
	MetricNullDeviance, MetricResidualDeviance,
	MetricTotalWithinClusterSSE, MetricBetweenClusterSSE,
}

// metricIndex maps canonicalized field names to metrics, built once.
var metricIndex = func() map[string]Metric {
	idx := make(map[string]Metric, len(allMetrics))
	for _, m := range allMetrics {
		idx[canonicalMetricKey(string(m))] = m
	}
	return idx
}()

// canonicalMetricKey strips underscores and lowercases, so "pr_auc", "PRAUC"
// and "PrAuc" all resolve to the same metric.
func canonicalMetricKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

// extractMetrics pulls every recognized numeric metric out of one metric
// section. A nil, absent or malformed section yields an empty map; metric
// extraction never fails a load.
func extractMetrics(section any) map[Metric]float64 {
	out := make(map[Metric]float64)
	fields, ok := section.(map[string]any)
	if !ok {
		return out
	}
	for name, raw := range fields {
		value, ok := raw.(float64)
		if !ok {
			continue
		}
		if m, ok := metricIndex[canonicalMetricKey(name)]; ok {
			out[m] = value
		}
	}
	return out
}
