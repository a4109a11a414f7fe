package metrics

import (
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type EngineMetrics struct {
	executedBatchCount   prometheus.Counter
	failedBatchCount     prometheus.Counter
	rejectedBatchCount   prometheus.Counter
	publishedRecordCount prometheus.Counter
	lastBatchIdGauge     prometheus.Gauge
	lastExecutionGauge   prometheus.Gauge
}

func NewEngineMetrics(namespace string) *EngineMetrics {
	m := EngineMetrics{
		// metrics for batch execution
		executedBatchCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_executed_batch_count", namespace),
			Help: "The total number of successfully executed batches",
		}),
		failedBatchCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_failed_batch_count", namespace),
			Help: "The total number of batches that failed during transfer application",
		}),
		rejectedBatchCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_rejected_batch_count", namespace),
			Help: "The total number of batches rejected before transfer application",
		}),
		lastBatchIdGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_last_batch_id", namespace),
			Help: "The id of the latest recorded batch",
		}),
		lastExecutionGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_last_execution_tick", namespace),
			Help: "The tick of the latest successful batch execution",
		}),
		// metrics for the audit record publisher
		publishedRecordCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_published_record_count", namespace),
			Help: "The total number of published audit records",
		}),
	}
	return &m
}

func (metrics *EngineMetrics) IncExecutedBatches() {
	metrics.executedBatchCount.Inc()
}

func (metrics *EngineMetrics) IncFailedBatches() {
	metrics.failedBatchCount.Inc()
}

func (metrics *EngineMetrics) IncRejectedBatches() {
	metrics.rejectedBatchCount.Inc()
}

func (metrics *EngineMetrics) SetLastBatchId(id uint64) {
	metrics.lastBatchIdGauge.Set(float64(id))
}

func (metrics *EngineMetrics) SetLastExecutionTick(tick uint32) {
	metrics.lastExecutionGauge.Set(float64(tick))
}

func (metrics *EngineMetrics) AddPublishedRecords(count int) {
	metrics.publishedRecordCount.Add(float64(count))
}
