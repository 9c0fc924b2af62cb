package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Describe is used rather than Gather because *Vec metrics with no observed
// label combination are absent from Gather output.
func TestMetrics_AllRegistered(t *testing.T) {
	cases := []struct {
		name string
		c    prometheus.Collector
	}{
		{"http_requests_total", HTTPRequestsTotal},
		{"http_request_duration_seconds", HTTPRequestDuration},
		{"record_operations_total", RecordOperationsTotal},
		{"lifecycle_transitions_total", LifecycleTransitionsTotal},
		{"login_attempts_total", LoginAttemptsTotal},
		{"audit_entries_dropped_total", AuditEntriesDroppedTotal},
		{"db_open_connections", DBOpenConnections},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := make(chan *prometheus.Desc, 10)
			tc.c.Describe(ch)
			close(ch)
			for desc := range ch {
				if strings.Contains(desc.String(), `"`+tc.name+`"`) {
					return
				}
			}
			t.Errorf("metric %q: Describe() returned no descriptor with this fqName", tc.name)
		})
	}
}

func TestMetrics_RecordOperationsTotal(t *testing.T) {
	labels := prometheus.Labels{"resource": "department", "operation": "retire", "outcome": "conflict"}
	before := counterValue(t, RecordOperationsTotal, labels)
	RecordOperationsTotal.With(labels).Inc()
	if after := counterValue(t, RecordOperationsTotal, labels); after-before != 1 {
		t.Errorf("counter moved by %.0f, want 1", after-before)
	}
}

func TestMetrics_LifecycleTransitionsTotal(t *testing.T) {
	labels := prometheus.Labels{"resource": "dependent", "transition": "erase"}
	before := counterValue(t, LifecycleTransitionsTotal, labels)
	LifecycleTransitionsTotal.With(labels).Inc()
	if after := counterValue(t, LifecycleTransitionsTotal, labels); after-before != 1 {
		t.Errorf("counter moved by %.0f, want 1", after-before)
	}
}

func TestStartDBStatsCollector_StopsWhenUnreachable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectPing().WillReturnError(context.DeadlineExceeded)

	StartDBStatsCollector(context.Background(), db, 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if mock.ExpectationsWereMet() == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("collector never pinged the database")
}

// counterValue reads the current value of a CounterVec for the given label set.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	cv.Collect(ch)
	close(ch)
	for m := range ch {
		var dm dto.Metric
		if err := m.Write(&dm); err != nil {
			continue
		}
		if labelsMatch(dm.GetLabel(), labels) {
			return dm.GetCounter().GetValue()
		}
	}
	return 0
}

// labelsMatch returns true when all entries in want appear in got.
func labelsMatch(got []*dto.LabelPair, want prometheus.Labels) bool {
	for k, v := range want {
		found := false
		for _, lp := range got {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
