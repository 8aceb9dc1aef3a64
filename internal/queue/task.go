package queue

type TaskType string

const (
	TaskTypeMessageEnrichment TaskType = "message_enrichment"
	// TaskTypeAlertDispatch delivers the alert of an analysis that is
	// already stored. It never re-runs the analysis.
	TaskTypeAlertDispatch TaskType = "alert_dispatch"
)

func (t TaskType) Valid() bool {
	return t == TaskTypeMessageEnrichment || t == TaskTypeAlertDispatch
}
