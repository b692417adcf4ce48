// Package scheduler enqueues and processes background tasks over Redis via
// asynq. The only producer today is the inspection lock, which queues report
// generation so the lock itself never waits on rendering or delivery.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskInspectionReport = "inspection.report.generate"

// InspectionReportPayload identifies the locked session to render.
type InspectionReportPayload struct {
	SessionID string `json:"sessionId"`
	MissionID string `json:"missionId"`
	Kind      string `json:"kind"`
}

func NewInspectionReportTask(payload InspectionReportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInspectionReport, data), nil
}

func ParseInspectionReportPayload(task *asynq.Task) (InspectionReportPayload, error) {
	var payload InspectionReportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return InspectionReportPayload{}, err
	}
	return payload, nil
}
