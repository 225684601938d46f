package model

import "time"

// ReturnHistory is the mongo journal document holding every operator status change of a return.
type ReturnHistory struct {
	ReturnID  uint64         `bson:"return_id" json:"returnId"`
	History   []StatusRecord `bson:"history" json:"history"`
	CreatedAt time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updatedAt"`
}

type StatusRecord struct {
	InternalStatus string    `bson:"internal_status" json:"internalStatus"`
	ErpStatus      string    `bson:"erp_status" json:"erpStatus"`
	UserID         string    `bson:"user" json:"userId"`
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`

	// marks the latest entry
	Current bool `bson:"current" json:"current"`
}

// SyncRun is the report of one ingestion batch.
type SyncRun struct {
	RunID      string    `bson:"run_id" json:"runId"`
	Source     Source    `bson:"source" json:"source"`
	Date       string    `bson:"date" json:"date"`
	Total      int       `bson:"total" json:"total"`
	Processed  int       `bson:"processed" json:"processed"`
	Skipped    int       `bson:"skipped" json:"skipped"`
	Failed     int       `bson:"failed" json:"failed"`
	Linked     int       `bson:"linked" json:"linked"`
	Errors     []string  `bson:"errors,omitempty" json:"errors,omitempty"`
	StartedAt  time.Time `bson:"started_at" json:"startedAt"`
	FinishedAt time.Time `bson:"finished_at" json:"finishedAt"`
}

// maxRunErrors caps the error messages kept in one report.
const maxRunErrors = 50

func (r *SyncRun) AddError(msg string) {
	if len(r.Errors) < maxRunErrors {
		r.Errors = append(r.Errors, msg)
	}
}
