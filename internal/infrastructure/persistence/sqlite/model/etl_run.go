package model

type ETLRun struct {
	RunID                    uint64 `gorm:"column:run_id;primaryKey;autoIncrement"`
	JobName                  string `gorm:"column:job_name;type:text;not null;index"`
	LastSuccessfulExtraction string `gorm:"column:last_successful_extraction;type:text"`
	MaxEventTime             string `gorm:"column:max_event_time;type:text"`
	RecordsProcessed         int    `gorm:"column:records_processed;not null"`
	Status                   string `gorm:"column:status;type:text;not null;index"`
	ErrorMessage             string `gorm:"column:error_message;type:text"`
	StartedAt                string `gorm:"column:started_at;type:text;not null"`
	CompletedAt              string `gorm:"column:completed_at;type:text;not null;index"`
}

func (ETLRun) TableName() string {
	return "etl_runs"
}
