package model

type StagingEvent struct {
	StagingEventID  uint64 `gorm:"column:staging_event_id;primaryKey;autoIncrement"`
	PartNumber      string `gorm:"column:part_number;type:text"`
	SerialNumber    string `gorm:"column:serial_number;type:text"`
	RawDate         string `gorm:"column:raw_date;type:text"`
	Shift           string `gorm:"column:shift;type:text"`
	Disposition     string `gorm:"column:disposition;type:text"`
	Code            string `gorm:"column:code;type:text"`
	CodeDescription string `gorm:"column:code_description;type:text"`
	Category        string `gorm:"column:category;type:text"`
	Type            string `gorm:"column:type;type:text"`
	MachineNo       string `gorm:"column:machine_no;type:text"`
	OperatorNo      string `gorm:"column:operator_no;type:text"`
	DefectComment   string `gorm:"column:defect_comment;type:text"`
	RepairComment   string `gorm:"column:repair_comment;type:text"`
	Fingerprint     string `gorm:"column:record_fingerprint;type:text;not null;index"`
	BatchID         string `gorm:"column:batch_id;type:text;not null;index"`
	ExtractedAt     string `gorm:"column:extracted_at;type:text;not null"`
	IsProcessed     bool   `gorm:"column:is_processed;not null;default:false;index"`
}

func (StagingEvent) TableName() string {
	return "stg_quality_events"
}
