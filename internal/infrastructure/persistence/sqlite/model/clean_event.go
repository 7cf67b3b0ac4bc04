package model

type CleanEvent struct {
	CleanEventID    uint64 `gorm:"column:clean_event_id;primaryKey;autoIncrement"`
	PartNumber      string `gorm:"column:part_number;type:text;not null"`
	SerialNumber    string `gorm:"column:serial_number;type:text"`
	EventDate       string `gorm:"column:event_date;type:text;not null;index"`
	Shift           string `gorm:"column:shift;type:text"`
	Disposition     string `gorm:"column:disposition;type:text;index"`
	Code            string `gorm:"column:code;type:text"`
	CodeDescription string `gorm:"column:code_description;type:text"`
	Category        string `gorm:"column:category;type:text"`
	Type            string `gorm:"column:type;type:text"`
	MachineNo       string `gorm:"column:machine_no;type:text"`
	OperatorNo      string `gorm:"column:operator_no;type:text"`
	DefectComment   string `gorm:"column:defect_comment;type:text"`
	RepairComment   string `gorm:"column:repair_comment;type:text"`
	Fingerprint     string `gorm:"column:record_fingerprint;type:text;not null;uniqueIndex"`
	LoadDate        string `gorm:"column:load_date;type:text;not null"`
	LoadTimestamp   string `gorm:"column:load_timestamp;type:text;not null"`
	IsActive        bool   `gorm:"column:is_active;not null;default:true"`
}

func (CleanEvent) TableName() string {
	return "clean_quality_events"
}
