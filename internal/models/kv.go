package models

// KVPair is one row of the backing store.
type KVPair struct {
	Key   int64  `json:"key" gorm:"column:key;primaryKey;autoIncrement:false"`
	Value string `json:"value" gorm:"column:value;type:text;not null"`
}

// TableName specifies the table name for KVPair Model
func (KVPair) TableName() string {
	return "kv_store"
}
