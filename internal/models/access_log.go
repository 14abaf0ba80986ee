package models

import (
	"time"
)

// AccessLog is one processed request as persisted to the access log store.
type AccessLog struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	RequestID      string    `json:"requestId" gorm:"column:request_id;size:64;index"`
	Timestamp      time.Time `json:"timestamp" gorm:"index"`
	ClientIP       string    `json:"clientIp" gorm:"column:client_ip;size:64;index"`
	Method         string    `json:"method" gorm:"size:16"`
	URL            string    `json:"url"`
	Status         int       `json:"status" gorm:"index"`
	ResponseTimeMs float64   `json:"responseTimeMs" gorm:"column:response_time_ms"`
	ResponseSize   int       `json:"responseSize" gorm:"column:response_size"`
	CacheStatus    string    `json:"cacheStatus" gorm:"column:cache_status;size:8"`
}

// TableName specifies the table name for AccessLog Model
func (AccessLog) TableName() string {
	return "access_logs"
}
