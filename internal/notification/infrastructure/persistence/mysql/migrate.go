package mysql

import "gorm.io/gorm"

// AutoMigrate 迁移通知子系统自有的表。
// projects、issues、accounts 等主数据表归属其他服务，不在此迁移。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&NotificationModel{},
		&PreferenceModel{},
	)
}
