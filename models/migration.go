package models

import (
	"log"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Shop{}, &User{},
		&Template{}, &TemplateStep{},
		&Run{}, &RunStep{}, &Attachment{},
		&AuditEntry{},
		&IdempotencyKey{},
		&NotificationRecord{}, &ReminderSent{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
