package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seeds a development database: two shops (one dual-cash), a handful of
// users, and open/close templates. Idempotent: existing rows are left alone.
func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()
	if err := seed(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("seed complete")
}

func seed(ctx context.Context, db *gorm.DB) error {
	shops := []models.Shop{
		{
			Name: "Central", Timezone: "Europe/Moscow",
			OpenTime: "09:00", CloseTime: "21:00",
			EmployeeUsernames: "anna_k, petrov_s",
			ManagerUsernames:  "mgr_ivanova",
		},
		{
			Name: "Riverside", Timezone: "Europe/Moscow",
			OpenTime: "10:00", CloseTime: "22:00",
			EmployeeUsernames: "dual_one, dual_two",
			ManagerUsernames:  "mgr_ivanova",
			DualCashMode:      true,
			ReminderSlots:     "12:00,13:00,13:30,15:00,16:00,16:30,17:30",
		},
	}
	for i := range shops {
		if err := firstOrCreate(ctx, db, &models.Shop{}, "name = ?", []any{shops[i].Name}, &shops[i]); err != nil {
			return err
		}
	}

	users := []models.User{
		{Username: "anna_k", ChatId: "1001", Phone: "+7 926 123-45-01", FullName: "Anna K.", Role: models.UserRoleEmployee},
		{Username: "petrov_s", ChatId: "1002", Phone: "+7 926 123-45-02", FullName: "Sergey Petrov", Role: models.UserRoleEmployee},
		{Username: "dual_one", ChatId: "1003", Phone: "+7 926 123-45-03", FullName: "Desk One", Role: models.UserRoleEmployee},
		{Username: "dual_two", ChatId: "1004", Phone: "+7 926 123-45-04", FullName: "Desk Two", Role: models.UserRoleEmployee},
		{Username: "mgr_ivanova", ChatId: "2001", Phone: "+7 926 123-45-05", FullName: "Olga Ivanova", Role: models.UserRoleManager},
	}
	for i := range users {
		if err := firstOrCreate(ctx, db, &models.User{}, "username = ?", []any{users[i].Username}, &users[i]); err != nil {
			return err
		}
	}

	templates := []models.Template{
		{
			Name: "standard", Phase: "open", Version: 1, IsActive: true,
			Steps: []models.TemplateStep{
				{StepOrder: 1, Code: "cash_open", Title: "Cash at open", Type: models.StepTypeNumber,
					Norm: utils.NewPtr(decimal.NewFromInt(1000)), OwnerRole: models.RunRoleOpener},
				{StepOrder: 2, Code: "hall_photo", Title: "Sales floor photo", Type: models.StepTypePhoto,
					OwnerRole: models.RunRoleOpener},
				{StepOrder: 3, Code: "lights_on", Title: "Signage on", Type: models.StepTypeCheck,
					Required: false, OwnerRole: models.RunRoleShared},
			},
		},
		{
			Name: "standard", Phase: "close", Version: 1, IsActive: true,
			Steps: []models.TemplateStep{
				{StepOrder: 1, Code: "cash_close", Title: "Cash at close", Type: models.StepTypeNumber,
					Norm: utils.NewPtr(decimal.NewFromInt(1000)), OwnerRole: models.RunRoleCloser},
				{StepOrder: 2, Code: "card_total", Title: "Acquiring total", Type: models.StepTypeNumber,
					OwnerRole: models.RunRoleCloser},
				{StepOrder: 3, Code: "z_report_photo", Title: "Z-report photo", Type: models.StepTypePhoto,
					OwnerRole: models.RunRoleCloser},
			},
		},
	}
	for i := range templates {
		if err := firstOrCreate(ctx, db, &models.Template{}, "name = ? AND phase = ?",
			[]any{templates[i].Name, templates[i].Phase}, &templates[i]); err != nil {
			return err
		}
	}
	return nil
}

func firstOrCreate[T any](ctx context.Context, db *gorm.DB, model *T, where string, args []any, row *T) error {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where(where, args...).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return db.WithContext(ctx).Create(row).Error
}
