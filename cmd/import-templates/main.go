package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Template definitions as authored in JSON. A changed definition never
// mutates the referenced template: the importer deactivates the old row and
// inserts a new one with a bumped version, so in-flight runs keep their
// frozen snapshot.
type templateFile struct {
	Templates []templateDef `json:"templates"`
}

type templateDef struct {
	Name  string    `json:"name"`
	Phase string    `json:"phase"`
	Steps []stepDef `json:"steps"`
}

type stepDef struct {
	Code           string           `json:"code"`
	Title          string           `json:"title"`
	Type           string           `json:"type"`
	Required       *bool            `json:"required"`
	OwnerRole      string           `json:"owner_role"`
	Min            *decimal.Decimal `json:"min"`
	Max            *decimal.Decimal `json:"max"`
	Norm           *decimal.Decimal `json:"norm"`
	DeltaThreshold *decimal.Decimal `json:"delta_threshold"`
	Regex          *string          `json:"regex"`
	Hint           string           `json:"hint"`
}

func main() {
	path := flag.String("file", "templates.json", "Path to the template definitions JSON")
	flag.Parse()

	raw, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *path, err)
		os.Exit(1)
	}
	var file templateFile
	if err := json.Unmarshal(raw, &file); err != nil {
		fmt.Fprintf(os.Stderr, "parse %s: %v\n", *path, err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()
	for _, def := range file.Templates {
		if !config.IsKnownPhase(def.Phase) {
			fmt.Fprintf(os.Stderr, "template %q: unknown phase %q\n", def.Name, def.Phase)
			os.Exit(1)
		}
		id, version, changed, err := importTemplate(ctx, db, def)
		if err != nil {
			fmt.Fprintf(os.Stderr, "template %q: %v\n", def.Name, err)
			os.Exit(1)
		}
		if changed {
			fmt.Printf("imported %s/%s as template %d (version %d)\n", def.Name, def.Phase, id, version)
		} else {
			fmt.Printf("unchanged %s/%s (template %d, version %d)\n", def.Name, def.Phase, id, version)
		}
	}
}

func importTemplate(ctx context.Context, db *gorm.DB, def templateDef) (id int, version int, changed bool, err error) {
	newSteps := buildSteps(def)

	var current models.Template
	found := true
	if err := db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order") }).
		Where("name = ? AND phase = ? AND is_active = ?", def.Name, def.Phase, true).
		Order("version DESC").
		First(&current).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			return 0, 0, false, err
		}
		found = false
	}

	if found && sameSteps(current.Steps, newSteps) {
		return current.ID, current.Version, false, nil
	}

	newVersion := 1
	if found {
		newVersion = current.Version + 1
	}

	tpl := models.Template{
		Name:     def.Name,
		Phase:    def.Phase,
		Version:  newVersion,
		IsActive: true,
		Steps:    newSteps,
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if found {
			if err := tx.Model(&models.Template{}).
				Where("id = ?", current.ID).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&tpl).Error
	})
	if err != nil {
		return 0, 0, false, err
	}
	return tpl.ID, tpl.Version, true, nil
}

func buildSteps(def templateDef) []models.TemplateStep {
	steps := make([]models.TemplateStep, 0, len(def.Steps))
	for i, s := range def.Steps {
		required := true
		if s.Required != nil {
			required = *s.Required
		}
		owner := models.RunRoleShared
		if s.OwnerRole != "" {
			owner = models.RunRole(s.OwnerRole)
		}
		steps = append(steps, models.TemplateStep{
			StepOrder:      i + 1,
			Code:           s.Code,
			Title:          s.Title,
			Type:           models.StepType(s.Type),
			Required:       required,
			OwnerRole:      owner,
			MinValue:       s.Min,
			MaxValue:       s.Max,
			Norm:           s.Norm,
			DeltaThreshold: s.DeltaThreshold,
			Regex:          s.Regex,
			Hint:           s.Hint,
		})
	}
	return steps
}

func sameSteps(a []models.TemplateStep, b []models.TemplateStep) bool {
	if len(a) != len(b) {
		return false
	}
	strip := func(s models.TemplateStep) models.TemplateStep {
		s.ID = 0
		s.TemplateId = 0
		return s
	}
	for i := range a {
		aj, _ := json.Marshal(strip(a[i]))
		bj, _ := json.Marshal(strip(b[i]))
		if string(aj) != string(bj) {
			return false
		}
	}
	return true
}
