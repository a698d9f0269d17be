package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
	"bitbucket.org/mmdatafocus/retailcheck_backend/utils"
)

// ResolveTemplateSteps returns the ordered step definitions for one phase of
// a run, from the run's frozen phase map. Passing a role filters to that
// role's steps plus shared ones (opener sees opener+shared, closer
// closer+shared); RunRoleShared or "" returns everything.
func ResolveTemplateSteps(ctx context.Context, run *models.Run, phase string, role models.RunRole) ([]*models.TemplateStep, error) {
	phaseMap, err := run.PhaseMap()
	if err != nil {
		return nil, err
	}
	templateId, ok := phaseMap[phase]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}

	tpl, err := models.GetTemplateWithSteps(ctx, templateId)
	if err != nil {
		return nil, err
	}

	steps := make([]*models.TemplateStep, 0, len(tpl.Steps))
	for i := range tpl.Steps {
		s := &tpl.Steps[i]
		if !roleSeesStep(role, s.OwnerRole) {
			continue
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// FindTemplateStep resolves one step definition within a run's phase without
// role filtering; ownership is checked separately by the state machine.
func FindTemplateStep(ctx context.Context, run *models.Run, phase string, stepCode string) (*models.TemplateStep, error) {
	steps, err := ResolveTemplateSteps(ctx, run, phase, models.RunRoleShared)
	if err != nil {
		return nil, err
	}
	for _, s := range steps {
		if s.Code == stepCode {
			return s, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func roleSeesStep(role models.RunRole, owner models.RunRole) bool {
	if role == "" || role == models.RunRoleShared {
		return true
	}
	return owner == models.RunRoleShared || owner == role
}

// FreezePhaseMap resolves the current active template for every configured
// phase and returns the snapshot bound to a new run for its whole lifetime.
func FreezePhaseMap(ctx context.Context, phases []string) (map[string]int, error) {
	m := make(map[string]int, len(phases))
	for _, phase := range phases {
		tpl, err := models.GetLatestTemplateForPhase(ctx, phase)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				// Phases without a template are simply absent from the run.
				continue
			}
			return nil, err
		}
		m[phase] = tpl.ID
	}
	return m, nil
}
