package quarter

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("trimestre no configurado")
	ErrNoParticipation  = errors.New("el usuario no registró participación para este trimestre")
	ErrUserNotEligible  = errors.New("el usuario no pertenece al área o no está activo")
	ErrQuarterClosed    = errors.New("el trimestre no está disponible")
	ErrAssignmentExists = errors.New("meta ya asignada para este trimestre")
)

type Repository interface {
	GetConfig(ctx context.Context, trimestre, anio int, exec ...core.DBExecutor) (Config, error)
	QueryConfigs(ctx context.Context, anio int, exec ...core.DBExecutor) ([]Config, error)
	UpdateConfig(ctx context.Context, cfg Config, exec ...core.DBExecutor) (Config, error)
	UpsertConfig(ctx context.Context, cfg Config, exec ...core.DBExecutor) (Config, error)

	GetParticipation(ctx context.Context, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) (Participation, error)
	UpsertParticipation(ctx context.Context, p Participation, exec ...core.DBExecutor) (Participation, error)

	GetGoalAssignment(ctx context.Context, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) (GoalAssignment, error)
	UpsertGoalAssignment(ctx context.Context, ga GoalAssignment, exec ...core.DBExecutor) (GoalAssignment, error)
	QueryGoalAssignments(ctx context.Context, areaID string, trimestre, anio int, exec ...core.DBExecutor) ([]GoalAssignment, error)
}

type Service struct {
	db      core.DB
	repo    Repository
	users   user.Repository
	mailSvc core.EmailService
}

func NewService(db core.DB, repo Repository, users user.Repository, mailSvc core.EmailService) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
	}
}

func (svc *Service) GetConfig(ctx context.Context, trimestre, anio int) (Config, error) {
	return svc.repo.GetConfig(ctx, trimestre, anio)
}

// QueryViews returns the year's quarter configs decorated with their
// computed availability.
func (svc *Service) QueryViews(ctx context.Context, anio int, now time.Time) ([]ConfigView, error) {
	configs, err := svc.repo.QueryConfigs(ctx, anio)
	if err != nil {
		return nil, err
	}
	views := make([]ConfigView, 0, len(configs))
	for _, cfg := range configs {
		views = append(views, ConfigView{Config: cfg, Disponibilidad: Resolve(cfg, now)})
	}
	return views, nil
}

// EnableManually opens the quarter outside its regular window. A nil day
// budget means no time limit.
func (svc *Service) EnableManually(ctx context.Context, trimestre, anio int, em EnableManually) (Config, error) {
	cfg, err := svc.repo.GetConfig(ctx, trimestre, anio)
	if err != nil {
		return Config{}, err
	}

	cfg.HabilitadoManualmente = true
	cfg.FechaHabilitacionManual = null.TimeFrom(time.Now().UTC())
	if em.DiasHabilitados != nil {
		cfg.DiasHabilitados = null.IntFrom(*em.DiasHabilitados)
	} else {
		cfg.DiasHabilitados = null.Int{}
		cfg.FechaHabilitacionManual = null.Time{}
	}
	return svc.repo.UpdateConfig(ctx, cfg)
}

// DisableManual reverts a quarter to its regular window.
func (svc *Service) DisableManual(ctx context.Context, trimestre, anio int) (Config, error) {
	cfg, err := svc.repo.GetConfig(ctx, trimestre, anio)
	if err != nil {
		return Config{}, err
	}
	cfg.HabilitadoManualmente = false
	cfg.DiasHabilitados = null.Int{}
	cfg.FechaHabilitacionManual = null.Time{}
	return svc.repo.UpdateConfig(ctx, cfg)
}

// SetParticipation records the user's opt-in decision for an available quarter.
func (svc *Service) SetParticipation(ctx context.Context, usr user.User, trimestre, anio int, participa bool) (Participation, error) {
	cfg, err := svc.repo.GetConfig(ctx, trimestre, anio)
	if err != nil {
		return Participation{}, err
	}
	if av := Resolve(cfg, time.Now()); !av.Disponible {
		return Participation{}, core.NewConflictError(av.Razon)
	}

	return svc.repo.UpsertParticipation(ctx, Participation{
		UsuarioID: usr.ID,
		Trimestre: trimestre,
		Anio:      anio,
		Participa: participa,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *Service) GetParticipation(ctx context.Context, usuarioID string, trimestre, anio int) (Participation, error) {
	return svc.repo.GetParticipation(ctx, usuarioID, trimestre, anio)
}

// AssignGoal records the goal text for a user/quarter and notifies the user.
// The target must be an active regular user of the area who opted in for the
// quarter.
func (svc *Service) AssignGoal(ctx context.Context, areaID string, trimestre, anio int, ag AssignGoal) (GoalAssignment, error) {
	usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: ag.UsuarioID})
	if err != nil {
		return GoalAssignment{}, err
	}
	if !usr.IsActive() || !usr.BelongsTo(areaID) {
		return GoalAssignment{}, ErrUserNotEligible
	}

	p, err := svc.repo.GetParticipation(ctx, usr.ID, trimestre, anio)
	if err != nil && errors.Cause(err) != ErrNotFound {
		return GoalAssignment{}, err
	}
	if err != nil || !p.Participa {
		return GoalAssignment{}, core.NewValidationError(ErrNoParticipation,
			core.FieldError{Field: "usuario_id", Error: ErrNoParticipation.Error()})
	}

	ga, err := svc.repo.UpsertGoalAssignment(ctx, GoalAssignment{
		UsuarioID:       usr.ID,
		AreaID:          areaID,
		Trimestre:       trimestre,
		Anio:            anio,
		Meta:            ag.Meta,
		FechaAsignacion: time.Now().UTC(),
	})
	if err != nil {
		return GoalAssignment{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Nombre, Address: usr.Email}},
		Subject:      "Nueva meta asignada",
		TemplateName: "goal-assigned",
		TemplateData: struct {
			Nombre    string
			Trimestre int
			Anio      int
			Meta      string
		}{usr.Nombre, trimestre, anio, ga.Meta},
	})
	return ga, nil
}

func (svc *Service) GetGoalAssignment(ctx context.Context, usuarioID string, trimestre, anio int) (GoalAssignment, error) {
	return svc.repo.GetGoalAssignment(ctx, usuarioID, trimestre, anio)
}

func (svc *Service) QueryGoalAssignments(ctx context.Context, areaID string, trimestre, anio int) ([]GoalAssignment, error) {
	return svc.repo.QueryGoalAssignments(ctx, areaID, trimestre, anio)
}

// SeedYear ensures the four quarter configs exist for a year, with the
// standard calendar windows, all closed.
func (svc *Service) SeedYear(ctx context.Context, anio int) error {
	for n := 1; n <= 4; n++ {
		start := time.Date(anio, time.Month(3*(n-1)+1), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 3, 0).Add(-time.Second)
		if _, err := svc.repo.UpsertConfig(ctx, Config{
			Trimestre:   n,
			Anio:        anio,
			FechaInicio: start,
			FechaFin:    end,
		}); err != nil {
			return errors.Wrapf(err, "seeding trimestre %d-%d", n, anio)
		}
	}
	return nil
}
