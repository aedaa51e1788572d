package quarter

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/rumboapp/rumbo/core"
)

// Config is the submission window configuration for one quarter of a year.
// Exactly one row exists per (trimestre, anio).
type Config struct {
	ID                      string    `json:"id"`
	Trimestre               int       `json:"trimestre"`
	Anio                    int       `json:"anio"`
	FechaInicio             time.Time `json:"fecha_inicio"`
	FechaFin                time.Time `json:"fecha_fin"`
	Abierto                 bool      `json:"abierto"`
	HabilitadoManualmente   bool      `json:"habilitado_manualmente"`
	DiasHabilitados         null.Int  `json:"dias_habilitados"`
	FechaHabilitacionManual null.Time `json:"fecha_habilitacion_manual"`
}

// ConfigView is a Config decorated with its computed availability.
type ConfigView struct {
	Config
	Disponibilidad Availability `json:"disponibilidad"`
}

// Participation is a user's opt-in (or out) record for one quarter.
type Participation struct {
	ID        string    `json:"id"`
	UsuarioID string    `json:"usuario_id"`
	Trimestre int       `json:"trimestre"`
	Anio      int       `json:"anio"`
	Participa bool      `json:"participa"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// GoalAssignment is the admin-authored goal text for one user/quarter.
type GoalAssignment struct {
	ID              string    `json:"id"`
	UsuarioID       string    `json:"usuario_id"`
	AreaID          string    `json:"area_id"`
	Trimestre       int       `json:"trimestre"`
	Anio            int       `json:"anio"`
	Meta            string    `json:"meta"`
	FechaAsignacion time.Time `json:"fecha_asignacion"` // UTC
}

// EnableManually opens a quarter outside its regular window, optionally for
// a bounded number of days starting now.
type EnableManually struct {
	DiasHabilitados *int `json:"dias_habilitados" validate:"omitempty,min=1"`
}

func (em EnableManually) Validate(validate *validator.Validate) error {
	return validate.Struct(em)
}

// SetParticipation records the caller's opt-in decision for a quarter.
type SetParticipation struct {
	Participa *bool `json:"participa" validate:"required"`
}

func (sp SetParticipation) Validate(validate *validator.Validate) error {
	return validate.Struct(sp)
}

// AssignGoal is the admin request to set a user's goal text for a quarter.
type AssignGoal struct {
	UsuarioID string `json:"usuario_id" validate:"required,uuid4"`
	Meta      string `json:"meta" validate:"required"`
}

func (ag *AssignGoal) Validate(validate *validator.Validate) error {
	ag.UsuarioID = core.CleanString(ag.UsuarioID, true /* lower */)
	ag.Meta = core.CleanString(ag.Meta)
	return validate.Struct(ag)
}
