package evidence

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/rumboapp/rumbo/core"
)

const (
	StatusPendiente = "pendiente"
	StatusAprobado  = "aprobado"
	StatusRechazado = "rechazado"
)

// Evidence is one user-uploaded file backing one plan goal for a quarter.
// Graded fields stay null until an admin reviews it.
type Evidence struct {
	ID              string      `json:"id"`
	MetaID          string      `json:"meta_id"`
	UsuarioID       string      `json:"usuario_id"`
	Trimestre       int         `json:"trimestre"`
	Anio            int         `json:"anio"`
	ArchivoURL      string      `json:"archivo_url"`
	ArchivoKey      string      `json:"-"`
	ArchivoNombre   string      `json:"archivo_nombre"`
	ArchivoTipo     string      `json:"archivo_tipo"`
	ArchivoTamano   int64       `json:"archivo_tamano"`
	Descripcion     string      `json:"descripcion"`
	Estado          string      `json:"estado"`
	Calificacion    null.Int    `json:"calificacion"`
	ComentarioAdmin null.String `json:"comentario_admin"`
	EnvioID         null.String `json:"envio_id"`
	FechaEnvio      time.Time   `json:"fecha_envio"` // UTC
	FechaRevision   null.Time   `json:"fecha_revision"`
}

func (e Evidence) IsGraded() bool {
	return e.Estado == StatusAprobado || e.Estado == StatusRechazado
}

// Submission groups all of a user's evidence for one quarter. LockedAt is
// stamped by the first grading action and blocks deletion from then on.
type Submission struct {
	ID         string    `json:"id"`
	UsuarioID  string    `json:"usuario_id"`
	AreaID     string    `json:"area_id"`
	Trimestre  int       `json:"trimestre"`
	Anio       int       `json:"anio"`
	Estado     string    `json:"estado"`
	FechaEnvio time.Time `json:"fecha_envio"` // UTC
	LockedAt   null.Time `json:"locked_at"`
}

func (s Submission) IsLocked() bool { return s.LockedAt.Valid }

type Upload struct {
	MetaID      string `json:"meta_id" validate:"required,uuid4"`
	Trimestre   int    `json:"trimestre" validate:"required,min=1,max=4"`
	Descripcion string `json:"descripcion"`
}

func (u *Upload) Validate(validate *validator.Validate) error {
	u.Descripcion = core.CleanString(u.Descripcion)
	return validate.Struct(u)
}

type SubmitQuarter struct {
	Trimestre int      `json:"trimestre" validate:"required,min=1,max=4"`
	MetaIDs   []string `json:"meta_ids" validate:"required,min=1,dive,uuid4"`
}

func (sq *SubmitQuarter) Validate(validate *validator.Validate) error {
	return validate.Struct(sq)
}

type Grade struct {
	Calificacion *int   `json:"calificacion" validate:"required,min=0,max=100"`
	Estado       string `json:"estado" validate:"required,oneof=aprobado rechazado"`
	Comentario   string `json:"comentario"`
}

func (g *Grade) Validate(validate *validator.Validate) error {
	g.Comentario = core.CleanString(g.Comentario)
	return validate.Struct(g)
}
