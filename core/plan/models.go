package plan

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rumboapp/rumbo/core"
)

type Area struct {
	ID        string    `json:"id"`
	Nombre    string    `json:"nombre"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Eje struct {
	ID        string    `json:"id"`
	Nombre    string    `json:"nombre"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type SubEje struct {
	ID     string `json:"id"`
	EjeID  string `json:"eje_id"`
	Nombre string `json:"nombre"`
}

// Row is one (area × eje × sub_eje) cell of the action plan. The t1..t4
// flags unlock the quarterly submission UI for that cell.
type Row struct {
	ID          string    `json:"id"`
	AreaID      string    `json:"area_id"`
	EjeID       string    `json:"eje_id"`
	SubEjeID    string    `json:"sub_eje_id"`
	Meta        string    `json:"meta"`
	Indicador   string    `json:"indicador"`
	Accion      string    `json:"accion"`
	Presupuesto string    `json:"presupuesto"`
	T1          bool      `json:"t1"`
	T2          bool      `json:"t2"`
	T3          bool      `json:"t3"`
	T4          bool      `json:"t4"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// QuarterEnabled reports whether the cell unlocks submissions for quarter n.
func (r Row) QuarterEnabled(n int) bool {
	switch n {
	case 1:
		return r.T1
	case 2:
		return r.T2
	case 3:
		return r.T3
	case 4:
		return r.T4
	}
	return false
}

type NewArea struct {
	Nombre string `json:"nombre" validate:"required"`
}

func (na *NewArea) Validate(validate *validator.Validate) error {
	na.Nombre = core.CleanString(na.Nombre)
	return validate.Struct(na)
}

type NewEje struct {
	Nombre string `json:"nombre" validate:"required"`
}

func (ne *NewEje) Validate(validate *validator.Validate) error {
	ne.Nombre = core.CleanString(ne.Nombre)
	return validate.Struct(ne)
}

type NewSubEje struct {
	Nombre string `json:"nombre" validate:"required"`
}

func (ns *NewSubEje) Validate(validate *validator.Validate) error {
	ns.Nombre = core.CleanString(ns.Nombre)
	return validate.Struct(ns)
}

// UpdateRowMeta carries the admin-editable cell fields.
type UpdateRowMeta struct {
	Meta      string `json:"meta"`
	Indicador string `json:"indicador"`
}

func (um *UpdateRowMeta) Validate(validate *validator.Validate) error {
	um.Meta = core.CleanString(um.Meta)
	um.Indicador = core.CleanString(um.Indicador)
	return validate.Struct(um)
}

// UpdateRowAccion carries the fields editable by the area's regular user.
type UpdateRowAccion struct {
	Accion      string `json:"accion"`
	Presupuesto string `json:"presupuesto"`
	T1          *bool  `json:"t1"`
	T2          *bool  `json:"t2"`
	T3          *bool  `json:"t3"`
	T4          *bool  `json:"t4"`
}

func (ua *UpdateRowAccion) Validate(validate *validator.Validate) error {
	ua.Accion = core.CleanString(ua.Accion)
	ua.Presupuesto = core.CleanString(ua.Presupuesto)
	return validate.Struct(ua)
}
