package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/rumboapp/rumbo/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleUsuario = "usuario"
)

// Account states
const (
	StatusPendiente = "pendiente"
	StatusActivo    = "activo"
	StatusInactivo  = "inactivo"
)

var (
	AllRoles    = []string{RoleAdmin, RoleUsuario}
	AllStatuses = []string{StatusPendiente, StatusActivo, StatusInactivo}
)

type User struct {
	ID           string      `json:"id"`
	Nombre       string      `json:"nombre"`
	Email        string      `json:"email"`
	Estado       string      `json:"estado"`
	Rol          string      `json:"rol"`
	AreaID       null.String `json:"area_id"`
	PasswordHash []byte      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at"` // UTC
	LastLogin    time.Time   `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool  { return u.Rol == RoleAdmin }
func (u *User) IsActive() bool { return u.Estado == StatusActivo }

// BelongsTo reports whether the user is the regular user of the given area.
func (u *User) BelongsTo(areaID string) bool {
	return u.Rol == RoleUsuario && u.AreaID.Valid && u.AreaID.String == areaID
}

// NewUser contains information needed to register a new User.
// Self-registered accounts start in `pendiente` until an admin approves them.
type NewUser struct {
	Nombre          string `json:"nombre" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Nombre = core.CleanString(nu.Nombre)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Nombre          string `json:"nombre"`
	Email           string `json:"email" validate:"omitempty,email"`
	Estado          string `json:"estado" validate:"omitempty,userstatus"`
	Rol             string `json:"rol" validate:"omitempty,userrole"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc *Service) error {
	nombre := core.CleanString(uu.Nombre)
	if nombre != "" {
		uu.Nombre = nombre
	} else {
		uu.Nombre = origUsr.Nombre
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(uu.Email, origUsr)
}

// ApproveUser assigns an area to a pending user, activating the account.
type ApproveUser struct {
	AreaID string `json:"area_id" validate:"required,uuid4"`
}

func (au *ApproveUser) Validate(validate *validator.Validate) error {
	au.AreaID = core.CleanString(au.AreaID, true /* lower */)
	return validate.Struct(au)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

// GetFilter selects a single user; fields are tried in order.
type GetFilter struct {
	ID     string
	Email  string
	AreaID string
}

// QueryFilter applies an AND operation on its non-empty fields.
// Search does a case-insensitive match on Nombre or Email.
type QueryFilter struct {
	Search      string    `query:"search"`
	Rol         string    `query:"rol"`
	Estado      string    `query:"estado"`
	AreaID      string    `query:"area_id"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Rol = core.CleanString(qf.Rol, true)
	qf.Estado = core.CleanString(qf.Estado, true)
	qf.AreaID = core.CleanString(qf.AreaID, true)
}
