package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
)

var (
	// errors
	ErrNotFound          = errors.New("usuario no encontrado")
	ErrUserExists        = errors.New("ya existe un usuario con este email")
	ErrNotPending        = errors.New("el usuario no está pendiente de aprobación")
	errInvalidResetToken = errors.New("invalid password reset token")
)

type Repository interface {
	CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
	CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
	QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
	UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
}

type Service struct {
	db      core.DB
	repo    Repository
	mailSvc core.EmailService
	conf    *core.Config
}

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *Service) checkUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclUsers); err != nil {
		if errors.Cause(err) == ErrUserExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a self-registered account in `pendiente` state. The user
// cannot participate until an admin approves them into an area.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Nombre:    nu.Nombre,
		Email:     nu.Email,
		Estado:    StatusPendiente,
		Rol:       RoleUsuario,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}

	usr.Nombre = uu.Nombre
	usr.Email = uu.Email
	if uu.Estado != "" {
		usr.Estado = uu.Estado
	}
	if uu.Rol != "" {
		usr.Rol = uu.Rol
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Approve activates a pending account by assigning it to an area and sends
// the welcome email (best-effort).
func (svc *Service) Approve(ctx context.Context, id, areaID, areaNombre string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	if usr.Estado != StatusPendiente {
		return User{}, ErrNotPending
	}

	usr.Estado = StatusActivo
	usr.AreaID.SetValid(areaID)
	usr.UpdatedAt = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Nombre, Address: usr.Email}},
		Subject:      "Cuenta aprobada",
		TemplateName: "welcome",
		TemplateData: struct {
			Nombre string
			Area   string
		}{usr.Nombre, areaNombre},
	})
	return usr, nil
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

// RequestPasswordReset emails a reset link to the account with the given
// email address, if one exists.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}

	token, err := MakeToken(usr, svc.conf)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Nombre, Address: usr.Email}},
		Subject:      "Restablecer contraseña",
		TemplateName: "password-reset",
		TemplateData: struct {
			Nombre string
			UID    string
			Token  string
		}{usr.Nombre, EncodeUID(usr), token},
	})
	return nil
}

// ResetPassword validates the emailed token and sets the new password.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidResetToken)
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: uid})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidResetToken)
		}
		return err
	}
	if err = verifyToken(usr, rp.Token, svc.conf); err != nil {
		return core.NewValidationError(err)
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, fmt.Sprintf("updating user %s", usr.ID))
	}
	return nil
}
