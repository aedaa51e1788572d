package user_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/user"
	emailsvc "github.com/rumboapp/rumbo/services/email"
	dummydb "github.com/rumboapp/rumbo/storage/database/dummy"
	testutil "github.com/rumboapp/rumbo/tests"
)

func setup(t *testing.T) (*user.Service, user.Repository, *core.Config) {
	t.Helper()

	conf := testutil.NewTestConfig()
	core.ParseEmailTemplates(conf, testutil.Logger{})
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewUserRepository(db)
	svc := user.NewService(db, repo, emailsvc.NewConsoleServiceMock(conf), conf)
	return svc, repo, conf
}

func TestService_Register(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Register(ctx, user.NewUser{
		Nombre:   "Juana Pérez",
		Email:    "juana@rumbo.test",
		Password: "Sup3r$ecret!",
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if usr.Estado != user.StatusPendiente {
		t.Errorf("Estado = %s, want %s", usr.Estado, user.StatusPendiente)
	}
	if usr.Rol != user.RoleUsuario {
		t.Errorf("Rol = %s, want %s", usr.Rol, user.RoleUsuario)
	}
	if usr.AreaID.Valid {
		t.Error("new account should not have an area")
	}
	if err = usr.CheckPassword("Sup3r$ecret!"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}
}

func TestService_Approve(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "Juana", "juana@rumbo.test", "pwd", user.RoleUsuario, user.StatusPendiente, "")

	emailsvc.SentMessages = nil
	usr, err := svc.Approve(ctx, usr.ID, "8e1f4a0f-0f25-41e2-9c35-0f1f34a2a111", "Sistemas")
	if err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if usr.Estado != user.StatusActivo {
		t.Errorf("Estado = %s, want %s", usr.Estado, user.StatusActivo)
	}
	if !usr.AreaID.Valid || usr.AreaID.String != "8e1f4a0f-0f25-41e2-9c35-0f1f34a2a111" {
		t.Errorf("AreaID = %v, want assigned", usr.AreaID)
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("len(SentMessages) = %d, want 1", len(emailsvc.SentMessages))
	}
	if msg := emailsvc.SentMessages[0]; !strings.Contains(msg.TextContent, "Sistemas") {
		t.Errorf("welcome email does not mention the area:\n%s", msg.TextContent)
	}

	// already active
	if _, err = svc.Approve(ctx, usr.ID, "8e1f4a0f-0f25-41e2-9c35-0f1f34a2a111", "Sistemas"); errors.Cause(err) != user.ErrNotPending {
		t.Errorf("Approve() error = %v, want %v", err, user.ErrNotPending)
	}
}

func TestService_PasswordReset(t *testing.T) {
	svc, repo, conf := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "Juana", "juana@rumbo.test", "old-pwd", user.RoleUsuario, user.StatusActivo, "")

	t.Run("unknown email", func(t *testing.T) {
		if err := svc.RequestPasswordReset(ctx, "nadie@rumbo.test"); errors.Cause(err) != user.ErrNotFound {
			t.Errorf("RequestPasswordReset() error = %v, want %v", err, user.ErrNotFound)
		}
	})

	emailsvc.SentMessages = nil
	if err := svc.RequestPasswordReset(ctx, "Juana@Rumbo.Test"); err != nil {
		t.Fatalf("RequestPasswordReset() failed: %v", err)
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("len(SentMessages) = %d, want 1", len(emailsvc.SentMessages))
	}

	token, err := user.MakeToken(usr, conf)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}

	t.Run("tampered token", func(t *testing.T) {
		err := svc.ResetPassword(ctx, user.ResetUserPassword{
			UID:   user.EncodeUID(usr),
			Token: token + "x",
		})
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("ResetPassword() error = %v, want validation error", err)
		}
	})

	if err = svc.ResetPassword(ctx, user.ResetUserPassword{
		UID:      user.EncodeUID(usr),
		Token:    token,
		Password: "new-pwd",
	}); err != nil {
		t.Fatalf("ResetPassword() failed: %v", err)
	}

	usr, err = svc.GetByID(ctx, usr.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if err = usr.CheckPassword("new-pwd"); err != nil {
		t.Errorf("new password not set: %v", err)
	}
	if err = usr.CheckPassword("old-pwd"); err == nil {
		t.Error("old password still valid")
	}
}

func TestService_Update(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "Juana", "juana@rumbo.test", "pwd", user.RoleUsuario, user.StatusActivo, "")

	updated, err := svc.Update(ctx, usr.ID, user.UpdateUser{Nombre: "Juana P.", Email: usr.Email})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Nombre != "Juana P." {
		t.Errorf("Nombre = %s, want Juana P.", updated.Nombre)
	}
	if updated.Estado != user.StatusActivo || updated.Rol != user.RoleUsuario {
		t.Errorf("Estado/Rol clobbered: %s/%s", updated.Estado, updated.Rol)
	}
}
