package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/plan"
	"github.com/rumboapp/rumbo/core/quarter"
	"github.com/rumboapp/rumbo/core/user"
)

// Logger is a quiet core.Logger for tests; Fatal still aborts.
type Logger struct{}

func (l Logger) Debug(msg string, args ...interface{}) {}
func (l Logger) Info(msg string, args ...interface{})  {}
func (l Logger) Warn(msg string, args ...interface{})  {}
func (l Logger) Error(msg string, args ...interface{}) {}
func (l Logger) Fatal(msg string, args ...interface{}) { panic(msg) }

var _ core.Logger = (*Logger)(nil)

// NewTestConfig returns a Config suitable for unit tests; no files or env
// vars are read.
func NewTestConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		Build:     "test",
		TestMode:  true,
		AppName:   "Rumbo",
		SecretKey: []byte("secret"),

		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,

		Server: core.ServerConfig{
			JWTExpirationDelta:        7 * 24 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Storage: core.StorageConfig{
			Bucket:        "rumbo-test",
			MaxUploadSize: 10 << 20,
			SignedURLTTL:  15 * time.Minute,
		},
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	nombre, email, pwd, rol, estado string,
	areaID string,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Nombre:    nombre,
		Email:     email,
		Rol:       rol,
		Estado:    estado,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if areaID != "" {
		usr.AreaID = null.StringFrom(areaID)
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateArea(t *testing.T, repo plan.Repository, nombre string) plan.Area {
	t.Helper()

	area, err := repo.CreateArea(context.Background(), plan.Area{Nombre: nombre, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("CreateArea() failed: %v", err)
	}
	return area
}

func CreateEje(t *testing.T, repo plan.Repository, nombre string, subEjes ...string) (plan.Eje, []plan.SubEje) {
	t.Helper()

	ctx := context.Background()
	eje, err := repo.CreateEje(ctx, plan.Eje{Nombre: nombre, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("CreateEje() failed: %v", err)
	}
	ses := make([]plan.SubEje, 0, len(subEjes))
	for _, se := range subEjes {
		sub, err := repo.CreateSubEje(ctx, plan.SubEje{EjeID: eje.ID, Nombre: se})
		if err != nil {
			t.Fatalf("CreateSubEje() failed: %v", err)
		}
		ses = append(ses, sub)
	}
	return eje, ses
}

// CreateQuarterConfig seeds one trimestre_config row with the given window.
func CreateQuarterConfig(
	t *testing.T,
	repo quarter.Repository,
	trimestre, anio int,
	inicio, fin time.Time,
) quarter.Config {
	t.Helper()

	cfg, err := repo.UpsertConfig(context.Background(), quarter.Config{
		Trimestre:   trimestre,
		Anio:        anio,
		FechaInicio: inicio,
		FechaFin:    fin,
	})
	if err != nil {
		t.Fatalf("CreateQuarterConfig() failed: %v", err)
	}
	return cfg
}
