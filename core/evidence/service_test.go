package evidence_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/evidence"
	"github.com/rumboapp/rumbo/core/plan"
	"github.com/rumboapp/rumbo/core/user"
	emailsvc "github.com/rumboapp/rumbo/services/email"
	dummystorage "github.com/rumboapp/rumbo/services/storage/dummy"
	dummydb "github.com/rumboapp/rumbo/storage/database/dummy"
	testutil "github.com/rumboapp/rumbo/tests"
)

var pdfBytes = append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("a"), 100)...)

type testEnv struct {
	svc      *evidence.Service
	conf     *core.Config
	db       *dummydb.DB
	blob     *dummystorage.BlobStorage
	usrRepo  user.Repository
	planRepo plan.Repository

	usr   user.User
	other user.User
	admin user.User
	row   plan.Row
}

// failingSubmissionRepo simulates a storage outage on the submission lookup.
type failingSubmissionRepo struct {
	evidence.Repository
}

func (failingSubmissionRepo) GetSubmission(ctx context.Context, usuarioID, areaID string, trimestre, anio int, exec ...core.DBExecutor) (evidence.Submission, error) {
	return evidence.Submission{}, errors.New("envios: connection refused")
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := testutil.NewTestConfig()
	core.ParseEmailTemplates(conf, testutil.Logger{})

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	usrRepo := dummydb.NewUserRepository(db)
	planRepo := dummydb.NewPlanRepository(db)
	repo := dummydb.NewEvidenceRepository(db)
	blob := dummystorage.NewBlobStorage()
	svc := evidence.NewService(db, repo, usrRepo, planRepo, blob,
		emailsvc.NewConsoleServiceMock(conf), conf, testutil.Logger{})

	area := testutil.CreateArea(t, planRepo, "Sistemas")
	otherArea := testutil.CreateArea(t, planRepo, "Finanzas")
	eje, subEjes := testutil.CreateEje(t, planRepo, "Modernización", "Digitalización")

	row := plan.Row{
		AreaID:    area.ID,
		EjeID:     eje.ID,
		SubEjeID:  subEjes[0].ID,
		Meta:      "Digitalizar expedientes",
		T2:        true,
		CreatedAt: time.Now().UTC(),
	}
	if err := planRepo.CreateRows(context.Background(), []plan.Row{row}); err != nil {
		t.Fatalf("CreateRows() failed: %v", err)
	}
	rows, err := planRepo.QueryRows(context.Background(), area.ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("QueryRows() failed: %v (%d rows)", err, len(rows))
	}

	return &testEnv{
		svc:      svc,
		conf:     conf,
		db:       db,
		blob:     blob,
		usrRepo:  usrRepo,
		planRepo: planRepo,
		usr:      testutil.CreateUser(t, usrRepo, "Ana Pérez", "ana@test.edu", "", user.RoleUsuario, user.StatusActivo, area.ID),
		other:    testutil.CreateUser(t, usrRepo, "Beto Díaz", "beto@test.edu", "", user.RoleUsuario, user.StatusActivo, otherArea.ID),
		admin:    testutil.CreateUser(t, usrRepo, "Admin", "admin@test.edu", "", user.RoleAdmin, user.StatusActivo, ""),
		row:      rows[0],
	}
}

func (env *testEnv) upload(t *testing.T, filename string) evidence.Evidence {
	t.Helper()

	ev, err := env.svc.Upload(context.Background(), env.usr,
		evidence.Upload{MetaID: env.row.ID, Trimestre: 2, Descripcion: "acta digitalizada"},
		filename, int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	return ev
}

func TestService_Upload(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	t.Run("meta of another area", func(t *testing.T) {
		_, err := env.svc.Upload(ctx, env.other,
			evidence.Upload{MetaID: env.row.ID, Trimestre: 2},
			"acta.pdf", int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
		if errors.Cause(err) != evidence.ErrNotOwner {
			t.Errorf("Upload() error = %v, want %v", err, evidence.ErrNotOwner)
		}
	})

	t.Run("quarter not enabled on cell", func(t *testing.T) {
		_, err := env.svc.Upload(ctx, env.usr,
			evidence.Upload{MetaID: env.row.ID, Trimestre: 3},
			"acta.pdf", int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Upload() error = %v, want ValidationError", err)
		}
	})

	t.Run("file too large", func(t *testing.T) {
		_, err := env.svc.Upload(ctx, env.usr,
			evidence.Upload{MetaID: env.row.ID, Trimestre: 2},
			"acta.pdf", 12<<20, bytes.NewReader(pdfBytes))
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("Upload() error = %v, want ValidationError", err)
		}
		if len(vErr.Fields) == 0 || !strings.Contains(vErr.Fields[0].Error, "10MB") {
			t.Errorf("unexpected field errors: %+v", vErr.Fields)
		}
	})

	t.Run("disallowed file type", func(t *testing.T) {
		exe := []byte("MZ\x90\x00\x03\x00\x00\x00")
		_, err := env.svc.Upload(ctx, env.usr,
			evidence.Upload{MetaID: env.row.ID, Trimestre: 2},
			"virus.exe", int64(len(exe)), bytes.NewReader(exe))
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Upload() error = %v, want ValidationError", err)
		}
	})

	t.Run("submission lookup failure propagates", func(t *testing.T) {
		svc := evidence.NewService(env.db, failingSubmissionRepo{dummydb.NewEvidenceRepository(env.db)},
			env.usrRepo, env.planRepo, env.blob, emailsvc.NewConsoleServiceMock(env.conf), env.conf, testutil.Logger{})

		_, err := svc.Upload(ctx, env.usr,
			evidence.Upload{MetaID: env.row.ID, Trimestre: 2},
			"acta.pdf", int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
		if err == nil || !strings.Contains(err.Error(), "connection refused") {
			t.Errorf("Upload() error = %v, want the repository error", err)
		}
		if env.blob.Len() != 0 {
			t.Errorf("blob.Len() = %d, want 0", env.blob.Len())
		}
	})

	t.Run("ok, then replace", func(t *testing.T) {
		ev := env.upload(t, "acta.pdf")
		if ev.Estado != evidence.StatusPendiente {
			t.Errorf("Estado = %q, want %q", ev.Estado, evidence.StatusPendiente)
		}
		if ev.ArchivoTipo != "application/pdf" {
			t.Errorf("ArchivoTipo = %q", ev.ArchivoTipo)
		}
		if env.blob.Len() != 1 {
			t.Errorf("blob.Len() = %d, want 1", env.blob.Len())
		}
		obj, ok := env.blob.Get(ev.ArchivoKey)
		if !ok {
			t.Fatal("stored object not found")
		}
		if !bytes.Equal(obj.Data, pdfBytes) {
			t.Error("stored bytes do not round-trip")
		}

		ev2 := env.upload(t, "acta-v2.pdf")
		if ev2.ID != ev.ID {
			t.Errorf("replacement created new row: %s != %s", ev2.ID, ev.ID)
		}
		if ev2.ArchivoNombre != "acta-v2.pdf" {
			t.Errorf("ArchivoNombre = %q", ev2.ArchivoNombre)
		}
		// the replaced blob is removed
		if env.blob.Len() != 1 {
			t.Errorf("blob.Len() = %d after replace, want 1", env.blob.Len())
		}
		if _, ok := env.blob.Get(ev.ArchivoKey); ok {
			t.Error("replaced object still stored")
		}
	})
}

func TestService_SubmitQuarter(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	t.Run("missing evidence", func(t *testing.T) {
		_, err := env.svc.SubmitQuarter(ctx, env.usr, evidence.SubmitQuarter{Trimestre: 2, MetaIDs: []string{env.row.ID}})
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("SubmitQuarter() error = %v, want ValidationError", err)
		}
	})

	t.Run("blank descripcion", func(t *testing.T) {
		_, err := env.svc.Upload(ctx, env.usr,
			evidence.Upload{MetaID: env.row.ID, Trimestre: 2, Descripcion: "   "},
			"acta.pdf", int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
		if err != nil {
			t.Fatalf("Upload() failed: %v", err)
		}
		_, err = env.svc.SubmitQuarter(ctx, env.usr, evidence.SubmitQuarter{Trimestre: 2, MetaIDs: []string{env.row.ID}})
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("SubmitQuarter() error = %v, want ValidationError", err)
		}
		if len(vErr.Fields) == 0 || !strings.Contains(vErr.Fields[0].Error, env.row.ID) {
			t.Errorf("field errors do not name the meta: %+v", vErr.Fields)
		}
	})

	env.upload(t, "acta.pdf")

	sub, err := env.svc.SubmitQuarter(ctx, env.usr, evidence.SubmitQuarter{Trimestre: 2, MetaIDs: []string{env.row.ID}})
	if err != nil {
		t.Fatalf("SubmitQuarter() failed: %v", err)
	}
	if sub.Estado != evidence.StatusPendiente {
		t.Errorf("Estado = %q, want %q", sub.Estado, evidence.StatusPendiente)
	}

	evs, err := env.svc.QueryByEnvio(ctx, sub.ID)
	if err != nil {
		t.Fatalf("QueryByEnvio() failed: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("len(evidences) = %d, want 1", len(evs))
	}
	if !evs[0].EnvioID.Valid || evs[0].EnvioID.String != sub.ID {
		t.Error("evidence not stamped with submission")
	}

	t.Run("double submit conflicts", func(t *testing.T) {
		_, err := env.svc.SubmitQuarter(ctx, env.usr, evidence.SubmitQuarter{Trimestre: 2, MetaIDs: []string{env.row.ID}})
		if !core.IsConflict(err) {
			t.Errorf("SubmitQuarter() error = %v, want conflict", err)
		}
	})

	t.Run("upload after submit conflicts", func(t *testing.T) {
		_, err := env.svc.Upload(ctx, env.usr,
			evidence.Upload{MetaID: env.row.ID, Trimestre: 2},
			"acta.pdf", int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
		if !core.IsConflict(err) {
			t.Errorf("Upload() error = %v, want conflict", err)
		}
	})
}

func TestService_DeleteSubmission(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	anio := time.Now().UTC().Year()

	env.upload(t, "acta.pdf")
	if _, err := env.svc.SubmitQuarter(ctx, env.usr, evidence.SubmitQuarter{Trimestre: 2, MetaIDs: []string{env.row.ID}}); err != nil {
		t.Fatalf("SubmitQuarter() failed: %v", err)
	}

	ok, err := env.svc.CanDeleteSubmission(ctx, env.usr, 2, anio)
	if err != nil || !ok {
		t.Fatalf("CanDeleteSubmission() = %v, %v; want true", ok, err)
	}

	if err = env.svc.DeleteSubmission(ctx, env.usr, 2, anio); err != nil {
		t.Fatalf("DeleteSubmission() failed: %v", err)
	}
	if _, err = env.svc.GetSubmission(ctx, env.usr, 2, anio); errors.Cause(err) != evidence.ErrSubmissionNotFound {
		t.Errorf("GetSubmission() error = %v, want %v", err, evidence.ErrSubmissionNotFound)
	}
	if env.blob.Len() != 0 {
		t.Errorf("blob.Len() = %d after withdraw, want 0", env.blob.Len())
	}

	// one re-submission cycle is allowed
	env.upload(t, "acta-v2.pdf")
	if _, err = env.svc.SubmitQuarter(ctx, env.usr, evidence.SubmitQuarter{Trimestre: 2, MetaIDs: []string{env.row.ID}}); err != nil {
		t.Fatalf("SubmitQuarter() after withdraw failed: %v", err)
	}
}

func TestService_Grade(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	anio := time.Now().UTC().Year()

	ev := env.upload(t, "acta.pdf")
	sub, err := env.svc.SubmitQuarter(ctx, env.usr, evidence.SubmitQuarter{Trimestre: 2, MetaIDs: []string{env.row.ID}})
	if err != nil {
		t.Fatalf("SubmitQuarter() failed: %v", err)
	}

	grade := 85
	graded, err := env.svc.Grade(ctx, ev.ID, evidence.Grade{
		Calificacion: &grade,
		Estado:       evidence.StatusAprobado,
		Comentario:   "buen trabajo",
	})
	if err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	if graded.Estado != evidence.StatusAprobado {
		t.Errorf("Estado = %q, want %q", graded.Estado, evidence.StatusAprobado)
	}
	if !graded.Calificacion.Valid || graded.Calificacion.Int != 85 {
		t.Errorf("Calificacion = %+v, want 85", graded.Calificacion)
	}
	if !graded.FechaRevision.Valid {
		t.Error("FechaRevision not set")
	}

	// grading locks the submission
	sub, err = env.svc.GetSubmission(ctx, env.usr, 2, anio)
	if err != nil {
		t.Fatalf("GetSubmission() failed: %v", err)
	}
	if !sub.IsLocked() {
		t.Error("submission not locked after grading")
	}

	t.Run("re-grade conflicts", func(t *testing.T) {
		g := 40
		_, err := env.svc.Grade(ctx, ev.ID, evidence.Grade{Calificacion: &g, Estado: evidence.StatusRechazado})
		if !core.IsConflict(err) {
			t.Errorf("Grade() error = %v, want conflict", err)
		}
	})

	t.Run("cannot withdraw once graded", func(t *testing.T) {
		ok, err := env.svc.CanDeleteSubmission(ctx, env.usr, 2, anio)
		if err != nil {
			t.Fatalf("CanDeleteSubmission() failed: %v", err)
		}
		if ok {
			t.Error("CanDeleteSubmission() = true after grading")
		}

		err = env.svc.DeleteSubmission(ctx, env.usr, 2, anio)
		if !core.IsConflict(err) {
			t.Fatalf("DeleteSubmission() error = %v, want conflict", err)
		}
		if !strings.Contains(err.Error(), "1 meta(s) calificada(s)") {
			t.Errorf("unexpected conflict message: %v", err)
		}
	})

	t.Run("re-upload of graded evidence conflicts", func(t *testing.T) {
		// withdraw is blocked, so the row is still the graded one
		_, err := env.svc.Upload(ctx, env.usr,
			evidence.Upload{MetaID: env.row.ID, Trimestre: 2},
			"acta.pdf", int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
		if !core.IsConflict(err) {
			t.Errorf("Upload() error = %v, want conflict", err)
		}
	})
}

func TestService_DownloadURL(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	ev := env.upload(t, "acta.pdf")

	url, err := env.svc.DownloadURL(ctx, env.usr, ev.ID)
	if err != nil {
		t.Fatalf("DownloadURL() failed: %v", err)
	}
	if !strings.Contains(url, "expires=") {
		t.Errorf("URL not signed: %s", url)
	}

	if _, err = env.svc.DownloadURL(ctx, env.admin, ev.ID); err != nil {
		t.Errorf("DownloadURL() as admin failed: %v", err)
	}

	if _, err = env.svc.DownloadURL(ctx, env.other, ev.ID); errors.Cause(err) != evidence.ErrNotFound {
		t.Errorf("DownloadURL() as other user error = %v, want %v", err, evidence.ErrNotFound)
	}
}

func TestGrade_Validate(t *testing.T) {
	validate := validator.New()
	iPtr := func(n int) *int { return &n }

	tests := []struct {
		name    string
		grade   evidence.Grade
		wantErr bool
	}{
		{name: "lower bound", grade: evidence.Grade{Calificacion: iPtr(0), Estado: evidence.StatusRechazado}},
		{name: "upper bound", grade: evidence.Grade{Calificacion: iPtr(100), Estado: evidence.StatusAprobado}},
		{name: "below range", grade: evidence.Grade{Calificacion: iPtr(-1), Estado: evidence.StatusAprobado}, wantErr: true},
		{name: "above range", grade: evidence.Grade{Calificacion: iPtr(101), Estado: evidence.StatusAprobado}, wantErr: true},
		{name: "missing grade", grade: evidence.Grade{Estado: evidence.StatusAprobado}, wantErr: true},
		{name: "bad estado", grade: evidence.Grade{Calificacion: iPtr(50), Estado: "pendiente"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.grade.Validate(validate); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
