package plan_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/plan"
	dummydb "github.com/rumboapp/rumbo/storage/database/dummy"
)

func setup(t *testing.T) (*plan.Service, plan.Repository) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewPlanRepository(db)
	return plan.NewService(db, repo), repo
}

func TestService_Catalog(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	area, err := svc.CreateArea(ctx, plan.NewArea{Nombre: "Sistemas"})
	if err != nil {
		t.Fatalf("CreateArea() failed: %v", err)
	}
	if _, err = svc.CreateArea(ctx, plan.NewArea{Nombre: "Sistemas"}); errors.Cause(err) != plan.ErrAreaExists {
		t.Errorf("CreateArea() duplicate error = %v, want %v", err, plan.ErrAreaExists)
	}

	eje, err := svc.CreateEje(ctx, plan.NewEje{Nombre: "Modernización"})
	if err != nil {
		t.Fatalf("CreateEje() failed: %v", err)
	}
	if _, err = svc.CreateEje(ctx, plan.NewEje{Nombre: "Modernización"}); errors.Cause(err) != plan.ErrEjeExists {
		t.Errorf("CreateEje() duplicate error = %v, want %v", err, plan.ErrEjeExists)
	}

	if _, err = svc.CreateSubEje(ctx, "nope", plan.NewSubEje{Nombre: "Digitalización"}); errors.Cause(err) != plan.ErrEjeNotFound {
		t.Errorf("CreateSubEje() error = %v, want %v", err, plan.ErrEjeNotFound)
	}
	se, err := svc.CreateSubEje(ctx, eje.ID, plan.NewSubEje{Nombre: "Digitalización"})
	if err != nil {
		t.Fatalf("CreateSubEje() failed: %v", err)
	}
	if se.EjeID != eje.ID {
		t.Errorf("SubEje.EjeID = %s, want %s", se.EjeID, eje.ID)
	}
	if _, err = svc.CreateSubEje(ctx, eje.ID, plan.NewSubEje{Nombre: "Digitalización"}); errors.Cause(err) != plan.ErrSubEjeExists {
		t.Errorf("CreateSubEje() duplicate error = %v, want %v", err, plan.ErrSubEjeExists)
	}

	areas, err := svc.QueryAreas(ctx)
	if err != nil || len(areas) != 1 || areas[0].ID != area.ID {
		t.Errorf("QueryAreas() = %v, %v", areas, err)
	}
}

func TestService_AssignEje(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	area, _ := svc.CreateArea(ctx, plan.NewArea{Nombre: "Sistemas"})
	eje, _ := svc.CreateEje(ctx, plan.NewEje{Nombre: "Modernización"})
	se1, _ := svc.CreateSubEje(ctx, eje.ID, plan.NewSubEje{Nombre: "Digitalización"})
	se2, _ := svc.CreateSubEje(ctx, eje.ID, plan.NewSubEje{Nombre: "Interoperabilidad"})

	t.Run("unknown area", func(t *testing.T) {
		if _, err := svc.AssignEje(ctx, "nope", eje.ID); errors.Cause(err) != plan.ErrAreaNotFound {
			t.Errorf("AssignEje() error = %v, want %v", err, plan.ErrAreaNotFound)
		}
	})

	t.Run("unknown eje", func(t *testing.T) {
		if _, err := svc.AssignEje(ctx, area.ID, "nope"); errors.Cause(err) != plan.ErrEjeNotFound {
			t.Errorf("AssignEje() error = %v, want %v", err, plan.ErrEjeNotFound)
		}
	})

	rows, err := svc.AssignEje(ctx, area.ID, eje.ID)
	if err != nil {
		t.Fatalf("AssignEje() failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	seen := map[string]bool{}
	for _, row := range rows {
		seen[row.SubEjeID] = true
		if row.AreaID != area.ID || row.EjeID != eje.ID {
			t.Errorf("row not scoped to area/eje: %+v", row)
		}
		if row.T1 || row.T2 || row.T3 || row.T4 {
			t.Errorf("new cell has quarters enabled: %+v", row)
		}
	}
	if !seen[se1.ID] || !seen[se2.ID] {
		t.Error("cells not materialized for every sub-eje")
	}

	t.Run("re-assign conflicts", func(t *testing.T) {
		_, err := svc.AssignEje(ctx, area.ID, eje.ID)
		if !core.IsConflict(err) {
			t.Errorf("AssignEje() error = %v, want conflict", err)
		}
	})
}

func TestService_UpdateRow(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	area, _ := svc.CreateArea(ctx, plan.NewArea{Nombre: "Sistemas"})
	eje, _ := svc.CreateEje(ctx, plan.NewEje{Nombre: "Modernización"})
	_, _ = svc.CreateSubEje(ctx, eje.ID, plan.NewSubEje{Nombre: "Digitalización"})
	rows, err := svc.AssignEje(ctx, area.ID, eje.ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("AssignEje() failed: %v", err)
	}
	row := rows[0]

	row, err = svc.UpdateRowMeta(ctx, row.ID, plan.UpdateRowMeta{Meta: "Digitalizar expedientes", Indicador: "% avance"})
	if err != nil {
		t.Fatalf("UpdateRowMeta() failed: %v", err)
	}
	if row.Meta != "Digitalizar expedientes" || row.Indicador != "% avance" {
		t.Errorf("unexpected row after meta update: %+v", row)
	}

	bTrue := true
	row, err = svc.UpdateRowAccion(ctx, row.ID, plan.UpdateRowAccion{
		Accion:      "Escanear archivo histórico",
		Presupuesto: "50000",
		T2:          &bTrue,
	})
	if err != nil {
		t.Fatalf("UpdateRowAccion() failed: %v", err)
	}
	if row.Accion != "Escanear archivo histórico" || !row.T2 || row.T1 {
		t.Errorf("unexpected row after accion update: %+v", row)
	}
	// admin fields untouched
	if row.Meta != "Digitalizar expedientes" {
		t.Errorf("Meta clobbered: %q", row.Meta)
	}

	if _, err = svc.UpdateRowMeta(ctx, "nope", plan.UpdateRowMeta{}); errors.Cause(err) != plan.ErrNotFound {
		t.Errorf("UpdateRowMeta() error = %v, want %v", err, plan.ErrNotFound)
	}
}
