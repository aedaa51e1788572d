package plan

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
)

var (
	// errors
	ErrNotFound     = errors.New("registro del plan no encontrado")
	ErrAreaNotFound = errors.New("área no encontrada")
	ErrEjeNotFound  = errors.New("eje no encontrado")
	ErrAreaExists   = errors.New("ya existe un área con este nombre")
	ErrEjeExists    = errors.New("ya existe un eje con este nombre")
	ErrSubEjeExists = errors.New("ya existe un sub-eje con este nombre en el eje")
	ErrEjeAssigned  = errors.New("el eje ya está asignado a esta área")
	ErrCellExists   = errors.New("la celda del plan ya existe")
)

type Repository interface {
	CreateArea(ctx context.Context, area Area, exec ...core.DBExecutor) (Area, error)
	GetArea(ctx context.Context, id string, exec ...core.DBExecutor) (Area, error)
	QueryAreas(ctx context.Context, exec ...core.DBExecutor) ([]Area, error)

	CreateEje(ctx context.Context, eje Eje, exec ...core.DBExecutor) (Eje, error)
	GetEje(ctx context.Context, id string, exec ...core.DBExecutor) (Eje, error)
	QueryEjes(ctx context.Context, exec ...core.DBExecutor) ([]Eje, error)
	CreateSubEje(ctx context.Context, se SubEje, exec ...core.DBExecutor) (SubEje, error)
	QuerySubEjes(ctx context.Context, ejeID string, exec ...core.DBExecutor) ([]SubEje, error)

	// CreateAreaEje inserts the junction row; ErrEjeAssigned on duplicates.
	CreateAreaEje(ctx context.Context, areaID, ejeID string, exec ...core.DBExecutor) error
	CreateRows(ctx context.Context, rows []Row, exec ...core.DBExecutor) error
	GetRow(ctx context.Context, id string, exec ...core.DBExecutor) (Row, error)
	QueryRows(ctx context.Context, areaID string, exec ...core.DBExecutor) ([]Row, error)
	UpdateRow(ctx context.Context, row Row, exec ...core.DBExecutor) (Row, error)
}

type Service struct {
	db   core.DB
	repo Repository
}

func NewService(db core.DB, repo Repository) *Service {
	return &Service{db: db, repo: repo}
}

func (svc *Service) CreateArea(ctx context.Context, na NewArea) (Area, error) {
	return svc.repo.CreateArea(ctx, Area{Nombre: na.Nombre, CreatedAt: time.Now().UTC()})
}

func (svc *Service) GetArea(ctx context.Context, id string) (Area, error) {
	return svc.repo.GetArea(ctx, id)
}

func (svc *Service) QueryAreas(ctx context.Context) ([]Area, error) {
	return svc.repo.QueryAreas(ctx)
}

func (svc *Service) CreateEje(ctx context.Context, ne NewEje) (Eje, error) {
	return svc.repo.CreateEje(ctx, Eje{Nombre: ne.Nombre, CreatedAt: time.Now().UTC()})
}

func (svc *Service) QueryEjes(ctx context.Context) ([]Eje, error) {
	return svc.repo.QueryEjes(ctx)
}

func (svc *Service) CreateSubEje(ctx context.Context, ejeID string, ns NewSubEje) (SubEje, error) {
	if _, err := svc.repo.GetEje(ctx, ejeID); err != nil {
		return SubEje{}, err
	}
	return svc.repo.CreateSubEje(ctx, SubEje{EjeID: ejeID, Nombre: ns.Nombre})
}

func (svc *Service) QuerySubEjes(ctx context.Context, ejeID string) ([]SubEje, error) {
	return svc.repo.QuerySubEjes(ctx, ejeID)
}

// AssignEje links an eje to an area and lazily creates the plan cells for
// all of the eje's sub-ejes, in a single transaction. Re-assigning surfaces
// as a conflict through the junction table's primary key.
func (svc *Service) AssignEje(ctx context.Context, areaID, ejeID string) ([]Row, error) {
	if _, err := svc.repo.GetArea(ctx, areaID); err != nil {
		return nil, err
	}
	if _, err := svc.repo.GetEje(ctx, ejeID); err != nil {
		return nil, err
	}
	subEjes, err := svc.repo.QuerySubEjes(ctx, ejeID)
	if err != nil {
		return nil, errors.Wrap(err, "querying sub-ejes")
	}

	now := time.Now().UTC()
	rows := make([]Row, 0, len(subEjes))
	for _, se := range subEjes {
		rows = append(rows, Row{
			AreaID:    areaID,
			EjeID:     ejeID,
			SubEjeID:  se.ID,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	err = core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		if err := svc.repo.CreateAreaEje(ctx, areaID, ejeID, tx); err != nil {
			if errors.Cause(err) == ErrEjeAssigned {
				return core.NewConflictError(ErrEjeAssigned.Error())
			}
			return err
		}
		return svc.repo.CreateRows(ctx, rows, tx)
	})
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryRows(ctx, areaID)
}

func (svc *Service) GetRow(ctx context.Context, id string) (Row, error) {
	return svc.repo.GetRow(ctx, id)
}

func (svc *Service) QueryRows(ctx context.Context, areaID string) ([]Row, error) {
	return svc.repo.QueryRows(ctx, areaID)
}

// UpdateRowMeta updates the admin-owned fields of a cell.
func (svc *Service) UpdateRowMeta(ctx context.Context, id string, um UpdateRowMeta) (Row, error) {
	row, err := svc.repo.GetRow(ctx, id)
	if err != nil {
		return Row{}, err
	}
	row.Meta = um.Meta
	row.Indicador = um.Indicador
	row.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRow(ctx, row)
}

// UpdateRowAccion updates the fields owned by the area's regular user.
func (svc *Service) UpdateRowAccion(ctx context.Context, id string, ua UpdateRowAccion) (Row, error) {
	row, err := svc.repo.GetRow(ctx, id)
	if err != nil {
		return Row{}, err
	}
	row.Accion = ua.Accion
	row.Presupuesto = ua.Presupuesto
	if ua.T1 != nil {
		row.T1 = *ua.T1
	}
	if ua.T2 != nil {
		row.T2 = *ua.T2
	}
	if ua.T3 != nil {
		row.T3 = *ua.T3
	}
	if ua.T4 != nil {
		row.T4 = *ua.T4
	}
	row.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRow(ctx, row)
}
