package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/plan"
)

type planRepository struct {
	db *DB
}

var _ plan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(db *DB) *planRepository {
	return &planRepository{db: db}
}

func (repo *planRepository) CreateArea(ctx context.Context, area plan.Area, exec ...core.DBExecutor) (plan.Area, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, a := range repo.db.areas {
		if a.Nombre == area.Nombre {
			return plan.Area{}, plan.ErrAreaExists
		}
	}
	area.ID = uuid.New().String()
	repo.db.areas[area.ID] = &area
	return area, nil
}

func (repo *planRepository) GetArea(ctx context.Context, id string, exec ...core.DBExecutor) (plan.Area, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if area, ok := repo.db.areas[id]; ok {
		return *area, nil
	}
	return plan.Area{}, plan.ErrAreaNotFound
}

func (repo *planRepository) QueryAreas(ctx context.Context, exec ...core.DBExecutor) ([]plan.Area, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	areas := make([]plan.Area, 0, len(repo.db.areas))
	for _, area := range repo.db.areas {
		areas = append(areas, *area)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Nombre < areas[j].Nombre })
	return areas, nil
}

func (repo *planRepository) CreateEje(ctx context.Context, eje plan.Eje, exec ...core.DBExecutor) (plan.Eje, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, e := range repo.db.ejes {
		if e.Nombre == eje.Nombre {
			return plan.Eje{}, plan.ErrEjeExists
		}
	}
	eje.ID = uuid.New().String()
	repo.db.ejes[eje.ID] = &eje
	return eje, nil
}

func (repo *planRepository) GetEje(ctx context.Context, id string, exec ...core.DBExecutor) (plan.Eje, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if eje, ok := repo.db.ejes[id]; ok {
		return *eje, nil
	}
	return plan.Eje{}, plan.ErrEjeNotFound
}

func (repo *planRepository) QueryEjes(ctx context.Context, exec ...core.DBExecutor) ([]plan.Eje, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ejes := make([]plan.Eje, 0, len(repo.db.ejes))
	for _, eje := range repo.db.ejes {
		ejes = append(ejes, *eje)
	}
	sort.Slice(ejes, func(i, j int) bool { return ejes[i].Nombre < ejes[j].Nombre })
	return ejes, nil
}

func (repo *planRepository) CreateSubEje(ctx context.Context, se plan.SubEje, exec ...core.DBExecutor) (plan.SubEje, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, s := range repo.db.subEjes {
		if s.EjeID == se.EjeID && s.Nombre == se.Nombre {
			return plan.SubEje{}, plan.ErrSubEjeExists
		}
	}
	se.ID = uuid.New().String()
	repo.db.subEjes[se.ID] = &se
	return se, nil
}

func (repo *planRepository) QuerySubEjes(ctx context.Context, ejeID string, exec ...core.DBExecutor) ([]plan.SubEje, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subEjes := make([]plan.SubEje, 0)
	for _, se := range repo.db.subEjes {
		if se.EjeID == ejeID {
			subEjes = append(subEjes, *se)
		}
	}
	sort.Slice(subEjes, func(i, j int) bool { return subEjes[i].Nombre < subEjes[j].Nombre })
	return subEjes, nil
}

func (repo *planRepository) CreateAreaEje(ctx context.Context, areaID, ejeID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := areaID + "/" + ejeID
	if _, ok := repo.db.areaEjes[key]; ok {
		return plan.ErrEjeAssigned
	}
	repo.db.areaEjes[key] = struct{}{}
	return nil
}

func (repo *planRepository) CreateRows(ctx context.Context, rows []plan.Row, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, row := range rows {
		for _, existing := range repo.db.rows {
			if existing.AreaID == row.AreaID && existing.EjeID == row.EjeID && existing.SubEjeID == row.SubEjeID {
				return plan.ErrCellExists
			}
		}
		if row.ID == "" {
			row.ID = uuid.New().String()
		}
		row := row
		repo.db.rows[row.ID] = &row
	}
	return nil
}

func (repo *planRepository) GetRow(ctx context.Context, id string, exec ...core.DBExecutor) (plan.Row, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if row, ok := repo.db.rows[id]; ok {
		return *row, nil
	}
	return plan.Row{}, plan.ErrNotFound
}

func (repo *planRepository) QueryRows(ctx context.Context, areaID string, exec ...core.DBExecutor) ([]plan.Row, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]plan.Row, 0)
	for _, row := range repo.db.rows {
		if row.AreaID == areaID {
			rows = append(rows, *row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows, nil
}

func (repo *planRepository) UpdateRow(ctx context.Context, row plan.Row, exec ...core.DBExecutor) (plan.Row, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.rows[row.ID]; !ok {
		return plan.Row{}, plan.ErrNotFound
	}
	repo.db.rows[row.ID] = &row
	return row, nil
}
