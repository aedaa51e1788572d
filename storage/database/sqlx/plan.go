package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/plan"
)

const rowColumns = "id, area_id, eje_id, sub_eje_id, meta, indicador, accion, presupuesto, t1, t2, t3, t4, created_at, updated_at"

// uniqueViolation is the psql error code surfaced when a unique index rejects
// an insert; the duplicate key is the control-flow signal, not a pre-check.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type planRepository struct {
	exec core.DBExecutor
}

var _ plan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(exec core.DBExecutor) *planRepository {
	return &planRepository{exec: exec}
}

func (repo planRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo planRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return plan.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo planRepository) CreateArea(ctx context.Context, area plan.Area, exec ...core.DBExecutor) (plan.Area, error) {
	area.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		"INSERT INTO area (id, nombre, created_at) VALUES ($1, $2, $3)",
		area.ID, area.Nombre, area.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return plan.Area{}, plan.ErrAreaExists
	} else if err != nil {
		return plan.Area{}, errors.Wrap(err, "inserting area")
	}
	return area, nil
}

func (repo planRepository) GetArea(ctx context.Context, id string, exec ...core.DBExecutor) (plan.Area, error) {
	var area plan.Area
	err := repo.getExec(exec).QueryRowContext(ctx,
		"SELECT id, nombre, created_at FROM area WHERE id = $1", id,
	).Scan(&area.ID, &area.Nombre, &area.CreatedAt)
	if err == sql.ErrNoRows {
		return plan.Area{}, plan.ErrAreaNotFound
	} else if err != nil {
		return plan.Area{}, errors.Wrap(err, "finding area")
	}
	return area, nil
}

func (repo planRepository) QueryAreas(ctx context.Context, exec ...core.DBExecutor) ([]plan.Area, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx,
		"SELECT id, nombre, created_at FROM area ORDER BY nombre")
	if err != nil {
		return nil, errors.Wrap(err, "querying areas")
	}
	defer func() { _ = rows.Close() }()

	areas := make([]plan.Area, 0)
	for rows.Next() {
		var area plan.Area
		if err = rows.Scan(&area.ID, &area.Nombre, &area.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning area")
		}
		areas = append(areas, area)
	}
	return areas, errors.Wrap(rows.Err(), "querying areas")
}

func (repo planRepository) CreateEje(ctx context.Context, eje plan.Eje, exec ...core.DBExecutor) (plan.Eje, error) {
	eje.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		"INSERT INTO eje (id, nombre, created_at) VALUES ($1, $2, $3)",
		eje.ID, eje.Nombre, eje.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return plan.Eje{}, plan.ErrEjeExists
	} else if err != nil {
		return plan.Eje{}, errors.Wrap(err, "inserting eje")
	}
	return eje, nil
}

func (repo planRepository) GetEje(ctx context.Context, id string, exec ...core.DBExecutor) (plan.Eje, error) {
	var eje plan.Eje
	err := repo.getExec(exec).QueryRowContext(ctx,
		"SELECT id, nombre, created_at FROM eje WHERE id = $1", id,
	).Scan(&eje.ID, &eje.Nombre, &eje.CreatedAt)
	if err == sql.ErrNoRows {
		return plan.Eje{}, plan.ErrEjeNotFound
	} else if err != nil {
		return plan.Eje{}, errors.Wrap(err, "finding eje")
	}
	return eje, nil
}

func (repo planRepository) QueryEjes(ctx context.Context, exec ...core.DBExecutor) ([]plan.Eje, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx,
		"SELECT id, nombre, created_at FROM eje ORDER BY nombre")
	if err != nil {
		return nil, errors.Wrap(err, "querying ejes")
	}
	defer func() { _ = rows.Close() }()

	ejes := make([]plan.Eje, 0)
	for rows.Next() {
		var eje plan.Eje
		if err = rows.Scan(&eje.ID, &eje.Nombre, &eje.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning eje")
		}
		ejes = append(ejes, eje)
	}
	return ejes, errors.Wrap(rows.Err(), "querying ejes")
}

func (repo planRepository) CreateSubEje(ctx context.Context, se plan.SubEje, exec ...core.DBExecutor) (plan.SubEje, error) {
	se.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		"INSERT INTO sub_eje (id, eje_id, nombre) VALUES ($1, $2, $3)",
		se.ID, se.EjeID, se.Nombre,
	)
	if isUniqueViolation(err) {
		return plan.SubEje{}, plan.ErrSubEjeExists
	} else if err != nil {
		return plan.SubEje{}, errors.Wrap(err, "inserting sub eje")
	}
	return se, nil
}

func (repo planRepository) QuerySubEjes(ctx context.Context, ejeID string, exec ...core.DBExecutor) ([]plan.SubEje, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx,
		"SELECT id, eje_id, nombre FROM sub_eje WHERE eje_id = $1 ORDER BY nombre", ejeID)
	if err != nil {
		return nil, errors.Wrap(err, "querying sub ejes")
	}
	defer func() { _ = rows.Close() }()

	subEjes := make([]plan.SubEje, 0)
	for rows.Next() {
		var se plan.SubEje
		if err = rows.Scan(&se.ID, &se.EjeID, &se.Nombre); err != nil {
			return nil, errors.Wrap(err, "scanning sub eje")
		}
		subEjes = append(subEjes, se)
	}
	return subEjes, errors.Wrap(rows.Err(), "querying sub ejes")
}

func (repo planRepository) CreateAreaEje(ctx context.Context, areaID, ejeID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		"INSERT INTO area_eje (area_id, eje_id) VALUES ($1, $2)", areaID, ejeID)
	if isUniqueViolation(err) {
		return plan.ErrEjeAssigned
	}
	return errors.Wrap(err, "inserting area eje")
}

func (repo planRepository) CreateRows(ctx context.Context, planRows []plan.Row, exec ...core.DBExecutor) error {
	if len(planRows) == 0 {
		return nil
	}

	values := make([]string, 0, len(planRows))
	args := make([]interface{}, 0, len(planRows)*14)
	for i, row := range planRows {
		if row.ID == "" {
			row.ID = uuid.New().String()
		}
		base := i * 14
		placeholders := make([]string, 14)
		for j := range placeholders {
			placeholders[j] = "$" + strconv.Itoa(base+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			row.ID, row.AreaID, row.EjeID, row.SubEjeID,
			row.Meta, row.Indicador, row.Accion, row.Presupuesto,
			row.T1, row.T2, row.T3, row.T4,
			row.CreatedAt.UTC(), row.UpdatedAt.UTC(),
		)
	}

	_, err := repo.getExec(exec).ExecContext(ctx,
		"INSERT INTO plan_accion ("+rowColumns+") VALUES "+strings.Join(values, ", "), args...)
	if isUniqueViolation(err) {
		return plan.ErrCellExists
	}
	return errors.Wrap(err, "inserting plan rows")
}

func (repo planRepository) scanRow(row interface{ Scan(...interface{}) error }) (plan.Row, error) {
	var r plan.Row
	err := row.Scan(
		&r.ID, &r.AreaID, &r.EjeID, &r.SubEjeID,
		&r.Meta, &r.Indicador, &r.Accion, &r.Presupuesto,
		&r.T1, &r.T2, &r.T3, &r.T4,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func (repo planRepository) GetRow(ctx context.Context, id string, exec ...core.DBExecutor) (plan.Row, error) {
	if _, err := uuid.Parse(id); err != nil {
		return plan.Row{}, plan.ErrNotFound
	}
	r, err := repo.scanRow(repo.getExec(exec).QueryRowContext(ctx,
		"SELECT "+rowColumns+" FROM plan_accion WHERE id = $1", id))
	if err != nil {
		return plan.Row{}, repo.trapNoRowsErr(err, "finding plan row")
	}
	return r, nil
}

func (repo planRepository) QueryRows(ctx context.Context, areaID string, exec ...core.DBExecutor) ([]plan.Row, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx,
		"SELECT "+rowColumns+" FROM plan_accion WHERE area_id = $1 ORDER BY created_at", areaID)
	if err != nil {
		return nil, errors.Wrap(err, "querying plan rows")
	}
	defer func() { _ = rows.Close() }()

	planRows := make([]plan.Row, 0)
	for rows.Next() {
		r, err := repo.scanRow(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning plan row")
		}
		planRows = append(planRows, r)
	}
	return planRows, errors.Wrap(rows.Err(), "querying plan rows")
}

func (repo planRepository) UpdateRow(ctx context.Context, row plan.Row, exec ...core.DBExecutor) (plan.Row, error) {
	_, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE plan_accion
		 SET meta = $2, indicador = $3, accion = $4, presupuesto = $5,
		     t1 = $6, t2 = $7, t3 = $8, t4 = $9, updated_at = $10
		 WHERE id = $1`,
		row.ID, row.Meta, row.Indicador, row.Accion, row.Presupuesto,
		row.T1, row.T2, row.T3, row.T4, row.UpdatedAt.UTC(),
	)
	if err != nil {
		return plan.Row{}, errors.Wrap(err, "updating plan row")
	}
	return row, nil
}
