package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/quarter"
)

const configColumns = "id, trimestre, anio, fecha_inicio, fecha_fin, abierto, habilitado_manualmente, dias_habilitados, fecha_habilitacion_manual"

type quarterRepository struct {
	exec core.DBExecutor
}

var _ quarter.Repository = (*quarterRepository)(nil) // interface compliance check

func NewQuarterRepository(exec core.DBExecutor) *quarterRepository {
	return &quarterRepository{exec: exec}
}

func (repo quarterRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo quarterRepository) scanConfig(row interface{ Scan(...interface{}) error }) (quarter.Config, error) {
	var cfg quarter.Config
	err := row.Scan(
		&cfg.ID, &cfg.Trimestre, &cfg.Anio, &cfg.FechaInicio, &cfg.FechaFin,
		&cfg.Abierto, &cfg.HabilitadoManualmente, &cfg.DiasHabilitados, &cfg.FechaHabilitacionManual,
	)
	return cfg, err
}

func (repo quarterRepository) GetConfig(ctx context.Context, trimestre, anio int, exec ...core.DBExecutor) (quarter.Config, error) {
	cfg, err := repo.scanConfig(repo.getExec(exec).QueryRowContext(ctx,
		"SELECT "+configColumns+" FROM trimestre_config WHERE trimestre = $1 AND anio = $2",
		trimestre, anio))
	if err == sql.ErrNoRows {
		return quarter.Config{}, quarter.ErrNotFound
	} else if err != nil {
		return quarter.Config{}, errors.Wrap(err, "finding quarter config")
	}
	return cfg, nil
}

func (repo quarterRepository) QueryConfigs(ctx context.Context, anio int, exec ...core.DBExecutor) ([]quarter.Config, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx,
		"SELECT "+configColumns+" FROM trimestre_config WHERE anio = $1 ORDER BY trimestre", anio)
	if err != nil {
		return nil, errors.Wrap(err, "querying quarter configs")
	}
	defer func() { _ = rows.Close() }()

	configs := make([]quarter.Config, 0, 4)
	for rows.Next() {
		cfg, err := repo.scanConfig(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning quarter config")
		}
		configs = append(configs, cfg)
	}
	return configs, errors.Wrap(rows.Err(), "querying quarter configs")
}

func (repo quarterRepository) UpdateConfig(ctx context.Context, cfg quarter.Config, exec ...core.DBExecutor) (quarter.Config, error) {
	_, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE trimestre_config
		 SET fecha_inicio = $2, fecha_fin = $3, abierto = $4, habilitado_manualmente = $5,
		     dias_habilitados = $6, fecha_habilitacion_manual = $7
		 WHERE id = $1`,
		cfg.ID, cfg.FechaInicio.UTC(), cfg.FechaFin.UTC(), cfg.Abierto,
		cfg.HabilitadoManualmente, cfg.DiasHabilitados, cfg.FechaHabilitacionManual,
	)
	if err != nil {
		return quarter.Config{}, errors.Wrap(err, "updating quarter config")
	}
	return cfg, nil
}

func (repo quarterRepository) UpsertConfig(ctx context.Context, cfg quarter.Config, exec ...core.DBExecutor) (quarter.Config, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	err := repo.getExec(exec).QueryRowContext(ctx,
		`INSERT INTO trimestre_config (`+configColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (trimestre, anio) DO UPDATE
		 SET fecha_inicio = EXCLUDED.fecha_inicio, fecha_fin = EXCLUDED.fecha_fin
		 RETURNING id`,
		cfg.ID, cfg.Trimestre, cfg.Anio, cfg.FechaInicio.UTC(), cfg.FechaFin.UTC(),
		cfg.Abierto, cfg.HabilitadoManualmente, cfg.DiasHabilitados, cfg.FechaHabilitacionManual,
	).Scan(&cfg.ID)
	if err != nil {
		return quarter.Config{}, errors.Wrap(err, "upserting quarter config")
	}
	return cfg, nil
}

func (repo quarterRepository) GetParticipation(ctx context.Context, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) (quarter.Participation, error) {
	var p quarter.Participation
	err := repo.getExec(exec).QueryRowContext(ctx,
		`SELECT id, usuario_id, trimestre, anio, participa, created_at
		 FROM participacion WHERE usuario_id = $1 AND trimestre = $2 AND anio = $3`,
		usuarioID, trimestre, anio,
	).Scan(&p.ID, &p.UsuarioID, &p.Trimestre, &p.Anio, &p.Participa, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return quarter.Participation{}, quarter.ErrNotFound
	} else if err != nil {
		return quarter.Participation{}, errors.Wrap(err, "finding participation")
	}
	return p, nil
}

func (repo quarterRepository) UpsertParticipation(ctx context.Context, p quarter.Participation, exec ...core.DBExecutor) (quarter.Participation, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	err := repo.getExec(exec).QueryRowContext(ctx,
		`INSERT INTO participacion (id, usuario_id, trimestre, anio, participa, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (usuario_id, trimestre, anio) DO UPDATE SET participa = EXCLUDED.participa
		 RETURNING id`,
		p.ID, p.UsuarioID, p.Trimestre, p.Anio, p.Participa, p.CreatedAt.UTC(),
	).Scan(&p.ID)
	if err != nil {
		return quarter.Participation{}, errors.Wrap(err, "upserting participation")
	}
	return p, nil
}

func (repo quarterRepository) scanGoalAssignment(row interface{ Scan(...interface{}) error }) (quarter.GoalAssignment, error) {
	var ga quarter.GoalAssignment
	err := row.Scan(
		&ga.ID, &ga.UsuarioID, &ga.AreaID, &ga.Trimestre, &ga.Anio, &ga.Meta, &ga.FechaAsignacion,
	)
	return ga, err
}

func (repo quarterRepository) GetGoalAssignment(ctx context.Context, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) (quarter.GoalAssignment, error) {
	ga, err := repo.scanGoalAssignment(repo.getExec(exec).QueryRowContext(ctx,
		`SELECT id, usuario_id, area_id, trimestre, anio, meta, fecha_asignacion
		 FROM meta_trimestre WHERE usuario_id = $1 AND trimestre = $2 AND anio = $3`,
		usuarioID, trimestre, anio))
	if err == sql.ErrNoRows {
		return quarter.GoalAssignment{}, quarter.ErrNotFound
	} else if err != nil {
		return quarter.GoalAssignment{}, errors.Wrap(err, "finding goal assignment")
	}
	return ga, nil
}

func (repo quarterRepository) UpsertGoalAssignment(ctx context.Context, ga quarter.GoalAssignment, exec ...core.DBExecutor) (quarter.GoalAssignment, error) {
	if ga.ID == "" {
		ga.ID = uuid.New().String()
	}
	err := repo.getExec(exec).QueryRowContext(ctx,
		`INSERT INTO meta_trimestre (id, usuario_id, area_id, trimestre, anio, meta, fecha_asignacion)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (usuario_id, trimestre, anio) DO UPDATE
		 SET meta = EXCLUDED.meta, fecha_asignacion = EXCLUDED.fecha_asignacion
		 RETURNING id`,
		ga.ID, ga.UsuarioID, ga.AreaID, ga.Trimestre, ga.Anio, ga.Meta, ga.FechaAsignacion.UTC(),
	).Scan(&ga.ID)
	if err != nil {
		return quarter.GoalAssignment{}, errors.Wrap(err, "upserting goal assignment")
	}
	return ga, nil
}

func (repo quarterRepository) QueryGoalAssignments(ctx context.Context, areaID string, trimestre, anio int, exec ...core.DBExecutor) ([]quarter.GoalAssignment, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx,
		`SELECT id, usuario_id, area_id, trimestre, anio, meta, fecha_asignacion
		 FROM meta_trimestre WHERE area_id = $1 AND trimestre = $2 AND anio = $3
		 ORDER BY fecha_asignacion`,
		areaID, trimestre, anio)
	if err != nil {
		return nil, errors.Wrap(err, "querying goal assignments")
	}
	defer func() { _ = rows.Close() }()

	assignments := make([]quarter.GoalAssignment, 0)
	for rows.Next() {
		ga, err := repo.scanGoalAssignment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning goal assignment")
		}
		assignments = append(assignments, ga)
	}
	return assignments, errors.Wrap(rows.Err(), "querying goal assignments")
}
