package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/evidence"
)

const (
	evidenceColumns = `id, meta_id, usuario_id, trimestre, anio, archivo_url, archivo_key, archivo_nombre,
		archivo_tipo, archivo_tamano, descripcion, estado, calificacion, comentario_admin, envio_id,
		fecha_envio, fecha_revision`
	submissionColumns = "id, usuario_id, area_id, trimestre, anio, estado, fecha_envio, locked_at"
)

type evidenceRepository struct {
	exec core.DBExecutor
}

var _ evidence.Repository = (*evidenceRepository)(nil) // interface compliance check

func NewEvidenceRepository(exec core.DBExecutor) *evidenceRepository {
	return &evidenceRepository{exec: exec}
}

func (repo evidenceRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo evidenceRepository) scanEvidence(row interface{ Scan(...interface{}) error }) (evidence.Evidence, error) {
	var ev evidence.Evidence
	err := row.Scan(
		&ev.ID, &ev.MetaID, &ev.UsuarioID, &ev.Trimestre, &ev.Anio,
		&ev.ArchivoURL, &ev.ArchivoKey, &ev.ArchivoNombre, &ev.ArchivoTipo, &ev.ArchivoTamano,
		&ev.Descripcion, &ev.Estado, &ev.Calificacion, &ev.ComentarioAdmin, &ev.EnvioID,
		&ev.FechaEnvio, &ev.FechaRevision,
	)
	return ev, err
}

func (repo evidenceRepository) scanSubmission(row interface{ Scan(...interface{}) error }) (evidence.Submission, error) {
	var sub evidence.Submission
	err := row.Scan(
		&sub.ID, &sub.UsuarioID, &sub.AreaID, &sub.Trimestre, &sub.Anio,
		&sub.Estado, &sub.FechaEnvio, &sub.LockedAt,
	)
	return sub, err
}

func (repo evidenceRepository) CreateEvidence(ctx context.Context, ev evidence.Evidence, exec ...core.DBExecutor) (evidence.Evidence, error) {
	ev.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO evidencias (id, meta_id, usuario_id, trimestre, anio, archivo_url, archivo_key,
		   archivo_nombre, archivo_tipo, archivo_tamano, descripcion, estado, fecha_envio)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ev.ID, ev.MetaID, ev.UsuarioID, ev.Trimestre, ev.Anio, ev.ArchivoURL, ev.ArchivoKey,
		ev.ArchivoNombre, ev.ArchivoTipo, ev.ArchivoTamano, ev.Descripcion, ev.Estado, ev.FechaEnvio.UTC(),
	)
	if err != nil {
		return evidence.Evidence{}, errors.Wrap(err, "inserting evidence")
	}
	return ev, nil
}

func (repo evidenceRepository) GetEvidence(ctx context.Context, id string, exec ...core.DBExecutor) (evidence.Evidence, error) {
	if _, err := uuid.Parse(id); err != nil {
		return evidence.Evidence{}, evidence.ErrNotFound
	}
	ev, err := repo.scanEvidence(repo.getExec(exec).QueryRowContext(ctx,
		"SELECT "+evidenceColumns+" FROM evidencias WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return evidence.Evidence{}, evidence.ErrNotFound
	} else if err != nil {
		return evidence.Evidence{}, errors.Wrap(err, "finding evidence")
	}
	return ev, nil
}

func (repo evidenceRepository) GetEvidenceByMeta(ctx context.Context, metaID, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) (evidence.Evidence, error) {
	ev, err := repo.scanEvidence(repo.getExec(exec).QueryRowContext(ctx,
		`SELECT `+evidenceColumns+` FROM evidencias
		 WHERE meta_id = $1 AND usuario_id = $2 AND trimestre = $3 AND anio = $4`,
		metaID, usuarioID, trimestre, anio))
	if err == sql.ErrNoRows {
		return evidence.Evidence{}, evidence.ErrNotFound
	} else if err != nil {
		return evidence.Evidence{}, errors.Wrap(err, "finding evidence by meta")
	}
	return ev, nil
}

func (repo evidenceRepository) queryEvidences(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) ([]evidence.Evidence, error) {
	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying evidences")
	}
	defer func() { _ = rows.Close() }()

	evs := make([]evidence.Evidence, 0)
	for rows.Next() {
		ev, err := repo.scanEvidence(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning evidence")
		}
		evs = append(evs, ev)
	}
	return evs, errors.Wrap(rows.Err(), "querying evidences")
}

func (repo evidenceRepository) QueryEvidences(ctx context.Context, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) ([]evidence.Evidence, error) {
	return repo.queryEvidences(ctx, repo.getExec(exec),
		`SELECT `+evidenceColumns+` FROM evidencias
		 WHERE usuario_id = $1 AND trimestre = $2 AND anio = $3 ORDER BY fecha_envio`,
		usuarioID, trimestre, anio)
}

func (repo evidenceRepository) QueryEvidencesByEnvio(ctx context.Context, envioID string, exec ...core.DBExecutor) ([]evidence.Evidence, error) {
	return repo.queryEvidences(ctx, repo.getExec(exec),
		"SELECT "+evidenceColumns+" FROM evidencias WHERE envio_id = $1 ORDER BY fecha_envio", envioID)
}

func (repo evidenceRepository) UpdateEvidence(ctx context.Context, ev evidence.Evidence, exec ...core.DBExecutor) (evidence.Evidence, error) {
	_, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE evidencias
		 SET archivo_url = $2, archivo_key = $3, archivo_nombre = $4, archivo_tipo = $5,
		     archivo_tamano = $6, descripcion = $7, estado = $8, calificacion = $9,
		     comentario_admin = $10, envio_id = $11, fecha_envio = $12, fecha_revision = $13
		 WHERE id = $1`,
		ev.ID, ev.ArchivoURL, ev.ArchivoKey, ev.ArchivoNombre, ev.ArchivoTipo,
		ev.ArchivoTamano, ev.Descripcion, ev.Estado, ev.Calificacion,
		ev.ComentarioAdmin, ev.EnvioID, ev.FechaEnvio.UTC(), ev.FechaRevision,
	)
	if err != nil {
		return evidence.Evidence{}, errors.Wrap(err, "updating evidence")
	}
	return ev, nil
}

func (repo evidenceRepository) DeleteEvidencesByEnvio(ctx context.Context, envioID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM evidencias WHERE envio_id = $1", envioID)
	return errors.Wrap(err, "deleting evidences")
}

func (repo evidenceRepository) CountGradedByEnvio(ctx context.Context, envioID string, exec ...core.DBExecutor) (int, error) {
	var cnt int
	err := repo.getExec(exec).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM evidencias WHERE envio_id = $1 AND estado IN ($2, $3)",
		envioID, evidence.StatusAprobado, evidence.StatusRechazado,
	).Scan(&cnt)
	return cnt, errors.Wrap(err, "counting graded evidences")
}

func (repo evidenceRepository) StampEnvio(ctx context.Context, envioID, usuarioID string, metaIDs []string, trimestre, anio int, fechaEnvio time.Time, exec ...core.DBExecutor) (int, error) {
	query, args, err := sqlx.In(
		`UPDATE evidencias SET envio_id = ?, estado = ?, fecha_envio = ?
		 WHERE usuario_id = ? AND trimestre = ? AND anio = ? AND meta_id IN (?)`,
		envioID, evidence.StatusPendiente, fechaEnvio.UTC(), usuarioID, trimestre, anio, metaIDs)
	if err != nil {
		return 0, errors.Wrap(err, "building stamp query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "stamping evidences")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}

func (repo evidenceRepository) CreateSubmission(ctx context.Context, sub evidence.Submission, exec ...core.DBExecutor) (evidence.Submission, error) {
	sub.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO envios_trimestre (id, usuario_id, area_id, trimestre, anio, estado, fecha_envio)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.UsuarioID, sub.AreaID, sub.Trimestre, sub.Anio, sub.Estado, sub.FechaEnvio.UTC(),
	)
	if isUniqueViolation(err) {
		return evidence.Submission{}, evidence.ErrSubmissionExists
	} else if err != nil {
		return evidence.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo evidenceRepository) GetSubmission(ctx context.Context, usuarioID, areaID string, trimestre, anio int, exec ...core.DBExecutor) (evidence.Submission, error) {
	sub, err := repo.scanSubmission(repo.getExec(exec).QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM envios_trimestre
		 WHERE usuario_id = $1 AND area_id = $2 AND trimestre = $3 AND anio = $4`,
		usuarioID, areaID, trimestre, anio))
	if err == sql.ErrNoRows {
		return evidence.Submission{}, evidence.ErrSubmissionNotFound
	} else if err != nil {
		return evidence.Submission{}, errors.Wrap(err, "finding submission")
	}
	return sub, nil
}

func (repo evidenceRepository) GetSubmissionByID(ctx context.Context, id string, exec ...core.DBExecutor) (evidence.Submission, error) {
	sub, err := repo.scanSubmission(repo.getExec(exec).QueryRowContext(ctx,
		"SELECT "+submissionColumns+" FROM envios_trimestre WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return evidence.Submission{}, evidence.ErrSubmissionNotFound
	} else if err != nil {
		return evidence.Submission{}, errors.Wrap(err, "finding submission by ID")
	}
	return sub, nil
}

func (repo evidenceRepository) QuerySubmissions(ctx context.Context, areaID string, trimestre, anio int, exec ...core.DBExecutor) ([]evidence.Submission, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM envios_trimestre
		 WHERE area_id = $1 AND trimestre = $2 AND anio = $3 ORDER BY fecha_envio`,
		areaID, trimestre, anio)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	defer func() { _ = rows.Close() }()

	subs := make([]evidence.Submission, 0)
	for rows.Next() {
		sub, err := repo.scanSubmission(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning submission")
		}
		subs = append(subs, sub)
	}
	return subs, errors.Wrap(rows.Err(), "querying submissions")
}

func (repo evidenceRepository) UpdateSubmission(ctx context.Context, sub evidence.Submission, exec ...core.DBExecutor) (evidence.Submission, error) {
	_, err := repo.getExec(exec).ExecContext(ctx,
		"UPDATE envios_trimestre SET estado = $2, locked_at = $3 WHERE id = $1",
		sub.ID, sub.Estado, sub.LockedAt,
	)
	if err != nil {
		return evidence.Submission{}, errors.Wrap(err, "updating submission")
	}
	return sub, nil
}

func (repo evidenceRepository) DeleteSubmission(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM envios_trimestre WHERE id = $1", id)
	return errors.Wrap(err, "deleting submission")
}
