package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/evidence"
)

type evidenceRepository struct {
	db *DB
}

var _ evidence.Repository = (*evidenceRepository)(nil) // interface compliance check

func NewEvidenceRepository(db *DB) *evidenceRepository {
	return &evidenceRepository{db: db}
}

func (repo *evidenceRepository) CreateEvidence(ctx context.Context, ev evidence.Evidence, exec ...core.DBExecutor) (evidence.Evidence, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ev.ID = uuid.New().String()
	repo.db.evidences[ev.ID] = &ev
	return ev, nil
}

func (repo *evidenceRepository) GetEvidence(ctx context.Context, id string, exec ...core.DBExecutor) (evidence.Evidence, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ev, ok := repo.db.evidences[id]; ok {
		return *ev, nil
	}
	return evidence.Evidence{}, evidence.ErrNotFound
}

func (repo *evidenceRepository) GetEvidenceByMeta(ctx context.Context, metaID, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) (evidence.Evidence, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, ev := range repo.db.evidences {
		if ev.MetaID == metaID && ev.UsuarioID == usuarioID && ev.Trimestre == trimestre && ev.Anio == anio {
			return *ev, nil
		}
	}
	return evidence.Evidence{}, evidence.ErrNotFound
}

func (repo *evidenceRepository) sortByFechaEnvio(evs []evidence.Evidence) []evidence.Evidence {
	sort.Slice(evs, func(i, j int) bool { return evs[i].FechaEnvio.Before(evs[j].FechaEnvio) })
	return evs
}

func (repo *evidenceRepository) QueryEvidences(ctx context.Context, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) ([]evidence.Evidence, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	evs := make([]evidence.Evidence, 0)
	for _, ev := range repo.db.evidences {
		if ev.UsuarioID == usuarioID && ev.Trimestre == trimestre && ev.Anio == anio {
			evs = append(evs, *ev)
		}
	}
	return repo.sortByFechaEnvio(evs), nil
}

func (repo *evidenceRepository) QueryEvidencesByEnvio(ctx context.Context, envioID string, exec ...core.DBExecutor) ([]evidence.Evidence, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	evs := make([]evidence.Evidence, 0)
	for _, ev := range repo.db.evidences {
		if ev.EnvioID.Valid && ev.EnvioID.String == envioID {
			evs = append(evs, *ev)
		}
	}
	return repo.sortByFechaEnvio(evs), nil
}

func (repo *evidenceRepository) UpdateEvidence(ctx context.Context, ev evidence.Evidence, exec ...core.DBExecutor) (evidence.Evidence, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.evidences[ev.ID]; !ok {
		return evidence.Evidence{}, evidence.ErrNotFound
	}
	repo.db.evidences[ev.ID] = &ev
	return ev, nil
}

func (repo *evidenceRepository) DeleteEvidencesByEnvio(ctx context.Context, envioID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, ev := range repo.db.evidences {
		if ev.EnvioID.Valid && ev.EnvioID.String == envioID {
			delete(repo.db.evidences, id)
		}
	}
	return nil
}

func (repo *evidenceRepository) CountGradedByEnvio(ctx context.Context, envioID string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var cnt int
	for _, ev := range repo.db.evidences {
		if ev.EnvioID.Valid && ev.EnvioID.String == envioID && ev.IsGraded() {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *evidenceRepository) StampEnvio(ctx context.Context, envioID, usuarioID string, metaIDs []string, trimestre, anio int, fechaEnvio time.Time, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	wanted := make(map[string]struct{}, len(metaIDs))
	for _, id := range metaIDs {
		wanted[id] = struct{}{}
	}

	var cnt int
	for _, ev := range repo.db.evidences {
		if _, ok := wanted[ev.MetaID]; !ok {
			continue
		}
		if ev.UsuarioID != usuarioID || ev.Trimestre != trimestre || ev.Anio != anio {
			continue
		}
		ev.EnvioID.SetValid(envioID)
		ev.Estado = evidence.StatusPendiente
		ev.FechaEnvio = fechaEnvio
		cnt++
	}
	return cnt, nil
}

func (repo *evidenceRepository) CreateSubmission(ctx context.Context, sub evidence.Submission, exec ...core.DBExecutor) (evidence.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, s := range repo.db.submissions {
		if s.UsuarioID == sub.UsuarioID && s.AreaID == sub.AreaID && s.Trimestre == sub.Trimestre && s.Anio == sub.Anio {
			return evidence.Submission{}, evidence.ErrSubmissionExists
		}
	}
	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *evidenceRepository) GetSubmission(ctx context.Context, usuarioID, areaID string, trimestre, anio int, exec ...core.DBExecutor) (evidence.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, sub := range repo.db.submissions {
		if sub.UsuarioID == usuarioID && sub.AreaID == areaID && sub.Trimestre == trimestre && sub.Anio == anio {
			return *sub, nil
		}
	}
	return evidence.Submission{}, evidence.ErrSubmissionNotFound
}

func (repo *evidenceRepository) GetSubmissionByID(ctx context.Context, id string, exec ...core.DBExecutor) (evidence.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return evidence.Submission{}, evidence.ErrSubmissionNotFound
}

func (repo *evidenceRepository) QuerySubmissions(ctx context.Context, areaID string, trimestre, anio int, exec ...core.DBExecutor) ([]evidence.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]evidence.Submission, 0)
	for _, sub := range repo.db.submissions {
		if sub.AreaID == areaID && sub.Trimestre == trimestre && sub.Anio == anio {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].FechaEnvio.Before(subs[j].FechaEnvio) })
	return subs, nil
}

func (repo *evidenceRepository) UpdateSubmission(ctx context.Context, sub evidence.Submission, exec ...core.DBExecutor) (evidence.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.submissions[sub.ID]; !ok {
		return evidence.Submission{}, evidence.ErrSubmissionNotFound
	}
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *evidenceRepository) DeleteSubmission(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.submissions, id)
	return nil
}
