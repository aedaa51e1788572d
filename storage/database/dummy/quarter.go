package dummydb

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/quarter"
)

type quarterRepository struct {
	db *DB
}

var _ quarter.Repository = (*quarterRepository)(nil) // interface compliance check

func NewQuarterRepository(db *DB) *quarterRepository {
	return &quarterRepository{db: db}
}

func quarterKey(trimestre, anio int) string {
	return fmt.Sprintf("%d/%d", trimestre, anio)
}

func userQuarterKey(usuarioID string, trimestre, anio int) string {
	return fmt.Sprintf("%s/%d/%d", usuarioID, trimestre, anio)
}

func (repo *quarterRepository) GetConfig(ctx context.Context, trimestre, anio int, exec ...core.DBExecutor) (quarter.Config, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cfg, ok := repo.db.configs[quarterKey(trimestre, anio)]; ok {
		return *cfg, nil
	}
	return quarter.Config{}, quarter.ErrNotFound
}

func (repo *quarterRepository) QueryConfigs(ctx context.Context, anio int, exec ...core.DBExecutor) ([]quarter.Config, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	configs := make([]quarter.Config, 0, 4)
	for _, cfg := range repo.db.configs {
		if cfg.Anio == anio {
			configs = append(configs, *cfg)
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Trimestre < configs[j].Trimestre })
	return configs, nil
}

func (repo *quarterRepository) UpdateConfig(ctx context.Context, cfg quarter.Config, exec ...core.DBExecutor) (quarter.Config, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := quarterKey(cfg.Trimestre, cfg.Anio)
	if _, ok := repo.db.configs[key]; !ok {
		return quarter.Config{}, quarter.ErrNotFound
	}
	repo.db.configs[key] = &cfg
	return cfg, nil
}

func (repo *quarterRepository) UpsertConfig(ctx context.Context, cfg quarter.Config, exec ...core.DBExecutor) (quarter.Config, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := quarterKey(cfg.Trimestre, cfg.Anio)
	if existing, ok := repo.db.configs[key]; ok {
		existing.FechaInicio = cfg.FechaInicio
		existing.FechaFin = cfg.FechaFin
		return *existing, nil
	}
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	repo.db.configs[key] = &cfg
	return cfg, nil
}

func (repo *quarterRepository) GetParticipation(ctx context.Context, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) (quarter.Participation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.participations[userQuarterKey(usuarioID, trimestre, anio)]; ok {
		return *p, nil
	}
	return quarter.Participation{}, quarter.ErrNotFound
}

func (repo *quarterRepository) UpsertParticipation(ctx context.Context, p quarter.Participation, exec ...core.DBExecutor) (quarter.Participation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := userQuarterKey(p.UsuarioID, p.Trimestre, p.Anio)
	if existing, ok := repo.db.participations[key]; ok {
		existing.Participa = p.Participa
		return *existing, nil
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	repo.db.participations[key] = &p
	return p, nil
}

func (repo *quarterRepository) GetGoalAssignment(ctx context.Context, usuarioID string, trimestre, anio int, exec ...core.DBExecutor) (quarter.GoalAssignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ga, ok := repo.db.goals[userQuarterKey(usuarioID, trimestre, anio)]; ok {
		return *ga, nil
	}
	return quarter.GoalAssignment{}, quarter.ErrNotFound
}

func (repo *quarterRepository) UpsertGoalAssignment(ctx context.Context, ga quarter.GoalAssignment, exec ...core.DBExecutor) (quarter.GoalAssignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := userQuarterKey(ga.UsuarioID, ga.Trimestre, ga.Anio)
	if existing, ok := repo.db.goals[key]; ok {
		existing.Meta = ga.Meta
		existing.FechaAsignacion = ga.FechaAsignacion
		return *existing, nil
	}
	if ga.ID == "" {
		ga.ID = uuid.New().String()
	}
	repo.db.goals[key] = &ga
	return ga, nil
}

func (repo *quarterRepository) QueryGoalAssignments(ctx context.Context, areaID string, trimestre, anio int, exec ...core.DBExecutor) ([]quarter.GoalAssignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	assignments := make([]quarter.GoalAssignment, 0)
	for _, ga := range repo.db.goals {
		if ga.AreaID == areaID && ga.Trimestre == trimestre && ga.Anio == anio {
			assignments = append(assignments, *ga)
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].FechaAsignacion.Before(assignments[j].FechaAsignacion)
	})
	return assignments, nil
}
