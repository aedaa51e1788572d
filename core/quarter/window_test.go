package quarter

import (
	"fmt"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestResolve(t *testing.T) {
	now := time.Date(2025, time.May, 15, 12, 0, 0, 0, time.UTC)
	inicio := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	fin := time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC)

	regular := Config{Trimestre: 2, Anio: 2025, FechaInicio: inicio, FechaFin: fin}

	manual := func(daysAgo int, budget *int) Config {
		cfg := regular
		cfg.HabilitadoManualmente = true
		if budget != nil {
			cfg.DiasHabilitados = null.IntFrom(*budget)
			cfg.FechaHabilitacionManual = null.TimeFrom(now.AddDate(0, 0, -daysAgo))
		}
		return cfg
	}
	iPtr := func(i int) *int { return &i }

	tests := []struct {
		name           string
		cfg            Config
		now            time.Time
		wantDisponible bool
		wantRazon      string
	}{
		{
			name: "manual within day budget", cfg: manual(2, iPtr(5)), now: now, wantDisponible: true,
			wantRazon: fmt.Sprintf("habilitado manualmente hasta el %s", now.AddDate(0, 0, 3).Format(dateFormat)),
		},
		{
			name: "manual budget exactly at deadline", cfg: manual(5, iPtr(5)), now: now, wantDisponible: true,
			wantRazon: fmt.Sprintf("habilitado manualmente hasta el %s", now.Format(dateFormat)),
		},
		{
			name: "manual budget expired", cfg: manual(6, iPtr(5)), now: now, wantDisponible: false,
			wantRazon: fmt.Sprintf("la habilitación manual venció el %s", now.AddDate(0, 0, -1).Format(dateFormat)),
		},
		{
			name: "manual without budget", cfg: manual(0, nil), now: now, wantDisponible: true,
			wantRazon: "habilitado manualmente sin límite de tiempo",
		},
		{
			name: "regular window open",
			cfg:  func() Config { cfg := regular; cfg.Abierto = true; return cfg }(),
			now:  now, wantDisponible: true, wantRazon: "periodo regular abierto",
		},
		{
			name: "regular window open, boundary start",
			cfg:  func() Config { cfg := regular; cfg.Abierto = true; return cfg }(),
			now:  inicio, wantDisponible: true, wantRazon: "periodo regular abierto",
		},
		{
			name: "before window", cfg: func() Config { cfg := regular; cfg.Abierto = true; return cfg }(),
			now: inicio.Add(-time.Hour), wantDisponible: false,
			wantRazon: fmt.Sprintf("el periodo inicia el %s", inicio.Format(dateFormat)),
		},
		{
			name: "after window", cfg: func() Config { cfg := regular; cfg.Abierto = true; return cfg }(),
			now: fin.Add(time.Hour), wantDisponible: false,
			wantRazon: fmt.Sprintf("el periodo cerró el %s", fin.Format(dateFormat)),
		},
		{
			name: "closed by configuration", cfg: regular, now: now, wantDisponible: false,
			wantRazon: "cerrado por configuración",
		},
		{
			name: "manual trumps closed window",
			cfg: func() Config {
				cfg := manual(0, nil)
				cfg.FechaFin = now.AddDate(0, 0, -30)
				return cfg
			}(),
			now: now, wantDisponible: true, wantRazon: "habilitado manualmente sin límite de tiempo",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.cfg, tt.now)
			if got.Disponible != tt.wantDisponible {
				t.Errorf("Resolve().Disponible = %v, want %v", got.Disponible, tt.wantDisponible)
			}
			if got.Razon != tt.wantRazon {
				t.Errorf("Resolve().Razon = %q, want %q", got.Razon, tt.wantRazon)
			}
		})
	}
}
