package quarter

import (
	"fmt"
	"time"
)

// Availability says whether a quarter currently accepts submissions, and why.
type Availability struct {
	Disponible bool   `json:"disponible"`
	Razon      string `json:"razon"`
}

const dateFormat = "02/01/2006"

// Resolve computes the availability of a quarter at the given instant.
// Manual enablement always takes precedence over the regular window; both
// the user-facing and admin-facing views go through this one function.
//
// Branches, in priority order:
//  1. manually enabled with a start date and a day budget: available until
//     the budget runs out;
//  2. manually enabled with no day budget: available with no time limit;
//  3. regular window open and now within [fecha_inicio, fecha_fin];
//  4. before fecha_inicio;
//  5. after fecha_fin;
//  6. closed by configuration.
func Resolve(cfg Config, now time.Time) Availability {
	if cfg.HabilitadoManualmente {
		if cfg.FechaHabilitacionManual.Valid && cfg.DiasHabilitados.Valid {
			deadline := cfg.FechaHabilitacionManual.Time.AddDate(0, 0, cfg.DiasHabilitados.Int)
			if !now.After(deadline) {
				return Availability{
					Disponible: true,
					Razon:      fmt.Sprintf("habilitado manualmente hasta el %s", deadline.Format(dateFormat)),
				}
			}
			return Availability{
				Disponible: false,
				Razon:      fmt.Sprintf("la habilitación manual venció el %s", deadline.Format(dateFormat)),
			}
		}
		return Availability{Disponible: true, Razon: "habilitado manualmente sin límite de tiempo"}
	}

	if cfg.Abierto && !now.Before(cfg.FechaInicio) && !now.After(cfg.FechaFin) {
		return Availability{Disponible: true, Razon: "periodo regular abierto"}
	}
	if now.Before(cfg.FechaInicio) {
		return Availability{
			Disponible: false,
			Razon:      fmt.Sprintf("el periodo inicia el %s", cfg.FechaInicio.Format(dateFormat)),
		}
	}
	if now.After(cfg.FechaFin) {
		return Availability{
			Disponible: false,
			Razon:      fmt.Sprintf("el periodo cerró el %s", cfg.FechaFin.Format(dateFormat)),
		}
	}
	return Availability{Disponible: false, Razon: "cerrado por configuración"}
}
