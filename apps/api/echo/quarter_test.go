package echoapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/rumboapp/rumbo/core/quarter"
	"github.com/rumboapp/rumbo/core/user"
	testutil "github.com/rumboapp/rumbo/tests"
)

// openQuarter configures a quarter whose regular window covers today.
func openQuarter(t *testing.T, trimestre, anio int) quarter.Config {
	t.Helper()

	now := time.Now().UTC()
	cfg := testutil.CreateQuarterConfig(t, quarterRepo, trimestre, anio, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	cfg.Abierto = true
	cfg, err := quarterRepo.UpdateConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("UpdateConfig() failed: %v", err)
	}
	return cfg
}

func Test_quarterApi_enable(t *testing.T) {
	resetDB(t)
	anio := time.Now().UTC().Year()

	usr := testutil.CreateUser(t, usrRepo, "Usuaria", "usuaria@rumbo.test", "", user.RoleUsuario, user.StatusActivo, "")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@rumbo.test", "", user.RoleAdmin, user.StatusActivo, "")
	adminToken := getToken(t, admin)

	now := time.Now().UTC()
	testutil.CreateQuarterConfig(t, quarterRepo, 2, anio, now.AddDate(0, -2, 0), now.AddDate(0, -1, 0))

	dias := 5
	body := marchallObj(t, quarter.EnableManually{DiasHabilitados: &dias})

	t.Run("admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/trimestres/2/habilitar", getToken(t, usr), body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusForbidden, rec.Body.String())
		}
	})

	t.Run("invalid trimestre", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/trimestres/5/habilitar", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
		if ok, _ := jsonBytesEqual(rec.Body.Bytes(), marchallObj(t, map[string]string{"trimestre": "debe estar entre 1 y 4"})); !ok {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("not configured", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/trimestres/1/habilitar", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusNotFound, rec.Body.String())
		}
	})

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/trimestres/2/habilitar", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var cfg quarter.Config
		if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if !cfg.HabilitadoManualmente || !cfg.DiasHabilitados.Valid || cfg.DiasHabilitados.Int != 5 {
			t.Errorf("quarter not manually enabled: %+v", cfg)
		}
	})

	t.Run("disable", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/trimestres/2/habilitar", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var cfg quarter.Config
		if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if cfg.HabilitadoManualmente {
			t.Errorf("quarter still manually enabled: %+v", cfg)
		}
	})

	t.Run("query views", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/trimestres", getToken(t, usr))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var views []quarter.ConfigView
		if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(views) != 1 {
			t.Errorf("len(views) = %d, want 1", len(views))
		}
	})
}

func Test_quarterApi_participationAndGoals(t *testing.T) {
	resetDB(t)
	anio := time.Now().UTC().Year()

	area := testutil.CreateArea(t, planRepo, "Sistemas")
	usr := testutil.CreateUser(t, usrRepo, "Usuaria", "usuaria@rumbo.test", "", user.RoleUsuario, user.StatusActivo, area.ID)
	noArea := testutil.CreateUser(t, usrRepo, "Sin Área", "sinarea@rumbo.test", "", user.RoleUsuario, user.StatusActivo, "")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@rumbo.test", "", user.RoleAdmin, user.StatusActivo, "")

	usrToken := getToken(t, usr)
	adminToken := getToken(t, admin)

	openQuarter(t, 3, anio)

	participa := true
	pBody := marchallObj(t, quarter.SetParticipation{Participa: &participa})

	t.Run("participation: area user required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/trimestres/3/participacion", getToken(t, noArea), pBody)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusForbidden, rec.Body.String())
		}
	})

	t.Run("participation: ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/trimestres/3/participacion", usrToken, pBody)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var p quarter.Participation
		if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if !p.Participa || p.UsuarioID != usr.ID {
			t.Errorf("unexpected participation: %+v", p)
		}
	})

	t.Run("participation: readback", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/trimestres/3/participacion", usrToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})

	gBody := marchallObj(t, quarter.AssignGoal{UsuarioID: usr.ID, Meta: "Digitalizar 100 expedientes"})

	t.Run("assign goal: admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/trimestres/3/metas", usrToken, gBody)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusForbidden, rec.Body.String())
		}
	})

	t.Run("assign goal: unknown user", func(t *testing.T) {
		body := marchallObj(t, quarter.AssignGoal{UsuarioID: "0b80a7b2-4e2a-4b08-b816-4a3aafd7b1ff", Meta: "Meta"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/trimestres/3/metas", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("assign goal: ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/trimestres/3/metas", adminToken, gBody)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var ga quarter.GoalAssignment
		if err := json.Unmarshal(rec.Body.Bytes(), &ga); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if ga.UsuarioID != usr.ID || ga.Meta != "Digitalizar 100 expedientes" {
			t.Errorf("unexpected assignment: %+v", ga)
		}
	})

	t.Run("query goals: own", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/trimestres/3/metas", usrToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var gas []quarter.GoalAssignment
		if err := json.Unmarshal(rec.Body.Bytes(), &gas); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(gas) != 1 || gas[0].UsuarioID != usr.ID {
			t.Errorf("unexpected assignments: %+v", gas)
		}
	})

	t.Run("query goals: admin by area", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/trimestres/3/metas?area_id="+area.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var gas []quarter.GoalAssignment
		if err := json.Unmarshal(rec.Body.Bytes(), &gas); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(gas) != 1 {
			t.Errorf("len(gas) = %d, want 1", len(gas))
		}
	})
}
