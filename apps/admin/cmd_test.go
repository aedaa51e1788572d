package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/rumboapp/rumbo/core/user"
	dummydb "github.com/rumboapp/rumbo/storage/database/dummy"
	testutil "github.com/rumboapp/rumbo/tests"
)

func setup(t *testing.T) *commandLine {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	return &commandLine{
		appDB:       db,
		conf:        testutil.NewTestConfig(),
		usrRepo:     dummydb.NewUserRepository(db),
		quarterRepo: dummydb.NewQuarterRepository(db),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "evidencia", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, cli.usrRepo, "Juana", "juana@rumbo.test", "old-pwd", user.RoleUsuario, user.StatusActivo, "")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@rumbo.test"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@rumbo.test"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: extra{pwd: "new-pwd"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("pwd"), nil }

	if err := cli.run([]string{"admin", "adduser", "-nombre", "Root Admin", "-email", "root@rumbo.test", "-admin"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: "root@rumbo.test"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if usr.Rol != user.RoleAdmin || usr.Estado != user.StatusActivo {
		t.Errorf("unexpected account: rol=%s estado=%s", usr.Rol, usr.Estado)
	}
	if err = usr.CheckPassword("pwd"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}

	// running again updates the existing account
	if err = cli.run([]string{"admin", "adduser", "-nombre", "Root", "-email", "root@rumbo.test"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	updated, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: "root@rumbo.test"})
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if updated.ID != usr.ID {
		t.Errorf("ID = %s, want %s", updated.ID, usr.ID)
	}
	if updated.Nombre != "Root" {
		t.Errorf("Nombre = %s, want Root", updated.Nombre)
	}
	// omitting -admin does not demote
	if updated.Rol != user.RoleAdmin {
		t.Errorf("Rol = %s, want %s", updated.Rol, user.RoleAdmin)
	}
}

func Test_commandLine_seedQuarters(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	if err := cli.run([]string{"admin", "seedquarters", "-anio", "1999"}); err == nil {
		t.Error("cli.run() expected range error")
	}

	if err := cli.run([]string{"admin", "seedquarters", "-anio", "2030"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	cfgs, err := cli.quarterRepo.QueryConfigs(ctx, 2030)
	if err != nil {
		t.Fatalf("QueryConfigs() failed: %v", err)
	}
	if len(cfgs) != 4 {
		t.Errorf("len(cfgs) = %d, want 4", len(cfgs))
	}

	// reseeding is idempotent
	if err = cli.run([]string{"admin", "seedquarters", "-anio", "2030"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	cfgs, _ = cli.quarterRepo.QueryConfigs(ctx, 2030)
	if len(cfgs) != 4 {
		t.Errorf("len(cfgs) = %d after reseed, want 4", len(cfgs))
	}
}
