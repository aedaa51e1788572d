package main

import (
	"context"

	"github.com/rumboapp/rumbo/core"
	"github.com/rumboapp/rumbo/core/user"
)

// addUser updates or creates a user.User. Accounts created here are activated
// right away; admin bootstrap does not go through the approval flow.
func (cli *commandLine) addUser(nombre, email, pwd string, isAdmin bool) error {
	var usr user.User
	var err error
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email}); err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Email: email,
			Rol:   user.RoleUsuario,
		}
	}
	usr.Nombre = core.CleanString(nombre)
	if isAdmin {
		usr.Rol = user.RoleAdmin
	}
	usr.Estado = user.StatusActivo
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
