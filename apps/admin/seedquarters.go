package main

import (
	"context"
	"fmt"

	"github.com/rumboapp/rumbo/core/quarter"
	emailsvc "github.com/rumboapp/rumbo/services/email"
)

func (cli *commandLine) seedQuarters(anio int) error {
	if anio < 2000 || anio > 2100 {
		return fmt.Errorf("anio fuera de rango: %d", anio)
	}
	svc := quarter.NewService(cli.appDB, cli.quarterRepo, cli.usrRepo, emailsvc.NewConsoleService(cli.conf))
	return svc.SeedYear(context.Background(), anio)
}
