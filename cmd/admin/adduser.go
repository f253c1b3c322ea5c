package main

import (
	"context"
	"fmt"

	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/service"
)

// addUser creates an email + password account.
func (cli *commandLine) addUser(email, name string, role model.Role, pwd string) error {
	user, err := cli.accounts.CreateAccount(context.Background(), service.RegisterInput{
		Email:    email,
		Password: pwd,
		Name:     name,
		Role:     role,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}
