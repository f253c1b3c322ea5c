package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/service"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// accountCreator is the part of service.AuthService the CLI needs.
type accountCreator interface {
	CreateAccount(ctx context.Context, in service.RegisterInput) (*model.User, error)
}

type commandLine struct {
	accounts accountCreator
	catalog  *service.CatalogService
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME -role student|tuition_owner - create an account (password is prompted)")
	fmt.Fprintln(cli.out, "  catalog [-name S] [-location L] [-sort rating|name-asc|name-desc] [-limit N] - query the tuition catalog")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "adduser":
		cmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		email := cmd.String("email", "", "The account's email address.")
		name := cmd.String("name", "", "The display name.")
		role := cmd.String("role", string(model.RoleStudent), "student or tuition_owner.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *email == "" || *name == "" {
			cmd.Usage()
			return errHelp
		}
		r, err := model.ParseRole(*role)
		if err != nil {
			return err
		}

		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			cmd.Usage()
			return errHelp
		}
		return cli.addUser(*email, *name, r, string(pwd))

	case "catalog":
		cmd := flag.NewFlagSet("catalog", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		name := cmd.String("name", "", "Case-insensitive name substring.")
		location := cmd.String("location", "", "Exact city, or All.")
		sort := cmd.String("sort", "rating", "rating, name-asc or name-desc.")
		limit := cmd.Int("limit", 20, "Maximum rows to print, 0 for all.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.queryCatalog(*name, *location, *sort, *limit)

	default:
		cli.printUsage()
		return errHelp
	}
}
