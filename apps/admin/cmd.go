package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"qugrow/core"
	"qugrow/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	db     *sqlx.DB
	usrSvc *user.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - apply pending database migrations")
	fmt.Println("  createteacher -username USERNAME -name FULL_NAME -email EMAIL -class CLASS - create a teacher account")
	fmt.Println("  resetpassword -username USERNAME - reset a user's password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createTeacherCmd := flag.NewFlagSet("createteacher", flag.ExitOnError)
	ctUname := createTeacherCmd.String("username", "", "The teacher's username.")
	ctName := createTeacherCmd.String("name", "", "The teacher's full name.")
	ctEmail := createTeacherCmd.String("email", "", "The teacher's email address.")
	ctClass := createTeacherCmd.String("class", "", "The class this teacher owns.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	rpUname := resetPasswordCmd.String("username", "", "The user's username. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "createteacher":
		if err := createTeacherCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *ctUname == "" || *ctName == "" || *ctEmail == "" || *ctClass == "" {
			createTeacherCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.createTeacher(*ctUname, *ctName, *ctEmail, *ctClass, pwd)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rpUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.resetPassword(*rpUname, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errHelp
	}
	return string(pwd), nil
}
