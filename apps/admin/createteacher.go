package main

import (
	"context"
	"fmt"

	"qugrow/core/user"
)

func (cli *commandLine) createTeacher(uname, name, email, class, pwd string) error {
	usr, err := cli.usrSvc.RegisterTeacher(context.Background(), user.NewTeacher{
		Username:  uname,
		Password:  pwd,
		FullName:  name,
		Email:     email,
		ClassName: class,
	})
	if err != nil {
		return err
	}
	fmt.Printf("teacher %q created for class %q (id=%d)\n", usr.Username, usr.ClassName, usr.ID)
	return nil
}
