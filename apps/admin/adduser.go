package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/user"
)

var roleSets = map[string][]string{
	"admin":      user.AllRoles,
	"instructor": user.InstructorRoles,
	"student":    user.StudentRoles,
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, uname, email, role string

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update a user; the password is prompted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uname == "" || email == "" {
				_ = cmd.Help()
				return errHelp
			}
			roles, ok := roleSets[role]
			if !ok {
				return errors.Errorf("unknown role %q", role)
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Help()
				return errHelp
			}
			usr, err := cli.addUser(name, uname, email, pwd, roles)
			if err != nil {
				return err
			}
			cli.success("user %s saved (id %s)", usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&uname, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&role, "role", "r", "student", "one of admin, instructor, student")
	return cmd
}

// addUser updates or creates an active user with the given roles.
func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) (user.User, error) {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if err != nil {
		if err != user.ErrNotFound {
			return user.User{}, err
		}
		now := time.Now().UTC()
		usr = user.User{Username: uname, Email: email, CreatedAt: now, UpdatedAt: now}
	}
	if name != "" {
		usr.Name = name
	}
	usr.Roles = roles
	usr.SetActive(true)
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}
	return cli.usrRepo.UpdateOrCreateUser(ctx, usr)
}
