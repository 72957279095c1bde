package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var uname string

	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password; the new password is prompted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uname == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Help()
				return errHelp
			}
			if err = cli.resetPassword(uname, pwd); err != nil {
				return err
			}
			cli.success("password updated for %s", uname)
			return nil
		},
	}
	cmd.Flags().StringVarP(&uname, "username", "u", "", "the user's username or email")
	return cmd
}

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}
