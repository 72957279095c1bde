package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/trezcool/kujifunza/core/enrolment"
	"github.com/trezcool/kujifunza/core/user"
)

func (cli *commandLine) enrolCmd() *cobra.Command {
	var student, courseID string

	cmd := &cobra.Command{
		Use:   "enrol",
		Short: "Enrol a student in a course",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if student == "" || courseID == "" {
				_ = cmd.Help()
				return errHelp
			}
			ctx := context.Background()
			usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: student})
			if err != nil {
				return err
			}
			enr, err := cli.enrolSvc.Enrol(ctx, enrolment.NewEnrolment{StudentID: usr.ID, CourseID: courseID})
			if err != nil {
				return err
			}
			cli.success("%s enrolled in course %s (enrolment %s)", usr.Username, enr.CourseID, enr.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&student, "student", "s", "", "the student's username or email")
	cmd.Flags().StringVarP(&courseID, "course", "c", "", "the course id")
	return cmd
}
