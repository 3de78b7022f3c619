// Package cli drives the tracker from the command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"studentattendance/internal/adapter/wire"
	"studentattendance/internal/attendance"
)

// Opener returns the tracker used by a command and a cleanup function.
type Opener func(ctx context.Context) (attendance.Tracker, func() error, error)

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, open Opener, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(open)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if asJSON, _ := root.PersistentFlags().GetBool("json"); asJSON {
			_ = printJSON(stdout, wire.Fail(err))
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// NewRootCmd builds the attendctl command tree.
func NewRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "attendctl",
		Short:         "Manage lecturer credentials, students and attendance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "Print results as JSON envelopes")

	root.AddCommand(
		newSignupCmd(open),
		newLoginCmd(open),
		newAddStudentCmd(open),
		newStudentsCmd(open),
		newMarkCmd(open),
		newReportCmd(open),
	)
	return root
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withTracker opens the tracker for the duration of fn.
func withTracker(cmd *cobra.Command, open Opener, fn func(attendance.Tracker) error) (err error) {
	tracker, closeFn, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(tracker)
}

// done prints a success line, or an envelope in JSON mode.
func done(cmd *cobra.Command, message string, data any) error {
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), wire.OK(message, data))
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), message)
	return err
}

func newSignupCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "signup <id> <password>",
		Short: "Register a lecturer credential",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, open, func(t attendance.Tracker) error {
				if err := t.Signup(cmd.Context(), attendance.SignupInput{ID: args[0], Password: args[1]}); err != nil {
					return err
				}
				return done(cmd, "signup successful", nil)
			})
		},
	}
}

func newLoginCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "login <id> <password>",
		Short: "Check a credential",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, open, func(t attendance.Tracker) error {
				cred, err := t.Login(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return done(cmd, fmt.Sprintf("login successful (%s)", cred.Role), cred)
			})
		},
	}
}

func newAddStudentCmd(open Opener) *cobra.Command {
	var semester string
	cmd := &cobra.Command{
		Use:   "add-student <roll> <name> <department>",
		Short: "Register a student",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, open, func(t attendance.Tracker) error {
				st, err := t.AddStudent(cmd.Context(), attendance.StudentInput{
					RollNumber: args[0], Name: args[1], Department: args[2], Semester: semester,
				})
				if err != nil {
					return err
				}
				return done(cmd, "student added", st)
			})
		},
	}
	cmd.Flags().StringVar(&semester, "semester", "", "Semester number")
	return cmd
}

func newStudentsCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "students",
		Short: "List registered students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTracker(cmd, open, func(t attendance.Tracker) error {
				students, err := t.ListStudents(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					if students == nil {
						students = []attendance.Student{}
					}
					return printJSON(cmd.OutOrStdout(), wire.OK("", students))
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ROLL\tNAME\tDEPARTMENT\tSEMESTER")
				for _, s := range students {
					sem := "-"
					if s.Semester != nil {
						sem = fmt.Sprint(*s.Semester)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.RollNumber, s.Name, s.Department, sem)
				}
				return tw.Flush()
			})
		},
	}
}

func newMarkCmd(open Opener) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "mark <roll> <present|absent>",
		Short: "Mark attendance for a student",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, open, func(t attendance.Tracker) error {
				rec, err := t.MarkAttendance(cmd.Context(), attendance.MarkInput{RollNumber: args[0], Status: args[1], Date: date})
				if err != nil {
					return err
				}
				return done(cmd, fmt.Sprintf("marked %s %s on %s", rec.RollNumber, rec.Status(), rec.Day()), rec)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD (default today)")
	return cmd
}

func newReportCmd(open Opener) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show attendance for a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTracker(cmd, open, func(t attendance.Tracker) error {
				rep, err := t.ViewAttendance(cmd.Context(), date)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return printJSON(cmd.OutOrStdout(), wire.OK("", rep))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Attendance for %s\n", rep.Date)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ROLL\tNAME\tSTATUS")
				for _, row := range rep.Rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", row.RollNumber, row.StudentName, row.Status)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "Total: %d  Present: %d  Absent: %d\n", rep.TotalCount, rep.PresentCount, rep.AbsentCount)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD (default today)")
	return cmd
}
