package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/civica/membership-backend/internal/mandate"
	"github.com/civica/membership-backend/internal/model"
)

func listCommand() *cobra.Command {
	var search, status, from, to string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the member's mandates, optionally filtered",
		RunE: withSession(func(cmd *cobra.Command, _ []string, s *session) error {
			q, err := buildQuery(search, status, from, to)
			if err != nil {
				return err
			}
			all, err := s.store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printMandates(out, mandate.Apply(mandate.SortByStartDate(all), q))
			printNotifications(out, s.store.Notifications(s.store.Today()))
			return nil
		}),
	}
	cmd.Flags().StringVar(&search, "search", "", "match against the role label")
	cmd.Flags().StringVar(&status, "status", "all", "all, active or inactive")
	cmd.Flags().StringVar(&from, "from", "", "start dates on or after YYYY-MM-DD (needs --to)")
	cmd.Flags().StringVar(&to, "to", "", "start dates on or before YYYY-MM-DD (needs --from)")
	return cmd
}

func notificationsCommand() *cobra.Command {
	var days int
	var fromServer bool
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show overlap warnings and upcoming expiries",
		RunE: withSession(func(cmd *cobra.Command, _ []string, s *session) error {
			var notes []model.Notification
			if fromServer {
				var err error
				notes, err = s.client.MandateNotifications(cmd.Context(), s.store.MemberID(), days)
				if err != nil {
					return err
				}
			} else {
				all, err := s.store.List(cmd.Context())
				if err != nil {
					return err
				}
				if days <= 0 {
					days = mandate.DefaultWarningDays
				}
				notes = mandate.Notifications(all, s.store.Today(), days)
			}
			printNotifications(cmd.OutOrStdout(), notes)
			return nil
		}),
	}
	cmd.Flags().IntVar(&days, "days", 0, "expiry horizon in days (default 30)")
	cmd.Flags().BoolVar(&fromServer, "server", false, "ask the server instead of computing locally")
	return cmd
}

func addCommand() *cobra.Command {
	var role, start, end string
	var inactive bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a mandate",
		RunE: withSession(func(cmd *cobra.Command, _ []string, s *session) error {
			startDate, err := model.ParseDate(start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			endDate, err := model.ParseDate(end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			draft := mandate.Draft{
				Role:      model.MandateRole(role),
				StartDate: startDate,
				EndDate:   endDate,
				IsActive:  !inactive,
			}
			if err := draft.Validate(); err != nil {
				return err
			}
			created, err := s.store.Add(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", created.ID)
			printNotifications(cmd.OutOrStdout(), s.store.Notifications(s.store.Today()))
			return nil
		}),
	}
	cmd.Flags().StringVar(&role, "role", "", "role code, e.g. SECRETARY")
	cmd.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "end date YYYY-MM-DD")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "record the mandate as inactive")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func updateCommand() *cobra.Command {
	var role, start, end string
	var active bool
	cmd := &cobra.Command{
		Use:   "update <mandate-id>",
		Short: "Change a mandate's role, dates or status",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			var patch mandate.Patch
			if role != "" {
				r := model.MandateRole(role)
				patch.Role = &r
			}
			for _, f := range []struct {
				raw string
				dst **model.Date
			}{{start, &patch.StartDate}, {end, &patch.EndDate}} {
				if f.raw == "" {
					continue
				}
				d, err := model.ParseDate(f.raw)
				if err != nil {
					return err
				}
				*f.dst = &d
			}
			if cmd.Flags().Changed("active") {
				patch.IsActive = &active
			}
			if patch.Empty() {
				return errors.New("nothing to update")
			}
			updated, err := s.store.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			printMandates(cmd.OutOrStdout(), []model.RoleMandate{updated})
			return nil
		}),
	}
	cmd.Flags().StringVar(&role, "role", "", "new role code")
	cmd.Flags().StringVar(&start, "start", "", "new start date YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "new end date YYYY-MM-DD")
	cmd.Flags().BoolVar(&active, "active", true, "set the active flag")
	return cmd
}

func deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <mandate-id>",
		Short: "Remove a mandate",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, args []string, s *session) error {
			if err := s.store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		}),
	}
}

func exportCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Save the member's mandates as JSON for offline use",
		RunE: withSession(func(cmd *cobra.Command, _ []string, s *session) error {
			ctx := cmd.Context()
			me, err := s.client.Me(ctx)
			if err != nil {
				return err
			}
			if !me.Can(model.PermissionExportsCreate) {
				return fmt.Errorf("%s may not export mandates", me.Member.DisplayName())
			}
			member, err := s.client.GetMember(ctx, s.store.MemberID())
			if err != nil {
				return err
			}
			if _, err := s.store.List(ctx); err != nil {
				return err
			}

			path := filepath.Join(dir, member.ExportBaseName()+".json")
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := s.store.Save(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		}),
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	return cmd
}

func watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the member's notifications live until interrupted",
		RunE: withSession(func(cmd *cobra.Command, _ []string, s *session) error {
			out := cmd.OutOrStdout()
			return s.client.WatchNotifications(cmd.Context(), s.store.MemberID(), func(set model.NotificationSet) {
				fmt.Fprintf(out, "── %s ──\n", set.ComputedAt.Local().Format("2006-01-02 15:04:05"))
				printNotifications(out, set.Notifications)
			})
		}),
	}
}

// buildQuery turns flag values into a filter. A single range bound is rejected
// rather than silently ignored.
func buildQuery(search, status, from, to string) (mandate.Query, error) {
	st, err := mandate.ParseStatus(status)
	if err != nil {
		return mandate.Query{}, err
	}
	q := mandate.Query{Search: search, Status: st}
	if (from == "") != (to == "") {
		return q, errors.New("--from and --to must be given together")
	}
	if from != "" {
		fromDate, err := model.ParseDate(from)
		if err != nil {
			return q, fmt.Errorf("--from: %w", err)
		}
		toDate, err := model.ParseDate(to)
		if err != nil {
			return q, fmt.Errorf("--to: %w", err)
		}
		q.DateRange = &mandate.DateRange{From: fromDate, To: toDate}
	}
	return q, nil
}

func printMandates(w io.Writer, ms []model.RoleMandate) {
	if len(ms) == 0 {
		fmt.Fprintln(w, "No mandates.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROLE\tSTART\tEND\tACTIVE")
	for _, m := range ms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", m.ID, m.Role.Label(), m.StartDate, m.EndDate, m.IsActive)
	}
	_ = tw.Flush()
}

func printNotifications(w io.Writer, notes []model.Notification) {
	if len(notes) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, n := range notes {
		fmt.Fprintf(w, "[%s] %s\n", n.Type, n.Message)
	}
}
