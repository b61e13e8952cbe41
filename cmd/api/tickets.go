package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/example/helpdesk/internal/models"
	"github.com/example/helpdesk/internal/readmodel"
	"github.com/example/helpdesk/internal/repository"
	"github.com/example/helpdesk/internal/service"
	"github.com/example/helpdesk/internal/ticketid"
)

var (
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
)

func ticketsCmd() *cobra.Command {
	var (
		status string
		query  string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Print the ticket feed as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, database, err := bootstrap()
			if err != nil {
				return err
			}
			filter := repository.TicketFilter{Query: query, Limit: limit}
			if status != "" {
				s, ok := models.LookupStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Status = s
			}
			svc := service.NewTicketService(
				repository.NewTicketRepository(database),
				repository.NewUserRepository(database),
				repository.NewProjectRepository(database),
				nil, nil,
				ticketid.New(cfg.TicketPrefix),
				service.TicketOptions{},
				log,
			)
			rows, err := svc.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			renderTickets(os.Stdout, rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "Only tickets in this status")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Search title, id and description")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum rows")
	return cmd
}

func renderTickets(w io.Writer, rows []readmodel.Row) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header([]string{"ID", "Title", "Project", "Status", "Priority", "Assignee", "Created"})
	for _, r := range rows {
		assignee := r.Assignee
		if assignee == "" {
			assignee = "-"
		}
		_ = table.Append([]string{
			r.DisplayID,
			truncate(r.Title, 48),
			r.Project,
			statusColor(r.Status),
			r.Priority,
			assignee,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	_ = table.Render()
	fmt.Fprintf(w, "\n%d ticket(s)\n", len(rows))
}

func statusColor(status string) string {
	switch status {
	case "Open":
		return green(status)
	case "In Progress", "On Hold":
		return yellow(status)
	case "Completed":
		return cyan(status)
	case "Cancelled", "Rejected", "Blocked":
		return red(status)
	default:
		return status
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
