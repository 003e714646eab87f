package main

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/dekarrin/tabula"
	"github.com/dekarrin/tabula/config"
	"github.com/dekarrin/tabula/db"
	"github.com/dekarrin/tabula/internal/order"
	"github.com/dekarrin/tabula/schema"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var timeNow = time.Now

// globals holds the values of the flags shared by every command.
type globals struct {
	confFile string
	dsn      string
	metrics  bool

	errOut io.Writer
}

// loadConfig returns the configuration in effect, with defaults filled in and
// validated.
func (g *globals) loadConfig() (config.Config, error) {
	var cfg config.Config
	if g.confFile != "" {
		var err error
		cfg, err = config.Load(g.confFile)
		if err != nil {
			return config.Config{}, err
		}
	}
	if g.dsn != "" {
		cfg.Database.DSN = g.dsn
	}

	cfg = cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// withSession opens a Session, makes sure the notes table exists, and calls
// fn with it. The Session is closed once fn returns.
func (g *globals) withSession(ctx context.Context, fn func(s *db.Session) error) (err error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	logger, err := cfg.Log.Create()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	opts := db.Options{Logger: logger}

	var reg *prometheus.Registry
	if g.metrics {
		reg = prometheus.NewRegistry()
		opts.Metrics, err = db.NewMetrics("tabula", reg)
		if err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}
	}

	s, err := db.Open(ctx, cfg.Database, opts)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := s.Close()
		if err == nil {
			err = closeErr
		}
		if reg != nil {
			writeMetrics(g.errOut, reg)
		}
	}()

	if err := db.CreateTable[Note](ctx, s); err != nil {
		return err
	}

	return fn(s)
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	g := &globals{errOut: errOut}

	cmd := &cobra.Command{
		Use:           "tabula",
		Short:         "Keep notes in a database table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.confFile, "config", "c", "", "Load configuration from the given JSON or YAML file")
	flags.StringVar(&g.dsn, "dsn", "", "Open the database at DSN instead of the configured one")
	flags.BoolVar(&g.metrics, "metrics", false, "Print session metrics to stderr when done")

	cmd.AddCommand(
		newDDLCommand(g),
		newAddCommand(g),
		newListCommand(g),
		newRemoveCommand(g),
		newConfigCommand(g),
	)
	return cmd
}

func newDDLCommand(g *globals) *cobra.Command {
	var dialectName string

	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print the CREATE TABLE statement for the notes table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dialect schema.Dialect
			if dialectName != "" {
				var err error
				dialect, err = schema.ParseDialect(dialectName)
				if err != nil {
					return err
				}
			} else {
				cfg, err := g.loadConfig()
				if err != nil {
					return err
				}
				dialect = cfg.Database.Dialect
			}

			tbl, err := schema.Of(nil, reflect.TypeOf(Note{}))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), dialect.CreateTableSQL(tbl))
			return err
		},
	}

	cmd.Flags().StringVar(&dialectName, "dialect", "", "Generate SQL for sqlite or mysql instead of the configured dialect")
	return cmd
}

func newAddCommand(g *globals) *cobra.Command {
	var (
		priority = Normal
		pinned   bool
	)

	cmd := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Add a note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := Note{
				ID:       uuid.New(),
				Text:     strings.Join(args, " "),
				Priority: priority,
				Pinned:   pinned,
				Created:  timeNow().UTC(),
			}

			return g.withSession(cmd.Context(), func(s *db.Session) error {
				if err := db.Query[Note](s).Insert(cmd.Context(), n); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), n.ID)
				return err
			})
		},
	}

	cmd.Flags().Var(&priority, "priority", "Priority of the note: low, normal, or high")
	cmd.Flags().BoolVar(&pinned, "pinned", false, "Pin the note to the top of the list")
	return cmd
}

func newListCommand(g *globals) *cobra.Command {
	var priority Priority

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withSession(cmd.Context(), func(s *db.Session) error {
				q := db.Query[Note](s)
				if cmd.Flags().Changed("priority") {
					q.WhereEq("priority", priority)
				}

				notes, err := q.Select(cmd.Context())
				if err != nil {
					return err
				}

				notes = order.By(notes,
					func(l, r Note) bool { return l.Pinned && !r.Pinned },
					func(l, r Note) bool { return l.Created.Before(r.Created) },
					func(l, r Note) bool { return l.ID.String() < r.ID.String() },
				)

				out := cmd.OutOrStdout()
				for _, n := range notes {
					pin := " "
					if n.Pinned {
						pin = "*"
					}
					if _, err := fmt.Fprintf(out, "%s %s %-6s %s %s\n", n.ID, pin, n.Priority, n.Created.Format(time.RFC3339), n.Text); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().Var(&priority, "priority", "Only list notes with this priority")
	return cmd
}

func newRemoveCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("%q is not a note ID", args[0])
			}

			return g.withSession(cmd.Context(), func(s *db.Session) error {
				q, err := db.QueryTransactional[Note](cmd.Context(), s)
				if err != nil {
					return err
				}

				n, err := q.WhereEq("id", id).Delete(cmd.Context())
				if err == nil && n != 1 {
					err = tabula.NewError(fmt.Sprintf("no note with ID %s", id), tabula.ErrNotFound)
				}
				if err != nil {
					if rbErr := q.Rollback(); rbErr != nil {
						return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
					}
					return err
				}
				return q.Commit()
			})
		},
	}
}

func newConfigCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the configuration in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(config.Dump(cfg))
			return err
		},
	}
}

// writeMetrics prints a line for every sample that reg holds.
func writeMetrics(w io.Writer, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(w, "gather metrics: %v\n", err)
		return
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}

			var value string
			switch {
			case m.GetCounter() != nil:
				value = fmt.Sprint(m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				value = fmt.Sprint(m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				value = fmt.Sprintf("count=%d sum=%g", m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum())
			default:
				continue
			}

			fmt.Fprintf(w, "%s{%s} %s\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
}
