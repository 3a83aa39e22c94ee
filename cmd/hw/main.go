package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"homeward/internal/app"
	"homeward/internal/config"
	"homeward/internal/contract"
	"homeward/internal/db"
	"homeward/internal/domain"
	"homeward/internal/engine"
	"homeward/internal/migrate"
	"homeward/internal/repo"
	"homeward/internal/report"
	"homeward/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "hw",
	Short: "Homeward shelter CLI",
	Long: `Homeward manages a shelter's adoption workflow.
- Workspace: the .homeward directory holds the database; config lives in the DB and can be imported from YAML.
- Animals: dogs and cats move through available -> reserved -> adopted, with returns, quarantine and reassessment.
- Reservations: a reserve holds an animal for 48 hours (configurable); 'hw sweep' releases stale holds.
- Screening: hard policy rules gate who may adopt; a weighted score ranks interested adopters.
- Waitlist: adopters queue per animal, best score first, FIFO among equals; 'hw waitlist promote' hands a freed animal over.
- Event log: every change is recorded, view with 'hw log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HOMEWARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(animalCmd())
	rootCmd.AddCommand(adopterCmd())
	rootCmd.AddCommand(reserveCmd())
	rootCmd.AddCommand(adoptCmd())
	rootCmd.AddCommand(returnCmd())
	rootCmd.AddCommand(waitlistCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func animalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "animal",
		Short: "Manage animals",
	}
	cmd.AddCommand(animalRegisterCmd("register-dog", domain.SpeciesDog))
	cmd.AddCommand(animalRegisterCmd("register-cat", domain.SpeciesCat))
	cmd.AddCommand(animalListCmd())
	cmd.AddCommand(animalShowCmd())
	cmd.AddCommand(animalEventsCmd())
	cmd.AddCommand(animalNoteCmd())
	cmd.AddCommand(animalVaccinateCmd())
	cmd.AddCommand(animalReassessCmd())
	return cmd
}

func animalRegisterCmd(use, species string) *cobra.Command {
	var spec domain.AnimalSpec
	var size string
	var temperament []string
	short := "Register a dog"
	traitHelp := "walk need (0-10)"
	if species == domain.SpeciesCat {
		short = "Register a cat"
		traitHelp = "independence (0-10)"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.Size = domain.Size(size)
			spec.Temperament = temperament
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var a *domain.Animal
				var err error
				if species == domain.SpeciesCat {
					a, err = e.RegisterCat(ctx, spec, viper.GetString("actor-id"))
				} else {
					a, err = e.RegisterDog(ctx, spec, viper.GetString("actor-id"))
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&spec.Name, "name", "", "animal name")
	cmd.Flags().StringVar(&spec.Breed, "breed", "", "breed")
	cmd.Flags().StringVar(&spec.Sex, "sex", "", "sex (m/f)")
	cmd.Flags().IntVar(&spec.AgeMonths, "age-months", 0, "age in months")
	cmd.Flags().StringVar(&size, "size", "", "small, medium or large")
	cmd.Flags().IntVar(&spec.Trait, "trait", 0, traitHelp)
	cmd.Flags().StringSliceVar(&temperament, "temperament", nil, "behavior tags (docile, skittish, sociable, ...)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("breed")
	_ = cmd.MarkFlagRequired("sex")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func animalListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List animals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if status != "" {
					if _, err := domain.ParseStatus(status); err != nil {
						return err
					}
				}
				animals, warnings := r.ListAnimals(ctx, status)
				for _, w := range warnings {
					fmt.Fprintln(os.Stderr, "warning:", w)
				}
				if viper.GetBool("json") {
					return printJSON(animals)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Species", "Size", "Age (mo)", "Status", "Reserved By"})
				for _, a := range animals {
					holder := ""
					if a.Reservation != nil {
						holder = a.Reservation.Holder
					}
					tw.AppendRow(table.Row{a.ID, a.Name, a.Species, a.Size, a.AgeMonths, a.Status, holder})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func animalShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <animal-id>",
		Short: "Show an animal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				a, err := r.GetAnimal(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func animalEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <animal-id>",
		Short: "Show an animal's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.ListAnimalEvents(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Kind", "Detail"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.TS, e.Kind, e.Detail})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func animalNoteCmd() *cobra.Command {
	var detail string
	cmd := &cobra.Command{
		Use:   "note <animal-id>",
		Short: "Record a caretaker note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.AddAnimalEvent(ctx, args[0], domain.EventNote, detail, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&detail, "detail", "", "note text")
	_ = cmd.MarkFlagRequired("detail")
	return cmd
}

func animalVaccinateCmd() *cobra.Command {
	var detail string
	cmd := &cobra.Command{
		Use:   "vaccinate <animal-id>",
		Short: "Record a vaccination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.AddAnimalEvent(ctx, args[0], domain.EventVaccination, detail, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&detail, "detail", "", "vaccine name or batch")
	_ = cmd.MarkFlagRequired("detail")
	return cmd
}

func animalReassessCmd() *cobra.Command {
	var outcome, reason string
	cmd := &cobra.Command{
		Use:   "reassess <animal-id>",
		Short: "Reassess a returned or quarantined animal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Reassess(ctx, args[0], domain.Status(outcome), reason, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&outcome, "outcome", "", "available or unadoptable")
	cmd.Flags().StringVar(&reason, "reason", "", "assessment notes")
	_ = cmd.MarkFlagRequired("outcome")
	return cmd
}

func adopterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adopter",
		Short: "Manage adopters",
	}
	cmd.AddCommand(adopterRegisterCmd())
	cmd.AddCommand(adopterListCmd())
	cmd.AddCommand(adopterShowCmd())
	cmd.AddCommand(adopterScreenCmd())
	return cmd
}

func adopterRegisterCmd() *cobra.Command {
	var a domain.Adopter
	var housing string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an adopter",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.Housing = domain.Housing(housing)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.RegisterAdopter(ctx, a, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&a.Name, "name", "", "adopter name (unique)")
	cmd.Flags().IntVar(&a.Age, "age", 0, "age in years")
	cmd.Flags().StringVar(&housing, "housing", "", "house or apartment")
	cmd.Flags().IntVar(&a.AreaM2, "area-m2", 0, "usable area in m²")
	cmd.Flags().BoolVar(&a.Experienced, "experienced", false, "has kept pets before")
	cmd.Flags().BoolVar(&a.HasChildren, "children", false, "children at home")
	cmd.Flags().BoolVar(&a.HasOtherPets, "other-pets", false, "other pets at home")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("age")
	_ = cmd.MarkFlagRequired("housing")
	_ = cmd.MarkFlagRequired("area-m2")
	return cmd
}

func adopterListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List adopters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				adopters, err := r.ListAdopters(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(adopters)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Age", "Housing", "Area", "Experienced", "Children", "Other Pets"})
				for _, a := range adopters {
					tw.AppendRow(table.Row{a.Name, a.Age, a.Housing, a.AreaM2, a.Experienced, a.HasChildren, a.HasOtherPets})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func adopterShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <adopter-name>",
		Short: "Show an adopter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				a, err := r.GetAdopter(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func adopterScreenCmd() *cobra.Command {
	var animalID string
	cmd := &cobra.Command{
		Use:   "screen <adopter-name>",
		Short: "Screen an adopter against an animal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Screen(ctx, animalID, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&animalID, "animal", "", "animal id")
	_ = cmd.MarkFlagRequired("animal")
	return cmd
}

func reserveCmd() *cobra.Command {
	var adopter string
	cmd := &cobra.Command{
		Use:   "reserve <animal-id>",
		Short: "Hold an animal for an adopter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Reserve(ctx, args[0], adopter, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&adopter, "adopter", "", "adopter name")
	_ = cmd.MarkFlagRequired("adopter")
	return cmd
}

func adoptCmd() *cobra.Command {
	var adopter string
	var specialNeeds, saveContract bool
	cmd := &cobra.Command{
		Use:   "adopt <animal-id>",
		Short: "Finalize an adoption",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Adopt(ctx, engine.AdoptOptions{
					AnimalID:     args[0],
					AdopterName:  adopter,
					SpecialNeeds: specialNeeds,
					ActorID:      viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				if saveContract {
					path, err := contract.Save(viper.GetString("workspace"), res.Animal, res.Contract, time.Now())
					if err != nil {
						return err
					}
					fmt.Fprintln(os.Stderr, "contract saved to", path)
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&adopter, "adopter", "", "adopter name (must hold the reservation)")
	cmd.Flags().BoolVar(&specialNeeds, "special-needs", false, "apply the special needs surcharge")
	cmd.Flags().BoolVar(&saveContract, "save-contract", false, "write the contract to the workspace")
	_ = cmd.MarkFlagRequired("adopter")
	return cmd
}

func returnCmd() *cobra.Command {
	var reason string
	var quarantine bool
	cmd := &cobra.Command{
		Use:   "return <animal-id>",
		Short: "Take an adopted animal back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Return(ctx, engine.ReturnOptions{
					AnimalID:   args[0],
					Reason:     reason,
					Quarantine: quarantine,
					ActorID:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the animal came back")
	cmd.Flags().BoolVar(&quarantine, "quarantine", false, "send to quarantine for a health check")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func waitlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waitlist",
		Short: "Manage per-animal waiting lists",
	}
	cmd.AddCommand(waitlistJoinCmd())
	cmd.AddCommand(waitlistShowCmd())
	cmd.AddCommand(waitlistPromoteCmd())
	return cmd
}

func waitlistJoinCmd() *cobra.Command {
	var adopter string
	cmd := &cobra.Command{
		Use:   "join <animal-id>",
		Short: "Join an animal's waiting list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.JoinWaitlist(ctx, args[0], adopter, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&adopter, "adopter", "", "adopter name")
	_ = cmd.MarkFlagRequired("adopter")
	return cmd
}

func waitlistShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <animal-id>",
		Short: "Show the waiting list in promotion order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.Waitlist(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Adopter", "Score", "Enqueued"})
				for i, entry := range entries {
					tw.AppendRow(table.Row{i + 1, entry.Adopter, entry.Score, entry.EnqueuedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func waitlistPromoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote <animal-id>",
		Short: "Reserve a freed animal for the best waiting adopter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, a, err := e.PromoteNext(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"entry": entry, "animal": a})
			})
		},
	}
	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Release expired reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				expired, err := e.SweepReservations(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"expired": expired, "count": len(expired)})
			})
		},
	}
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Shelter reports",
	}
	cmd.AddCommand(statsTopCmd())
	cmd.AddCommand(statsAdoptionsCmd())
	cmd.AddCommand(statsMeanTimeCmd())
	cmd.AddCommand(statsReturnsCmd())
	return cmd
}

func withReporter(ctx context.Context, fn func(context.Context, report.Reporter) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		return fn(ctx, report.New(e.Repo, e.Config))
	})
}

func statsTopCmd() *cobra.Command {
	var adopter string
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Available animals ranked for an adopter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReporter(cmd.Context(), func(ctx context.Context, r report.Reporter) error {
				ranked, err := r.TopAdoptable(ctx, adopter, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ranked)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Score", "Name", "Species", "Size", "ID"})
				for _, ra := range ranked {
					tw.AppendRow(table.Row{ra.Score, ra.Animal.Name, ra.Animal.Species, ra.Animal.Size, ra.Animal.ID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&adopter, "adopter", "", "adopter name (empty ranks by mean score over eligible adopters)")
	cmd.Flags().IntVar(&limit, "limit", 10, "max results")
	return cmd
}

func statsAdoptionsCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "adoptions",
		Short: "Adoptions grouped by species or size",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReporter(cmd.Context(), func(ctx context.Context, r report.Reporter) error {
				counts, err := r.AdoptionsByGroup(ctx, group)
				if err != nil {
					return err
				}
				return printJSONOrTable(counts)
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "species", "species or size")
	return cmd
}

func statsMeanTimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mean-time",
		Short: "Mean time from entry to adoption",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReporter(cmd.Context(), func(ctx context.Context, r report.Reporter) error {
				mean, counted, err := r.MeanTimeToAdoption(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"mean": mean.String(), "counted": counted})
			})
		},
	}
	return cmd
}

func statsReturnsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "returns",
		Short: "Returns grouped by reason",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReporter(cmd.Context(), func(ctx context.Context, r report.Reporter) error {
				counts, err := r.ReturnsByReason(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(counts)
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the shelter config stored in the DB",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configImportCmd())
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.SaveSettings(ctx, cfg, time.Now()); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Print the default config YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault())
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect the event log",
	}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				query := `SELECT ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
				params := []any{}
				if entityID != "" {
					query += ` WHERE entity_id=?`
					params = append(params, entityID)
				}
				query += ` ORDER BY id DESC LIMIT ?`
				params = append(params, n)
				rows, err := e.DB.QueryContext(ctx, query, params...)
				if err != nil {
					return err
				}
				defer rows.Close()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Actor", "Payload"})
				type row struct {
					TS, Type, EntityKind, EntityID, ActorID, Payload string
				}
				var out []row
				for rows.Next() {
					var r row
					if err := rows.Scan(&r.TS, &r.Type, &r.EntityKind, &r.EntityID, &r.ActorID, &r.Payload); err != nil {
						return err
					}
					out = append(out, r)
				}
				if err := rows.Err(); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				for _, r := range out {
					tw.AppendRow(table.Row{r.TS, r.Type, r.EntityKind + "/" + r.EntityID, r.ActorID, r.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := app.ResolveConfig(cmd.Context(), repo.Repo{DB: conn})
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Homeward API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := app.ResolveConfig(ctx, repo.Repo{DB: conn})
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
