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

	"pitstop/internal/app"
	"pitstop/internal/domain"
	"pitstop/internal/engine"
	"pitstop/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pit",
	Short: "Pitstop CLI",
	Long: `Pitstop runs a vehicle service center: customers book vehicles in,
managers assign staff and track costs, mechanics work orders through
OPEN -> ASSIGNED -> IN_PROGRESS -> COMPLETED (or CANCELLED before work starts).
Each vehicle carries a booking flag so it can only be in one open order at a
time; every lifecycle change lands in the event log ('pit log tail').`,
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
	viper.SetEnvPrefix("PITSTOP")
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
	rootCmd.AddCommand(customerCmd())
	rootCmd.AddCommand(staffCmd())
	rootCmd.AddCommand(vehicleCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func customerCmd() *cobra.Command {
	cust := &cobra.Command{Use: "customer", Short: "Manage customers"}
	cust.AddCommand(customerAddCmd())
	return cust
}

func customerAddCmd() *cobra.Command {
	var id, name, email string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c := domain.Customer{
					ID:        id,
					Name:      name,
					Email:     email,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Engine.Repo.UpsertCustomer(ctx, c); err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "customer id")
	cmd.Flags().StringVar(&name, "name", "", "customer name")
	cmd.Flags().StringVar(&email, "email", "", "customer email")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func staffCmd() *cobra.Command {
	staff := &cobra.Command{Use: "staff", Short: "Manage service managers and mechanics"}
	staff.AddCommand(staffAddManagerCmd())
	staff.AddCommand(staffAddMechanicCmd())
	staff.AddCommand(staffListCmd())
	return staff
}

func staffAddManagerCmd() *cobra.Command {
	var id, name, email string
	cmd := &cobra.Command{
		Use:   "add-manager",
		Short: "Add or update a service manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				m := domain.ServiceManager{
					ID:        id,
					Name:      name,
					Email:     email,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Engine.Repo.UpsertManager(ctx, m); err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "manager id")
	cmd.Flags().StringVar(&name, "name", "", "manager name")
	cmd.Flags().StringVar(&email, "email", "", "manager email")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func staffAddMechanicCmd() *cobra.Command {
	var id, name, email string
	cmd := &cobra.Command{
		Use:   "add-mechanic",
		Short: "Add or update a mechanic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				m := domain.Mechanic{
					ID:        id,
					Name:      name,
					Email:     email,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Engine.Repo.UpsertMechanic(ctx, m); err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "mechanic id")
	cmd.Flags().StringVar(&name, "name", "", "mechanic name")
	cmd.Flags().StringVar(&email, "email", "", "mechanic email")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func staffListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List service managers and mechanics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				managers, err := a.Engine.Repo.ListManagers(ctx)
				if err != nil {
					return err
				}
				mechanics, err := a.Engine.Repo.ListMechanics(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"managers": managers, "mechanics": mechanics})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Role", "ID", "Name", "Email"})
				for _, m := range managers {
					tw.AppendRow(table.Row{"manager", m.ID, m.Name, m.Email})
				}
				for _, m := range mechanics {
					tw.AppendRow(table.Row{"mechanic", m.ID, m.Name, m.Email})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func vehicleCmd() *cobra.Command {
	veh := &cobra.Command{Use: "vehicle", Short: "Manage vehicles"}
	veh.AddCommand(vehicleAddCmd())
	veh.AddCommand(vehicleListCmd())
	return veh
}

func vehicleAddCmd() *cobra.Command {
	var ownerID, reg, vin, mk, model string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a vehicle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				v, err := a.Engine.RegisterVehicle(ctx, domain.Vehicle{
					OwnerID:            ownerID,
					RegistrationNumber: reg,
					VIN:                vin,
					Make:               mk,
					Model:              model,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner-id", "", "owning customer id")
	cmd.Flags().StringVar(&reg, "reg", "", "registration number")
	cmd.Flags().StringVar(&vin, "vin", "", "vehicle identification number")
	cmd.Flags().StringVar(&mk, "make", "", "vehicle make")
	cmd.Flags().StringVar(&model, "model", "", "vehicle model")
	_ = cmd.MarkFlagRequired("owner-id")
	_ = cmd.MarkFlagRequired("reg")
	_ = cmd.MarkFlagRequired("vin")
	return cmd
}

func vehicleListCmd() *cobra.Command {
	var ownerID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vehicles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Repo.ListVehicles(ctx, ownerID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Owner", "Reg", "VIN", "Booked", "Done", "Manager"})
				for _, v := range items {
					manager := ""
					if v.AssignedManagerID != nil {
						manager = *v.AssignedManagerID
					}
					tw.AppendRow(table.Row{v.ID, v.OwnerID, v.RegistrationNumber, v.VIN, v.BookedForService, v.ServiceDone, manager})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner-id", "", "filter by owning customer")
	return cmd
}

func orderCmd() *cobra.Command {
	ord := &cobra.Command{Use: "order", Short: "Work order lifecycle"}
	ord.AddCommand(orderBookCmd())
	ord.AddCommand(orderListCmd())
	ord.AddCommand(orderShowCmd())
	ord.AddCommand(orderAssignManagerCmd())
	ord.AddCommand(orderAssignMechanicCmd())
	ord.AddCommand(orderStartCmd())
	ord.AddCommand(orderCompleteCmd())
	ord.AddCommand(orderCostsCmd())
	ord.AddCommand(orderProgressCmd())
	ord.AddCommand(orderCancelCmd())
	return ord
}

func orderBookCmd() *cobra.Command {
	var customerID, description, scheduledAt string
	var vehicleID int64
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a vehicle for service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				wo, err := a.Engine.CreateBooking(ctx, engine.BookingOptions{
					CustomerID:  customerID,
					VehicleID:   vehicleID,
					Description: description,
					ScheduledAt: scheduledAt,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	cmd.Flags().StringVar(&customerID, "customer-id", "", "owning customer id")
	cmd.Flags().Int64Var(&vehicleID, "vehicle-id", 0, "vehicle id")
	cmd.Flags().StringVar(&description, "description", "", "reported problem")
	cmd.Flags().StringVar(&scheduledAt, "scheduled-at", "", "requested slot (RFC3339)")
	_ = cmd.MarkFlagRequired("customer-id")
	_ = cmd.MarkFlagRequired("vehicle-id")
	return cmd
}

func orderListCmd() *cobra.Command {
	var status, mechanicID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var items []domain.WorkOrder
				var err error
				if mechanicID != "" {
					items, err = a.Engine.Repo.ListWorkOrdersByMechanic(ctx, mechanicID)
				} else {
					items, err = a.Engine.Repo.ListWorkOrdersByStatus(ctx, status)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Order", "Vehicle", "Status", "Manager", "Mechanic", "Est", "Final"})
				for _, wo := range items {
					tw.AppendRow(table.Row{
						wo.ServiceOrderID, wo.VehicleID, wo.Status,
						strOrEmpty(wo.ManagerID), strOrEmpty(wo.MechanicID),
						costOrEmpty(wo.EstimatedCost), costOrEmpty(wo.FinalCost),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", domain.StatusOpen, "status filter")
	cmd.Flags().StringVar(&mechanicID, "mechanic-id", "", "list orders assigned to a mechanic")
	return cmd
}

func orderShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <service-order-id>",
		Short: "Show a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				wo, err := a.Engine.Repo.GetWorkOrderByServiceOrderID(ctx, args[0])
				if err != nil {
					return fmt.Errorf("work order %s: %w", args[0], err)
				}
				return printJSONOrTable(wo)
			})
		},
	}
	return cmd
}

func orderAssignManagerCmd() *cobra.Command {
	var managerID string
	cmd := &cobra.Command{
		Use:   "assign-manager <service-order-id>",
		Short: "Assign a service manager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				wo, err := a.Engine.AssignManager(ctx, args[0], managerID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	cmd.Flags().StringVar(&managerID, "manager-id", "", "service manager id")
	_ = cmd.MarkFlagRequired("manager-id")
	return cmd
}

func orderAssignMechanicCmd() *cobra.Command {
	var mechanicID string
	var estimatedCost float64
	cmd := &cobra.Command{
		Use:   "assign-mechanic <service-order-id>",
		Short: "Assign a mechanic with a cost estimate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				wo, err := a.Engine.AssignMechanic(ctx, args[0], mechanicID, estimatedCost, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	cmd.Flags().StringVar(&mechanicID, "mechanic-id", "", "mechanic id")
	cmd.Flags().Float64Var(&estimatedCost, "estimated-cost", 0, "estimated cost")
	_ = cmd.MarkFlagRequired("mechanic-id")
	return cmd
}

func orderStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <service-order-id>",
		Short: "Start service work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				wo, err := a.Engine.Start(ctx, args[0], "", viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	return cmd
}

func orderCompleteCmd() *cobra.Command {
	var finalCost float64
	var details, imageURL string
	cmd := &cobra.Command{
		Use:   "complete <service-order-id>",
		Short: "Complete service work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				wo, err := a.Engine.Complete(ctx, engine.CompleteOptions{
					ServiceOrderID: args[0],
					FinalCost:      finalCost,
					ServiceDetails: details,
					EvidenceURL:    imageURL,
					ActorID:        viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	cmd.Flags().Float64Var(&finalCost, "final-cost", 0, "final cost")
	cmd.Flags().StringVar(&details, "details", "", "service details for the completion record")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "evidence image URL")
	_ = cmd.MarkFlagRequired("final-cost")
	return cmd
}

func orderCostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "costs <service-order-id>",
		Short: "Update estimated or final cost",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var est, fin *float64
			if cmd.Flags().Changed("estimated-cost") {
				v, _ := cmd.Flags().GetFloat64("estimated-cost")
				est = &v
			}
			if cmd.Flags().Changed("final-cost") {
				v, _ := cmd.Flags().GetFloat64("final-cost")
				fin = &v
			}
			if est == nil && fin == nil {
				return fmt.Errorf("--estimated-cost or --final-cost required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				wo, err := a.Engine.UpdateCosts(ctx, args[0], est, fin, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	cmd.Flags().Float64("estimated-cost", 0, "estimated cost")
	cmd.Flags().Float64("final-cost", 0, "final cost")
	return cmd
}

func orderProgressCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "progress <service-order-id>",
		Short: "Append a progress note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				wo, err := a.Engine.AppendProgress(ctx, args[0], "", note, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "progress note")
	_ = cmd.MarkFlagRequired("note")
	return cmd
}

func orderCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <service-order-id>",
		Short: "Cancel a work order before work starts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				wo, err := a.Engine.Cancel(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(wo)
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var orderID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Engine.Repo.ListEvents(ctx, orderID, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&orderID, "order-id", "", "filter by service order id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				authCfg := server.AuthConfig{
					JWTSecret:              a.Config.Auth.JWTSecret,
					AllowLegacyActorHeader: a.Config.Auth.AllowLegacyActorHeader,
					Logger:                 a.Logger,
				}
				if s := os.Getenv("PITSTOP_JWT_SECRET"); s != "" {
					authCfg.JWTSecret = s
				}
				if authCfg.JWTSecret == "" && !authCfg.AllowLegacyActorHeader {
					return fmt.Errorf("PITSTOP_JWT_SECRET is required for bearer auth")
				}
				if addr == "" {
					addr = a.Config.Server.Listen
				}
				if basePath == "" {
					basePath = a.Config.Server.BasePath
				}
				handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Pitstop API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(viper.GetString("workspace"), nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func costOrEmpty(c *float64) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *c)
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
