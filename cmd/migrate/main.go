package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	canchasrepo "canchas/internal/canchas/repository"
	mongoMigration "canchas/internal/migrations/mongo"
	"canchas/pkg/config"
	"canchas/pkg/model"
)

const JobName = "mongo-migration"

var timeout time.Duration

func main() {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the canchas Mongo database",
		SilenceUsage: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline")

	root.AddCommand(upCmd())
	root.AddCommand(listCmd())
	root.AddCommand(canchaCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func connect() (*config.Config, context.Context, context.CancelFunc) {
	cfg := config.Load(JobName)
	cfg.SetMongo()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return cfg, ctx, func() {
		cancel()
		cfg.GracefulShutdown()
	}
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create collections, schema validators and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctx, done := connect()
			defer done()

			db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
			if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Migration completed successfully.")
			return nil
		},
	}
}

// listCmd prints the planned layout without touching the database.
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the collections and indexes managed by up",
		RunE: func(cmd *cobra.Command, args []string) error {
			writer := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintln(writer, "COLLECTION\tINDEX\tUNIQUE\tTTL")
			for _, c := range mongoMigration.Collections() {
				for _, idx := range c.Indexes {
					keys := []string{}
					for _, k := range idx.Keys.(bson.D) {
						keys = append(keys, fmt.Sprintf("%s:%v", k.Key, k.Value))
					}
					unique, ttl := "no", "-"
					if idx.Options != nil && idx.Options.Unique != nil && *idx.Options.Unique {
						unique = "yes"
					}
					if idx.Options != nil && idx.Options.ExpireAfterSeconds != nil {
						ttl = fmt.Sprintf("%ds", *idx.Options.ExpireAfterSeconds)
					}
					fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", c.Name, strings.Join(keys, ","), unique, ttl)
				}
			}
			return writer.Flush()
		},
	}
}

func canchaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancha",
		Short: "Manage the cancha catalog",
	}
	cmd.AddCommand(canchaUpsertCmd())
	return cmd
}

func canchaUpsertCmd() *cobra.Command {
	var c model.Cancha

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or replace a cancha",
		RunE: func(cmd *cobra.Command, args []string) error {
			c.ID = strings.TrimSpace(c.ID)
			c.CentroID = strings.TrimSpace(c.CentroID)
			if c.ID == "" || c.CentroID == "" || c.Nombre == "" {
				return fmt.Errorf("--id, --centro and --nombre are required")
			}
			if c.PrecioPorHora < 0 {
				return fmt.Errorf("--precio cannot be negative")
			}

			cfg, ctx, done := connect()
			defer done()

			coll := cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(canchasrepo.CollectionName)
			_, err := coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
			if err != nil {
				return fmt.Errorf("upsert cancha %s: %w", c.ID, err)
			}
			fmt.Printf("Cancha %s saved (centro %s, %.2f/h)\n", c.ID, c.CentroID, c.PrecioPorHora)
			return nil
		},
	}

	cmd.Flags().StringVar(&c.ID, "id", "", "cancha id")
	cmd.Flags().StringVar(&c.CentroID, "centro", "", "centro id")
	cmd.Flags().StringVar(&c.Nombre, "nombre", "", "display name")
	cmd.Flags().Float64Var(&c.PrecioPorHora, "precio", 0, "price per hour")
	cmd.Flags().IntVar(&c.Capacidad, "capacidad", 0, "players")
	return cmd
}
