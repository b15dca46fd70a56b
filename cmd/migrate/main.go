package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Dosada05/playoff-engine/db"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:  "migrate",
		Usage: "playoff engine PostgreSQL schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL DSN",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply pending migrations",
				Action: func(c *cli.Context) error {
					conn, err := connect(c)
					if err != nil {
						return err
					}
					defer conn.Close()

					applied, err := db.Migrate(c.Context, conn)
					if err != nil {
						return err
					}
					if len(applied) == 0 {
						fmt.Println("No new migrations to run")
						return nil
					}
					for _, name := range applied {
						fmt.Printf("Applied %s\n", name)
					}
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "roll back the most recent migration",
				Action: func(c *cli.Context) error {
					conn, err := connect(c)
					if err != nil {
						return err
					}
					defer conn.Close()

					name, err := db.Rollback(c.Context, conn)
					if err != nil {
						return err
					}
					if name == "" {
						fmt.Println("No migrations to roll back")
						return nil
					}
					fmt.Printf("Rolled back %s\n", name)
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "list migrations and when they were applied",
				Action: func(c *cli.Context) error {
					conn, err := connect(c)
					if err != nil {
						return err
					}
					defer conn.Close()

					status, err := db.Status(c.Context, conn)
					if err != nil {
						return err
					}
					for _, m := range status {
						applied := "pending"
						if m.AppliedAt != nil {
							applied = m.AppliedAt.Format(time.RFC3339)
						}
						fmt.Printf("%-6d %-32s %s\n", m.Version, m.Name, applied)
					}
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func connect(c *cli.Context) (*sql.DB, error) {
	dsn := c.String("database-url")
	if dsn == "" {
		return nil, fmt.Errorf("database url is required (--database-url or DATABASE_URL)")
	}
	return db.Connect(dsn, 5*time.Second)
}
