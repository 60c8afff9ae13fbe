// Command admin manages columns and admin accounts from the shell.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"myblog/internal/config"
	"myblog/internal/database"
	"myblog/internal/repository"
	"myblog/internal/service"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin column-list               - List columns")
	fmt.Println("  go run ./cmd/admin column-create <title>     - Create a column")
	fmt.Println("  go run ./cmd/admin column-delete <column_id> - Delete a column using COLUMN_DELETE_POLICY")
	fmt.Println("  go run ./cmd/admin promote <username>        - Grant admin")
	fmt.Println("  go run ./cmd/admin demote <username>         - Revoke admin")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	images := service.NewImageService(cfg)
	columns := service.NewColumnService(repository.NewColumnRepository(db), images, cfg.ColumnDeletePolicy)
	users := service.NewUserService(repository.NewUserRepository(db), images)
	ctx := context.Background()

	arg := func() string {
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		return os.Args[2]
	}

	switch os.Args[1] {
	case "column-list":
		list, err := columns.List(ctx)
		if err != nil {
			log.Fatalf("List columns: %v", err)
		}
		for _, c := range list {
			fmt.Printf("%d\t%s\n", c.ID, c.Title)
		}

	case "column-create":
		col, err := columns.Create(ctx, service.CreateColumnInput{Title: arg()})
		if err != nil {
			log.Fatalf("Create column: %v", err)
		}
		fmt.Printf("Created column %q (ID: %d)\n", col.Title, col.ID)

	case "column-delete":
		id, err := strconv.ParseUint(arg(), 10, 64)
		if err != nil {
			log.Fatalf("Invalid column id %q", os.Args[2])
		}
		res, err := columns.Delete(ctx, uint(id))
		if err != nil {
			log.Fatalf("Delete column: %v", err)
		}
		fmt.Printf("Deleted column %d (policy %s, %d articles removed)\n", id, res.Policy, res.ArticlesRemoved)

	case "promote", "demote":
		admin := os.Args[1] == "promote"
		user, err := users.SetAdmin(ctx, arg(), admin)
		if err != nil {
			log.Fatalf("Update user: %v", err)
		}
		fmt.Printf("User %s (ID: %d) admin=%t\n", user.Username, user.ID, user.IsAdmin)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}
