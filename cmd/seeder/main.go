// cmd/seeder/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/luizvincenzi/criadores-slots/internal/config"
	"github.com/luizvincenzi/criadores-slots/internal/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config: ", err)
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatal("connect database: ", err)
	}
	defer conn.Close()

	seedFiles := []string{
		"seed/creators.sql",
		"seed/campaigns.sql",
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("failed to read %s: %v", file, err)
		}

		if _, err := conn.Exec(string(content)); err != nil {
			log.Fatalf("failed to execute %s: %v", file, err)
		}
		fmt.Printf("seeded %s\n", file)
	}

	fmt.Println("database seeding completed")
}
