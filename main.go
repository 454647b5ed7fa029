package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load ./.env if present before reading vars; existing env wins.
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}

	db, err := openDB()
	if err != nil {
		log.Fatal(err)
	}

	// Lightweight migrate command: `./cleaneradmin migrate` runs AutoMigrate
	// and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		migrateDB(db)
		fmt.Println("migration and seeding completed")
		return
	}

	migrateDB(db)

	s := newServer(db, []byte(secret))
	r := gin.Default()
	setupRoutes(r, s)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8081"
	}
	r.Run(addr)
}
