package main

import (
	"context"
	"flag"
	"log"

	"inventra-api/internal/config"
	"inventra-api/internal/repository"
	"inventra-api/internal/service"
	"inventra-api/pkg/database"
)

func main() {
	email := flag.String("email", "", "email of the account to reset")
	password := flag.String("password", "", "new password (min 6 characters)")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		log.Fatal("both -email and -password are required")
	}

	// 1. Load Env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// 2. Setup Database
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatal(err)
	}

	// 3. Reset through the user service so every open session ends too
	users := service.NewUserService(repository.NewUserRepo(db), repository.NewRoleRepo(db), cfg.RequestTimeout)
	if err := users.ResetPassword(context.Background(), *email, *password); err != nil {
		log.Fatalf("Failed to reset password for %s: %v", *email, err)
	}

	log.Printf("Password for %s has been reset", *email)
}
