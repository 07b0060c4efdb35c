package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vttlabs/lorekeeper/internal/host"
	"github.com/vttlabs/lorekeeper/internal/server"
	"github.com/vttlabs/lorekeeper/internal/server/auth"
	"github.com/vttlabs/lorekeeper/internal/server/config"
)

func main() {
	// "mint" prints a join token and exits; everything else runs the server.
	if len(os.Args) > 1 && os.Args[1] == "mint" {
		if err := mint(os.Args[2:]); err != nil {
			log.Printf("%v", err)
			os.Exit(1)
		}
		return
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}

// mint prints a join token signed with the server's configured secret, so
// tokens minted here verify against a server started from the same config.
func mint(args []string) error {
	cfg := config.LoadConfig()

	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	userID := fs.String("user", "", "stable user id")
	name := fs.String("name", "", "display name")
	role := fs.String("role", "player", "gm or player")
	world := fs.String("world", "", "world id")
	secret := fs.String("secret", cfg.SecretKey, "signing secret")
	hours := fs.Int("hours", int(cfg.TokenValidityDuration.Hours()), "validity in hours")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *userID == "" || *world == "" {
		return fmt.Errorf("mint requires -user and -world")
	}

	r := host.Role(*role)
	if r != host.RoleGM && r != host.RolePlayer {
		return fmt.Errorf("unknown role %q", *role)
	}

	token, err := auth.GenerateToken(host.User{ID: *userID, Name: *name, Role: r}, *world,
		[]byte(*secret), time.Duration(*hours)*time.Hour)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
