package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/backend"
	"finance-tracker/internal/models"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const (
	defaultDBPath   = "finance.db"
	defaultBoltPath = "finance.bolt"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	backendFlag := fs.String("backend", string(backend.SQLite), "Storage backend (sqlite or bolt)")
	dbPath := fs.String("db", "", "Path to database file")
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*username) == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> [-password <password>] [-backend sqlite|bolt] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}

	typ := backend.Type(*backendFlag)
	if !typ.IsValid() {
		return fmt.Errorf("unknown backend %q", *backendFlag)
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if len(password) > auth.MaxPasswordLength {
		return fmt.Errorf("password cannot be longer than %d bytes", auth.MaxPasswordLength)
	}

	cfg := backend.Config{Type: typ, DBPath: *dbPath, BoltPath: *dbPath}
	// An explicit -db wins over the environment.
	if *dbPath == "" {
		cfg.DBPath = envOr("DB_PATH", defaultDBPath)
		cfg.BoltPath = envOr("BOLT_PATH", defaultBoltPath)
	}

	store, err := backend.Open(cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	hash, err := auth.NewHasher(*cost).Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := store.CreateUser(context.Background(), strings.TrimSpace(*username), hash)
	if err != nil {
		if errors.Is(err, models.ErrUserExists) {
			return fmt.Errorf("user %s already exists", *username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %d\n", user.Username, user.ID)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
