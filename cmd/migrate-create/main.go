package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

func main() {
	name := flag.String("name", "", "migration name (lowercase, digits, underscores)")
	dir := flag.String("dir", filepath.Join("db", "migrations"), "migrations directory")
	flag.Parse()

	if *name == "" {
		log.Fatal("migration name is required")
	}
	for _, r := range *name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			log.Fatalf("invalid character %q in migration name", r)
		}
	}

	version := time.Now().UTC().Format("20060102150405")
	base := fmt.Sprintf("%s_%s", version, *name)
	upPath := filepath.Join(*dir, base+".up.sql")
	downPath := filepath.Join(*dir, base+".down.sql")

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatalf("create migrations dir: %v", err)
	}

	upBody := fmt.Sprintf("-- %s\nBEGIN;\n\nCOMMIT;\n", *name)
	downBody := fmt.Sprintf("-- revert %s\nBEGIN;\n\nCOMMIT;\n", *name)
	if err := writeFile(upPath, upBody); err != nil {
		log.Fatalf("create up migration: %v", err)
	}
	if err := writeFile(downPath, downBody); err != nil {
		log.Fatalf("create down migration: %v", err)
	}

	log.Printf("created %s and %s", upPath, downPath)
}

func writeFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
