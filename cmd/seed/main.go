package main

import (
	"fmt"
	"os"
	"path/filepath"

	"campus-library/configs"
	"campus-library/library"
)

// Seeds a fresh data directory with the default catalog and users so
// the console has something to log into on first run.

type seedBook struct {
	isbn, title, author, publisher string
	year                           int
}

type seedUser struct {
	id, name, password string
	role               library.Role
}

var defaultBooks = []seedBook{
	{"1", "Design Patterns", "Erich Gamma", "Addison-Wesley", 1994},
	{"2", "Clean Code", "Robert Martin", "Prentice Hall", 2008},
	{"3", "Introduction to Algorithms", "Thomas Cormen", "MIT Press", 2009},
	{"4", "Code Complete", "Steve McConnell", "Microsoft Press", 2004},
	{"5", "Refactoring", "Martin Fowler", "Addison-Wesley", 1999},
	{"6", "Head First Java", "Kathy Sierra", "O'Reilly", 2005},
	{"7", "The Pragmatic Programmer", "Andrew Hunt", "Addison-Wesley", 1999},
	{"8", "Effective C++", "Scott Meyers", "Addison-Wesley", 2005},
	{"9", "Programming Pearls", "Jon Bentley", "Addison-Wesley", 1999},
	{"10", "The Art of Computer Programming", "Donald Knuth", "Addison-Wesley", 1968},
}

var defaultUsers = []seedUser{
	{"100", "Admin", "admin123", library.RoleLibrarian},
	{"101", "Dr. Smith", "faculty123", library.RoleFaculty},
	{"102", "Prof. Johnson", "faculty123", library.RoleFaculty},
	{"103", "Dr. Williams", "faculty123", library.RoleFaculty},
	{"201", "John Doe", "student123", library.RoleStudent},
	{"202", "Jane Smith", "student123", library.RoleStudent},
	{"203", "Bob Wilson", "student123", library.RoleStudent},
	{"204", "Alice Brown", "student123", library.RoleStudent},
	{"205", "Charlie Davis", "student123", library.RoleStudent},
}

func main() {
	cfg := configs.LoadConfig()

	var store library.Store
	switch cfg.Storage {
	case "flat":
		store = library.NewTextStore(cfg.DataDir)
	case "sqlite":
		s, err := library.NewSQLStore(filepath.Join(cfg.DataDir, "library.db"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	default:
		fmt.Fprintf(os.Stderr, "Unknown storage backend %q\n", cfg.Storage)
		os.Exit(1)
	}

	dir, err := library.Open(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading library state: %v\n", err)
		os.Exit(1)
	}
	if len(dir.Users()) > 0 {
		fmt.Fprintf(os.Stderr, "Data directory %s already has users; refusing to seed.\n", cfg.DataDir)
		os.Exit(1)
	}

	successCount := 0
	errorCount := 0

	fmt.Printf("Seeding %s (%s storage)...\n", cfg.DataDir, cfg.Storage)
	for _, b := range defaultBooks {
		fmt.Printf("Adding book: %s by %s... ", b.title, b.author)
		if err := dir.AddBook(b.isbn, b.title, b.author, b.publisher, b.year); err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Println("OK")
		successCount++
	}
	for _, u := range defaultUsers {
		fmt.Printf("Adding %s: %s (ID %s)... ", u.role, u.name, u.id)
		if err := dir.AddUser(u.id, u.name, u.password, u.role); err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Println("OK")
		successCount++
	}

	fmt.Printf("\nSeed complete: %d added, %d errors\n", successCount, errorCount)
	fmt.Println("Default logins: librarian 100/admin123, faculty 101-103/faculty123, students 201-205/student123")
}
