// seed loads journey templates, employees and enrollments from a YAML file
// into the configured storage and prints an operator token.
// Run: go run ./cmd/seed [-f journeys.yaml]
package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/ErlanBelekov/journey-engine/config"
	"github.com/ErlanBelekov/journey-engine/internal/bootstrap"
	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/templatefile"
	"github.com/ErlanBelekov/journey-engine/internal/usecase"
)

//go:embed seed.yaml
var defaultSeed []byte

func main() {
	path := flag.String("f", "", "YAML file to load instead of the built-in seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Storage == config.BackendMemory {
		log.Fatal("config: seeding in-memory storage is pointless, set STORAGE=postgres")
	}

	file, err := load(*path)
	if err != nil {
		log.Fatal(err)
	}

	logger := bootstrap.Logger(cfg)
	ctx := context.Background()

	stores, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		stores.Close()
		log.Fatalf("storage: %v", err)
	}
	defer stores.Close()

	templates := usecase.NewTemplateUsecase(stores.Templates)
	employees := usecase.NewEmployeeUsecase(stores.Employees)
	journeys := usecase.NewJourneyUsecase(stores.Employees, stores.Templates, stores.Instances, stores.Queue)

	templateIDs := make(map[string]string, len(file.Journeys))
	for _, j := range file.Journeys {
		actions, err := j.DomainActions()
		if err != nil {
			log.Fatal(err)
		}
		tpl, err := templates.Create(ctx, usecase.CreateTemplateInput{
			Name:        j.Name,
			Description: j.Description,
			Actions:     actions,
		})
		if err != nil {
			log.Fatalf("create journey %q: %v", j.Name, err)
		}
		templateIDs[j.Name] = tpl.ID
	}

	employeeIDs, created, err := seedEmployees(ctx, employees, file.Employees)
	if err != nil {
		log.Fatal(err)
	}

	var instanceIDs []string
	for _, en := range file.Enrollments {
		start, err := en.ParsedStartDate()
		if err != nil {
			log.Fatal(err)
		}
		inst, err := journeys.Enroll(ctx, usecase.EnrollInput{
			EmployeeID: employeeIDs[en.Employee],
			TemplateID: templateIDs[en.Journey],
			StartDate:  start,
		})
		if err != nil {
			log.Fatalf("enroll %s in %q: %v", en.Employee, en.Journey, err)
		}
		instanceIDs = append(instanceIDs, inst.ID)
	}

	token, err := usecase.NewTokenIssuer([]byte(cfg.JWTSecret), 24*time.Hour).Issue("seed")
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Journeys created:  %d\n", len(templateIDs))
	fmt.Printf("  Employees created: %d  (reused %d already existing)\n", created, len(employeeIDs)-created)
	fmt.Printf("  Enrollments:       %d\n", len(instanceIDs))
	for _, id := range instanceIDs {
		fmt.Printf("    %s\n", id)
	}
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Printf("    export JWT=%s\n", token)
	fmt.Println()
	fmt.Println("  Watch the queue drain once the processor runs:")
	fmt.Println()
	fmt.Println("    curl -s http://localhost:8080/queues -H \"Authorization: Bearer $JWT\"")
	fmt.Println("    curl -s 'http://localhost:8080/jobs?state=waiting' -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  Follow one journey (use any ID from above):")
	fmt.Println()
	fmt.Println("    curl -s http://localhost:8080/employee-journeys/ID -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  What to expect:")
	fmt.Println("    Quick smoke test    →  email and chat complete, the api step fails after retries (500)")
	fmt.Println("    New hire onboarding →  welcome mail now, chat on the next day at 09:30, api a week later")
}

func load(path string) (*templatefile.File, error) {
	if path == "" {
		return templatefile.Parse(defaultSeed)
	}
	return templatefile.Load(path)
}

// seedEmployees creates the file's employees and resolves the ones that
// already exist by email, so the seed can run more than once.
func seedEmployees(ctx context.Context, employees *usecase.EmployeeUsecase, list []templatefile.Employee) (map[string]string, int, error) {
	ids := make(map[string]string, len(list))
	created := 0
	for _, e := range list {
		hire, err := e.ParsedHireDate()
		if err != nil {
			return nil, 0, err
		}
		emp, err := employees.Create(ctx, usecase.CreateEmployeeInput{
			Name:       e.Name,
			Email:      e.Email,
			Phone:      e.Phone,
			Department: e.Department,
			Position:   e.Position,
			HireDate:   hire,
		})
		switch {
		case err == nil:
			ids[e.Email] = emp.ID
			created++
		case errors.Is(err, domain.ErrDuplicateEmployee):
			id, err := findByEmail(ctx, employees, e.Email)
			if err != nil {
				return nil, 0, err
			}
			ids[e.Email] = id
		default:
			return nil, 0, fmt.Errorf("create employee %s: %w", e.Email, err)
		}
	}
	return ids, created, nil
}

func findByEmail(ctx context.Context, employees *usecase.EmployeeUsecase, email string) (string, error) {
	all, err := employees.List(ctx, 200)
	if err != nil {
		return "", fmt.Errorf("list employees: %w", err)
	}
	for _, e := range all {
		if e.Email == email {
			return e.ID, nil
		}
	}
	return "", fmt.Errorf("employee %s exists but was not found in the first 200", email)
}
