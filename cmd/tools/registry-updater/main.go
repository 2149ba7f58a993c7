// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"dealdesk-workers/pkg/registry"

	notify "dealdesk-workers/internal/workers/communication/notify-at-risk-deal"
	chs "dealdesk-workers/internal/workers/deal/calculate-health-score"
	phs "dealdesk-workers/internal/workers/deal/persist-health-score"
	rph "dealdesk-workers/internal/workers/deal/refresh-pipeline-health"
	ihs "dealdesk-workers/internal/workers/reporting/index-health-snapshot"
)

const defaultRegistryPath = "configs/activity-registry.json"

var registryPath string

// workerSchemas maps each registered task type to the schema compiled into
// its worker package, so `sync` keeps the registry honest.
var workerSchemas = map[string]map[string]interface{}{
	chs.TaskType:    chs.InputSchema(),
	phs.TaskType:    phs.InputSchema(),
	rph.TaskType:    rph.InputSchema(),
	ihs.TaskType:    ihs.InputSchema(),
	notify.TaskType: notify.InputSchema(),
}

func main() {
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	syncCmd := flag.NewFlagSet("sync", flag.ExitOnError)

	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, etc.)")
	value := updateCmd.String("value", "", "New value for the field")
	updateCmd.StringVar(&registryPath, "path", defaultRegistryPath, "Path to registry file")

	validateCmd.StringVar(&registryPath, "path", defaultRegistryPath, "Path to registry file")
	syncCmd.StringVar(&registryPath, "path", defaultRegistryPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "sync":
		syncCmd.Parse(os.Args[2:])
		if err := syncSchemas(); err != nil {
			fmt.Printf("Registry sync failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Synced %d worker schemas into %s\n", len(workerSchemas), registryPath)

	case "help":
		fallthrough
	default:
		help()
	}
}

func updateActivity(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	found := false
	for i := range reg.Activities {
		if reg.Activities[i].ID == id {
			found = true
			switch field {
			case "status":
				reg.Activities[i].ImplementationStatus = value
			case "version":
				reg.Activities[i].Version = value
			case "displayName":
				reg.Activities[i].DisplayName = value
			case "description":
				reg.Activities[i].Description = value
			case "category":
				reg.Activities[i].Category = value
			case "taskType":
				reg.Activities[i].TaskType = value
			case "timeout":
				reg.Activities[i].Timeout = value
			case "retries":
				retries, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("invalid retries value: %w", err)
				}
				reg.Activities[i].Retries = retries
			default:
				return fmt.Errorf("unknown field: %s", field)
			}
			break
		}
	}

	if !found {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	return registry.SaveRegistry(reg, registryPath)
}

func validateRegistry() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if err := reg.Validate(); err != nil {
		return err
	}

	// Every compiled worker must be registered, and registered schemas must
	// match the compiled ones.
	for taskType := range workerSchemas {
		if reg.Find(taskType) == nil {
			return fmt.Errorf("worker %s is not registered; run sync", taskType)
		}
	}

	fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

// syncSchemas rewrites each registered activity's input schema from the
// compiled worker package. Activities for unknown task types are left alone.
func syncSchemas() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		if os.IsNotExist(err) {
			reg = &registry.ActivityRegistry{
				Version:     "1.0.0",
				LastUpdated: time.Now().Format(time.RFC3339),
			}
		} else {
			return fmt.Errorf("failed to load registry: %w", err)
		}
	}

	for taskType, schema := range workerSchemas {
		if existing := reg.Find(taskType); existing != nil {
			existing.InputSchema = schema
			continue
		}
		reg.Upsert(registry.Activity{
			ID:                   taskType,
			DisplayName:          taskType,
			Description:          "auto-registered by registry-updater sync",
			Category:             "deal",
			Version:              "1.0.0",
			TaskType:             taskType,
			ImplementationStatus: "completed",
			InputSchema:          schema,
			OutputSchema:         map[string]interface{}{},
			ErrorCodes:           []string{},
			Timeout:              "10s",
			Retries:              0,
			Tags:                 []string{},
		})
	}

	return registry.SaveRegistry(reg, registryPath)
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  update   Update an existing activity's field
  validate Validate the registry file against the compiled workers
  sync     Rewrite registered input schemas from the compiled worker packages
  help     Show this help message

Examples:
  registry-updater update -id calculate-health-score -field status -value completed
  registry-updater validate -path configs/activity-registry.json
  registry-updater sync

Use 'registry-updater <command> -h' for more information about a command.

`)
}
