// Command to migrate the legacy data.json file into the SQLite database
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zqily/pcplanner/internal/model"
	"github.com/zqily/pcplanner/internal/store"
)

const version = "1.0.0"

// legacyItem mirrors one item entry in the legacy JSON format
type legacyItem struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Link         string              `json:"link"`
	Specs        string              `json:"specs"`
	ImageURL     string              `json:"image_url"`
	Quantity     int                 `json:"quantity"`
	Price        int                 `json:"price"`
	PriceHistory []legacyLedgerEntry `json:"price_history"`
}

type legacyLedgerEntry struct {
	Date  string `json:"date"`
	Price int    `json:"price"`
}

// legacyProfile maps category name to items
type legacyProfile map[string][]legacyItem

func main() {
	dataFile := flag.String("data", "./data.json", "Legacy JSON data file")
	dataDir := flag.String("dir", "./data", "Data directory for the SQLite database")
	dryRun := flag.Bool("dry-run", false, "Show what would be done without making changes")
	force := flag.Bool("force", false, "Migrate even if the database already contains profiles")
	versionFlag := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("migrate version %s\n", version)
		return
	}

	fmt.Printf("=== PC Planner data migration v%s ===\n\n", version)

	if _, err := os.Stat(*dataFile); os.IsNotExist(err) {
		fmt.Printf("No legacy data file at %s, nothing to migrate\n", *dataFile)
		return
	}

	profiles, activeProfile, err := readLegacyData(*dataFile)
	if err != nil {
		fmt.Printf("Error: failed to read legacy data: %v\n", err)
		os.Exit(1)
	}

	itemCount := 0
	for _, categories := range profiles {
		for _, items := range categories {
			itemCount += len(items)
		}
	}
	fmt.Printf("Found %d profiles, %d items\n", len(profiles), itemCount)

	if *dryRun {
		fmt.Println("\n=== Dry run, no changes made ===")
		for name, categories := range profiles {
			fmt.Printf("  Profile %q:\n", name)
			for cat, items := range categories {
				fmt.Printf("    %s: %d items\n", cat, len(items))
			}
		}
		return
	}

	st, err := store.NewSQLite(*dataDir, 30)
	if err != nil {
		fmt.Printf("Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	// A freshly created database holds only the seeded default profile with
	// no items; anything beyond that means a migration already happened.
	existing, err := st.GetAllItems()
	if err != nil {
		fmt.Printf("Error: failed to inspect database: %v\n", err)
		os.Exit(1)
	}
	if len(existing) > 0 && !*force {
		fmt.Println("Error: database already contains items; use --force to migrate anyway")
		os.Exit(1)
	}

	if err := migrate(st, profiles, activeProfile); err != nil {
		fmt.Printf("Error: migration failed: %v\n", err)
		os.Exit(1)
	}

	// Rename the legacy file so the migration never runs twice
	backupPath := *dataFile + ".bak"
	if err := os.Rename(*dataFile, backupPath); err != nil {
		fmt.Printf("Warning: could not rename legacy file: %v\n", err)
	} else {
		fmt.Printf("Legacy data file renamed to %s\n", filepath.Base(backupPath))
	}

	fmt.Println("\nMigration successful.")
}

// readLegacyData parses the legacy data.json in any of its historical
// shapes: the profile-keyed format with an active_profile marker, a bare
// profile map, a {components, peripherals} object, or a plain item list.
func readLegacyData(path string) (map[string]legacyProfile, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	// Newest format: {"profiles": {...}, "active_profile": "..."}
	var wrapped struct {
		Profiles      map[string]legacyProfile `json:"profiles"`
		ActiveProfile string                   `json:"active_profile"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Profiles) > 0 {
		return wrapped.Profiles, wrapped.ActiveProfile, nil
	}

	// Bare profile map: {"My Build": {"components": [...]}, ...}
	var bare map[string]legacyProfile
	if err := json.Unmarshal(raw, &bare); err == nil && len(bare) > 0 {
		return bare, "", nil
	}

	// Single unnamed profile: {"components": [...], "peripherals": [...]}
	var single legacyProfile
	if err := json.Unmarshal(raw, &single); err == nil {
		if _, ok := single[model.CategoryComponents]; ok {
			return map[string]legacyProfile{"Default Profile": single}, "Default Profile", nil
		}
	}

	// Oldest format: a bare list of components
	var items []legacyItem
	if err := json.Unmarshal(raw, &items); err == nil {
		return map[string]legacyProfile{
			"Default Profile": {model.CategoryComponents: items},
		}, "Default Profile", nil
	}

	return nil, "", fmt.Errorf("unrecognized legacy data format")
}

// migrate writes the legacy profiles into the store
func migrate(st *store.SQLiteStore, profiles map[string]legacyProfile, activeProfile string) error {
	var activeID int64

	for name, categories := range profiles {
		fmt.Printf("Migrating profile: %s\n", name)

		profile, err := st.AddProfile(name)
		if err != nil {
			// The seeded default profile may collide with a legacy one
			if errors.Is(err, store.ErrProfileExists) {
				existing, gerr := st.GetProfiles()
				if gerr != nil {
					return gerr
				}
				for _, p := range existing {
					if p.Name == name {
						profile = p
						break
					}
				}
			} else {
				return err
			}
		}
		if profile == nil {
			return fmt.Errorf("could not resolve profile %q", name)
		}
		if name == activeProfile {
			activeID = profile.ID
		}

		for _, category := range []string{model.CategoryComponents, model.CategoryPeripherals} {
			for _, li := range categories[category] {
				if err := migrateItem(st, profile.ID, category, li); err != nil {
					return fmt.Errorf("item %q: %w", li.Name, err)
				}
			}
		}
	}

	if activeID != 0 {
		if err := st.SetActiveProfile(activeID); err != nil {
			return err
		}
	}
	return nil
}

// migrateItem inserts one legacy item with its price history
func migrateItem(st *store.SQLiteStore, profileID int64, category string, li legacyItem) error {
	name := li.Name
	if name == "" {
		name = "Unknown Item"
	}

	item := &model.Item{
		ID:        li.ID,
		ProfileID: profileID,
		Category:  category,
		Name:      name,
		Link:      li.Link,
		Specs:     li.Specs,
		ImageURL:  li.ImageURL,
		Quantity:  li.Quantity,
	}
	if len(li.PriceHistory) == 0 {
		// No ledger to replay; AddItem seeds a today entry for priced items
		item.CurrentPrice = li.Price
	}
	if err := st.AddItem(item); err != nil {
		return err
	}

	// Replay the ledger in order; the final entry sets current_price and
	// previous_price falls out of the replay
	for _, entry := range li.PriceHistory {
		day, err := time.Parse("2006-01-02", entry.Date)
		if err != nil {
			day = time.Now()
		}
		if entry.Price < 0 {
			continue
		}
		if err := st.RecordPrice(item.ID, entry.Price, day); err != nil {
			return err
		}
	}

	return nil
}
