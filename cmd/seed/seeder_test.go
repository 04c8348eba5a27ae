package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/JaimeStill/agent-chat/internal/agents"
	"github.com/google/uuid"
)

func TestDefaultCatalog_Resolves(t *testing.T) {
	catalog, err := agents.ParseCatalog(defaultCatalog)
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}

	resolved, err := catalog.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resolved) != 3 {
		t.Fatalf("agents = %d, want 3", len(resolved))
	}

	ids := make(map[string]agents.Agent)
	for _, a := range resolved {
		ids[a.Name] = a
	}
	for _, name := range []string{"boq", "price", "supplier"} {
		if _, ok := ids[name]; !ok {
			t.Errorf("missing agent %s", name)
		}
	}

	byName := make(map[string]uuid.UUID, len(ids))
	for name, a := range ids {
		byName[name] = a.ID
	}
	presets, err := catalog.PresetCommands(byName)
	if err != nil {
		t.Fatalf("PresetCommands failed: %v", err)
	}
	if len(presets) != 1 || len(presets[0].AgentIDs) != 3 {
		t.Errorf("presets = %+v", presets)
	}
}

func TestSeederRegistry(t *testing.T) {
	s, ok := getSeeder("catalog")
	if !ok {
		t.Fatal("catalog seeder not registered")
	}
	if _, ok := s.(*CatalogSeeder); !ok {
		t.Errorf("seeder type = %T", s)
	}
	if len(listSeeders()) == 0 {
		t.Error("listSeeders returned nothing")
	}
}

type namedSeeder string

func (n namedSeeder) Name() string { return string(n) }

func (n namedSeeder) Description() string { return "test seeder" }

func (n namedSeeder) Seed(context.Context, *sql.Tx) error { return nil }

func TestListSeeders_OrderedByName(t *testing.T) {
	for _, name := range []string{"zz-last", "aa-first"} {
		registerSeeder(namedSeeder(name))
		t.Cleanup(func() { delete(seeders, name) })
	}

	list := listSeeders()
	for i := 1; i < len(list); i++ {
		if list[i-1].Name() > list[i].Name() {
			t.Fatalf("seeders out of order: %s before %s", list[i-1].Name(), list[i].Name())
		}
	}
	if list[0].Name() != "aa-first" || list[len(list)-1].Name() != "zz-last" {
		t.Errorf("first/last = %s/%s", list[0].Name(), list[len(list)-1].Name())
	}
}
