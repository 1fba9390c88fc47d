package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/zond/textmud/structs"
)

func withStorage(t *testing.T, f func(*Storage)) {
	t.Helper()
	s, err := New(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	f(s)
}

func TestWorldRoundTrip(t *testing.T) {
	withStorage(t, func(s *Storage) {
		ctx := context.Background()
		sign := structs.MakeObject("sign")
		sign.Display = "just a sign"
		sign.Actions["read"] = structs.Action{Kind: structs.ActionPrintText, Value: "hi"}
		sign.Actions["poke"] = structs.Action{Kind: structs.ActionRunScript, Value: "poke"}
		nexus := structs.MakeRoom("nexus")
		nexus.Display = "quiet"
		nexus.Links = []string{"annex"}
		nexus.Objects["sign"] = sign
		annex := structs.MakeRoom("annex")
		rooms := map[string]structs.Room{
			"nexus": nexus,
			"annex": annex,
		}

		if err := s.SaveWorld(ctx, rooms); err != nil {
			t.Fatal(err)
		}
		loaded, err := s.LoadWorld(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(rooms, loaded); diff != "" {
			t.Errorf("world didn't round trip: %s", diff)
		}
	})
}

func TestLoadWorldEmpty(t *testing.T) {
	withStorage(t, func(s *Storage) {
		loaded, err := s.LoadWorld(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(loaded) != 0 {
			t.Errorf("fresh store loaded %d rooms, want 0", len(loaded))
		}
	})
}

func TestSaveWorldOverwrites(t *testing.T) {
	withStorage(t, func(s *Storage) {
		ctx := context.Background()
		if err := s.SaveWorld(ctx, map[string]structs.Room{"nexus": structs.MakeRoom("nexus")}); err != nil {
			t.Fatal(err)
		}
		if err := s.SaveWorld(ctx, map[string]structs.Room{"annex": structs.MakeRoom("annex")}); err != nil {
			t.Fatal(err)
		}
		loaded, err := s.LoadWorld(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if _, found := loaded["nexus"]; found {
			t.Errorf("old world record survived an overwrite")
		}
		if _, found := loaded["annex"]; !found {
			t.Errorf("new world record missing after save")
		}
	})
}

func TestSessionRoundTrip(t *testing.T) {
	withStorage(t, func(s *Storage) {
		ctx := context.Background()
		rec := &structs.SessionRecord{
			Name:     "ada",
			Room:     "annex",
			EditMode: true,
			ScriptState: map[string]string{
				"count": "3",
			},
		}
		if err := s.SaveSession(ctx, rec); err != nil {
			t.Fatal(err)
		}
		loaded, err := s.LoadSession(ctx, "ada")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(rec, loaded); diff != "" {
			t.Errorf("session didn't round trip: %s", diff)
		}
	})
}

func TestLoadSessionMissing(t *testing.T) {
	withStorage(t, func(s *Storage) {
		if _, err := s.LoadSession(context.Background(), "nobody"); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v, want os.ErrNotExist", err)
		}
	})
}

func TestSourceOverwriteInvalidatesCache(t *testing.T) {
	withStorage(t, func(s *Storage) {
		ctx := context.Background()
		if err := s.SetSource(ctx, "greet", `"one"`); err != nil {
			t.Fatal(err)
		}
		if got, err := s.GetSource(ctx, "greet"); err != nil || got != `"one"` {
			t.Fatalf("got %q, %v", got, err)
		}
		if err := s.SetSource(ctx, "greet", `"two"`); err != nil {
			t.Fatal(err)
		}
		if got, err := s.GetSource(ctx, "greet"); err != nil || got != `"two"` {
			t.Errorf("got %q, %v after overwrite, want %q", got, err, `"two"`)
		}
	})
}

func TestGetSourceMissing(t *testing.T) {
	withStorage(t, func(s *Storage) {
		if _, err := s.GetSource(context.Background(), "nope"); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v, want os.ErrNotExist", err)
		}
	})
}

func TestEachSourceName(t *testing.T) {
	withStorage(t, func(s *Storage) {
		ctx := context.Background()
		for _, name := range []string{"a", "b", "c"} {
			if err := s.SetSource(ctx, name, "// empty"); err != nil {
				t.Fatal(err)
			}
		}
		seen := map[string]bool{}
		if err := s.EachSourceName(ctx, func(name string) (bool, error) {
			seen[name] = true
			return true, nil
		}); err != nil {
			t.Fatal(err)
		}
		if len(seen) != 3 {
			t.Errorf("saw %d sources, want 3: %+v", len(seen), seen)
		}
	})
}
