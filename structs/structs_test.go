package structs

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	goccy "github.com/goccy/go-json"
)

func TestParseAction(t *testing.T) {
	for _, tc := range []struct {
		body string
		want Action
	}{
		{
			body: "PrintText Hello there",
			want: Action{Kind: ActionPrintText, Value: "Hello there"},
		},
		{
			body: "RunScript counter",
			want: Action{Kind: ActionRunScript, Value: "counter"},
		},
		{
			body: "RunScript  counter ",
			want: Action{Kind: ActionRunScript, Value: "counter"},
		},
		{
			body: "PrintText",
			want: Action{Kind: ActionNone},
		},
		{
			body: "RunScript ",
			want: Action{Kind: ActionNone},
		},
		{
			body: "Explode loudly",
			want: Action{Kind: ActionNone},
		},
		{
			body: "",
			want: Action{Kind: ActionNone},
		},
	} {
		if got := ParseAction(tc.body); got != tc.want {
			t.Errorf("ParseAction(%q): got %+v, want %+v", tc.body, got, tc.want)
		}
	}
}

func TestRoomCopyIsDeep(t *testing.T) {
	room := MakeRoom("nexus")
	room.Links = []string{"annex"}
	obj := MakeObject("sign")
	obj.Actions["read"] = Action{Kind: ActionPrintText, Value: "hi"}
	room.Objects["sign"] = obj
	room.Sessions["abc"] = true

	cp := room.Copy()
	cp.Links[0] = "elsewhere"
	cpObj := cp.Objects["sign"]
	cpObj.Actions["read"] = Action{Kind: ActionNone}
	cp.Objects["sign"] = cpObj
	delete(cp.Sessions, "abc")

	if room.Links[0] != "annex" {
		t.Errorf("copy shares links with original")
	}
	if room.Objects["sign"].Actions["read"].Value != "hi" {
		t.Errorf("copy shares actions with original")
	}
	if !room.Sessions["abc"] {
		t.Errorf("copy shares sessions with original")
	}
}

func TestRoomJSONOmitsSessions(t *testing.T) {
	room := MakeRoom("nexus")
	room.Display = "quiet"
	room.Sessions["abc"] = true
	b, err := goccy.Marshal(room)
	if err != nil {
		t.Fatal(err)
	}
	loaded := Room{}
	if err := goccy.Unmarshal(b, &loaded); err != nil {
		t.Fatal(err)
	}
	loaded.Normalize()
	if len(loaded.Sessions) != 0 {
		t.Errorf("connected sessions got persisted: %+v", loaded.Sessions)
	}
	want := room.Copy()
	want.Sessions = map[string]bool{}
	if diff := cmp.Diff(want, loaded); diff != "" {
		t.Errorf("room didn't round trip: %s", diff)
	}
}

func TestNormalizeDefaultsObjectActions(t *testing.T) {
	room := Room{}
	if err := goccy.Unmarshal([]byte(`{"id":"nexus","objects":{"sign":{"name":"sign","display":"a sign"}}}`), &room); err != nil {
		t.Fatal(err)
	}
	room.Normalize()
	obj := room.Objects["sign"]
	if obj.Actions == nil {
		t.Fatal("object decoded without actions kept a nil map")
	}
	obj.Actions["read"] = Action{Kind: ActionPrintText, Value: "hi"}
	room.Objects["sign"] = obj
	if room.Objects["sign"].Actions["read"].Value != "hi" {
		t.Errorf("action write didn't stick: %+v", room.Objects["sign"])
	}
}

func TestNextSessionIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id, err := NextSessionID()
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate session ID %q", id)
		}
		seen[id] = true
	}
}
