package gmcp

import (
	"encoding/json"
	"testing"
)

func TestDecodePackageWithPayload(t *testing.T) {
	m, err := Decode([]byte(`Char.Vitals {"hp":100,"maxhp":100}`))
	if err != nil {
		t.Fatal(err)
	}
	if m.Package != "Char.Vitals" {
		t.Fatalf("want package Char.Vitals, got %q", m.Package)
	}
	var v struct{ HP, MaxHP int }
	if err := json.Unmarshal(m.Data, &v); err != nil {
		t.Fatal(err)
	}
	if v.HP != 100 || v.MaxHP != 100 {
		t.Fatalf("want hp=maxhp=100, got %+v", v)
	}
}

func TestDecodePackageWithoutPayload(t *testing.T) {
	m, err := Decode([]byte("Core.Ping"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Package != "Core.Ping" || len(m.Data) != 0 {
		t.Fatalf("want bare package with no data, got %+v", m)
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, err := Decode([]byte("Char.Vitals {not json}"))
	if err == nil {
		t.Fatal("want error for malformed JSON payload")
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	m := Message{Package: "Char.Vitals", Data: json.RawMessage(`{"hp":50}`)}
	raw := Encode(m)
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Package != m.Package || string(decoded.Data) != string(m.Data) {
		t.Fatalf("round trip mismatch: got %+v", decoded)
	}
}

func TestSupportSetAddRemoveAndParentLookup(t *testing.T) {
	s := NewSupportSet()
	s.Add("Char 1", "Room 1")

	if !s.Supports("Char.Vitals") {
		t.Fatal("want Char.Vitals supported via parent package Char")
	}
	s.Remove("Char")
	if s.Supports("Char.Vitals") {
		t.Fatal("want Char.Vitals no longer supported after removing Char")
	}
	if !s.Supports("Room 1") {
		t.Fatal("want Room still supported")
	}
}

func TestCoreSupportsSetListsSortedPackages(t *testing.T) {
	s := NewSupportSet()
	s.Add("Room", "Char")
	m, err := CoreSupportsSet(s)
	if err != nil {
		t.Fatal(err)
	}
	if m.Package != "Core.Supports.Set" {
		t.Fatalf("want Core.Supports.Set, got %q", m.Package)
	}
	var entries []string
	if err := json.Unmarshal(m.Data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0] != "Char 1" || entries[1] != "Room 1" {
		t.Fatalf("want sorted [Char 1 Room 1], got %v", entries)
	}
}
